package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore. It pages its listings the way S3
// does so that callers exercise the same draining logic, and it can be told
// to fail specific operations.
type MemoryStore struct {
	mu       sync.RWMutex
	bucket   string
	objects  map[string]memoryObject
	pageSize int
	failures []failureRule
	calls    map[string]int
	now      func() time.Time
}

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

type failureRule struct {
	op    string
	match func(key string) bool
	err   error
}

// listEntry is either an object or a rolled-up common prefix
type listEntry struct {
	object *ObjectInfo
	prefix string
}

// NewMemoryStore creates a new in-memory object store
func NewMemoryStore(bucketName string) *MemoryStore {
	return &MemoryStore{
		bucket:   bucketName,
		objects:  make(map[string]memoryObject),
		pageSize: 1000,
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// SetPageSize changes how many entries a single list page carries
func (m *MemoryStore) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.pageSize = n
	}
}

// AddFile adds an object to the store without counting it as a call
func (m *MemoryStore) AddFile(key string, data []byte, lastModified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, lastModified: lastModified}
}

// FailOn makes every call of op ("list", "get", "put", "delete", "copy") whose
// key starts with keyPrefix return err. For copy the source key is matched.
func (m *MemoryStore) FailOn(op, keyPrefix string, err error) {
	m.FailWhen(op, func(key string) bool { return strings.HasPrefix(key, keyPrefix) }, err)
}

// FailWhen is FailOn with an arbitrary key predicate
func (m *MemoryStore) FailWhen(op string, match func(key string) bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failureRule{op: op, match: match, err: err})
}

// ClearFailures removes all configured failures
func (m *MemoryStore) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
}

// Calls returns how many times op was invoked. List pages count individually
// under "list_page".
func (m *MemoryStore) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Keys returns all stored keys starting with prefix, sorted
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Content returns the stored bytes for key
func (m *MemoryStore) Content(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// List implements ObjectStore.List
func (m *MemoryStore) List(ctx context.Context, prefix, delimiter string) (*ListResult, error) {
	m.mu.Lock()
	m.calls["list"]++
	m.mu.Unlock()

	if err := m.failure("list", prefix); err != nil {
		return nil, &StoreError{Op: "list", Key: prefix, Retryable: IsRetryable(err), Err: err}
	}

	result := &ListResult{}
	token := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, &StoreError{Op: "list", Key: prefix, Err: err}
		}

		entries, next := m.listPage(prefix, delimiter, token)
		for _, e := range entries {
			if e.object != nil {
				result.Objects = append(result.Objects, *e.object)
			} else {
				result.CommonPrefixes = append(result.CommonPrefixes, e.prefix)
			}
		}
		if next < 0 {
			return result, nil
		}
		token = next
	}
}

// listPage returns one page of entries starting at offset and the next offset,
// or -1 when the listing is exhausted
func (m *MemoryStore) listPage(prefix, delimiter string, offset int) ([]listEntry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list_page"]++

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var all []listEntry
	seen := make(map[string]bool)
	for _, k := range keys {
		rest := k[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					all = append(all, listEntry{prefix: cp})
				}
				continue
			}
		}
		obj := m.objects[k]
		all = append(all, listEntry{object: &ObjectInfo{
			Key:          k,
			LastModified: obj.lastModified,
			Size:         int64(len(obj.data)),
		}})
	}

	if offset >= len(all) {
		return nil, -1
	}
	end := offset + m.pageSize
	if end >= len(all) {
		return all[offset:], -1
	}
	return all[offset:end], end
}

// Get implements ObjectStore.Get
func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.begin(ctx, "get", key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, &StoreError{Op: "get", Key: key, Err: ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put implements ObjectStore.Put
func (m *MemoryStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := m.begin(ctx, "put", key); err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType, lastModified: m.now()}
	return nil
}

// Delete implements ObjectStore.Delete
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := m.begin(ctx, "delete", key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Copy implements ObjectStore.Copy
func (m *MemoryStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := m.begin(ctx, "copy", srcKey); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[srcKey]
	if !ok {
		return &StoreError{Op: "copy", Key: srcKey, Err: ErrNotFound}
	}
	m.objects[dstKey] = memoryObject{
		data:         append([]byte(nil), obj.data...),
		contentType:  obj.contentType,
		lastModified: m.now(),
	}
	return nil
}

// Bucket implements ObjectStore.Bucket
func (m *MemoryStore) Bucket() string {
	return m.bucket
}

// Close implements ObjectStore.Close
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) begin(ctx context.Context, op, key string) error {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &StoreError{Op: op, Key: key, Err: err}
	}
	if err := m.failure(op, key); err != nil {
		return &StoreError{Op: op, Key: key, Retryable: IsRetryable(err), Err: err}
	}
	return nil
}

func (m *MemoryStore) failure(op, key string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.failures {
		if f.op == op && f.match(key) {
			return f.err
		}
	}
	return nil
}

func (m *MemoryStore) String() string {
	return fmt.Sprintf("memory://%s", m.bucket)
}

var _ ObjectStore = (*MemoryStore)(nil)
