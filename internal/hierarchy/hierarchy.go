// Package hierarchy turns flat prefix listings into folder and file views.
// Nothing here performs I/O.
package hierarchy

import (
	"sort"
	"strings"
	"time"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// Entry is a derived folder or file view of the store
type Entry struct {
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	IsFolder     bool       `json:"isFolder"`
}

// Mode selects how a listing is projected
type Mode int

const (
	// ModeRoot projects a user root listing: common prefixes keep their
	// trailing delimiter and every object other than the prefix itself is a file
	ModeRoot Mode = iota

	// ModeFolder projects only the direct children of a folder
	ModeFolder

	// ModeFlat projects every object under the prefix
	ModeFlat
)

// Split projects a listing taken at prefix into folder and file entries.
// Entry order follows the listing order.
func Split(res objectstore.ListResult, prefix string, mode Mode) (folders, files []Entry) {
	if mode != ModeFlat {
		for _, cp := range res.CommonPrefixes {
			rest := strings.TrimPrefix(cp, prefix)
			name := rest
			if mode == ModeFolder {
				name = strings.TrimSuffix(rest, Delimiter)
			}
			if name == "" {
				continue
			}
			folders = append(folders, Entry{
				Name:     name,
				Key:      cp,
				IsFolder: true,
			})
		}
	}

	for _, obj := range res.Objects {
		if obj.Key == prefix || !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		rest := obj.Key[len(prefix):]

		if mode == ModeFolder && (IsMarker(obj.Key) || strings.Contains(rest, Delimiter)) {
			continue
		}

		modified := obj.LastModified
		files = append(files, Entry{
			Name:         rest,
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: &modified,
			IsFolder:     IsMarker(rest),
		})
	}

	return folders, files
}

// Entries is Split with folders and files concatenated
func Entries(res objectstore.ListResult, prefix string, mode Mode) []Entry {
	folders, files := Split(res, prefix, mode)
	return append(folders, files...)
}

// Rollup computes what a prefix/delimiter listing over keys returns:
// objects directly under prefix and the distinct common prefixes. An empty
// delimiter returns every object under prefix.
func Rollup(objects []objectstore.ObjectInfo, prefix, delimiter string) objectstore.ListResult {
	sorted := make([]objectstore.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasPrefix(obj.Key, prefix) {
			sorted = append(sorted, obj)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var res objectstore.ListResult
	seen := make(map[string]struct{})
	for _, obj := range sorted {
		rest := obj.Key[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if _, ok := seen[cp]; !ok {
					seen[cp] = struct{}{}
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
				}
				continue
			}
		}
		res.Objects = append(res.Objects, obj)
	}
	return res
}

// RollupKeys is Rollup over bare keys
func RollupKeys(keys []string, prefix, delimiter string) objectstore.ListResult {
	objects := make([]objectstore.ObjectInfo, len(keys))
	for i, k := range keys {
		objects[i] = objectstore.ObjectInfo{Key: k}
	}
	return Rollup(objects, prefix, delimiter)
}
