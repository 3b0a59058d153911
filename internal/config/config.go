package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// Config holds everything the drive gateway reads from its environment
type Config struct {
	S3       objectstore.S3Config
	Backup   BackupConfig
	Restore  RestoreConfig
	Redis    RedisConfig
	LogLevel string
}

// BackupConfig configures snapshot runs
type BackupConfig struct {
	RetentionCount int
	Concurrency    int
}

// RestoreConfig configures restores
type RestoreConfig struct {
	Strategy    string
	Concurrency int
}

// RedisConfig configures the optional run history store. An empty Addr
// disables it.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	HistoryLen int
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_PAGE_SIZE", 0)
	v.SetDefault("BACKUP_RETENTION", 7)
	v.SetDefault("BACKUP_CONCURRENCY", 8)
	v.SetDefault("RESTORE_STRATEGY", "replace")
	v.SetDefault("RESTORE_CONCURRENCY", 8)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "drive:history")
	v.SetDefault("REDIS_HISTORY_LENGTH", 100)
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		S3: objectstore.S3Config{
			Bucket:          v.GetString("S3_BUCKET"),
			Region:          v.GetString("AWS_REGION"),
			Endpoint:        v.GetString("AWS_ENDPOINT_URL"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			PageSize:        v.GetInt32("S3_PAGE_SIZE"),
		},
		Backup: BackupConfig{
			RetentionCount: v.GetInt("BACKUP_RETENTION"),
			Concurrency:    v.GetInt("BACKUP_CONCURRENCY"),
		},
		Restore: RestoreConfig{
			Strategy:    v.GetString("RESTORE_STRATEGY"),
			Concurrency: v.GetInt("RESTORE_CONCURRENCY"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			KeyPrefix:  v.GetString("REDIS_KEY_PREFIX"),
			HistoryLen: v.GetInt("REDIS_HISTORY_LENGTH"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET environment variable is required")
	}
	if cfg.Backup.RetentionCount < 0 {
		return nil, fmt.Errorf("BACKUP_RETENTION must not be negative, got %d", cfg.Backup.RetentionCount)
	}
	if cfg.S3.PageSize < 0 || cfg.S3.PageSize > 1000 {
		return nil, fmt.Errorf("S3_PAGE_SIZE must be between 0 and 1000, got %d", cfg.S3.PageSize)
	}

	return cfg, nil
}
