// Package poolconfig loads buffer pool configuration from a YAML file via
// viper, the way the teacher codebase loads its own top-level config.
package poolconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/pagecache/internal/replacement"
)

// PoolConfig is the on-disk shape of a buffer pool's configuration.
type PoolConfig struct {
	Pool struct {
		PageFile  string `mapstructure:"page_file"`
		NumFrames int    `mapstructure:"num_frames"`
		Strategy  string `mapstructure:"strategy"`
	} `mapstructure:"pool"`

	// PageSizeOverride is parsed but not read anywhere; the page size is
	// always the compile-time storagefile.PageSize.
	PageSizeOverride int `mapstructure:"page_size_override"`
}

// Strategy resolves the configured strategy name to a replacement.Strategy,
// defaulting to FIFO when the field is empty or unrecognized.
func (c *PoolConfig) Strategy() replacement.Strategy {
	switch strings.ToLower(c.Pool.Strategy) {
	case "lru":
		return replacement.LRU
	case "clock":
		return replacement.Clock
	case "lfu":
		return replacement.LFU
	default:
		return replacement.FIFO
	}
}

// Load reads and unmarshals the YAML config at path. It also starts a
// viper.WatchConfig watch (backed by fsnotify) on its own viper instance;
// the returned PoolConfig is a snapshot taken at load time and is not
// updated when the file changes on disk.
func Load(path string) (*PoolConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("poolconfig: read config: %w", err)
	}

	var cfg PoolConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("poolconfig: unmarshal config: %w", err)
	}

	v.WatchConfig()

	return &cfg, nil
}
