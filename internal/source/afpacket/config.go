// Package afpacket implements live capture from a network interface over a
// Linux AF_PACKET TPACKET_V3 ring.
package afpacket

import (
	"github.com/go-faster/errors"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/someip/internal/core"
)

const Name = "afpacket"

// Config holds live capture settings.
type Config struct {
	Device       string `mapstructure:"device"`
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
	Prefilter    bool   `mapstructure:"prefilter"`
}

func defaultConfig() Config {
	return Config{
		SnapLen:      65535,
		BufferSizeMB: 16,
		TimeoutMs:    100,
	}
}

func decodeConfig(cfg map[string]any) (Config, error) {
	c := defaultConfig()
	if err := mapstructure.Decode(cfg, &c); err != nil {
		return c, errors.Wrap(err, "decode afpacket config")
	}
	if c.Device == "" {
		return c, errors.Wrap(core.ErrConfigInvalid, "afpacket: device is required")
	}
	if c.TimeoutMs <= 0 {
		return c, errors.Wrapf(core.ErrConfigInvalid, "afpacket: timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	return c, nil
}
