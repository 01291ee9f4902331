//go:build !linux

package afpacket

import (
	"context"

	"github.com/go-faster/errors"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/pkg/plugin"
)

// Source is unavailable outside Linux; Start always fails.
type Source struct {
	cfg Config
}

func New() *Source { return &Source{} }

func (s *Source) Name() string { return Name }

func (s *Source) Init(cfg map[string]any) error {
	c, err := decodeConfig(cfg)
	s.cfg = c
	return err
}

func (s *Source) Start(ctx context.Context) error {
	return errors.Wrap(core.ErrUnsupportedLinkType, "afpacket capture requires linux")
}

func (s *Source) Capture(ctx context.Context, output chan<- core.RawPacket) error {
	return core.ErrSourceNotStarted
}

func (s *Source) Stop(ctx context.Context) error { return nil }

func (s *Source) Stats() plugin.CaptureStats { return plugin.CaptureStats{} }
