//go:build linux

package afpacket

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/gopacket/afpacket"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/internal/source/prefilter"
	"firestige.xyz/someip/pkg/plugin"
)

// Source captures from one interface. The optional prefilter runs in the kernel.
type Source struct {
	cfg    Config
	ring   ringLayout
	handle *afpacket.TPacket

	received atomic.Uint64
	dropped  atomic.Uint64
}

// New creates an uninitialised source.
func New() *Source {
	return &Source{}
}

func (s *Source) Name() string { return Name }

// Init validates cfg and sizes the ring.
func (s *Source) Init(cfg map[string]any) error {
	c, err := decodeConfig(cfg)
	if err != nil {
		return err
	}
	ring, err := computeRing(c.BufferSizeMB, c.SnapLen, os.Getpagesize())
	if err != nil {
		return errors.Wrap(core.ErrConfigInvalid, err.Error())
	}
	s.cfg, s.ring = c, ring
	return nil
}

// Start opens the socket. It needs CAP_NET_RAW.
func (s *Source) Start(ctx context.Context) error {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.cfg.Device),
		afpacket.OptFrameSize(s.ring.FrameSize),
		afpacket.OptBlockSize(s.ring.BlockSize),
		afpacket.OptNumBlocks(s.ring.NumBlocks),
		afpacket.OptPollTimeout(time.Duration(s.cfg.TimeoutMs)*time.Millisecond),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return errors.Wrapf(err, "open %s", s.cfg.Device)
	}

	if s.cfg.Prefilter {
		raw, err := prefilter.Assemble()
		if err != nil {
			tp.Close()
			return err
		}
		if err := tp.SetBPF(raw); err != nil {
			tp.Close()
			return errors.Wrap(err, "attach prefilter")
		}
	}

	s.handle = tp
	log.GetLogger().WithFields(map[string]interface{}{
		"device":     s.cfg.Device,
		"frame_size": s.ring.FrameSize,
		"block_size": s.ring.BlockSize,
		"num_blocks": s.ring.NumBlocks,
		"prefilter":  s.cfg.Prefilter,
	}).Info("afpacket capture opened")
	return nil
}

// Capture reads until ctx is cancelled. Poll timeouts are retried.
func (s *Source) Capture(ctx context.Context, output chan<- core.RawPacket) error {
	if s.handle == nil {
		return core.ErrSourceNotStarted
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, ci, err := s.handle.ReadPacketData()
		if err == afpacket.ErrTimeout || err == afpacket.ErrPoll {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "read packet")
		}
		s.received.Add(1)

		pkt := core.RawPacket{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
			LinkType:   core.LinkTypeEthernet,
		}
		select {
		case output <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		default:
			s.dropped.Add(1)
		}
	}
}

// Stop closes the socket.
func (s *Source) Stop(ctx context.Context) error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

func (s *Source) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: s.received.Load(),
		PacketsDropped:  s.dropped.Load(),
	}
}
