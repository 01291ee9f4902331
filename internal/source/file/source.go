// Package file implements a capture source that replays pcap and pcapng files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/internal/source/prefilter"
	"firestige.xyz/someip/pkg/plugin"
)

const Name = "file"

// pcapng section header block type, identical in both byte orders.
const pcapngMagic = 0x0A0D0D0A

// Config holds file source settings.
type Config struct {
	Path      string `mapstructure:"path"`
	Prefilter bool   `mapstructure:"prefilter"`
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads packets from a capture file.
type Source struct {
	cfg    Config
	file   *os.File
	reader packetReader
	filter *prefilter.Filter

	received atomic.Uint64
	filtered atomic.Uint64
}

// New creates an uninitialised source.
func New() *Source {
	return &Source{}
}

func (s *Source) Name() string { return Name }

// Init decodes cfg into Config. "path" is required.
func (s *Source) Init(cfg map[string]any) error {
	if err := mapstructure.Decode(cfg, &s.cfg); err != nil {
		return errors.Wrap(err, "decode file source config")
	}
	if s.cfg.Path == "" {
		return errors.Wrap(core.ErrConfigInvalid, "file source: path is required")
	}
	return nil
}

// Start opens the file and detects its format from the leading magic number.
func (s *Source) Start(ctx context.Context) error {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return errors.Wrapf(err, "open capture file %s", s.cfg.Path)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "read magic of %s", s.cfg.Path)
	}

	var r packetReader
	if binary.BigEndian.Uint32(magic) == pcapngMagic {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "open reader for %s", s.cfg.Path)
	}

	if s.cfg.Prefilter && r.LinkType() == layers.LinkTypeEthernet {
		if s.filter, err = prefilter.NewFilter(); err != nil {
			f.Close()
			return err
		}
	}

	s.file, s.reader = f, r
	log.GetLogger().WithFields(map[string]any{
		"path":      s.cfg.Path,
		"link_type": r.LinkType().String(),
		"prefilter": s.filter != nil,
	}).Info("capture file opened")
	return nil
}

// Capture pushes every packet of the file onto output. It returns nil at
// end of file and ctx.Err() on cancellation.
func (s *Source) Capture(ctx context.Context, output chan<- core.RawPacket) error {
	if s.reader == nil {
		return core.ErrSourceNotStarted
	}
	linkType := uint16(s.reader.LinkType())

	for {
		data, ci, err := s.reader.ReadPacketData()
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read packet")
		}
		s.received.Add(1)

		if s.filter != nil && !s.filter.Match(data) {
			s.filtered.Add(1)
			continue
		}

		pkt := core.RawPacket{
			Data:       data,
			Timestamp:  timestampOf(ci),
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
			LinkType:   linkType,
		}
		select {
		case output <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop closes the file. It is safe to call more than once.
func (s *Source) Stop(ctx context.Context) error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.reader = nil, nil
	return err
}

func (s *Source) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: s.received.Load(),
		PacketsFiltered: s.filtered.Load(),
	}
}

func timestampOf(ci gopacket.CaptureInfo) time.Time {
	if ci.Timestamp.IsZero() {
		return time.Now()
	}
	return ci.Timestamp
}
