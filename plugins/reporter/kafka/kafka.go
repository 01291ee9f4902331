// Package kafka implements the Kafka reporter plugin.
// It publishes one JSON record per classification, keyed by flow so that
// every record of a conversation lands on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/pkg/plugin"
)

const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

func init() {
	if err := plugin.RegisterReporter(Name, func() plugin.Reporter { return NewKafkaReporter() }); err != nil {
		panic(err)
	}
}

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends classification records to Kafka.
type KafkaReporter struct {
	writer messageWriter
	config Config

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// NewKafkaReporter creates a new Kafka reporter.
func NewKafkaReporter() *KafkaReporter {
	return &KafkaReporter{}
}

func (r *KafkaReporter) Name() string { return Name }

// Init validates the configuration and creates the writer. No connection
// is made until the first Report.
func (r *KafkaReporter) Init(config map[string]any) error {
	if config == nil {
		return errors.Wrap(core.ErrConfigInvalid, "kafka reporter requires configuration")
	}

	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return errors.Wrap(err, "create config decoder")
	}
	if err := dec.Decode(config); err != nil {
		return errors.Wrap(err, "decode kafka reporter config")
	}

	if len(cfg.Brokers) == 0 {
		return errors.Wrap(core.ErrConfigInvalid, "brokers is required")
	}
	if cfg.Topic == "" {
		return errors.Wrap(core.ErrConfigInvalid, "topic is required")
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return err
	}
	writerConfig.CompressionCodec = codec

	r.config = cfg
	r.writer = kafka.NewWriter(writerConfig)
	return nil
}

func compressionCodec(name string) (kafka.CompressionCodec, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	case "zstd":
		return compress.Zstd.Codec(), nil
	default:
		return nil, fmt.Errorf("invalid compression type %q: %w", name, core.ErrConfigInvalid)
	}
}

func (r *KafkaReporter) Start(ctx context.Context) error {
	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":     r.config.Brokers,
		"topic":       r.config.Topic,
		"batch_size":  r.config.BatchSize,
		"compression": r.config.Compression,
	}).Info("kafka reporter started")
	return nil
}

// Stop closes the writer, flushing pending messages.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			return errors.Wrap(err, "close kafka writer")
		}
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"total_reported": r.reportedCount.Load(),
		"total_errors":   r.errorCount.Load(),
	}).Info("kafka reporter stopped")
	return nil
}

// Report sends one record to Kafka.
func (r *KafkaReporter) Report(ctx context.Context, pkt *core.OutputPacket) error {
	if pkt == nil {
		return errors.New("nil packet")
	}
	if r.writer == nil {
		return errors.New("kafka reporter not initialized")
	}

	msg, err := newMessage(pkt)
	if err != nil {
		r.errorCount.Add(1)
		return err
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.errorCount.Add(1)
		return errors.Wrap(err, "kafka write")
	}
	r.reportedCount.Add(1)
	return nil
}

// newMessage builds the message for pkt. The key is the canonical flow so
// both directions hash to one partition; labels become headers.
func newMessage(pkt *core.OutputPacket) (kafka.Message, error) {
	value, err := json.Marshal(core.NewRecord(pkt))
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "serialize record")
	}

	key := plugin.FlowKey{
		SrcIP:   pkt.SrcIP,
		DstIP:   pkt.DstIP,
		SrcPort: pkt.SrcPort,
		DstPort: pkt.DstPort,
		Proto:   pkt.Protocol,
	}.Canonical()

	msg := kafka.Message{
		Key: []byte(fmt.Sprintf("%s/%s:%d-%s:%d", core.TransportName(key.Proto),
			key.SrcIP, key.SrcPort, key.DstIP, key.DstPort)),
		Value: value,
		Time:  pkt.Timestamp,
	}

	if len(pkt.Labels) > 0 {
		keys := make([]string, 0, len(pkt.Labels))
		for k := range pkt.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msg.Headers = make([]kafka.Header, 0, len(keys))
		for _, k := range keys {
			msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(pkt.Labels[k])})
		}
	}
	return msg, nil
}

// Flush is a no-op: writes are synchronous, so a returned Report has been
// acknowledged.
func (r *KafkaReporter) Flush(ctx context.Context) error {
	return nil
}
