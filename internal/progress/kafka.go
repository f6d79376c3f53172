package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/scribeline/scribeline/internal/logging"
)

const defaultPublishTimeout = 10 * time.Second

// kafkaWriter is the slice of *kafka.Writer the observer needs; tests
// inject a fake through it.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ kafkaWriter = (*kafka.Writer)(nil)

// KafkaObserver publishes snapshots to a Kafka topic, keyed by session
// id so one session's events land on one partition in order. With no
// brokers configured it runs disabled: emissions log at debug level and
// report success.
type KafkaObserver struct {
	writer  kafkaWriter
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

var _ Observer = (*KafkaObserver)(nil)

// KafkaOption configures a KafkaObserver.
type KafkaOption func(*KafkaObserver)

// WithPublishTimeout bounds each write so a stalled broker cannot block
// the emitting caller indefinitely.
func WithPublishTimeout(d time.Duration) KafkaOption {
	return func(o *KafkaObserver) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithKafkaLogger overrides the default logger.
func WithKafkaLogger(log zerolog.Logger) KafkaOption {
	return func(o *KafkaObserver) {
		o.log = log
	}
}

// withKafkaWriter injects the transport in tests.
func withKafkaWriter(w kafkaWriter) KafkaOption {
	return func(o *KafkaObserver) {
		o.writer = w
	}
}

// NewKafkaObserver builds the observer. Empty brokers or topic produce a
// disabled observer rather than an error, so event publishing stays
// strictly optional.
func NewKafkaObserver(brokers []string, topic string, opts ...KafkaOption) *KafkaObserver {
	o := &KafkaObserver{
		topic:   topic,
		timeout: defaultPublishTimeout,
		log:     logging.WithComponent("progress"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.writer == nil {
		if len(brokers) == 0 || topic == "" {
			o.log.Info().Msg("kafka disabled, progress events are log-only")
			return o
		}
		o.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: o.timeout,
			RequiredAcks: kafka.RequireOne,
		}
		o.log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka progress publisher initialized")
	}
	return o
}

func (o *KafkaObserver) Name() string { return "kafka" }

// Enabled reports whether snapshots actually reach a broker.
func (o *KafkaObserver) Enabled() bool { return o.writer != nil }

func (o *KafkaObserver) Emit(snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}

	if o.writer == nil {
		o.log.Debug().RawJSON("payload", payload).Msg("kafka disabled, progress event dropped")
		return nil
	}

	// Emission has no caller context; the timeout is its only bound.
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(snap.SessionID), Value: payload}
	if err := o.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write progress event to %q: %w", o.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (o *KafkaObserver) Close() error {
	if o.writer == nil {
		return nil
	}
	return o.writer.Close()
}
