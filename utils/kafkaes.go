package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
)

type LogMessage struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp time.Time         `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

type logReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// bulkFunc indexes an NDJSON bulk body.
type bulkFunc func(ctx context.Context, index string, body []byte) error

type ShipperConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	ESURL        string
	Index        string
	BatchSize    int
	BatchTimeout time.Duration
}

// LogShipper drains request logs from Kafka into Elasticsearch in batches.
// Offsets are committed only after a batch is indexed.
type LogShipper struct {
	reader       logReader
	bulk         bulkFunc
	index        string
	batchSize    int
	batchTimeout time.Duration
	log          *slog.Logger
}

func NewLogShipper(cfg ShipperConfig, log *slog.Logger) (*LogShipper, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.ESURL}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "es-pusher"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	bulk := func(ctx context.Context, index string, body []byte) error {
		res, err := es.Bulk(bytes.NewReader(body), es.Bulk.WithIndex(index), es.Bulk.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			msg, _ := io.ReadAll(res.Body)
			return fmt.Errorf("bulk index: %s: %s", res.Status(), msg)
		}
		return nil
	}
	return newLogShipper(reader, bulk, cfg, log), nil
}

func newLogShipper(reader logReader, bulk bulkFunc, cfg ShipperConfig, log *slog.Logger) *LogShipper {
	if cfg.Index == "" {
		cfg.Index = "logs"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &LogShipper{
		reader:       reader,
		bulk:         bulk,
		index:        cfg.Index,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		log:          log,
	}
}

func encodeBatch(batch []LogMessage) []byte {
	var buf bytes.Buffer
	for _, logMsg := range batch {
		docBytes, err := json.Marshal(logMsg)
		if err != nil {
			continue
		}
		buf.WriteString("{\"index\":{}}\n")
		buf.Write(docBytes)
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// Run ships until ctx is cancelled, flushing what it holds on the way out.
func (s *LogShipper) Run(ctx context.Context) error {
	defer s.reader.Close()

	incoming := make(chan kafka.Message)
	readErr := make(chan error, 1)
	go func() {
		defer close(incoming)
		for {
			m, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					readErr <- err
				}
				return
			}
			select {
			case incoming <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	batch := make([]LogMessage, 0, s.batchSize)
	var pending []kafka.Message
	ticker := time.NewTicker(s.batchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if len(batch) > 0 {
			if err := s.bulk(ctx, s.index, encodeBatch(batch)); err != nil {
				// Uncommitted offsets are redelivered after a restart.
				s.log.Error("bulk index failed", "count", len(batch), "error", err)
				return
			}
		}
		if err := s.reader.CommitMessages(ctx, pending...); err != nil {
			s.log.Error("commit offsets", "error", err)
		}
		s.log.Info("batch pushed to elasticsearch", "count", len(batch))
		batch = batch[:0]
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(drainCtx)
			cancel()
			return nil
		case err := <-readErr:
			flush(ctx)
			return fmt.Errorf("read logs: %w", err)
		case <-ticker.C:
			flush(ctx)
		case m, ok := <-incoming:
			if !ok {
				// The reader stopped; the next select sees why.
				incoming = nil
				continue
			}
			pending = append(pending, m)

			var logMsg LogMessage
			if err := json.Unmarshal(m.Value, &logMsg); err != nil {
				s.log.Warn("skip undecodable log", "offset", m.Offset, "error", err)
				continue
			}
			if logMsg.Timestamp.IsZero() {
				logMsg.Timestamp = time.Now().UTC()
			}
			batch = append(batch, logMsg)
			if len(batch) >= s.batchSize {
				flush(ctx)
			}
		}
	}
}
