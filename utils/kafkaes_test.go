package utils

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message
	err  error

	mu        sync.Mutex
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m, ok := <-f.msgs:
		if !ok {
			if f.err != nil {
				return kafka.Message{}, f.err
			}
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		}
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) Committed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type bulkRecorder struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (b *bulkRecorder) bulk(_ context.Context, index string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.bodies = append(b.bodies, index+"|"+string(body))
	return nil
}

func (b *bulkRecorder) Bodies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLogShipper_FlushesFullBatches(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 4)}
	rec := &bulkRecorder{}
	s := newLogShipper(reader, rec.bulk, ShipperConfig{Index: "api-logs", BatchSize: 2, BatchTimeout: time.Hour}, quiet)

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"level":"info","message":"a","timestamp":"2026-01-02T03:04:05Z"}`)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`{"level":"info","message":"b"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.Bodies()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	body := rec.Bodies()[0]
	assert.True(t, strings.HasPrefix(body, "api-logs|"))
	assert.Equal(t, 2, strings.Count(body, `{"index":{}}`))
	assert.Contains(t, body, `"message":"a"`)
	assert.Contains(t, body, `"timestamp":"2026-01-02T03:04:05Z"`)
	assert.Equal(t, 2, reader.Committed())
}

func TestLogShipper_FlushesRemainderOnShutdown(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 4)}
	rec := &bulkRecorder{}
	s := newLogShipper(reader, rec.bulk, ShipperConfig{BatchSize: 10, BatchTimeout: time.Hour}, quiet)

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"message":"only"}`)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`not json`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.msgs) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	bodies := rec.Bodies()
	require.Len(t, bodies, 1)
	assert.True(t, strings.HasPrefix(bodies[0], "logs|"))
	assert.Equal(t, 1, strings.Count(bodies[0], `{"index":{}}`))
	// The undecodable message is committed so it is not redelivered forever.
	assert.Equal(t, 2, reader.Committed())
}

func TestLogShipper_KeepsOffsetsWhenIndexingFails(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	rec := &bulkRecorder{err: errors.New("cluster red")}
	s := newLogShipper(reader, rec.bulk, ShipperConfig{BatchSize: 1, BatchTimeout: time.Hour}, quiet)

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"message":"x"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return len(reader.msgs) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Zero(t, reader.Committed())
}

func TestLogShipper_ReturnsReadErrors(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message), err: errors.New("broker gone")}
	close(reader.msgs)
	s := newLogShipper(reader, (&bulkRecorder{}).bulk, ShipperConfig{}, quiet)

	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "broker gone")
}
