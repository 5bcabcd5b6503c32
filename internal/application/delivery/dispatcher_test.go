package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-alumni-api/internal/domain"
)

// flakySender fails the first failures calls, then succeeds.
type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
	done     chan struct{}
}

func (s *flakySender) SendCode(_ context.Context, address, code string, _ domain.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp: 421 try again later")
	}
	s.sent = append(s.sent, address+":"+code)
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	letters []domain.DeadLetter
	got     chan struct{}
	err     error
}

func (s *recordingSink) Record(_ context.Context, dl domain.DeadLetter) error {
	s.mu.Lock()
	s.letters = append(s.letters, dl)
	s.mu.Unlock()
	if s.got != nil {
		s.got <- struct{}{}
	}
	return s.err
}

func testConfig() Config {
	return Config{Workers: 2, QueueSize: 4, MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func job(address string) domain.DeliveryJob {
	return domain.DeliveryJob{ID: "job-" + address, Address: address, Code: "123456", Purpose: domain.PurposeLogin, CreatedAt: time.Now()}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcher_RetriesUntilDelivered(t *testing.T) {
	logger := zerolog.Nop()
	done := make(chan struct{})
	sender := &flakySender{failures: 2, done: done}
	sink := &recordingSink{}
	d := NewDispatcher(testConfig(), sender, []DeadLetterSink{sink}, &logger, nil)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(context.Background(), job("ada@example.com")))
	waitFor(t, done)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, []string{"ada@example.com:123456"}, sender.sent)
	assert.Empty(t, sink.letters)
}

func TestDispatcher_DeadLettersAfterMaxAttempts(t *testing.T) {
	logger := zerolog.Nop()
	sender := &flakySender{failures: 100}
	first := &recordingSink{got: make(chan struct{}, 1), err: errors.New("dynamo down")}
	second := &recordingSink{got: make(chan struct{}, 1)}
	d := NewDispatcher(testConfig(), sender, []DeadLetterSink{first, second}, &logger, nil)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(context.Background(), job("ada@example.com")))
	waitFor(t, first.got)
	waitFor(t, second.got)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, 3, sender.calls)
	require.Len(t, second.letters, 1)
	dl := second.letters[0]
	assert.Equal(t, "job-ada@example.com", dl.JobID)
	assert.Equal(t, "ada@example.com", dl.Address)
	assert.Equal(t, 3, dl.Attempts)
	assert.Contains(t, dl.LastError, "421")
	assert.NotEmpty(t, dl.ID)
}

func TestDispatcher_EnqueueFullQueue(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1, MaxAttempts: 1}, &flakySender{}, nil, &logger, nil)
	// Not started: nothing drains the channel.
	require.NoError(t, d.Enqueue(context.Background(), job("a@example.com")))
	assert.ErrorIs(t, d.Enqueue(context.Background(), job("b@example.com")), ErrQueueFull)
}

func TestDispatcher_EnqueueAfterShutdown(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(testConfig(), &flakySender{}, nil, &logger, nil)
	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()), "shutdown is idempotent")

	assert.ErrorIs(t, d.Enqueue(context.Background(), job("a@example.com")), ErrQueueClosed)
}

func TestDispatcher_ShutdownDrainsQueue(t *testing.T) {
	logger := zerolog.Nop()
	sender := &flakySender{}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 8, MaxAttempts: 1}, sender, nil, &logger, nil)
	for _, a := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, d.Enqueue(context.Background(), job(a)))
	}
	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Len(t, sender.sent, 3)
}

func TestDispatcher_ShutdownDeadline(t *testing.T) {
	logger := zerolog.Nop()
	block := make(chan struct{})
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1, MaxAttempts: 1}, blockingSender(block), nil, &logger, nil)
	d.Start(context.Background())
	require.NoError(t, d.Enqueue(context.Background(), job("a@example.com")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
	close(block)
}

type blockingSender chan struct{}

func (b blockingSender) SendCode(context.Context, string, string, domain.Purpose) error {
	<-b
	return nil
}
