package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/domain"
)

type memSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
	gate   chan struct{}
}

func (s *memSink) Append(_ context.Context, ev domain.AuditEvent) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memSink) snapshot() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEvent(nil), s.events...)
}

func TestAuditDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := &memSink{}
	d := NewAuditDispatcher(3, 64, sink, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 50; i++ {
		_ = d.Append(context.Background(), domain.AuditEvent{
			EventType: domain.EventLogin,
			ActorID:   fmt.Sprintf("p-%d", i%7),
		})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 50 {
		t.Fatalf("expected 50 events written after Close, got %d", got)
	}
}

func TestAuditDispatcher_PreservesPerActorOrder(t *testing.T) {
	sink := &memSink{}
	d := NewAuditDispatcher(4, 128, sink, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 100; i++ {
		_ = d.Append(context.Background(), domain.AuditEvent{
			EventType: domain.EventRefresh,
			ActorID:   fmt.Sprintf("p-%d", i%3),
			Metadata:  map[string]any{"seq": i},
		})
	}
	d.Close()

	last := map[string]int{}
	for _, ev := range sink.snapshot() {
		seq := ev.Metadata["seq"].(int)
		if prev, ok := last[ev.ActorID]; ok && seq < prev {
			t.Fatalf("actor %s: event %d written after %d", ev.ActorID, seq, prev)
		}
		last[ev.ActorID] = seq
	}
}

func TestAuditDispatcher_StampsOccurredAt(t *testing.T) {
	sink := &memSink{}
	d := NewAuditDispatcher(1, 8, sink, zerolog.Nop())
	d.Start(context.Background())

	before := time.Now().UTC()
	_ = d.Append(context.Background(), domain.AuditEvent{EventType: domain.EventLogout})
	d.Close()

	events := sink.snapshot()
	if len(events) != 1 || events[0].OccurredAt.Before(before) {
		t.Fatalf("expected occurred_at to be stamped at enqueue, got %+v", events)
	}
}

func TestAuditDispatcher_SaturatedQueueDoesNotDropEvents(t *testing.T) {
	sink := &memSink{gate: make(chan struct{})}
	d := NewAuditDispatcher(1, 1, sink, zerolog.Nop())
	d.Start(context.Background())

	// With one slot and a blocked worker, at least one of these is written
	// inline by the caller. Every event still reaches the sink exactly once.
	done := make(chan struct{})
	go func() {
		for _, typ := range []string{"a", "b", "c"} {
			_ = d.Append(context.Background(), domain.AuditEvent{EventType: typ})
		}
		close(done)
	}()

	for i := 0; i < 3; i++ {
		sink.gate <- struct{}{}
	}
	<-done
	d.Close()

	if got := len(sink.snapshot()); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
}

func TestAuditDispatcher_FailuresAreSwallowed(t *testing.T) {
	sink := &memSink{err: errors.New("store down")}
	d := NewAuditDispatcher(2, 8, sink, zerolog.Nop())
	d.Start(context.Background())

	if err := d.Append(context.Background(), domain.AuditEvent{EventType: domain.EventLogin}); err != nil {
		t.Fatalf("Append must not surface sink errors, got %v", err)
	}
	d.Close()
}

func TestAuditDispatcher_AppendAfterCloseWritesInline(t *testing.T) {
	sink := &memSink{}
	d := NewAuditDispatcher(2, 8, sink, zerolog.Nop())
	d.Start(context.Background())
	d.Close()
	d.Close()

	_ = d.Append(context.Background(), domain.AuditEvent{EventType: domain.EventLogin})
	if got := len(sink.snapshot()); got != 1 {
		t.Fatalf("expected inline write after Close, got %d events", got)
	}
}
