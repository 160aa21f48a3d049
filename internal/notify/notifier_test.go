package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type recordingSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyEventFilter(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{EventLiquidationWarning}, discard())
	ctx := context.Background()

	if err := n.Notify(ctx, EventTrackerError, "ignored", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 0 {
		t.Errorf("filtered event was delivered: %v", s.titles)
	}

	if err := n.Notify(ctx, EventLiquidationWarning, "delivered", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 1 || s.titles[0] != "delivered" {
		t.Errorf("titles = %v, want [delivered]", s.titles)
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, discard())

	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 1 {
		t.Errorf("titles = %v, want one delivery", s.titles)
	}
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook down")}
	ok := &recordingSender{name: "ok"}
	n := NewNotifier([]Sender{broken, ok}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("want combined error from failed sender")
	}
	if len(ok.titles) != 1 {
		t.Errorf("healthy sender skipped after failure, titles = %v", ok.titles)
	}
}

func TestNotifyNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll with no senders: %v", err)
	}
}
