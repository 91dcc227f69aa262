package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/joblet/joblet/notify/local"
)

func TestPublishDeliversToListener(t *testing.T) {
	n := local.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := n.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if err := n.Publish(ctx, "send-email"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-ch:
		if got != "send-email" {
			t.Errorf("got %q, want %q", got, "send-email")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestListenChannelClosesOnContextDone(t *testing.T) {
	n := local.New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := n.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close, got a value instead")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	n := local.New()
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := n.Publish(context.Background(), "t"); err != nil {
		t.Errorf("Publish() after Close() error = %v, want nil", err)
	}
}

func TestMultipleListenersAllReceive(t *testing.T) {
	n := local.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, _ := n.Listen(ctx)
	ch2, _ := n.Listen(ctx)

	if err := n.Publish(ctx, "t"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "t" {
				t.Errorf("listener %d got %q, want %q", i, got, "t")
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d timed out", i)
		}
	}
}
