package zerofabric

import (
	"context"
	"testing"
	"time"
)

func TestEventNotifyListenerWorks(t *testing.T) {
	cfg := testConfig(t)
	name := uniqueServiceName(t)

	svc, err := NewServiceBuilder(cfg, name).Event().Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.Close()

	listener, err := NewListener(svc)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer listener.Close()

	notifier, err := NewNotifier(svc)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer notifier.Close()

	_, ok, err := listener.TryWait()
	if err != nil {
		t.Fatalf("TryWait: %v", err)
	}
	if ok {
		t.Fatalf("expected no pending notification yet")
	}

	if err := notifier.Notify(7); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	id, ok, err := listener.TryWait()
	if err != nil {
		t.Fatalf("TryWait: %v", err)
	}
	if !ok {
		t.Fatalf("expected a pending notification after Notify")
	}
	if id != 7 {
		t.Errorf("TryWait id = %d, want 7", id)
	}
}

// TestEventTimedWaitScenario is scenario 6 of §8: a Listener with no
// Notifier times out, then a spawned Notifier's notify(7) is observed
// by a subsequent TimedWait.
func TestEventTimedWaitScenario(t *testing.T) {
	cfg := testConfig(t)
	name := uniqueServiceName(t)

	svc, err := NewServiceBuilder(cfg, name).Event().Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.Close()

	listener, err := NewListener(svc)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer listener.Close()

	start := time.Now()
	_, err = listener.TimedWait(context.Background(), 50*time.Millisecond)
	if err != EventWaitErrorTimedOut {
		t.Fatalf("expected EventWaitErrorTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("TimedWait returned too early: %v", elapsed)
	}

	notifier, err := NewNotifier(svc)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer notifier.Close()

	if err := notifier.Notify(7); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	id, err := listener.TimedWait(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("TimedWait: %v", err)
	}
	if id != 7 {
		t.Errorf("TimedWait id = %d, want 7", id)
	}
}

func TestEventBlockingWaitWorks(t *testing.T) {
	cfg := testConfig(t)
	name := uniqueServiceName(t)

	svc, err := NewServiceBuilder(cfg, name).Event().Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.Close()

	listener, err := NewListener(svc)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer listener.Close()

	notifier, err := NewNotifier(svc)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer notifier.Close()

	done := make(chan struct{})
	var gotID EventId
	var gotErr error
	go func() {
		gotID, gotErr = listener.BlockingWait(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := notifier.Notify(42); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockingWait did not return after Notify")
	}
	if gotErr != nil {
		t.Fatalf("BlockingWait: %v", gotErr)
	}
	if gotID != 42 {
		t.Errorf("BlockingWait id = %d, want 42", gotID)
	}
}

func TestEventBlockingWaitCanceledByContext(t *testing.T) {
	cfg := testConfig(t)
	name := uniqueServiceName(t)

	svc, err := NewServiceBuilder(cfg, name).Event().Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer svc.Close()

	listener, err := NewListener(svc)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = listener.BlockingWait(ctx)
	if err != EventWaitErrorInterruptSignal {
		t.Fatalf("expected EventWaitErrorInterruptSignal, got %v", err)
	}
}
