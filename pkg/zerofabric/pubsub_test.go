package zerofabric

import (
	"encoding/binary"
	"testing"
)

func openTestPubSubService(t *testing.T, configure func(*pubSubBuilder) *pubSubBuilder) *Service {
	t.Helper()
	cfg := testConfig(t)
	name := uniqueServiceName(t)
	b := NewServiceBuilder(cfg, name).PublishSubscribe("Counter", 8, 8)
	if configure != nil {
		b = configure(b)
	}
	svc, err := b.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func sendUint64(t *testing.T, pub *Publisher, v uint64) {
	t.Helper()
	slot, err := pub.Loan()
	if err != nil {
		t.Fatalf("Loan: %v", err)
	}
	binary.LittleEndian.PutUint64(slot.Bytes(), v)
	if err := pub.Send(slot); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func recvUint64(t *testing.T, sub *Subscriber) (uint64, *Sample) {
	t.Helper()
	sample, err := sub.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return binary.LittleEndian.Uint64(sample.Payload()), sample
}

func TestPublishSubscribeBasicWorks(t *testing.T) {
	svc := openTestPubSubService(t, nil)

	pub, err := NewPublisher(svc)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(svc)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	sendUint64(t, pub, 42)

	got, sample := recvUint64(t, sub)
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if err := sample.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}

	if _, err := sub.Receive(); err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestPublishSubscribeSafeOverflowWorks(t *testing.T) {
	svc := openTestPubSubService(t, func(b *pubSubBuilder) *pubSubBuilder {
		return b.SubscriberMaxBufferSize(2).EnableSafeOverflow(true)
	})

	pub, err := NewPublisher(svc)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(svc)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	sendUint64(t, pub, 1)
	sendUint64(t, pub, 2)
	sendUint64(t, pub, 3) // buffer size 2: oldest (1) is displaced

	got, sample := recvUint64(t, sub)
	if got != 2 {
		t.Errorf("expected oldest surviving value 2, got %d", got)
	}
	sample.Release()

	got, sample = recvUint64(t, sub)
	if got != 3 {
		t.Errorf("expected value 3, got %d", got)
	}
	sample.Release()

	if _, err := sub.Receive(); err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestPublishSubscribeHistoryReplayWorks(t *testing.T) {
	svc := openTestPubSubService(t, func(b *pubSubBuilder) *pubSubBuilder {
		return b.HistorySize(2)
	})

	pub, err := NewPublisher(svc)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sendUint64(t, pub, 10)
	sendUint64(t, pub, 20)
	sendUint64(t, pub, 30) // history holds only the last 2: {20, 30}

	sub, err := NewSubscriber(svc)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	// The new subscriber is only discovered the next time the publisher
	// acts (§4.8 "update_connections" runs on Loan/Send); that same
	// connection setup replays the current history into it.
	sendUint64(t, pub, 40)

	for _, want := range []uint64{20, 30, 40} {
		got, sample := recvUint64(t, sub)
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
		sample.Release()
	}
}

func TestPublishSubscribeMaxBorrowedSamplesWorks(t *testing.T) {
	svc := openTestPubSubService(t, func(b *pubSubBuilder) *pubSubBuilder {
		return b.SubscriberMaxBorrowedSamples(2).SubscriberMaxBufferSize(8)
	})

	pub, err := NewPublisher(svc)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewSubscriber(svc)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	sendUint64(t, pub, 1)
	sendUint64(t, pub, 2)
	sendUint64(t, pub, 3)

	_, s1 := recvUint64(t, sub)
	_, s2 := recvUint64(t, sub)

	if _, err := sub.Receive(); err != ErrTooManySamplesHeld {
		t.Fatalf("expected ErrTooManySamplesHeld, got %v", err)
	}

	s1.Release()
	_, s3 := recvUint64(t, sub)
	s2.Release()
	s3.Release()
}

func TestPublisherVanishDrainsSubscriberConnectionWorks(t *testing.T) {
	svc := openTestPubSubService(t, nil)

	pub, err := NewPublisher(svc)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	sub, err := NewSubscriber(svc)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	// Attach the subscriber first so the message below is queued on a
	// connection it holds when the publisher vanishes.
	if _, err := sub.Receive(); err != ErrNoData {
		t.Fatalf("expected ErrNoData before any send, got %v", err)
	}

	sendUint64(t, pub, 99)
	if err := pub.Close(); err != nil {
		t.Fatalf("Publisher.Close: %v", err)
	}

	// Receiving after the publisher vanished tears the connection down,
	// draining the queued index into the reclamation queue instead of
	// surfacing it, and reports ErrNoData without hanging.
	for i := 0; i < 2; i++ {
		if _, err := sub.Receive(); err != ErrNoData {
			t.Errorf("expected ErrNoData after publisher vanished, got %v", err)
		}
	}
}
