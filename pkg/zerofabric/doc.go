// Package zerofabric is a zero-copy, broker-less shared-memory IPC
// fabric: publish-subscribe and event-notification between
// cooperating OS processes without copying payload bytes.
//
// # Getting started
//
// Create or open a publish-subscribe service:
//
//	cfg := zerofabric.DefaultConfig()
//	svc, err := zerofabric.NewServiceBuilder(cfg, "My/Funk/ServiceName").
//	    PublishSubscribe("uint64", 8, 8).
//	    SubscriberMaxBufferSize(16).
//	    OpenOrCreate()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
// Publisher:
//
//	pub, _ := zerofabric.NewPublisher(svc)
//	defer pub.Close()
//	slot, _ := pub.Loan()
//	binary.LittleEndian.PutUint64(slot.Bytes(), 42)
//	pub.Send(slot)
//
// Subscriber:
//
//	sub, _ := zerofabric.NewSubscriber(svc)
//	defer sub.Close()
//	sample, err := sub.Receive()
//	if err == nil {
//	    defer sample.Release()
//	    v := binary.LittleEndian.Uint64(sample.Payload())
//	}
//
// # Event pattern
//
//	evSvc, _ := zerofabric.NewServiceBuilder(cfg, "My/Event").Event().OpenOrCreate()
//	listener, _ := zerofabric.NewListener(evSvc)
//	defer listener.Close()
//	id, err := listener.TimedWait(context.Background(), 50*time.Millisecond)
package zerofabric
