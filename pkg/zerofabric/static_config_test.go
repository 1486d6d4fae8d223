package zerofabric

import "testing"

func testServiceName(t *testing.T, name string) ServiceName {
	t.Helper()
	n, err := NewServiceName(name)
	if err != nil {
		t.Fatalf("NewServiceName: %v", err)
	}
	return n
}

func TestStaticConfigMarshalRoundTripWorks(t *testing.T) {
	name := testServiceName(t, "fleet/telemetry")
	sc := &StaticConfig{
		UUID:        name.UUID(),
		ServiceName: name,
		Pattern:     MessagingPatternPublishSubscribe,
		PubSub: &PubSubQoS{
			Payload:        NewMessageTypeDetails("TelemetrySample", 32, 8),
			MaxPublishers:  1,
			MaxSubscribers: 4,
		},
	}

	data, err := sc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := UnmarshalStaticConfig(data)
	if err != nil {
		t.Fatalf("UnmarshalStaticConfig: %v", err)
	}
	if got.UUID != sc.UUID || got.ServiceName != sc.ServiceName || got.Pattern != sc.Pattern {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, sc)
	}
	if !got.PubSub.Payload.compatibleWith(sc.PubSub.Payload) {
		t.Errorf("payload details did not survive round trip")
	}
}

func TestStaticConfigCompatibleWithWorks(t *testing.T) {
	name := testServiceName(t, "fleet/telemetry")
	stored := &StaticConfig{
		Pattern: MessagingPatternPublishSubscribe,
		PubSub: &PubSubQoS{
			Payload:        NewMessageTypeDetails("TelemetrySample", 32, 8),
			MaxPublishers:  2,
			MaxSubscribers: 8,
		},
	}
	_ = name

	t.Run("compatible subset request succeeds", func(t *testing.T) {
		requested := &StaticConfig{
			Pattern: MessagingPatternPublishSubscribe,
			PubSub: &PubSubQoS{
				Payload:        NewMessageTypeDetails("TelemetrySample", 32, 8),
				MaxPublishers:  1,
				MaxSubscribers: 4,
			},
		}
		if err := stored.compatibleWith(requested); err != nil {
			t.Errorf("expected compatible, got %v", err)
		}
	})

	t.Run("mismatched payload type rejected", func(t *testing.T) {
		requested := &StaticConfig{
			Pattern: MessagingPatternPublishSubscribe,
			PubSub: &PubSubQoS{
				Payload: NewMessageTypeDetails("OtherType", 32, 8),
			},
		}
		if err := stored.compatibleWith(requested); err != ServiceOpenErrorIncompatibleTypes {
			t.Errorf("expected IncompatibleTypes, got %v", err)
		}
	})

	t.Run("excessive requested maxima rejected", func(t *testing.T) {
		requested := &StaticConfig{
			Pattern: MessagingPatternPublishSubscribe,
			PubSub: &PubSubQoS{
				Payload:       NewMessageTypeDetails("TelemetrySample", 32, 8),
				MaxPublishers: 99,
			},
		}
		if err := stored.compatibleWith(requested); err != ServiceOpenErrorIncompatibleQoS {
			t.Errorf("expected IncompatibleQoS, got %v", err)
		}
	})

	t.Run("mismatched pattern rejected", func(t *testing.T) {
		requested := &StaticConfig{Pattern: MessagingPatternEvent, Event: &EventQoS{}}
		if err := stored.compatibleWith(requested); err != ServiceOpenErrorIncompatibleMessagingPattern {
			t.Errorf("expected IncompatibleMessagingPattern, got %v", err)
		}
	})
}
