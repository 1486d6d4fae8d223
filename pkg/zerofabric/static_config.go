package zerofabric

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// MessagingPattern distinguishes the two service families (§3).
type MessagingPattern string

const (
	MessagingPatternPublishSubscribe MessagingPattern = "publish-subscribe"
	MessagingPatternEvent            MessagingPattern = "event"
)

// MessageTypeDetails describes the payload carried by a
// publish-subscribe service, including a stable layout hash so opens
// detect type mismatch deterministically (§6 "languages" field).
type MessageTypeDetails struct {
	TypeName  string `yaml:"type_name"`
	Size      uint64 `yaml:"size"`
	Alignment uint64 `yaml:"alignment"`
	// LayoutHash is a stable hash of TypeName+Size+Alignment, compared
	// on open in addition to the raw fields for defense in depth.
	LayoutHash uint64 `yaml:"layout_hash"`
}

// NewMessageTypeDetails builds MessageTypeDetails and fills LayoutHash.
func NewMessageTypeDetails(typeName string, size, alignment uint64) MessageTypeDetails {
	d := MessageTypeDetails{TypeName: typeName, Size: size, Alignment: alignment}
	h := xxhash.New64()
	fmt.Fprintf(h, "%s:%d:%d", typeName, size, alignment)
	d.LayoutHash = h.Sum64()
	return d
}

func (d MessageTypeDetails) compatibleWith(other MessageTypeDetails) bool {
	return d.TypeName == other.TypeName && d.Size == other.Size &&
		d.Alignment == other.Alignment && d.LayoutHash == other.LayoutHash
}

// PubSubQoS is the pattern-specific QoS for a publish-subscribe
// service, fixed at creation (§3 "StaticConfig").
type PubSubQoS struct {
	Payload                      MessageTypeDetails `yaml:"payload"`
	MaxPublishers                uint64             `yaml:"max_publishers"`
	MaxSubscribers               uint64             `yaml:"max_subscribers"`
	SubscriberMaxBufferSize      uint64             `yaml:"subscriber_max_buffer_size"`
	SubscriberMaxBorrowedSamples uint64             `yaml:"subscriber_max_borrowed_samples"`
	HistorySize                  uint64             `yaml:"history_size"`
	EnableSafeOverflow           bool               `yaml:"enable_safe_overflow"`
}

// EventQoS is the pattern-specific QoS for an event service.
type EventQoS struct {
	MaxNotifiers uint64 `yaml:"max_notifiers"`
	MaxListeners uint64 `yaml:"max_listeners"`
}

// StaticConfig is the immutable service metadata written once at
// creation and serialized to the static storage artifact (§3, §6).
type StaticConfig struct {
	UUID        uuid.UUID        `yaml:"uuid"`
	ServiceName ServiceName      `yaml:"service_name"`
	Pattern     MessagingPattern `yaml:"messaging_pattern"`
	PubSub      *PubSubQoS       `yaml:"publish_subscribe,omitempty"`
	Event       *EventQoS        `yaml:"event,omitempty"`
}

// Marshal serializes StaticConfig into the human-readable,
// self-describing format stored on disk (§6).
func (s *StaticConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// UnmarshalStaticConfig parses bytes previously produced by Marshal.
func UnmarshalStaticConfig(data []byte) (*StaticConfig, error) {
	var s StaticConfig
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("zerofabric: corrupted static config: %w", err)
	}
	return &s, nil
}

// compatibleWith implements the Open-time compatibility check of §4.7:
// exact pattern + payload type match, requested maxima <= stored maxima.
func (s *StaticConfig) compatibleWith(requested *StaticConfig) error {
	if s.Pattern != requested.Pattern {
		return ServiceOpenErrorIncompatibleMessagingPattern
	}
	switch s.Pattern {
	case MessagingPatternPublishSubscribe:
		if s.PubSub == nil || requested.PubSub == nil {
			return ServiceOpenErrorServiceInCorruptedState
		}
		if !s.PubSub.Payload.compatibleWith(requested.PubSub.Payload) {
			return ServiceOpenErrorIncompatibleTypes
		}
		if requested.PubSub.MaxPublishers > s.PubSub.MaxPublishers ||
			requested.PubSub.MaxSubscribers > s.PubSub.MaxSubscribers ||
			requested.PubSub.SubscriberMaxBufferSize > s.PubSub.SubscriberMaxBufferSize ||
			requested.PubSub.SubscriberMaxBorrowedSamples > s.PubSub.SubscriberMaxBorrowedSamples ||
			requested.PubSub.HistorySize > s.PubSub.HistorySize {
			return ServiceOpenErrorIncompatibleQoS
		}
	case MessagingPatternEvent:
		if s.Event == nil || requested.Event == nil {
			return ServiceOpenErrorServiceInCorruptedState
		}
		if requested.Event.MaxNotifiers > s.Event.MaxNotifiers ||
			requested.Event.MaxListeners > s.Event.MaxListeners {
			return ServiceOpenErrorIncompatibleQoS
		}
	}
	return nil
}
