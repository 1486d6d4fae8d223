package zerofabric

import (
	"os"
	"path/filepath"
)

// PubSubDefaults holds the default QoS applied to a publish-subscribe
// service when a builder option is not set explicitly (§6 "defaults").
type PubSubDefaults struct {
	MaxPublishers                uint64
	MaxSubscribers               uint64
	SubscriberMaxBufferSize      uint64
	SubscriberMaxBorrowedSamples uint64
	HistorySize                  uint64
	EnableSafeOverflow           bool
}

// EventDefaults holds the default QoS applied to an event service.
type EventDefaults struct {
	MaxNotifiers uint64
	MaxListeners uint64
}

// ServiceConfig groups the artifact-naming knobs under
// global.service.* (§6).
type ServiceConfig struct {
	Directory           string
	StaticConfigSuffix  string
	DynamicConfigSuffix string
	ConnectionSuffix    string
	EventSuffix         string
}

// Config is the process-scoped configuration passed by reference to
// every builder. There is no implicit global state beyond an opt-in
// DefaultConfig() instance a caller may choose to share.
type Config struct {
	RootPath string
	Service  ServiceConfig
	PubSub   PubSubDefaults
	Event    EventDefaults
}

// DefaultConfig returns the built-in default configuration. Callers
// are free to copy and adjust it; Config is never mutated in place by
// the package.
func DefaultConfig() *Config {
	return &Config{
		RootPath: filepath.Join(os.TempDir(), "zerofabric"),
		Service: ServiceConfig{
			Directory:           "services",
			StaticConfigSuffix:  ".service",
			DynamicConfigSuffix: ".dynamic",
			ConnectionSuffix:    ".connection",
			EventSuffix:         ".event",
		},
		PubSub: PubSubDefaults{
			MaxPublishers:                1,
			MaxSubscribers:               8,
			SubscriberMaxBufferSize:      16,
			SubscriberMaxBorrowedSamples: 4,
			HistorySize:                  0,
			EnableSafeOverflow:           false,
		},
		Event: EventDefaults{
			MaxNotifiers: 8,
			MaxListeners: 8,
		},
	}
}

// serviceDir returns the directory under RootPath that holds all
// service artifacts. It does not create the directory.
func (c *Config) serviceDir() string {
	return filepath.Join(c.RootPath, c.Service.Directory)
}
