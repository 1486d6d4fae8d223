package zerofabric

// ServiceBuilder is the entry point into the two messaging-pattern
// builders, grounded on the teacher's ServiceBuilder -> ServiceBuilderPubSub
// chain (service_builder.go).
type ServiceBuilder struct {
	cfg  *Config
	name ServiceName
	err  error
}

// NewServiceBuilder starts a builder for a service named name. Any
// name-validation error is deferred and surfaced from the terminal
// Create/Open/OpenOrCreate call.
func NewServiceBuilder(cfg *Config, name string) *ServiceBuilder {
	n, err := NewServiceName(name)
	return &ServiceBuilder{cfg: cfg, name: n, err: err}
}

// PublishSubscribe selects the publish-subscribe messaging pattern.
func (b *ServiceBuilder) PublishSubscribe(payloadTypeName string, payloadSize, payloadAlignment uint64) *pubSubBuilder {
	qos := b.cfg.PubSub
	return &pubSubBuilder{
		cfg:  b.cfg,
		name: b.name,
		err:  b.err,
		qos: PubSubQoS{
			Payload:                      NewMessageTypeDetails(payloadTypeName, payloadSize, payloadAlignment),
			MaxPublishers:                qos.MaxPublishers,
			MaxSubscribers:               qos.MaxSubscribers,
			SubscriberMaxBufferSize:      qos.SubscriberMaxBufferSize,
			SubscriberMaxBorrowedSamples: qos.SubscriberMaxBorrowedSamples,
			HistorySize:                  qos.HistorySize,
			EnableSafeOverflow:           qos.EnableSafeOverflow,
		},
	}
}

// Event selects the event-notification messaging pattern.
func (b *ServiceBuilder) Event() *eventBuilder {
	qos := b.cfg.Event
	return &eventBuilder{
		cfg:  b.cfg,
		name: b.name,
		err:  b.err,
		qos:  EventQoS{MaxNotifiers: qos.MaxNotifiers, MaxListeners: qos.MaxListeners},
	}
}

// pubSubBuilder accumulates publish-subscribe QoS overrides.
type pubSubBuilder struct {
	cfg  *Config
	name ServiceName
	qos  PubSubQoS
	err  error
}

func (b *pubSubBuilder) MaxPublishers(n uint64) *pubSubBuilder {
	b.qos.MaxPublishers = n
	return b
}

func (b *pubSubBuilder) MaxSubscribers(n uint64) *pubSubBuilder {
	b.qos.MaxSubscribers = n
	return b
}

func (b *pubSubBuilder) SubscriberMaxBufferSize(n uint64) *pubSubBuilder {
	b.qos.SubscriberMaxBufferSize = n
	return b
}

func (b *pubSubBuilder) SubscriberMaxBorrowedSamples(n uint64) *pubSubBuilder {
	b.qos.SubscriberMaxBorrowedSamples = n
	return b
}

func (b *pubSubBuilder) HistorySize(n uint64) *pubSubBuilder {
	b.qos.HistorySize = n
	return b
}

func (b *pubSubBuilder) EnableSafeOverflow(v bool) *pubSubBuilder {
	b.qos.EnableSafeOverflow = v
	return b
}

func (b *pubSubBuilder) staticConfig() *StaticConfig {
	qos := b.qos
	return &StaticConfig{
		UUID:        b.name.UUID(),
		ServiceName: b.name,
		Pattern:     MessagingPatternPublishSubscribe,
		PubSub:      &qos,
	}
}

// Create implements §4.7 "Create" for a publish-subscribe service.
func (b *pubSubBuilder) Create() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return createService(b.cfg, b.staticConfig())
}

// Open implements §4.7 "Open".
func (b *pubSubBuilder) Open() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return openService(b.cfg, b.name, b.staticConfig(), false)
}

// OpenOrCreate implements §4.7 "OpenOrCreate".
func (b *pubSubBuilder) OpenOrCreate() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return openOrCreateService(b.cfg, b.staticConfig())
}

// eventBuilder accumulates event-service QoS overrides.
type eventBuilder struct {
	cfg  *Config
	name ServiceName
	qos  EventQoS
	err  error
}

func (b *eventBuilder) MaxNotifiers(n uint64) *eventBuilder {
	b.qos.MaxNotifiers = n
	return b
}

func (b *eventBuilder) MaxListeners(n uint64) *eventBuilder {
	b.qos.MaxListeners = n
	return b
}

func (b *eventBuilder) staticConfig() *StaticConfig {
	qos := b.qos
	return &StaticConfig{
		UUID:        b.name.UUID(),
		ServiceName: b.name,
		Pattern:     MessagingPatternEvent,
		Event:       &qos,
	}
}

func (b *eventBuilder) Create() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return createService(b.cfg, b.staticConfig())
}

func (b *eventBuilder) Open() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return openService(b.cfg, b.name, b.staticConfig(), false)
}

func (b *eventBuilder) OpenOrCreate() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	return openOrCreateService(b.cfg, b.staticConfig())
}
