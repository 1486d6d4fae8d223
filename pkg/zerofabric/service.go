package zerofabric

import (
	"os"
	"sync/atomic"
)

// Service is an opened (or newly created) communication endpoint
// family: a fixed messaging pattern plus QoS, shared by every
// publisher/subscriber or notifier/listener attached to it (§4.7).
type Service struct {
	cfg           *Config
	name          ServiceName
	static        *StaticConfig
	staticStorage *staticFileStorage
	dynamic       *dynamicConfig
	closed        atomic.Bool
}

// Config returns the process-scoped configuration this service was
// opened with.
func (s *Service) Config() *Config { return s.cfg }

// Name returns the service's name.
func (s *Service) Name() ServiceName { return s.name }

// StaticConfig returns the service's immutable QoS metadata.
func (s *Service) StaticConfig() *StaticConfig { return s.static }

// NumberOfPublishers/NumberOfSubscribers/NumberOfNotifiers/NumberOfListeners
// report the live port count observed in DynamicConfig right now.
func (s *Service) NumberOfPublishers() int { return len(s.dynamic.tableA.snapshot()) }
func (s *Service) NumberOfSubscribers() int { return len(s.dynamic.tableB.snapshot()) }
func (s *Service) NumberOfNotifiers() int   { return len(s.dynamic.tableA.snapshot()) }
func (s *Service) NumberOfListeners() int   { return len(s.dynamic.tableB.snapshot()) }

// Close implements the Drop semantics of §4.7: decrement the
// reference counter; if it reaches zero, the last holder unlinks both
// the static and dynamic artifacts.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	remaining := s.dynamic.Release()
	if remaining == 0 {
		s.dynamic.AcquireOwnership()
		s.staticStorage.AcquireOwnership()
	}
	err1 := s.dynamic.Close()
	err2 := s.staticStorage.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// createService implements §4.7 "Create".
func createService(cfg *Config, sc *StaticConfig) (*Service, error) {
	staticStorage, err := createStaticConfig(cfg, sc)
	if err != nil {
		if os.IsExist(err) {
			existing, existingStorage, rerr := openStaticConfigByName(cfg, sc.ServiceName)
			if rerr != nil {
				return nil, rerr
			}
			if existing.ServiceName != sc.ServiceName {
				return nil, ServiceCreateErrorHashCollision
			}
			// Another instance created it concurrently: behave like Open.
			return attachToExistingService(cfg, existing, existingStorage)
		}
		return nil, ServiceCreateErrorInternalError
	}

	dyn, err := createDynamicConfig(dynamicConfigPath(cfg, sc.ServiceName), sc)
	if err != nil {
		staticStorage.AcquireOwnership()
		staticStorage.Close()
		return nil, ServiceCreateErrorInternalError
	}

	return &Service{cfg: cfg, name: sc.ServiceName, static: sc, staticStorage: staticStorage, dynamic: dyn}, nil
}

// openService implements §4.7 "Open": find the service by name among
// the static-storage artifacts, open its DynamicConfig, and verify
// QoS/type compatibility with requested.
func openService(cfg *Config, name ServiceName, requested *StaticConfig, tryOnly bool) (*Service, error) {
	existing, storage, err := openStaticConfigByName(cfg, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ServiceOpenErrorDoesNotExist
		}
		return nil, err
	}
	if requested != nil {
		if err := existing.compatibleWith(requested); err != nil {
			return nil, err
		}
	}
	dyn, err := openDynamicConfig(dynamicConfigPath(cfg, name), existing, tryOnly)
	if err != nil {
		return nil, ServiceOpenErrorServiceInCorruptedState
	}
	if dyn.Retain() == 0 {
		dyn.Close()
		return nil, ServiceOpenErrorDoesNotExist
	}
	return &Service{cfg: cfg, name: existing.ServiceName, static: existing, staticStorage: storage, dynamic: dyn}, nil
}

func attachToExistingService(cfg *Config, existing *StaticConfig, storage *staticFileStorage) (*Service, error) {
	dyn, err := openDynamicConfig(dynamicConfigPath(cfg, existing.ServiceName), existing, false)
	if err != nil {
		return nil, ServiceOpenErrorServiceInCorruptedState
	}
	if dyn.Retain() == 0 {
		dyn.Close()
		return nil, ServiceOpenErrorDoesNotExist
	}
	return &Service{cfg: cfg, name: existing.ServiceName, static: existing, staticStorage: storage, dynamic: dyn}, nil
}

// openOrCreateService implements §4.7 "OpenOrCreate": try Open; on
// DoesNotExist try Create; on a racing AlreadyExists retry Open, up
// to 8 attempts before giving up as ServiceInCorruptedState.
func openOrCreateService(cfg *Config, sc *StaticConfig) (*Service, error) {
	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		svc, err := openService(cfg, sc.ServiceName, sc, false)
		if err == nil {
			return svc, nil
		}
		if err != ServiceOpenErrorDoesNotExist {
			return nil, err
		}
		svc, cerr := createService(cfg, sc)
		if cerr == nil {
			return svc, nil
		}
		if cerr != ServiceCreateErrorAlreadyExists {
			return nil, cerr
		}
	}
	return nil, ServiceOpenErrorServiceInCorruptedState
}

func dynamicConfigPath(cfg *Config, name ServiceName) string {
	return cfg.serviceDir() + "/" + name.FileStem() + cfg.Service.DynamicConfigSuffix
}

// ListServices enumerates every service currently registered under
// cfg's root path (§4.7 "List").
func ListServices(cfg *Config) ([]*StaticConfig, error) {
	return listStaticConfigs(cfg)
}

// ServiceExists reports whether a service with this name has live
// artifacts right now (§4.7 "Exists").
func ServiceExists(cfg *Config, name ServiceName) (bool, error) {
	_, storage, err := openStaticConfigByName(cfg, name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if err == ServiceOpenErrorServiceInCorruptedState {
			return false, nil
		}
		return false, err
	}
	_ = storage
	return true, nil
}
