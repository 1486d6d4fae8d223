package zerofabric

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StaticStorage is the read-mostly capability set of §4.4: create
// once, open many, list/remove by name. staticFileStorage is its one
// concrete, file-backed realization.
type StaticStorage interface {
	AcquireOwnership()
	Close() error
}

type staticFileStorage struct {
	path         string
	ownsArtifact bool
}

func staticConfigPath(cfg *Config, svc ServiceName) string {
	return filepath.Join(cfg.serviceDir(), svc.FileStem()+cfg.Service.StaticConfigSuffix)
}

// createStaticConfig writes a StaticConfig artifact exactly once,
// failing with os.ErrExist if it is already present (§4.4 "create").
func createStaticConfig(cfg *Config, sc *StaticConfig) (*staticFileStorage, error) {
	path := staticConfigPath(cfg, sc.ServiceName)
	if err := os.MkdirAll(cfg.serviceDir(), 0o755); err != nil {
		return nil, err
	}
	data, err := sc.Marshal()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &staticFileStorage{path: path}, nil
}

// openStaticConfigByName opens the static config artifact for svc,
// verifying the artifact's embedded UUID matches the name it was
// opened under (§4.4, §8 "file_name == UUID(deserialized.service_name)").
func openStaticConfigByName(cfg *Config, svc ServiceName) (*StaticConfig, *staticFileStorage, error) {
	path := staticConfigPath(cfg, svc)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	sc, err := UnmarshalStaticConfig(data)
	if err != nil {
		return nil, nil, err
	}
	if sc.UUID != svc.UUID() {
		log.WithFields(map[string]interface{}{"path": path, "embedded_uuid": sc.UUID}).
			Warn("static config artifact name does not match its embedded UUID, skipping")
		return nil, nil, ServiceOpenErrorServiceInCorruptedState
	}
	return sc, &staticFileStorage{path: path}, nil
}

// listStaticConfigs enumerates every static-storage artifact under
// cfg's service directory, skipping (with a warning) any whose file
// name does not match its deserialized UUID (§4.4, §4.7 "List").
func listStaticConfigs(cfg *Config) ([]*StaticConfig, error) {
	entries, err := os.ReadDir(cfg.serviceDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*StaticConfig
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), cfg.Service.StaticConfigSuffix) {
			continue
		}
		path := filepath.Join(cfg.serviceDir(), e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		sc, err := UnmarshalStaticConfig(data)
		if err != nil {
			log.WithField("path", path).Warn("failed to deserialize static config artifact, skipping")
			continue
		}
		stem := strings.TrimSuffix(e.Name(), cfg.Service.StaticConfigSuffix)
		if want, err := uuid.Parse(stem); err != nil || want != sc.UUID {
			log.WithField("path", path).Warn("static config file name does not match embedded UUID, skipping")
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *staticFileStorage) AcquireOwnership() { s.ownsArtifact = true }

func (s *staticFileStorage) Close() error {
	if s == nil || !s.ownsArtifact {
		return nil
	}
	return removeIfExists(s.path)
}
