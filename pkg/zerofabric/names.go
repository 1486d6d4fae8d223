package zerofabric

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ServiceNameMaxLength bounds the length of a ServiceName, matching
// the teacher binding's ServiceNameMaxLength contract.
const ServiceNameMaxLength = 255

// zeroFabricNamespace is the fixed namespace UUID used to derive a
// stable per-name service UUID via uuid.NewSHA1 (RFC 4122 §4.3). It
// has no meaning beyond being a constant every process agrees on.
var zeroFabricNamespace = uuid.MustParse("2c1d6a1e-6e4b-4e9a-9c8e-9b8f2b6a7a01")

// ServiceName is a hashable identifier for a service: nonempty,
// bounded, and limited to ASCII letters, digits, '/', '_', '-' and
// '.'. A '/' is allowed because artifact file names use the name's
// UUID, never the name itself.
type ServiceName string

// NewServiceName validates name and returns it as a ServiceName.
func NewServiceName(name string) (ServiceName, error) {
	if len(name) == 0 {
		return "", fmt.Errorf("zerofabric: service name must not be empty")
	}
	if len(name) > ServiceNameMaxLength {
		return "", fmt.Errorf("zerofabric: service name exceeds %d bytes", ServiceNameMaxLength)
	}
	if strings.ContainsAny(name, "\x00") {
		return "", fmt.Errorf("zerofabric: service name contains a NUL byte")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '_' || r == '-' || r == '.':
		default:
			return "", fmt.Errorf("zerofabric: service name contains reserved character %q", r)
		}
	}
	return ServiceName(name), nil
}

// UUID deterministically hashes the service name to the filesystem-
// visible service identifier (§3 "ServiceName", §9 "UUID").
func (n ServiceName) UUID() uuid.UUID {
	return uuid.NewSHA1(zeroFabricNamespace, []byte(n))
}

// FileStem returns the UUID formatted the way it appears in artifact
// file names (§6): the plain hyphenated UUID string.
func (n ServiceName) FileStem() string {
	return n.UUID().String()
}
