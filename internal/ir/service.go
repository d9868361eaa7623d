package ir

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// ServiceKind names a guarded capability.
type ServiceKind string

const (
	ServiceCamera     ServiceKind = "camera"
	ServiceMicrophone ServiceKind = "microphone"
)

// AllServices lists every supported service kind in display order.
var AllServices = []ServiceKind{ServiceCamera, ServiceMicrophone}

var storeKeys = map[ServiceKind]string{
	ServiceCamera:     "kTCCServiceCamera",
	ServiceMicrophone: "kTCCServiceMicrophone",
}

var _ pflag.Value = (*ServiceKind)(nil)

// StoreKey returns the long service name used in the access table's
// service column and passed to the helper executable.
func (s ServiceKind) StoreKey() string {
	return storeKeys[s]
}

// Label returns a human-readable name ("Camera", "Microphone").
func (s ServiceKind) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Valid reports whether s is a supported service kind.
func (s ServiceKind) Valid() bool {
	_, ok := storeKeys[s]
	return ok
}

// String implements pflag.Value.
func (s *ServiceKind) String() string {
	return string(*s)
}

// Set implements pflag.Value. Accepts the short kind ("camera"), the label
// ("Camera") or the store key ("kTCCServiceCamera").
func (s *ServiceKind) Set(v string) error {
	kind, err := ParseServiceKind(v)
	if err != nil {
		return err
	}
	*s = kind
	return nil
}

// Type implements pflag.Value.
func (s *ServiceKind) Type() string {
	return "service"
}

// ParseServiceKind parses any accepted spelling of a service kind.
func ParseServiceKind(v string) (ServiceKind, error) {
	trimmed := strings.TrimSpace(v)
	for kind, key := range storeKeys {
		if strings.EqualFold(trimmed, string(kind)) || trimmed == key {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown service %q: must be one of camera, microphone", v)
}
