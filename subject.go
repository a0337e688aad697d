package micro

import (
	"fmt"
	"regexp"
	"strings"
)

// Verb is one of the three monitoring verbs a service responds to.
type Verb int

const (
	// PingVerb causes the service to reply with a PingInfo.
	PingVerb Verb = iota
	// InfoVerb causes the service to reply with a ServiceInfo.
	InfoVerb
	// StatsVerb causes the service to reply with a ServiceStats.
	StatsVerb
)

func (v Verb) String() string {
	switch v {
	case PingVerb:
		return "PING"
	case InfoVerb:
		return "INFO"
	case StatsVerb:
		return "STATS"
	default:
		return ""
	}
}

// APIPrefix is the default root of all control subjects.
const APIPrefix = "$SRV"

// DefaultQueueGroup is the queue group name used for endpoints when none
// is configured. Monitoring subscriptions use no queue group.
const DefaultQueueGroup = "q"

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ControlSubject builds the monitoring subject for a verb, optionally
// scoped to a service name and, further, to a single instance id.
//
// Passing name="" returns the fleet-wide subject ("$SRV.PING"). Passing a
// non-empty id without a name is an error (ErrServiceNameRequired).
func ControlSubject(apiPrefix string, verb Verb, name string, id string) (string, error) {
	if apiPrefix == "" {
		apiPrefix = APIPrefix
	}
	switch verb {
	case PingVerb, InfoVerb, StatsVerb:
	default:
		return "", fmt.Errorf("%w: %v", ErrVerbNotSupported, verb)
	}
	if name == "" {
		if id != "" {
			return "", ErrServiceNameRequired
		}
		return fmt.Sprintf("%s.%s", apiPrefix, verb), nil
	}
	if id == "" {
		return fmt.Sprintf("%s.%s.%s", apiPrefix, verb, name), nil
	}
	return fmt.Sprintf("%s.%s.%s.%s", apiPrefix, verb, name, id), nil
}

// controlSubjects returns the three monitoring subjects (fleet-wide,
// per-kind, per-instance) for a verb, given a service name and instance id.
func controlSubjects(apiPrefix string, verb Verb, name string, id string) []string {
	all, _ := ControlSubject(apiPrefix, verb, "", "")
	kind, _ := ControlSubject(apiPrefix, verb, name, "")
	instance, _ := ControlSubject(apiPrefix, verb, name, id)
	return []string{all, kind, instance}
}

// validServiceName reports whether name uses the allowed identifier
// charset (spec §3: "[A-Za-z0-9_-]").
func validServiceName(name string) bool {
	return name != "" && serviceNamePattern.MatchString(name)
}

// validGroupName reports whether name can be used as a subject prefix: it
// must not contain the multi-token wildcard ">" (spec §3).
func validGroupName(name string) bool {
	return !strings.Contains(name, ">")
}
