package zerofabric

import (
	"errors"
	"fmt"
)

// ContextualError wraps an error with the operation that produced it.
// It implements Unwrap so errors.Is/errors.As still reach the cause.
type ContextualError struct {
	Op  string
	Err error
}

func (e *ContextualError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *ContextualError) Unwrap() error { return e.Err }

// WrapError wraps err with operation context. Returns nil if err is nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextualError{Op: op, Err: err}
}

// Sentinel errors for conditions that are not a specific typed error.
var (
	ErrServiceClosed    = errors.New("zerofabric: service is closed")
	ErrPublisherClosed  = errors.New("zerofabric: publisher is closed")
	ErrSubscriberClosed = errors.New("zerofabric: subscriber is closed")
	ErrSampleClosed     = errors.New("zerofabric: sample already released")
	ErrNotifierClosed   = errors.New("zerofabric: notifier is closed")
	ErrListenerClosed   = errors.New("zerofabric: listener is closed")
	ErrBuilderConsumed  = errors.New("zerofabric: builder already consumed")
	ErrNoData           = errors.New("zerofabric: no data available")
)

// ServiceCreateError enumerates §7 "Service create" failures.
type ServiceCreateError int

const (
	ServiceCreateErrorAlreadyExists ServiceCreateError = iota + 1
	ServiceCreateErrorInsufficientPermissions
	ServiceCreateErrorInternalError
	ServiceCreateErrorOldServiceStateStillExists
	ServiceCreateErrorHashCollision
	ServiceCreateErrorIsBeingCreatedByAnotherInstance
)

func (e ServiceCreateError) Error() string {
	switch e {
	case ServiceCreateErrorAlreadyExists:
		return "service create failed: already exists"
	case ServiceCreateErrorInsufficientPermissions:
		return "service create failed: insufficient permissions"
	case ServiceCreateErrorInternalError:
		return "service create failed: internal error"
	case ServiceCreateErrorOldServiceStateStillExists:
		return "service create failed: old service state still exists"
	case ServiceCreateErrorHashCollision:
		return "service create failed: service name hashes to an existing UUID owned by a different name"
	case ServiceCreateErrorIsBeingCreatedByAnotherInstance:
		return "service create failed: is being created by another instance"
	default:
		return fmt.Sprintf("service create failed: unknown error (%d)", int(e))
	}
}

func (e ServiceCreateError) Is(target error) bool {
	t, ok := target.(ServiceCreateError)
	return ok && e == t
}

// ServiceOpenError enumerates §7 "Service open" failures.
type ServiceOpenError int

const (
	ServiceOpenErrorDoesNotExist ServiceOpenError = iota + 1
	ServiceOpenErrorIncompatibleTypes
	ServiceOpenErrorIncompatibleMessagingPattern
	ServiceOpenErrorIncompatibleQoS
	ServiceOpenErrorInsufficientPermissions
	ServiceOpenErrorServiceInCorruptedState
)

func (e ServiceOpenError) Error() string {
	switch e {
	case ServiceOpenErrorDoesNotExist:
		return "service open failed: does not exist"
	case ServiceOpenErrorIncompatibleTypes:
		return "service open failed: incompatible payload type"
	case ServiceOpenErrorIncompatibleMessagingPattern:
		return "service open failed: incompatible messaging pattern"
	case ServiceOpenErrorIncompatibleQoS:
		return "service open failed: incompatible QoS"
	case ServiceOpenErrorInsufficientPermissions:
		return "service open failed: insufficient permissions"
	case ServiceOpenErrorServiceInCorruptedState:
		return "service open failed: service is in a corrupted state"
	default:
		return fmt.Sprintf("service open failed: unknown error (%d)", int(e))
	}
}

func (e ServiceOpenError) Is(target error) bool {
	t, ok := target.(ServiceOpenError)
	return ok && e == t
}

// PortCreateError enumerates §7 "Publisher/subscriber create" failures.
type PortCreateError int

const (
	PortCreateErrorExceedsMaxSupportedPorts PortCreateError = iota + 1
	PortCreateErrorUnableToCreatePayloadPool
	PortCreateErrorUnableToCreateConnection
)

func (e PortCreateError) Error() string {
	switch e {
	case PortCreateErrorExceedsMaxSupportedPorts:
		return "port create failed: exceeds max supported ports"
	case PortCreateErrorUnableToCreatePayloadPool:
		return "port create failed: unable to create payload pool"
	case PortCreateErrorUnableToCreateConnection:
		return "port create failed: unable to create connection"
	default:
		return fmt.Sprintf("port create failed: unknown error (%d)", int(e))
	}
}

func (e PortCreateError) Is(target error) bool {
	t, ok := target.(PortCreateError)
	return ok && e == t
}

// ErrOutOfMemory is returned by Publisher.Loan when the payload pool is
// exhausted and overflow reclamation could not free a slot.
var ErrOutOfMemory = errors.New("zerofabric: loan failed, pool exhausted")

// ErrTooManySamplesHeld is returned by Subscriber.Receive when accepting
// another sample would exceed the configured max borrowed samples.
var ErrTooManySamplesHeld = errors.New("zerofabric: too many samples held")

// ErrConnection marks a non-fatal, per-peer connection failure. It is
// logged and handled locally; it is never returned from Publisher.Send.
var ErrConnection = errors.New("zerofabric: connection error")

// EventWaitError enumerates §7 "Notify / wait" failures.
type EventWaitError int

const (
	EventWaitErrorNotifierDisconnected EventWaitError = iota + 1
	EventWaitErrorInterruptSignal
	EventWaitErrorTimedOut
)

func (e EventWaitError) Error() string {
	switch e {
	case EventWaitErrorNotifierDisconnected:
		return "event wait failed: notifier disconnected"
	case EventWaitErrorInterruptSignal:
		return "event wait failed: interrupted by signal"
	case EventWaitErrorTimedOut:
		return "event wait failed: timed out"
	default:
		return fmt.Sprintf("event wait failed: unknown error (%d)", int(e))
	}
}

func (e EventWaitError) Is(target error) bool {
	t, ok := target.(EventWaitError)
	return ok && e == t
}
