package lifetime

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks every graph declaration problem found by Build.
	ErrConfig = errors.New("lifetime: invalid configuration")
	// ErrUnknownKind is returned for keys that have no node.
	ErrUnknownKind = errors.New("lifetime: unknown kind")
	// ErrInvalidInstance is returned for nil or non-pointer instances.
	ErrInvalidInstance = errors.New("lifetime: instance must be a non-nil pointer")
	// ErrInvalidSubscriber is returned for nil or non-comparable subscribers.
	ErrInvalidSubscriber = errors.New("lifetime: subscriber must be non-nil and comparable")
	// ErrAlreadyActive is returned when an active instance is reported initialized again.
	ErrAlreadyActive = errors.New("lifetime: instance already initialized")
	// ErrNotActive is returned when an inactive instance is reported disposed.
	ErrNotActive = errors.New("lifetime: instance not initialized")
	// ErrDestroyedWhileInitialized is returned when destroy is not preceded by dispose.
	ErrDestroyedWhileInitialized = errors.New("lifetime: destroyed while still initialized")
	// ErrUnrelatedKind is returned when an observation names a kind the instance does not satisfy.
	ErrUnrelatedKind = errors.New("lifetime: instance does not satisfy kind")
	// ErrClosed is returned by every call on a closed Registry.
	ErrClosed = errors.New("lifetime: registry closed")
)

// ConfigError describes one declaration problem.
type ConfigError struct {
	Key    Key
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lifetime: kind %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

func configErrorf(key Key, format string, args ...any) error {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// SubscriberError wraps a panic raised by one subscriber during fan-out.
// Delivery to the remaining subscribers continues.
type SubscriberError struct {
	Kind       Key
	Transition Transition
	Value      any
	Stack      string
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("lifetime: %s subscriber of %s panicked: %v", e.Transition, e.Kind, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *SubscriberError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
