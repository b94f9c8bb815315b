package registry

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrClassAlreadyRegistered = errors.New("class already registered")
	ErrIDAlreadyRegistered    = errors.New("id already registered")
	ErrClassNotRegistered     = errors.New("class not registered")
	ErrFrozen                 = errors.New("registry builder already built")
)

type ClassAlreadyRegisteredError struct {
	Type     reflect.Type
	Existing ID
}

func (e *ClassAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: %s already registered with id %d", e.Type, e.Existing)
}

func (e *ClassAlreadyRegisteredError) Unwrap() error { return ErrClassAlreadyRegistered }

type IDAlreadyRegisteredError struct {
	ID       ID
	Type     reflect.Type
	Existing reflect.Type
}

func (e *IDAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: id %d for %s already bound to %s", e.ID, e.Type, e.Existing)
}

func (e *IDAlreadyRegisteredError) Unwrap() error { return ErrIDAlreadyRegistered }

// ClassNotRegisteredError reports a lookup miss. Exactly one of Type and ID
// is meaningful; Type is nil for lookups by id.
type ClassNotRegisteredError struct {
	Type reflect.Type
	ID   ID
}

func (e *ClassNotRegisteredError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("registry: no class registered for id %d", e.ID)
	}
	return fmt.Sprintf("registry: %s not registered", e.Type)
}

func (e *ClassNotRegisteredError) Unwrap() error { return ErrClassNotRegistered }
