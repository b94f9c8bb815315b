// Package registry maps domain types to stable 32-bit identifiers and to
// their fixed-length codecs.
//
// A Registry is assembled from an explicit registration list, either in one
// call to New or incrementally through a Builder, and is immutable once
// built. Readers may share it across goroutines without locking.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"

	"zkledger.dev/node/serde"
)

type ID int32

// StableID derives the identifier of a fully qualified type name: the low
// 32 bits of its xxhash64 digest.
func StableID(name string) ID {
	// #nosec G115 -- truncation to 32 bits is the definition of the id.
	return ID(int32(uint32(xxhash.Sum64String(name))))
}

// Registration binds a type name, an id and a codec. The Go type is taken
// from the codec.
type Registration struct {
	Name  string
	ID    ID
	Codec serde.AnyCodec
}

// For registers T under name with an id derived from the name.
func For[T any](name string, c serde.Codec[T]) Registration {
	return Registration{Name: name, ID: StableID(name), Codec: serde.Erase(c)}
}

// WithID returns a copy of r registered under an explicit id, used to
// resolve a derived-id collision.
func (r Registration) WithID(id ID) Registration {
	r.ID = id
	return r
}

func (r Registration) Type() reflect.Type {
	if r.Codec == nil {
		return nil
	}
	return r.Codec.Type()
}

type Registry struct {
	byID   map[ID]Registration
	byType map[reflect.Type]Registration
	order  []Registration
}

// New builds a registry from a static registration list.
func New(regs ...Registration) (*Registry, error) {
	b := NewBuilder()
	if err := b.Register(regs...); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Builder collects registrations during initialization.
type Builder struct {
	mu    sync.Mutex
	built bool
	reg   Registry
}

func NewBuilder() *Builder {
	return &Builder{reg: Registry{
		byID:   make(map[ID]Registration),
		byType: make(map[reflect.Type]Registration),
	}}
}

// Register adds regs atomically: either all of them are recorded or, on the
// first conflict, none are.
func (b *Builder) Register(regs ...Registration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return ErrFrozen
	}

	pendingID := make(map[ID]Registration, len(regs))
	pendingType := make(map[reflect.Type]Registration, len(regs))
	for _, r := range regs {
		if r.Codec == nil || r.Name == "" {
			return fmt.Errorf("registry: registration %q has no codec or name", r.Name)
		}
		if r.ID == 0 {
			return fmt.Errorf("registry: id 0 is reserved (type %s)", r.Type())
		}
		t := r.Type()
		if prev, ok := b.reg.byType[t]; ok {
			return &ClassAlreadyRegisteredError{Type: t, Existing: prev.ID}
		}
		if prev, ok := pendingType[t]; ok {
			return &ClassAlreadyRegisteredError{Type: t, Existing: prev.ID}
		}
		if prev, ok := b.reg.byID[r.ID]; ok {
			return &IDAlreadyRegisteredError{ID: r.ID, Type: t, Existing: prev.Type()}
		}
		if prev, ok := pendingID[r.ID]; ok {
			return &IDAlreadyRegisteredError{ID: r.ID, Type: t, Existing: prev.Type()}
		}
		pendingID[r.ID] = r
		pendingType[t] = r
	}

	for _, r := range regs {
		b.reg.byID[r.ID] = r
		b.reg.byType[r.Type()] = r
		b.reg.order = append(b.reg.order, r)
	}
	return nil
}

// Build freezes the builder and returns the registry. Later Register calls
// fail with ErrFrozen.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true
	return &b.reg
}

func (r *Registry) lookupType(t reflect.Type) (Registration, error) {
	reg, ok := r.byType[t]
	if !ok {
		return Registration{}, &ClassNotRegisteredError{Type: t}
	}
	return reg, nil
}

// Identify returns the id of t.
func (r *Registry) Identify(t reflect.Type) (ID, error) {
	reg, err := r.lookupType(t)
	if err != nil {
		return 0, err
	}
	return reg.ID, nil
}

// IdentifyValue returns the id of the dynamic type of v.
func (r *Registry) IdentifyValue(v any) (ID, error) {
	return r.Identify(reflect.TypeOf(v))
}

func (r *Registry) CodecByID(id ID) (serde.AnyCodec, error) {
	reg, err := r.RegistrationByID(id)
	if err != nil {
		return nil, err
	}
	return reg.Codec, nil
}

func (r *Registry) CodecByType(t reflect.Type) (serde.AnyCodec, error) {
	reg, err := r.lookupType(t)
	if err != nil {
		return nil, err
	}
	return reg.Codec, nil
}

func (r *Registry) RegistrationByID(id ID) (Registration, error) {
	reg, ok := r.byID[id]
	if !ok {
		return Registration{}, &ClassNotRegisteredError{ID: id}
	}
	return reg, nil
}

// NameOf returns the registered name of t.
func (r *Registry) NameOf(t reflect.Type) (string, error) {
	reg, err := r.lookupType(t)
	if err != nil {
		return "", err
	}
	return reg.Name, nil
}

// Registrations returns a copy of all registrations in registration order.
func (r *Registry) Registrations() []Registration {
	return append([]Registration(nil), r.order...)
}

// IDOf is Identify for a static type parameter.
func IDOf[T any](r *Registry) (ID, error) {
	return r.Identify(reflect.TypeFor[T]())
}
