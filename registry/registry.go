// Package registry keeps the table of extension types known to the runtime.
//
// Every descriptor is reachable two ways: by the logical identifier content
// authors write in host data files, and by the encoded identifier the host
// stores as program data. The encoded identifier is the canonical key and is
// unique among live descriptors. Logical identifiers are unique per owner
// only; when several owners register the same one, forward lookup returns
// the most recent registration.
//
// A Registry is not safe for concurrent use. It is mutated on the host
// control goroutine only.
package registry

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/exedata"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
)

var (
	ErrEncodedCollision  = errors.New("encoded identifier already registered by another owner")
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

// Descriptor describes one extension type. F is the factory type of the
// registry's domain.
type Descriptor[F any] struct {
	LogicalID string
	TypeName  string
	Encoded   string
	Factory   F
	Cost      int
	Owner     plugin.Handle
}

// Registry maps identifiers to descriptors.
type Registry[F any] struct {
	log       commonlog.Logger
	entries   []*Descriptor[F]
	byEncoded map[string]*Descriptor[F]
}

// New creates an empty registry.
func New[F any]() *Registry[F] {
	return &Registry[F]{
		log:       logging.Get("registry"),
		byEncoded: make(map[string]*Descriptor[F]),
	}
}

// Register adds d and returns the stored descriptor. An empty Encoded is
// filled with exedata.Encode(d.TypeName).
//
// An owner registering an encoding or a logical identifier it already
// holds replaces its earlier descriptor. Claiming an encoding held by a
// different owner fails with ErrEncodedCollision.
func (r *Registry[F]) Register(d Descriptor[F]) (Descriptor[F], error) {
	if d.LogicalID == "" {
		return Descriptor[F]{}, fmt.Errorf("%w: empty logical identifier", ErrInvalidDescriptor)
	}
	if d.Encoded == "" {
		if d.TypeName == "" {
			return Descriptor[F]{}, fmt.Errorf("%w: %s has neither a type name nor an encoding", ErrInvalidDescriptor, d.LogicalID)
		}
		d.Encoded = exedata.Encode(d.TypeName)
	}

	if prev, ok := r.byEncoded[d.Encoded]; ok {
		if prev.Owner != d.Owner {
			return Descriptor[F]{}, fmt.Errorf("%s (%s): %w %s", d.LogicalID, d.TypeName, ErrEncodedCollision, prev.Owner)
		}
		r.remove(func(e *Descriptor[F]) bool { return e == prev })
	}

	for _, e := range r.entries {
		if e.LogicalID != d.LogicalID {
			continue
		}
		if e.Owner == d.Owner {
			r.log.Info("replacing descriptor", "id", d.LogicalID, "owner", d.Owner.String(), "old", e.TypeName, "new", d.TypeName)
			r.remove(func(x *Descriptor[F]) bool { return x == e })
			break
		}
		r.log.Warning("duplicate logical identifier", "id", d.LogicalID, "owner", d.Owner.String(), "shadows", e.Owner.String())
	}

	stored := d
	r.entries = append(r.entries, &stored)
	r.byEncoded[stored.Encoded] = &stored
	return stored, nil
}

// Unregister removes every descriptor with the logical identifier and
// returns how many were removed.
func (r *Registry[F]) Unregister(logicalID string) int {
	return r.remove(func(e *Descriptor[F]) bool { return e.LogicalID == logicalID })
}

// UnregisterType removes every descriptor of the type name.
func (r *Registry[F]) UnregisterType(typeName string) int {
	return r.remove(func(e *Descriptor[F]) bool { return e.TypeName == typeName })
}

// UnregisterAll removes every descriptor registered by owner. Descriptors
// of other owners are untouched.
func (r *Registry[F]) UnregisterAll(owner plugin.Handle) int {
	n := r.remove(func(e *Descriptor[F]) bool { return e.Owner == owner })
	if n > 0 {
		r.log.Debug("swept descriptors", "owner", owner.String(), "count", n)
	}
	return n
}

// LookupLogical returns the most recently registered descriptor with the
// logical identifier.
func (r *Registry[F]) LookupLogical(logicalID string) (Descriptor[F], bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].LogicalID == logicalID {
			return *r.entries[i], true
		}
	}
	return Descriptor[F]{}, false
}

// LookupEncoded returns the descriptor stored under the encoded identifier.
func (r *Registry[F]) LookupEncoded(encoded string) (Descriptor[F], bool) {
	d, ok := r.byEncoded[encoded]
	if !ok {
		return Descriptor[F]{}, false
	}
	return *d, true
}

// IsEncoded reports whether encoded is a live encoded identifier.
func (r *Registry[F]) IsEncoded(encoded string) bool {
	_, ok := r.byEncoded[encoded]
	return ok
}

// All returns the live descriptors in registration order.
func (r *Registry[F]) All() []Descriptor[F] {
	out := make([]Descriptor[F], len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of live descriptors.
func (r *Registry[F]) Len() int {
	return len(r.entries)
}

func (r *Registry[F]) remove(match func(*Descriptor[F]) bool) int {
	kept := r.entries[:0]
	n := 0
	for _, e := range r.entries {
		if match(e) {
			delete(r.byEncoded, e.Encoded)
			n++
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	return n
}
