// Package request implements the pending-request registry: a slab of
// slots with a free list and a per-slot generation counter, so a RequestID
// handed out to an in-flight operation can be validated cheaply when its
// result comes back, even if the slot has since been reused.
package request

import (
	"encoding/json"
	"fmt"
)

// ID identifies one in-flight request. Locator is the slot index, Counter
// is the slot's 64-bit generation at allocation time; a result carrying a
// stale Counter is rejected rather than matched to the wrong, newer
// occupant. At 64 bits a counter collision needs 2^64 inserts into the
// same slot, so generation wraparound is not a practical concern.
type ID struct {
	Locator uint64 `json:"locator"`
	Counter uint64 `json:"counter"`
}

func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.Locator, id.Counter)
}

type slot struct {
	occupied bool
	counter  uint64
	value    interface{}
}

// Registry is a free-list slab of pending requests. Zero value is not
// usable; call New.
type Registry struct {
	slots []slot
	free  []uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add inserts value and returns the ID to hand to the caller that will
// eventually report the result.
func (r *Registry) Add(value interface{}) ID {
	if len(r.free) == 0 {
		r.slots = append(r.slots, slot{occupied: true, counter: 0, value: value})
		return ID{Locator: uint64(len(r.slots) - 1), Counter: 0}
	}
	n := len(r.free) - 1
	loc := r.free[n]
	r.free = r.free[:n]
	s := &r.slots[loc]
	s.occupied = true
	s.value = value
	return ID{Locator: loc, Counter: s.counter}
}

// Get returns the value stored under id, or false if id is stale or
// unknown.
func (r *Registry) Get(id ID) (interface{}, bool) {
	if int(id.Locator) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[id.Locator]
	if !s.occupied || s.counter != id.Counter {
		return nil, false
	}
	return s.value, true
}

// Remove frees id's slot, bumping its generation counter so any later
// reference to the same Locator with the old Counter is rejected by Get.
// It reports whether id was valid and present.
func (r *Registry) Remove(id ID) bool {
	if int(id.Locator) >= len(r.slots) {
		return false
	}
	s := &r.slots[id.Locator]
	if !s.occupied || s.counter != id.Counter {
		return false
	}
	s.occupied = false
	s.value = nil
	s.counter++
	r.free = append(r.free, id.Locator)
	return true
}

// Contains reports whether id currently refers to an occupied slot.
func (r *Registry) Contains(id ID) bool {
	_, ok := r.Get(id)
	return ok
}

// Len returns the number of currently occupied slots.
func (r *Registry) Len() int {
	return len(r.slots) - len(r.free)
}

// Each calls fn for every occupied slot in slot order.
func (r *Registry) Each(fn func(id ID, value interface{})) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.occupied {
			continue
		}
		fn(ID{Locator: uint64(i), Counter: s.counter}, s.value)
	}
}

// SlotSnapshot is the serialized form of one slab slot, occupied or free.
// The counter of a free slot must survive a snapshot/restore round trip,
// otherwise a restored registry could hand out an ID that collides with
// one issued before the snapshot.
type SlotSnapshot struct {
	Occupied bool            `json:"occupied"`
	Counter  uint64          `json:"counter"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Snapshot is a Registry's full serialized form.
type Snapshot struct {
	Slots []SlotSnapshot `json:"slots"`
	Free  []uint64       `json:"free"`
}

// Snapshot serializes the registry, encoding each occupied slot's value
// with enc. The free list is preserved verbatim so slot-reuse order, and
// therefore ID assignment, is identical after a restore.
func (r *Registry) Snapshot(enc func(value interface{}) ([]byte, error)) (Snapshot, error) {
	snap := Snapshot{
		Slots: make([]SlotSnapshot, len(r.slots)),
		Free:  append([]uint64(nil), r.free...),
	}
	for i := range r.slots {
		s := &r.slots[i]
		snap.Slots[i] = SlotSnapshot{Occupied: s.occupied, Counter: s.counter}
		if !s.occupied {
			continue
		}
		data, err := enc(s.value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("request: encode slot %d: %w", i, err)
		}
		snap.Slots[i].Value = data
	}
	return snap, nil
}

// FromSnapshot rebuilds a Registry from snap, decoding each occupied
// slot's value with dec.
func FromSnapshot(snap Snapshot, dec func(data json.RawMessage) (interface{}, error)) (*Registry, error) {
	r := &Registry{
		slots: make([]slot, len(snap.Slots)),
		free:  append([]uint64(nil), snap.Free...),
	}
	for i, s := range snap.Slots {
		r.slots[i] = slot{occupied: s.Occupied, counter: s.Counter}
		if !s.Occupied {
			continue
		}
		v, err := dec(s.Value)
		if err != nil {
			return nil, fmt.Errorf("request: decode slot %d: %w", i, err)
		}
		r.slots[i].value = v
	}
	return r, nil
}
