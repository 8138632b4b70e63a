package hedge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Sentinel errors for store lookups.
var (
	ErrUnknownHedge = errors.New("unknown hedge")
	ErrVertexIndex  = errors.New("vertex index out of range")
)

// ChangeKind describes a store mutation.
type ChangeKind string

const (
	ChangeAdded      ChangeKind = "added"
	ChangeGeometry   ChangeKind = "geometry"
	ChangeCompleted  ChangeKind = "completed"
	ChangeAttributes ChangeKind = "attributes"
	ChangeHovered    ChangeKind = "hovered"
	ChangeRemoved    ChangeKind = "removed"
)

// Change is emitted after every store mutation.
type Change struct {
	Kind ChangeKind
	Type models.HedgeType
	ID   string
	// Renamed maps old to new identifiers of hedges relabeled by a removal.
	Renamed map[string]string
}

// Listener receives store changes. It is called without the store lock held
// and may read from the store.
type Listener func(Change)

// AddOptions describes a new hedge.
type AddOptions struct {
	LatLngs        []models.LatLng
	AdditionalData models.AdditionalData
	Completed      bool
	Editable       bool
}

type subscription struct {
	id int
	fn Listener
}

// Store owns the hedge collections of a session and notifies listeners of
// every change. Hedges hold no reference to their collection: every
// operation resolves the hedge by identifier.
type Store struct {
	mu          sync.RWMutex
	collections map[models.HedgeType]*Collection

	subMu     sync.Mutex
	subs      []subscription
	nextSubID int
}

// NewStore returns a store with one empty collection per hedge type.
func NewStore() *Store {
	s := &Store{collections: make(map[models.HedgeType]*Collection)}
	for _, t := range models.HedgeTypes {
		s.collections[t] = newCollection(t)
	}
	return s
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, fn: l})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(c)
	}
}

// Add appends a new hedge to the collection of type t and returns it with
// its identifier. This is the single creation path for drawn and restored hedges.
func (s *Store) Add(t models.HedgeType, opts AddOptions) (Hedge, error) {
	if !t.Valid() {
		return Hedge{}, fmt.Errorf("add hedge: unknown hedge type %q", t)
	}

	h := &Hedge{
		Type:             t,
		LatLngs:          append([]models.LatLng(nil), opts.LatLngs...),
		AdditionalData:   opts.AdditionalData.Clone(),
		DrawingCompleted: opts.Completed,
		Editable:         opts.Editable,
	}
	if h.AdditionalData == nil {
		h.AdditionalData = models.AdditionalData{}
	}
	h.updateLength()

	s.mu.Lock()
	s.collections[t].add(h)
	out := h.clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdded, Type: t, ID: out.ID})
	return out, nil
}

// find returns the hedge with the given identifier. Caller holds the lock.
func (s *Store) find(id string) (*Collection, int) {
	t, ok := typeOfIdentifier(id)
	if !ok {
		return nil, -1
	}
	c := s.collections[t]
	return c, c.indexOf(id)
}

// Get returns a copy of the hedge with the given identifier.
func (s *Store) Get(id string) (Hedge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, i := s.find(id)
	if i < 0 {
		return Hedge{}, false
	}
	return c.hedges[i].clone(), true
}

// Collection returns a snapshot of the collection of type t.
func (s *Store) Collection(t models.HedgeType) CollectionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[t]
	if !ok {
		return CollectionView{Type: t}
	}
	return c.view()
}

// Count returns the number of hedges of every type.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.collections {
		n += len(c.hedges)
	}
	return n
}

// mutate applies fn to the hedge under the write lock and emits a change.
func (s *Store) mutate(id string, kind ChangeKind, fn func(h *Hedge) error) (Hedge, error) {
	s.mu.Lock()
	c, i := s.find(id)
	if i < 0 {
		s.mu.Unlock()
		return Hedge{}, fmt.Errorf("%w: %s", ErrUnknownHedge, id)
	}
	h := c.hedges[i]
	if err := fn(h); err != nil {
		s.mu.Unlock()
		return Hedge{}, err
	}
	out := h.clone()
	s.mu.Unlock()

	s.notify(Change{Kind: kind, Type: out.Type, ID: out.ID})
	return out, nil
}

// AppendVertex adds a vertex at the end of the hedge and recomputes its length.
func (s *Store) AppendVertex(id string, p models.LatLng) (Hedge, error) {
	return s.mutate(id, ChangeGeometry, func(h *Hedge) error {
		h.LatLngs = append(h.LatLngs, p)
		h.updateLength()
		return nil
	})
}

// MoveVertex moves the vertex at index to p (end of a drag).
func (s *Store) MoveVertex(id string, index int, p models.LatLng) (Hedge, error) {
	return s.mutate(id, ChangeGeometry, func(h *Hedge) error {
		if index < 0 || index >= len(h.LatLngs) {
			return fmt.Errorf("%w: %d", ErrVertexIndex, index)
		}
		h.LatLngs[index] = p
		h.updateLength()
		return nil
	})
}

// DeleteVertex removes the vertex at index.
func (s *Store) DeleteVertex(id string, index int) (Hedge, error) {
	return s.mutate(id, ChangeGeometry, func(h *Hedge) error {
		if index < 0 || index >= len(h.LatLngs) {
			return fmt.Errorf("%w: %d", ErrVertexIndex, index)
		}
		h.LatLngs = append(h.LatLngs[:index], h.LatLngs[index+1:]...)
		h.updateLength()
		return nil
	})
}

// Complete marks the hedge drawing as finished.
func (s *Store) Complete(id string) (Hedge, error) {
	return s.mutate(id, ChangeCompleted, func(h *Hedge) error {
		h.DrawingCompleted = true
		return nil
	})
}

// SetAttributes replaces the hedge attributes.
func (s *Store) SetAttributes(id string, data models.AdditionalData) (Hedge, error) {
	return s.mutate(id, ChangeAttributes, func(h *Hedge) error {
		h.AdditionalData = data.Clone()
		if h.AdditionalData == nil {
			h.AdditionalData = models.AdditionalData{}
		}
		return nil
	})
}

// SetHovered sets the transient hover flag.
func (s *Store) SetHovered(id string, hovered bool) (Hedge, error) {
	return s.mutate(id, ChangeHovered, func(h *Hedge) error {
		h.Hovered = hovered
		return nil
	})
}

// Remove deletes the hedge and relabels its siblings. It returns the old ->
// new identifiers of relabeled hedges.
func (s *Store) Remove(id string) (map[string]string, error) {
	s.mu.Lock()
	c, i := s.find(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownHedge, id)
	}
	renamed := c.remove(i)
	t := c.typ
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemoved, Type: t, ID: id, Renamed: renamed})
	return renamed, nil
}
