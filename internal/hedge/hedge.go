// Package hedge holds the hedge entity model: hedges, the per-type
// collections that own them, and the observable store sessions mutate.
package hedge

import (
	"github.com/MTES-MCT/envergo/internal/geodesic"
	"github.com/MTES-MCT/envergo/internal/models"
)

// Hedge is one digitized hedge. Values returned by the Store are copies;
// mutations go through Store methods.
type Hedge struct {
	ID               string
	Type             models.HedgeType
	LatLngs          []models.LatLng
	Length           float64 // meters, derived from LatLngs
	AdditionalData   models.AdditionalData
	DrawingCompleted bool
	Hovered          bool
	Editable         bool
}

// Record returns the transport form of the hedge.
func (h Hedge) Record() models.HedgeRecord {
	latLngs := make([]models.LatLng, len(h.LatLngs))
	copy(latLngs, h.LatLngs)
	data := h.AdditionalData.Clone()
	if data == nil {
		data = models.AdditionalData{}
	}
	return models.HedgeRecord{
		ID:             h.ID,
		LatLngs:        latLngs,
		Type:           h.Type,
		AdditionalData: data,
	}
}

func (h *Hedge) clone() Hedge {
	c := *h
	c.LatLngs = make([]models.LatLng, len(h.LatLngs))
	copy(c.LatLngs, h.LatLngs)
	c.AdditionalData = h.AdditionalData.Clone()
	return c
}

func (h *Hedge) updateLength() {
	h.Length = geodesic.LengthOf(h.LatLngs)
}

// Collection is the ordered list of hedges of one type. Position defines
// identifiers: the i-th hedge always holds Identifier(type, i).
type Collection struct {
	typ    models.HedgeType
	hedges []*Hedge
}

func newCollection(t models.HedgeType) *Collection {
	return &Collection{typ: t}
}

func (c *Collection) add(h *Hedge) {
	h.ID = Identifier(c.typ, len(c.hedges))
	c.hedges = append(c.hedges, h)
}

func (c *Collection) indexOf(id string) int {
	for i, h := range c.hedges {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// remove deletes the hedge at index and relabels the survivors.
// It returns the old -> new identifiers of relabeled hedges.
func (c *Collection) remove(index int) map[string]string {
	c.hedges = append(c.hedges[:index], c.hedges[index+1:]...)

	renamed := make(map[string]string)
	for i, h := range c.hedges {
		id := Identifier(c.typ, i)
		if h.ID != id {
			renamed[h.ID] = id
			h.ID = id
		}
	}
	return renamed
}

func (c *Collection) view() CollectionView {
	v := CollectionView{Type: c.typ, Hedges: make([]Hedge, 0, len(c.hedges))}
	for _, h := range c.hedges {
		v.Hedges = append(v.Hedges, h.clone())
		v.TotalLength += h.Length
	}
	v.Count = len(c.hedges)
	return v
}

// CollectionView is a read-only snapshot of a collection.
type CollectionView struct {
	Type        models.HedgeType
	Hedges      []Hedge
	TotalLength float64
	Count       int
}

// IDs returns the identifiers in collection order.
func (v CollectionView) IDs() []string {
	ids := make([]string, len(v.Hedges))
	for i, h := range v.Hedges {
		ids[i] = h.ID
	}
	return ids
}

// Records returns the transport form of every hedge in order.
func (v CollectionView) Records() []models.HedgeRecord {
	records := make([]models.HedgeRecord, len(v.Hedges))
	for i, h := range v.Hedges {
		records[i] = h.Record()
	}
	return records
}
