package hedge

import (
	"fmt"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Serialize returns every hedge as transport records: hedges to plant first,
// then hedges to remove, each collection in order.
func Serialize(s *Store) []models.HedgeRecord {
	records := make([]models.HedgeRecord, 0, s.Count())
	for _, t := range models.HedgeTypes {
		records = append(records, s.Collection(t).Records()...)
	}
	return records
}

// Restore replays records through Store.Add as completed hedges, in order.
// Record identifiers are ignored: replaying in creation order yields the
// same identifiers. editable decides whether each type may be edited.
// Nothing is added if any record has an unknown type.
func Restore(s *Store, records []models.HedgeRecord, editable func(models.HedgeType) bool) error {
	for i, r := range records {
		if !r.Type.Valid() {
			return fmt.Errorf("restore hedge %d (%s): unknown hedge type %q", i, r.ID, r.Type)
		}
	}

	for _, r := range records {
		opts := AddOptions{
			LatLngs:        r.LatLngs,
			AdditionalData: r.AdditionalData,
			Completed:      true,
			Editable:       editable != nil && editable(r.Type),
		}
		if _, err := s.Add(r.Type, opts); err != nil {
			return err
		}
	}
	return nil
}

// FromRecords builds a store holding records, all read-only.
func FromRecords(records []models.HedgeRecord) (*Store, error) {
	s := NewStore()
	if err := Restore(s, records, nil); err != nil {
		return nil, err
	}
	return s, nil
}
