package hedge

import (
	"encoding/json"
	"testing"

	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.HedgeRecord {
	return []models.HedgeRecord{
		{
			ID:      "D1",
			Type:    models.HedgeToRemove,
			LatLngs: line(43.6861, 3.5911, 43.6865, 3.5920),
			AdditionalData: models.AdditionalData{
				models.AttrTypeHaie:       models.HaieArbustive,
				models.AttrSurParcellePac: true,
				models.AttrVieilArbre:     false,
			},
		},
		{
			ID:      "P1",
			Type:    models.HedgeToPlant,
			LatLngs: line(43.6870, 3.5900, 43.6875, 3.5912, 43.6880, 3.5915),
			AdditionalData: models.AdditionalData{
				models.AttrTypeHaie:            models.HaieMixte,
				models.AttrSousLigneElectrique: false,
			},
		},
		{
			ID:             "D2",
			Type:           models.HedgeToRemove,
			LatLngs:        line(43.6890, 3.5930, 43.6891, 3.5940),
			AdditionalData: models.AdditionalData{},
		},
	}
}

func TestSerialize_PlantThenRemove(t *testing.T) {
	s, err := FromRecords(sampleRecords())
	require.NoError(t, err)

	records := Serialize(s)
	require.Len(t, records, 3)
	assert.Equal(t, "P1", records[0].ID)
	assert.Equal(t, "D1", records[1].ID)
	assert.Equal(t, "D2", records[2].ID)
	assert.Equal(t, models.HedgeToPlant, records[0].Type)
	assert.Len(t, records[0].LatLngs, 3)
}

func TestSerializeRestoreSerialize_Idempotent(t *testing.T) {
	s, err := FromRecords(sampleRecords())
	require.NoError(t, err)
	first := Serialize(s)

	restored := NewStore()
	require.NoError(t, Restore(restored, first, nil))
	second := Serialize(restored)

	assert.Equal(t, first, second)

	// Identical through the JSON transport form as well.
	data, err := json.Marshal(first)
	require.NoError(t, err)
	var decoded []models.HedgeRecord
	require.NoError(t, json.Unmarshal(data, &decoded))

	again := NewStore()
	require.NoError(t, Restore(again, decoded, nil))
	third, err := json.Marshal(Serialize(again))
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(third))
}

func TestRestore_IgnoresRecordIDs(t *testing.T) {
	records := []models.HedgeRecord{
		{ID: "D7", Type: models.HedgeToRemove, LatLngs: line(0, 0, 0, 0.001)},
		{ID: "D3", Type: models.HedgeToRemove, LatLngs: line(0, 1, 0, 1.001)},
	}
	s, err := FromRecords(records)
	require.NoError(t, err)

	assert.Equal(t, []string{"D1", "D2"}, s.Collection(models.HedgeToRemove).IDs())
	h, _ := s.Get("D2")
	assert.Equal(t, 1.0, h.LatLngs[0].Lng)
}

func TestRestore_MarksCompletedAndEditable(t *testing.T) {
	s := NewStore()
	err := Restore(s, sampleRecords(), func(t models.HedgeType) bool { return t == models.HedgeToPlant })
	require.NoError(t, err)

	p1, ok := s.Get("P1")
	require.True(t, ok)
	assert.True(t, p1.DrawingCompleted)
	assert.True(t, p1.Editable)
	assert.Greater(t, p1.Length, 0.0)

	d1, ok := s.Get("D1")
	require.True(t, ok)
	assert.True(t, d1.DrawingCompleted)
	assert.False(t, d1.Editable)
}

func TestRestore_UnknownTypeAddsNothing(t *testing.T) {
	records := sampleRecords()
	records = append(records, models.HedgeRecord{ID: "X1", Type: "TO_PRUNE"})

	s := NewStore()
	err := Restore(s, records, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestRestore_NilAdditionalData(t *testing.T) {
	s, err := FromRecords([]models.HedgeRecord{{Type: models.HedgeToPlant, LatLngs: line(0, 0, 0, 1)}})
	require.NoError(t, err)

	records := Serialize(s)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].AdditionalData)
}
