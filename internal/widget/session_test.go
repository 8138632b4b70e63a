package widget

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MTES-MCT/envergo/internal/config"
	"github.com/MTES-MCT/envergo/internal/drawing"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	origin          = "https://haies.beta.gouv.fr"
	metersPerDegree = 111319.49079327357
)

type fakeClient struct {
	mu          sync.Mutex
	evaluations int
	saves       [][]models.HedgeRecord
	saveErr     error
	saveGate    chan struct{}
}

func (f *fakeClient) EvaluateConditions(ctx context.Context, hedges []models.HedgeRecord) (models.Evaluation, error) {
	f.mu.Lock()
	f.evaluations++
	f.mu.Unlock()
	return models.Evaluation{"ratio": {"result": true}}, nil
}

func (f *fakeClient) SaveHedges(ctx context.Context, hedges []models.HedgeRecord) (*models.SaveResponse, error) {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, hedges)
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	raw := json.RawMessage(`{"input_id":"5a1f","hedges_to_plant":0,"length_to_plant":0,"hedges_to_remove":1,"length_to_remove":100,"lineaire_detruit_pac":100}`)
	return &models.SaveResponse{InputID: "5a1f", HedgesToRemove: 1, LengthToRemove: 100, Raw: raw}, nil
}

func (f *fakeClient) FetchHedges(ctx context.Context, inputID string) ([]models.HedgeRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) evaluationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluations
}

func (f *fakeClient) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) Post(_ context.Context, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, string(payload))
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func testConfig(mode models.Mode) *config.Config {
	cfg := config.Default()
	cfg.Mode = string(mode)
	cfg.Origin = origin
	cfg.ConditionsURL = origin + "/haies/conditions/"
	cfg.SaveURL = origin + "/haies/saisie/"
	cfg.DebounceMS = 10
	cfg.RequestTimeoutSeconds = 1
	return cfg
}

func newSession(t *testing.T, mode models.Mode, saved []models.HedgeRecord) (*Session, *fakeClient, *recorder) {
	t.Helper()
	client := &fakeClient{}
	rec := &recorder{}
	if saved == nil {
		saved = []models.HedgeRecord{}
	}
	s, err := New(testConfig(mode), Deps{Client: client, Poster: rec, Saved: saved})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, client, rec
}

func removalAttributes() models.AdditionalData {
	return models.AdditionalData{
		models.AttrTypeHaie:           models.HaieAlignement,
		models.AttrSurParcellePac:     true,
		models.AttrVieilArbre:         false,
		models.AttrProximiteMare:      false,
		models.AttrProximitePointEau:  false,
		models.AttrConnexionBoisement: true,
	}
}

func drawRemoval(t *testing.T, s *Session) {
	t.Helper()
	_, err := s.StartDrawing(models.HedgeToRemove)
	require.NoError(t, err)
	_, err = s.AddVertex(models.LatLng{Lat: 0, Lng: 0})
	require.NoError(t, err)
	_, err = s.AddVertex(models.LatLng{Lat: 0, Lng: 100 / metersPerDegree})
	require.NoError(t, err)
	_, err = s.FinishDrawing()
	require.NoError(t, err)
}

func TestSession_RemovalEndToEnd(t *testing.T) {
	s, client, rec := newSession(t, models.ModeRemoval, nil)

	drawRemoval(t, s)
	v := s.View()
	assert.InDelta(t, 100.0, v.ToRemove.TotalLength, 1e-6)
	assert.Equal(t, []string{"D1"}, v.InvalidHedges)

	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)
	assert.Empty(t, s.View().InvalidHedges)

	resp, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5a1f", resp.InputID)

	require.Equal(t, 1, client.saveCount())
	saved := client.saves[0]
	require.Len(t, saved, 1)
	assert.Equal(t, "D1", saved[0].ID)
	assert.Equal(t, models.HedgeToRemove, saved[0].Type)
	assert.Len(t, saved[0].LatLngs, 2)

	// The save response is forwarded as received.
	messages := rec.all()
	require.Len(t, messages, 1)
	assert.Equal(t, string(resp.Raw), messages[0])

	// Removal sessions never evaluate conditions.
	assert.Equal(t, 0, client.evaluationCount())
	assert.Equal(t, 0.0, s.View().CompensationRate)
}

func TestSession_SaveBlockedByInvalidHedges(t *testing.T) {
	s, client, rec := newSession(t, models.ModeRemoval, nil)
	drawRemoval(t, s)
	drawRemoval(t, s)
	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)

	_, err = s.Save(context.Background())
	var invalid *validation.InvalidHedgesError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"D2"}, invalid.IDs)
	assert.Equal(t, 0, client.saveCount())
	assert.Empty(t, rec.all())
}

func TestSession_SaveFailureReenablesSave(t *testing.T) {
	s, client, rec := newSession(t, models.ModeRemoval, nil)
	drawRemoval(t, s)
	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)

	client.saveErr = errors.New("connection refused")
	_, err = s.Save(context.Background())
	assert.Error(t, err)
	assert.False(t, s.View().Saving)
	assert.Empty(t, rec.all())

	client.saveErr = nil
	_, err = s.Save(context.Background())
	assert.NoError(t, err)
	assert.Len(t, rec.all(), 1)
}

func TestSession_SaveInProgress(t *testing.T) {
	s, client, _ := newSession(t, models.ModeRemoval, nil)
	client.saveGate = make(chan struct{})
	drawRemoval(t, s)
	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.View().Saving }, time.Second, time.Millisecond)

	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInProgress)

	close(client.saveGate)
	assert.NoError(t, <-done)
	assert.Equal(t, 1, client.saveCount())
}

func TestSession_CancelRefusedWhileSaving(t *testing.T) {
	s, client, rec := newSession(t, models.ModeRemoval, nil)
	client.saveGate = make(chan struct{})
	drawRemoval(t, s)
	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.View().Saving }, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.Cancel(context.Background(), true), ErrSaveInProgress)
	assert.False(t, s.View().Closed)

	close(client.saveGate)
	require.NoError(t, <-done)
	messages := rec.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], `"input_id":"5a1f"`)
}

func TestSession_HostCancelDuringSaveDropsCompletion(t *testing.T) {
	s, client, rec := newSession(t, models.ModeRemoval, nil)
	client.saveGate = make(chan struct{})
	drawRemoval(t, s)
	_, err := s.SubmitAttributes("D1", removalAttributes())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.View().Saving }, time.Second, time.Millisecond)

	require.True(t, s.HandleHostMessage(origin, []byte(`{"action":"cancel"}`)))
	close(client.saveGate)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, 1, client.saveCount())
	assert.Empty(t, rec.all())
}

func TestSession_CancelRequiresConfirmation(t *testing.T) {
	s, _, rec := newSession(t, models.ModeRemoval, nil)
	drawRemoval(t, s)

	err := s.Cancel(context.Background(), false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, rec.all())
	assert.False(t, s.View().Closed)

	require.NoError(t, s.Cancel(context.Background(), true))
	messages := rec.all()
	require.Len(t, messages, 1)
	assert.JSONEq(t, `{"action":"cancel"}`, messages[0])
	assert.NotContains(t, messages[0], "input_id")

	assert.True(t, s.View().Closed)
	_, err = s.StartDrawing(models.HedgeToRemove)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_CancelEmptyNeedsNoConfirmation(t *testing.T) {
	s, _, rec := newSession(t, models.ModePlantation, nil)
	require.NoError(t, s.Cancel(context.Background(), false))
	assert.Equal(t, []string{`{"action":"cancel"}`}, rec.all())
}

func TestSession_HostMessages(t *testing.T) {
	s, _, rec := newSession(t, models.ModePlantation, nil)

	assert.False(t, s.HandleHostMessage("https://evil.example.com", []byte(`{"action":"cancel"}`)))
	assert.False(t, s.View().Closed)

	assert.False(t, s.HandleHostMessage(origin, []byte(`{"action":"noop"}`)))
	assert.False(t, s.View().Closed)

	assert.True(t, s.HandleHostMessage(origin+"/other/page", []byte(`{"action":"cancel"}`)))
	assert.True(t, s.View().Closed)
	assert.Empty(t, rec.all(), "a host cancel is not echoed")
}

func TestSession_RestoreFreezesOtherType(t *testing.T) {
	saved := []models.HedgeRecord{
		{ID: "D1", Type: models.HedgeToRemove, LatLngs: []models.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.002}}, AdditionalData: removalAttributes()},
		{ID: "P1", Type: models.HedgeToPlant, LatLngs: []models.LatLng{{Lat: 1, Lng: 0}, {Lat: 1, Lng: 0.001}}, AdditionalData: models.AdditionalData{}},
	}
	s, client, _ := newSession(t, models.ModePlantation, saved)

	v := s.View()
	assert.Equal(t, []string{"P1"}, v.ToPlant.IDs())
	assert.Equal(t, []string{"D1"}, v.ToRemove.IDs())
	assert.Equal(t, []string{"P1"}, v.InvalidHedges)
	assert.InDelta(t, 50.0, v.CompensationRate, 0.1)

	_, err := s.Remove("D1")
	assert.ErrorIs(t, err, drawing.ErrReadOnly)
	_, err = s.MoveVertex("P1", 0, models.LatLng{Lat: 1, Lng: -0.001})
	assert.NoError(t, err)

	// Restored planting hedges get a first evaluation.
	assert.Eventually(t, func() bool { return client.evaluationCount() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		r := s.View().Compliance
		return r.Seq > 0 && r.Evaluation.Adequate()
	}, time.Second, 5*time.Millisecond)

	b, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, -0.001, b.Min[0])
	assert.Equal(t, 1.0, b.Max[1])
}

func TestSession_ReadOnly(t *testing.T) {
	saved := []models.HedgeRecord{
		{Type: models.HedgeToPlant, LatLngs: []models.LatLng{{Lat: 1, Lng: 0}, {Lat: 1, Lng: 0.001}}},
	}
	s, client, _ := newSession(t, models.ModeReadOnly, saved)

	_, err := s.StartDrawing(models.HedgeToPlant)
	assert.ErrorIs(t, err, drawing.ErrReadOnly)
	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, drawing.ErrReadOnly)

	form, err := s.EditForm("P1")
	require.NoError(t, err)
	assert.True(t, form.ReadOnly)

	_, err = s.Hover("P1", true)
	assert.NoError(t, err)
	assert.Equal(t, 0, client.evaluationCount())
}

func TestSession_InvalidSavedTypeFails(t *testing.T) {
	_, err := New(testConfig(models.ModePlantation), Deps{
		Saved: []models.HedgeRecord{{Type: "TO_PRUNE"}},
	})
	assert.Error(t, err)
}

func TestSession_ApplyScript(t *testing.T) {
	s, client, rec := newSession(t, models.ModePlantation, nil)

	script := `
# one planted hedge, fully described
{"action":"start","type":"TO_PLANT"}
{"action":"vertex","point":{"lat":45,"lng":3}}
{"action":"vertex","point":{"lat":45,"lng":3.001}}
{"action":"finish"}
{"action":"attributes","id":"P1","data":{"typeHaie":"mixte","sousLigneElectrique":false,"proximiteVoirie":false,"proximiteMare":true,"proximitePointEau":false,"connexionBoisement":true}}
{"action":"hover","id":"P1","hovered":true}
{"action":"wait","ms":50}
{"action":"save"}
`
	events, err := ReadEvents(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, events, 8)

	for _, e := range events {
		require.NoError(t, s.Apply(context.Background(), e), e.Action)
	}

	assert.Equal(t, 1, client.saveCount())
	assert.Len(t, rec.all(), 1)
	assert.Eventually(t, func() bool { return client.evaluationCount() >= 1 }, time.Second, 5*time.Millisecond)

	assert.Error(t, s.Apply(context.Background(), Event{Action: "fly"}))
	assert.Error(t, s.Apply(context.Background(), Event{Action: ActionVertex}))
}

func TestReadEvents_Malformed(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("{\"action\":\"start\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}
