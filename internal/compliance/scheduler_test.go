package compliance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

type fakeEvaluator struct {
	mu      sync.Mutex
	calls   [][]models.HedgeRecord
	respond func(call int) (models.Evaluation, error)
}

func (f *fakeEvaluator) EvaluateConditions(ctx context.Context, hedges []models.HedgeRecord) (models.Evaluation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, hedges)
	n := len(f.calls)
	f.mu.Unlock()

	if f.respond == nil {
		return models.Evaluation{}, nil
	}
	return f.respond(n)
}

func (f *fakeEvaluator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEvaluator) call(i int) []models.HedgeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func segment(lng float64) []models.LatLng {
	return []models.LatLng{{Lat: 45, Lng: lng}, {Lat: 45, Lng: lng + 0.001}}
}

func addPlanted(t *testing.T, s *hedge.Store, lng float64) hedge.Hedge {
	t.Helper()
	h, err := s.Add(models.HedgeToPlant, hedge.AddOptions{LatLngs: segment(lng), Completed: true, Editable: true})
	require.NoError(t, err)
	return h
}

func newScheduler(t *testing.T, s *hedge.Store, ev Evaluator, onUpdate func(Result)) *Scheduler {
	t.Helper()
	sch := NewScheduler(s, ev, Options{Debounce: testDebounce, OnUpdate: onUpdate})
	t.Cleanup(sch.Close)
	return sch
}

func TestScheduler_DebouncesRapidEdits(t *testing.T) {
	s := hedge.NewStore()
	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, nil)

	for i := 0; i < 5; i++ {
		h := addPlanted(t, s, float64(i))
		_, err := s.SetAttributes(h.ID, models.AdditionalData{models.AttrTypeHaie: models.HaieMixte})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(5 * testDebounce)
	assert.Equal(t, 1, ev.count())

	payload := ev.call(0)
	require.Len(t, payload, 5)
	assert.Equal(t, "P5", payload[4].ID)
	assert.Equal(t, models.HaieMixte, payload[4].AdditionalData[models.AttrTypeHaie])
}

func TestScheduler_PayloadIsFullDataset(t *testing.T) {
	s := hedge.NewStore()
	_, err := s.Add(models.HedgeToRemove, hedge.AddOptions{LatLngs: segment(10), Completed: true})
	require.NoError(t, err)

	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, nil)
	addPlanted(t, s, 0)

	require.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)
	payload := ev.call(0)
	require.Len(t, payload, 2)
	assert.Equal(t, "P1", payload[0].ID)
	assert.Equal(t, "D1", payload[1].ID)
}

func TestScheduler_SuppressedWhileDrawing(t *testing.T) {
	s := hedge.NewStore()
	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, nil)

	h, err := s.Add(models.HedgeToPlant, hedge.AddOptions{Editable: true})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.AppendVertex(h.ID, models.LatLng{Lat: 45, Lng: float64(i) / 1000})
		require.NoError(t, err)
	}
	time.Sleep(5 * testDebounce)
	assert.Equal(t, 0, ev.count())

	_, err = s.Complete(h.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_IgnoresIrrelevantChanges(t *testing.T) {
	s := hedge.NewStore()
	h := addPlanted(t, s, 0)

	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, nil)

	_, err := s.SetHovered(h.ID, true)
	require.NoError(t, err)
	_, err = s.Add(models.HedgeToRemove, hedge.AddOptions{LatLngs: segment(3), Completed: true})
	require.NoError(t, err)

	// A drawing started then cancelled leaves the planting collection as it was.
	d, err := s.Add(models.HedgeToPlant, hedge.AddOptions{})
	require.NoError(t, err)
	_, err = s.Remove(d.ID)
	require.NoError(t, err)

	time.Sleep(5 * testDebounce)
	assert.Equal(t, 0, ev.count())
}

func TestScheduler_EditBeforeCancelledDrawingIsEvaluated(t *testing.T) {
	s := hedge.NewStore()
	h := addPlanted(t, s, 0)

	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, nil)

	_, err := s.SetAttributes(h.ID, models.AdditionalData{models.AttrTypeHaie: models.HaieMixte})
	require.NoError(t, err)

	// The drawing starts before the debounce fires and is then cancelled.
	d, err := s.Add(models.HedgeToPlant, hedge.AddOptions{Editable: true})
	require.NoError(t, err)
	_, err = s.Remove(d.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(5 * testDebounce)
	assert.Equal(t, 1, ev.count())

	payload := ev.call(0)
	require.Len(t, payload, 1)
	assert.Equal(t, models.HaieMixte, payload[0].AdditionalData[models.AttrTypeHaie])
}

func TestScheduler_DispatchDuringDrawingIsDeferred(t *testing.T) {
	s := hedge.NewStore()
	ev := &fakeEvaluator{}
	sch := newScheduler(t, s, ev, nil)

	d, err := s.Add(models.HedgeToPlant, hedge.AddOptions{Editable: true})
	require.NoError(t, err)
	sch.Trigger()
	time.Sleep(5 * testDebounce)
	assert.Equal(t, 0, ev.count())

	_, err = s.Remove(d.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_MergesFieldByField(t *testing.T) {
	s := hedge.NewStore()
	ev := &fakeEvaluator{respond: func(call int) (models.Evaluation, error) {
		if call == 1 {
			return models.Evaluation{
				"ratio":   {"result": true, "minimum": 120.0},
				"quality": {"result": true},
			}, nil
		}
		return models.Evaluation{"ratio": {"result": false}}, nil
	}}
	sch := newScheduler(t, s, ev, nil)

	addPlanted(t, s, 0)
	require.Eventually(t, func() bool { return sch.Result().Seq == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, sch.Result().Evaluation.Adequate())

	addPlanted(t, s, 1)
	require.Eventually(t, func() bool { return sch.Result().Seq == 2 }, time.Second, 5*time.Millisecond)

	r := sch.Result()
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, models.Condition{"result": false, "minimum": 120.0}, r.Evaluation["ratio"])
	assert.Equal(t, models.Condition{"result": true}, r.Evaluation["quality"])
	assert.Equal(t, []string{"ratio"}, r.Evaluation.Unfulfilled())
}

func TestScheduler_FailureKeepsPreviousEvaluation(t *testing.T) {
	s := hedge.NewStore()
	boom := errors.New("evaluator down")
	ev := &fakeEvaluator{respond: func(call int) (models.Evaluation, error) {
		if call == 1 {
			return models.Evaluation{"ratio": {"result": true}}, nil
		}
		return nil, boom
	}}
	sch := newScheduler(t, s, ev, nil)

	addPlanted(t, s, 0)
	require.Eventually(t, func() bool { return sch.Result().Seq == 1 }, time.Second, 5*time.Millisecond)

	addPlanted(t, s, 1)
	require.Eventually(t, func() bool { return sch.Result().Err != nil }, time.Second, 5*time.Millisecond)

	r := sch.Result()
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, uint64(1), r.Seq)
	assert.Equal(t, models.Condition{"result": true}, r.Evaluation["ratio"])
}

func TestScheduler_DiscardsStaleResponses(t *testing.T) {
	s := hedge.NewStore()
	release := make(chan struct{})
	ev := &fakeEvaluator{respond: func(call int) (models.Evaluation, error) {
		if call == 1 {
			<-release
			return models.Evaluation{"ratio": {"result": false}}, nil
		}
		return models.Evaluation{"ratio": {"result": true}}, nil
	}}
	sch := newScheduler(t, s, ev, nil)

	addPlanted(t, s, 0)
	require.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)

	addPlanted(t, s, 1)
	require.Eventually(t, func() bool { return sch.Result().Seq == 2 }, time.Second, 5*time.Millisecond)

	close(release)
	sch.Close()

	r := sch.Result()
	assert.Equal(t, uint64(2), r.Seq)
	assert.Equal(t, models.Condition{"result": true}, r.Evaluation["ratio"])
}

func TestScheduler_StatusTransitions(t *testing.T) {
	s := hedge.NewStore()
	var mu sync.Mutex
	var statuses []Status
	ev := &fakeEvaluator{}
	newScheduler(t, s, ev, func(r Result) {
		mu.Lock()
		statuses = append(statuses, r.Status)
		mu.Unlock()
	})

	addPlanted(t, s, 0)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []Status{StatusLoading, StatusOK}, statuses)
	mu.Unlock()
}

func TestScheduler_TriggerAndClose(t *testing.T) {
	s := hedge.NewStore()
	addPlanted(t, s, 0)
	ev := &fakeEvaluator{}
	sch := NewScheduler(s, ev, Options{Debounce: testDebounce})

	sch.Trigger()
	require.Eventually(t, func() bool { return ev.count() == 1 }, time.Second, 5*time.Millisecond)

	sch.Trigger()
	sch.Close()
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, ev.count())

	// Changes after Close are ignored.
	addPlanted(t, s, 1)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, ev.count())
	sch.Close()
}
