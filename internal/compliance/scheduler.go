// Package compliance keeps the regulatory evaluation of a session up to date.
//
// Every store change is compared to the last evaluated state of the planting
// collection. Real changes arm a debounce timer; when edits settle, the whole
// dataset is sent to the evaluator and the response is merged into the
// known evaluation. Responses older than the latest request are dropped.
package compliance

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
)

// DefaultDebounce is the quiet period before an evaluation is requested.
const DefaultDebounce = 500 * time.Millisecond

// Status of the evaluation shown to the user.
type Status string

const (
	StatusOK      Status = "ok"
	StatusLoading Status = "loading"
)

// Evaluator computes the regulatory conditions of a dataset.
type Evaluator interface {
	EvaluateConditions(ctx context.Context, hedges []models.HedgeRecord) (models.Evaluation, error)
}

// Result is the evaluation known to the session.
type Result struct {
	Evaluation models.Evaluation
	Status     Status
	// Seq is the sequence number of the request that produced Evaluation.
	Seq uint64
	// Err is the error of the latest request, if it failed. Evaluation is
	// then the previous, stale, value.
	Err error
}

// Options configure a Scheduler.
type Options struct {
	Debounce time.Duration
	// Timeout bounds each evaluation request. Zero means no timeout.
	Timeout  time.Duration
	Logger   *slog.Logger
	OnUpdate func(Result)
}

// Scheduler debounces store changes into evaluation requests.
type Scheduler struct {
	store     *hedge.Store
	evaluator Evaluator
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	timer       *time.Timer
	snapshot    string
	pending     bool
	seq         uint64
	appliedSeq  uint64
	evaluation  models.Evaluation
	status      Status
	lastErr     error
	closed      bool
	unsubscribe func()
}

// NewScheduler subscribes to store changes. The current planting collection
// is taken as already evaluated; call Trigger to request a first evaluation.
func NewScheduler(store *hedge.Store, evaluator Evaluator, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:      store,
		evaluator:  evaluator,
		opts:       opts,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		evaluation: models.Evaluation{},
		status:     StatusOK,
	}
	s.snapshot = s.takeSnapshot()
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// Result returns a copy of the current evaluation.
func (s *Scheduler) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

func (s *Scheduler) resultLocked() Result {
	return Result{
		Evaluation: s.evaluation.Clone(),
		Status:     s.status,
		Seq:        s.appliedSeq,
		Err:        s.lastErr,
	}
}

// Trigger arms the debounce timer even if nothing changed.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.armLocked()
}

// Close stops the timer, cancels in-flight requests and waits for them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) onChange(c hedge.Change) {
	if c.Type != models.HedgeToPlant {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.drawingInProgress() {
		// A timer stopped before firing still owes an evaluation once
		// the drawing is finished or cancelled.
		if s.timer != nil && s.timer.Stop() {
			s.pending = true
		}
		return
	}

	snapshot := s.takeSnapshot()
	if snapshot == s.snapshot && !s.pending {
		return
	}
	s.snapshot = snapshot
	s.pending = false
	s.armLocked()
}

func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.Debounce, s.dispatch)
}

// drawingInProgress reports whether a planting hedge is still being drawn.
func (s *Scheduler) drawingInProgress() bool {
	for _, h := range s.store.Collection(models.HedgeToPlant).Hedges {
		if !h.DrawingCompleted {
			return true
		}
	}
	return false
}

type snapshotEntry struct {
	ID     string                `json:"id"`
	Length float64               `json:"length"`
	Data   models.AdditionalData `json:"data"`
}

// takeSnapshot returns a fingerprint of the completed planting hedges.
func (s *Scheduler) takeSnapshot() string {
	view := s.store.Collection(models.HedgeToPlant)
	entries := make([]snapshotEntry, 0, len(view.Hedges))
	for _, h := range view.Hedges {
		if !h.DrawingCompleted {
			continue
		}
		entries = append(entries, snapshotEntry{
			ID:     h.ID,
			Length: math.Round(h.Length*100) / 100,
			Data:   h.AdditionalData,
		})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *Scheduler) dispatch() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.drawingInProgress() {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.status = StatusLoading
	s.wg.Add(1)
	loading := s.resultLocked()
	s.mu.Unlock()

	defer s.wg.Done()
	s.publish(loading)

	records := hedge.Serialize(s.store)
	ctx := s.ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	s.logger.Debug("evaluating conditions", "seq", seq, "hedges", len(records))
	eval, err := s.evaluator.EvaluateConditions(ctx, records)

	s.mu.Lock()
	if latest := s.seq; seq != latest {
		s.mu.Unlock()
		s.logger.Debug("discarding stale evaluation", "seq", seq, "latest", latest)
		return
	}
	s.status = StatusOK
	if err != nil {
		s.lastErr = err
		s.logger.Warn("evaluate conditions failed", "seq", seq, "error", err)
	} else {
		s.lastErr = nil
		s.evaluation.Merge(eval)
		s.appliedSeq = seq
	}
	result := s.resultLocked()
	s.mu.Unlock()

	s.publish(result)
}

func (s *Scheduler) publish(r Result) {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(r)
	}
}
