// Package widget assembles a hedge input session: the hedge store, the
// drawing controller, validation, the compliance scheduler and the host
// channel, all built from one configuration value.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MTES-MCT/envergo/internal/compliance"
	"github.com/MTES-MCT/envergo/internal/config"
	"github.com/MTES-MCT/envergo/internal/drawing"
	"github.com/MTES-MCT/envergo/internal/embed"
	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/remote"
	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/paulmach/orb"
)

var (
	ErrClosed               = errors.New("session closed")
	ErrSaveInProgress       = errors.New("a save is already in progress")
	ErrConfirmationRequired = errors.New("cancelling discards the drawn hedges: confirmation required")
)

// Deps are the collaborators of a session.
type Deps struct {
	// Client evaluates conditions and saves datasets. Without a client the
	// session neither evaluates nor saves.
	Client remote.Client
	// Poster delivers host messages. Nil drops them.
	Poster embed.Poster
	Logger *slog.Logger
	// Saved is restored before anything else. When nil, the configured
	// hedges_file is read.
	Saved []models.HedgeRecord
	// OnCompliance is called on every compliance status change.
	OnCompliance func(compliance.Result)
}

// Session is one hedge input session. Methods are serialized, as events
// from a single UI loop would be.
type Session struct {
	cfg       config.Config
	mode      models.Mode
	logger    *slog.Logger
	store     *hedge.Store
	validator *validation.Validator
	control   *drawing.Controller
	scheduler *compliance.Scheduler
	channel   *embed.Channel
	client    remote.Client

	mu     sync.Mutex
	saving bool
	closed bool
}

// New builds a session from cfg. The configuration is copied and never
// read from cfg again.
func New(cfg *config.Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	overrides, err := cfg.SchemaOverrides()
	if err != nil {
		return nil, err
	}
	validator, err := validation.NewValidator(overrides...)
	if err != nil {
		return nil, err
	}

	channel, err := embed.NewChannel(cfg.Origin, deps.Poster, logger)
	if err != nil {
		return nil, err
	}

	saved := deps.Saved
	if saved == nil {
		if saved, err = cfg.LoadHedges(); err != nil {
			return nil, err
		}
	}

	mode := cfg.ParsedMode()
	store := hedge.NewStore()
	if err := hedge.Restore(store, saved, mode.CanEdit); err != nil {
		return nil, fmt.Errorf("restore saved hedges: %w", err)
	}

	s := &Session{
		cfg:       *cfg,
		mode:      mode,
		logger:    logger.With("mode", string(mode)),
		store:     store,
		validator: validator,
		control:   drawing.NewController(store, validator, mode, logger),
		channel:   channel,
		client:    deps.Client,
	}

	if mode == models.ModePlantation && deps.Client != nil && cfg.ConditionsURL != "" {
		s.scheduler = compliance.NewScheduler(store, deps.Client, compliance.Options{
			Debounce: cfg.Debounce(),
			Timeout:  cfg.RequestTimeout(),
			Logger:   logger,
			OnUpdate: deps.OnCompliance,
		})
		if store.Collection(models.HedgeToPlant).Count > 0 {
			s.scheduler.Trigger()
		}
	}

	s.logger.Info("session started", "restored", store.Count())
	return s, nil
}

// Store returns the session hedge store, for read access and subscriptions.
func (s *Session) Store() *hedge.Store {
	return s.store
}

// Mode returns the session mode.
func (s *Session) Mode() models.Mode {
	return s.mode
}

// View is a snapshot of everything the widget displays.
type View struct {
	Mode                 models.Mode
	ToPlant              hedge.CollectionView
	ToRemove             hedge.CollectionView
	CompensationRate     float64
	InvalidHedges        []string
	Compliance           compliance.Result
	MinimumLengthToPlant float64
	Drawing              bool
	Saving               bool
	Closed               bool
}

// View returns the current state of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Mode:                 s.mode,
		ToPlant:              s.store.Collection(models.HedgeToPlant),
		ToRemove:             s.store.Collection(models.HedgeToRemove),
		MinimumLengthToPlant: s.cfg.MinimumLengthToPlant,
		Drawing:              s.control.State() == drawing.StateDrawing,
		Saving:               s.saving,
		Closed:               s.closed,
		Compliance:           compliance.Result{Status: compliance.StatusOK, Evaluation: models.Evaluation{}},
	}
	v.CompensationRate = hedge.CompensationRate(v.ToPlant.TotalLength, v.ToRemove.TotalLength)
	if s.mode.ValidatedType() == models.HedgeToRemove {
		v.InvalidHedges = s.validator.InvalidEntities(v.ToRemove)
	} else {
		v.InvalidHedges = s.validator.InvalidEntities(v.ToPlant)
	}
	if s.scheduler != nil {
		v.Compliance = s.scheduler.Result()
	}
	return v
}

// Bounds returns the bounding box of every hedge, to zoom out on them.
func (s *Session) Bounds() (orb.Bound, bool) {
	return hedge.Bound(s.store)
}

// Records returns the serialized dataset.
func (s *Session) Records() []models.HedgeRecord {
	return hedge.Serialize(s.store)
}

// locked runs fn under the session lock if the session is open.
func (s *Session) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// StartDrawing starts drawing a new hedge of type t.
func (s *Session) StartDrawing(t models.HedgeType) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.StartDrawing(t)
		return err
	})
	return
}

// AddVertex appends a vertex to the hedge being drawn.
func (s *Session) AddVertex(p models.LatLng) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.AddVertex(p)
		return err
	})
	return
}

// MoveVertex moves a vertex at the end of a drag.
func (s *Session) MoveVertex(id string, index int, p models.LatLng) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.MoveVertex(id, index, p)
		return err
	})
	return
}

// DeleteVertex removes a vertex.
func (s *Session) DeleteVertex(id string, index int) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.DeleteVertex(id, index)
		return err
	})
	return
}

// FinishDrawing completes the hedge being drawn and returns its form.
func (s *Session) FinishDrawing() (f drawing.Form, err error) {
	err = s.locked(func() error {
		f, err = s.control.FinishDrawing()
		return err
	})
	return
}

// CancelDrawing discards the hedge being drawn.
func (s *Session) CancelDrawing() error {
	return s.locked(s.control.CancelDrawing)
}

// EditForm returns the attribute form of a hedge.
func (s *Session) EditForm(id string) (f drawing.Form, err error) {
	err = s.locked(func() error {
		f, err = s.control.EditForm(id)
		return err
	})
	return
}

// SubmitAttributes stores the attributes of a hedge.
func (s *Session) SubmitAttributes(id string, data models.AdditionalData) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.SubmitAttributes(id, data)
		return err
	})
	return
}

// Remove deletes a hedge and returns the relabeled identifiers.
func (s *Session) Remove(id string) (renamed map[string]string, err error) {
	err = s.locked(func() error {
		renamed, err = s.control.Remove(id)
		return err
	})
	return
}

// Hover sets the hover flag of a hedge.
func (s *Session) Hover(id string, hovered bool) (h hedge.Hedge, err error) {
	err = s.locked(func() error {
		h, err = s.control.Hover(id, hovered)
		return err
	})
	return
}

// Save sends the dataset to the save endpoint, then forwards the response to
// the host. It fails without any request while hedges are invalid.
func (s *Session) Save(ctx context.Context) (*models.SaveResponse, error) {
	var records []models.HedgeRecord
	err := s.locked(func() error {
		if s.mode == models.ModeReadOnly {
			return fmt.Errorf("save: %w", drawing.ErrReadOnly)
		}
		if s.saving {
			return ErrSaveInProgress
		}
		invalid := s.validator.InvalidEntities(s.store.Collection(s.mode.ValidatedType()))
		if len(invalid) > 0 {
			return &validation.InvalidHedgesError{IDs: invalid}
		}
		if s.client == nil {
			return fmt.Errorf("save: %w", remote.ErrNoEndpoint)
		}
		s.saving = true
		records = hedge.Serialize(s.store)
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.client.SaveHedges(ctx, records)

	s.mu.Lock()
	s.saving = false
	closed := s.closed
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("save failed", "hedges", len(records), "error", err)
		return nil, err
	}
	if closed {
		// The host already cancelled the input; it must not also get an id.
		s.logger.Warn("session closed during save, dropping completion", "input_id", resp.InputID)
		return resp, ErrClosed
	}

	raw := resp.Raw
	if len(raw) == 0 {
		if raw, err = json.Marshal(resp); err != nil {
			return nil, fmt.Errorf("encode save response: %w", err)
		}
	}
	if err := s.channel.SendCompletion(ctx, raw); err != nil {
		s.logger.Error("notify host of save failed", "input_id", resp.InputID, "error", err)
		return resp, err
	}

	s.logger.Info("hedges saved", "input_id", resp.InputID, "hedges", len(records))
	return resp, nil
}

// Cancel abandons the input. When hedges exist, the user must confirm first.
// It is refused while a save is in flight.
func (s *Session) Cancel(ctx context.Context, confirmed bool) error {
	err := s.locked(func() error {
		if s.saving {
			return ErrSaveInProgress
		}
		if s.store.Count() > 0 && !confirmed {
			return ErrConfirmationRequired
		}
		return nil
	})
	if err != nil {
		return err
	}

	sendErr := s.channel.SendCancel(ctx)
	s.Close()
	if sendErr != nil {
		s.logger.Error("notify host of cancel failed", "error", sendErr)
	}
	return sendErr
}

// HandleHostMessage processes a message received from the host page.
// Messages from foreign origins are ignored. It returns true if the
// message was handled.
func (s *Session) HandleHostMessage(origin string, payload []byte) bool {
	msg, ok := s.channel.Receive(origin, payload)
	if !ok {
		return false
	}
	if msg.IsCancel() {
		s.logger.Info("input cancelled by host")
		s.Close()
		return true
	}
	s.logger.Debug("ignoring host message", "action", msg.Action)
	return false
}

// Close stops the session without persisting anything.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Close()
	}
}
