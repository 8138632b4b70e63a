// Package drawing implements the interaction state machine that turns map
// gestures into hedge store mutations.
package drawing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/validation"
)

var (
	ErrAlreadyDrawing = errors.New("a hedge is already being drawn")
	ErrNotDrawing     = errors.New("no hedge is being drawn")
	ErrReadOnly       = errors.New("hedge is read-only")
	ErrTooFewVertices = errors.New("a hedge needs at least two vertices")
)

// State is the controller state.
type State string

const (
	StateIdle    State = "idle"
	StateDrawing State = "drawing"
)

// Form is the attribute dialog shown for a hedge.
type Form struct {
	HedgeID  string
	Type     models.HedgeType
	Length   float64
	ReadOnly bool
	Fields   []validation.Attribute
	Values   models.AdditionalData
	Missing  []string
}

// Controller drives hedge creation and edition. At most one hedge is being
// drawn at any time.
type Controller struct {
	store     *hedge.Store
	validator *validation.Validator
	mode      models.Mode
	logger    *slog.Logger

	mu      sync.Mutex
	drawing string
}

// NewController returns an idle controller for a session in the given mode.
func NewController(store *hedge.Store, validator *validation.Validator, mode models.Mode, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:     store,
		validator: validator,
		mode:      mode,
		logger:    logger,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drawing != "" {
		return StateDrawing
	}
	return StateIdle
}

// Drawing returns the identifier of the hedge being drawn.
func (c *Controller) Drawing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing, c.drawing != ""
}

// StartDrawing creates an empty hedge of type t and starts drawing it.
func (c *Controller) StartDrawing(t models.HedgeType) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drawing != "" {
		return hedge.Hedge{}, fmt.Errorf("start %s hedge: %w (%s)", t, ErrAlreadyDrawing, c.drawing)
	}
	if !c.mode.CanEdit(t) {
		return hedge.Hedge{}, fmt.Errorf("start %s hedge in %s mode: %w", t, c.mode, ErrReadOnly)
	}

	h, err := c.store.Add(t, hedge.AddOptions{Editable: true})
	if err != nil {
		return hedge.Hedge{}, err
	}
	c.drawing = h.ID
	c.logger.Debug("drawing started", "hedge", h.ID)
	return h, nil
}

// AddVertex appends p to the hedge being drawn.
func (c *Controller) AddVertex(p models.LatLng) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drawing == "" {
		return hedge.Hedge{}, ErrNotDrawing
	}
	return c.store.AppendVertex(c.drawing, p)
}

// editable returns the hedge if it may be mutated. Caller holds the lock.
func (c *Controller) editable(id string) (hedge.Hedge, error) {
	h, ok := c.store.Get(id)
	if !ok {
		return hedge.Hedge{}, fmt.Errorf("%w: %s", hedge.ErrUnknownHedge, id)
	}
	if !h.Editable || !c.mode.CanEdit(h.Type) {
		return hedge.Hedge{}, fmt.Errorf("%s: %w", id, ErrReadOnly)
	}
	return h, nil
}

// MoveVertex moves a vertex at the end of a drag.
func (c *Controller) MoveVertex(id string, index int, p models.LatLng) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.editable(id); err != nil {
		return hedge.Hedge{}, err
	}
	return c.store.MoveVertex(id, index, p)
}

// DeleteVertex removes a vertex.
func (c *Controller) DeleteVertex(id string, index int) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.editable(id); err != nil {
		return hedge.Hedge{}, err
	}
	return c.store.DeleteVertex(id, index)
}

// FinishDrawing completes the hedge being drawn and returns its attribute form.
func (c *Controller) FinishDrawing() (Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drawing == "" {
		return Form{}, ErrNotDrawing
	}
	h, ok := c.store.Get(c.drawing)
	if !ok {
		id := c.drawing
		c.drawing = ""
		return Form{}, fmt.Errorf("%w: %s", hedge.ErrUnknownHedge, id)
	}
	if len(h.LatLngs) < 2 {
		return Form{}, fmt.Errorf("finish %s: %w", h.ID, ErrTooFewVertices)
	}

	// Cleared before completing: listeners must see an idle controller.
	c.drawing = ""
	h, err := c.store.Complete(h.ID)
	if err != nil {
		return Form{}, err
	}
	c.logger.Debug("drawing completed", "hedge", h.ID, "length", h.Length)
	return c.form(h), nil
}

// CancelDrawing discards the hedge being drawn.
func (c *Controller) CancelDrawing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drawing == "" {
		return ErrNotDrawing
	}
	id := c.drawing
	c.drawing = ""
	if _, err := c.store.Remove(id); err != nil {
		return err
	}
	c.logger.Debug("drawing cancelled", "hedge", id)
	return nil
}

// EditForm returns the attribute form of a completed hedge. Frozen hedges
// get a read-only form.
func (c *Controller) EditForm(id string) (Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.store.Get(id)
	if !ok {
		return Form{}, fmt.Errorf("%w: %s", hedge.ErrUnknownHedge, id)
	}
	return c.form(h), nil
}

func (c *Controller) form(h hedge.Hedge) Form {
	schema := c.validator.Schema(h.Type)
	fields := make([]validation.Attribute, len(schema.Attributes))
	copy(fields, schema.Attributes)
	values := h.AdditionalData.Clone()
	if values == nil {
		values = models.AdditionalData{}
	}
	return Form{
		HedgeID:  h.ID,
		Type:     h.Type,
		Length:   h.Length,
		ReadOnly: !h.Editable || !c.mode.CanEdit(h.Type),
		Fields:   fields,
		Values:   values,
		Missing:  c.validator.Missing(h),
	}
}

// SubmitAttributes stores the attribute form values of a hedge.
func (c *Controller) SubmitAttributes(id string, data models.AdditionalData) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.editable(id)
	if err != nil {
		return hedge.Hedge{}, err
	}
	if id == c.drawing {
		return hedge.Hedge{}, fmt.Errorf("submit attributes of %s: drawing not finished", id)
	}
	if err := c.validator.Check(h.Type, data); err != nil {
		return hedge.Hedge{}, fmt.Errorf("submit attributes of %s: %w", id, err)
	}
	return c.store.SetAttributes(id, data)
}

// Remove deletes an editable hedge. Removing the hedge being drawn cancels
// the drawing.
func (c *Controller) Remove(id string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.editable(id); err != nil {
		return nil, err
	}
	if id == c.drawing {
		c.drawing = ""
	}
	renamed, err := c.store.Remove(id)
	if err != nil {
		return nil, err
	}
	if newID, ok := renamed[c.drawing]; ok {
		c.drawing = newID
	}
	c.logger.Debug("hedge removed", "hedge", id, "renamed", len(renamed))
	return renamed, nil
}

// Hover sets the hover flag of any hedge, frozen ones included.
func (c *Controller) Hover(id string, hovered bool) (hedge.Hedge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SetHovered(id, hovered)
}
