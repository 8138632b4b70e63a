package widget

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Event actions, as found in scripted sessions.
const (
	ActionStart         = "start"
	ActionVertex        = "vertex"
	ActionMove          = "move"
	ActionDeleteVertex  = "delete_vertex"
	ActionFinish        = "finish"
	ActionCancelDrawing = "cancel_drawing"
	ActionAttributes    = "attributes"
	ActionRemove        = "remove"
	ActionHover         = "hover"
	ActionSave          = "save"
	ActionCancel        = "cancel"
	ActionHostMessage   = "host_message"
	ActionWait          = "wait"
)

// Event is one user or host interaction. Only the fields relevant to the
// action are read.
type Event struct {
	Action    string                `json:"action"`
	Type      models.HedgeType      `json:"type,omitempty"`
	ID        string                `json:"id,omitempty"`
	Index     int                   `json:"index,omitempty"`
	Point     *models.LatLng        `json:"point,omitempty"`
	Data      models.AdditionalData `json:"data,omitempty"`
	Hovered   bool                  `json:"hovered,omitempty"`
	Confirmed bool                  `json:"confirmed,omitempty"`
	Origin    string                `json:"origin,omitempty"`
	Message   json.RawMessage       `json:"message,omitempty"`
	WaitMS    int                   `json:"ms,omitempty"`
}

func (e Event) point() (models.LatLng, error) {
	if e.Point == nil {
		return models.LatLng{}, fmt.Errorf("%s: point required", e.Action)
	}
	return *e.Point, nil
}

// Apply performs one scripted event on the session.
func (s *Session) Apply(ctx context.Context, e Event) error {
	switch e.Action {
	case ActionStart:
		_, err := s.StartDrawing(e.Type)
		return err
	case ActionVertex:
		p, err := e.point()
		if err != nil {
			return err
		}
		_, err = s.AddVertex(p)
		return err
	case ActionMove:
		p, err := e.point()
		if err != nil {
			return err
		}
		_, err = s.MoveVertex(e.ID, e.Index, p)
		return err
	case ActionDeleteVertex:
		_, err := s.DeleteVertex(e.ID, e.Index)
		return err
	case ActionFinish:
		_, err := s.FinishDrawing()
		return err
	case ActionCancelDrawing:
		return s.CancelDrawing()
	case ActionAttributes:
		_, err := s.SubmitAttributes(e.ID, e.Data)
		return err
	case ActionRemove:
		_, err := s.Remove(e.ID)
		return err
	case ActionHover:
		_, err := s.Hover(e.ID, e.Hovered)
		return err
	case ActionSave:
		_, err := s.Save(ctx)
		return err
	case ActionCancel:
		return s.Cancel(ctx, e.Confirmed)
	case ActionHostMessage:
		s.HandleHostMessage(e.Origin, e.Message)
		return nil
	case ActionWait:
		t := time.NewTimer(time.Duration(e.WaitMS) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("unknown event action %q", e.Action)
}

// ReadEvents decodes JSON lines events. Blank lines and lines starting with
// # are skipped.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
