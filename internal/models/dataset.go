package models

import (
	"encoding/json"
	"time"
)

// HedgeData is a saved hedge input.
type HedgeData struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Hedges    []HedgeRecord `json:"hedges"`
}

// SaveResponse is returned by the save endpoint and forwarded to the host page.
type SaveResponse struct {
	InputID            string `json:"input_id"`
	HedgesToPlant      int    `json:"hedges_to_plant"`
	LengthToPlant      int    `json:"length_to_plant"`
	HedgesToRemove     int    `json:"hedges_to_remove"`
	LengthToRemove     int    `json:"length_to_remove"`
	LineaireDetruitPac int    `json:"lineaire_detruit_pac"`

	// Raw is the response body as received, forwarded as-is to the host.
	Raw json.RawMessage `json:"-"`
}
