// Package remote is the HTTP client for the compliance evaluator and the
// hedge save endpoint.
package remote

// ErrorResponse is the structured error body returned by the save service.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// Endpoints are the URLs a session talks to.
type Endpoints struct {
	// ConditionsURL receives the dataset and answers with the evaluation
	// of every regulatory condition.
	ConditionsURL string
	// SaveURL receives the dataset on save. GET on SaveURL joined with a
	// dataset id returns the saved records.
	SaveURL string
}
