package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
)

// Client defines the contract for talking to the evaluator and the save service.
type Client interface {
	EvaluateConditions(ctx context.Context, hedges []models.HedgeRecord) (models.Evaluation, error)
	SaveHedges(ctx context.Context, hedges []models.HedgeRecord) (*models.SaveResponse, error)
	FetchHedges(ctx context.Context, inputID string) ([]models.HedgeRecord, error)
}

// ErrNoEndpoint is returned when the operation's URL is not configured.
var ErrNoEndpoint = errors.New("endpoint not configured")

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP client. A zero timeout means no timeout.
func NewHTTPClient(endpoints Endpoints, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// doJSON sends reqBody as JSON and returns the raw response body.
func (c *HTTPClient) doJSON(ctx context.Context, method, url string, reqBody interface{}) ([]byte, error) {
	var body io.Reader
	headers := map[string]string{"Content-Type": "application/json"}

	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// EvaluateConditions posts the dataset to the evaluator.
func (c *HTTPClient) EvaluateConditions(ctx context.Context, hedges []models.HedgeRecord) (models.Evaluation, error) {
	if c.endpoints.ConditionsURL == "" {
		return nil, fmt.Errorf("evaluate conditions: %w", ErrNoEndpoint)
	}
	data, err := c.doJSON(ctx, http.MethodPost, c.endpoints.ConditionsURL, records(hedges))
	if err != nil {
		return nil, fmt.Errorf("evaluate conditions: %w", err)
	}

	var eval models.Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, fmt.Errorf("evaluate conditions: decode response: %w", err)
	}
	return eval, nil
}

// SaveHedges posts the dataset to the save endpoint. The response body is
// kept verbatim in SaveResponse.Raw.
func (c *HTTPClient) SaveHedges(ctx context.Context, hedges []models.HedgeRecord) (*models.SaveResponse, error) {
	if c.endpoints.SaveURL == "" {
		return nil, fmt.Errorf("save hedges: %w", ErrNoEndpoint)
	}
	data, err := c.doJSON(ctx, http.MethodPost, c.endpoints.SaveURL, records(hedges))
	if err != nil {
		return nil, fmt.Errorf("save hedges: %w", err)
	}

	var resp models.SaveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("save hedges: decode response: %w", err)
	}
	resp.Raw = json.RawMessage(data)
	return &resp, nil
}

// FetchHedges returns the records saved under inputID.
func (c *HTTPClient) FetchHedges(ctx context.Context, inputID string) ([]models.HedgeRecord, error) {
	if c.endpoints.SaveURL == "" {
		return nil, fmt.Errorf("fetch hedges: %w", ErrNoEndpoint)
	}
	data, err := c.doJSON(ctx, http.MethodGet, DatasetURL(c.endpoints.SaveURL, inputID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch hedges %s: %w", inputID, err)
	}

	var hedges []models.HedgeRecord
	if err := json.Unmarshal(data, &hedges); err != nil {
		return nil, fmt.Errorf("fetch hedges %s: decode response: %w", inputID, err)
	}
	return hedges, nil
}

// DatasetURL returns the URL of dataset id under the save URL.
func DatasetURL(saveURL, id string) string {
	return strings.TrimRight(saveURL, "/") + "/" + url.PathEscape(id) + "/"
}

// records keeps an empty dataset encoded as [] rather than null.
func records(hedges []models.HedgeRecord) []models.HedgeRecord {
	if hedges == nil {
		return []models.HedgeRecord{}
	}
	return hedges
}

// RemoteError represents a structured error from the server.
type RemoteError struct {
	Code    string
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%d): %s: %s", e.Status, e.Code, e.Message)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return &RemoteError{
			Code:    "unknown",
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}

	return &RemoteError{
		Code:    errResp.Error,
		Message: errResp.Message,
		Status:  resp.StatusCode,
	}
}
