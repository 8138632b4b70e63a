package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHedges() []models.HedgeRecord {
	return []models.HedgeRecord{{
		ID:             "P1",
		Type:           models.HedgeToPlant,
		LatLngs:        []models.LatLng{{Lat: 43.6, Lng: 3.5}, {Lat: 43.61, Lng: 3.51}},
		AdditionalData: models.AdditionalData{models.AttrTypeHaie: models.HaieMixte},
	}}
}

func TestHTTPClient_EvaluateConditions(t *testing.T) {
	var received []models.HedgeRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/haies/conditions/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"ratio": {"result": false, "minimum": 150}, "quality": {"result": true}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{ConditionsURL: srv.URL + "/haies/conditions/"}, time.Second)
	eval, err := c.EvaluateConditions(context.Background(), sampleHedges())
	require.NoError(t, err)

	assert.Equal(t, sampleHedges(), received)
	ok, known := eval["ratio"].Result()
	assert.True(t, known)
	assert.False(t, ok)
	assert.Equal(t, 150.0, eval["ratio"]["minimum"])
}

func TestHTTPClient_EmptyDatasetIsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "[]", string(raw))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{ConditionsURL: srv.URL}, time.Second)
	_, err := c.EvaluateConditions(context.Background(), nil)
	assert.NoError(t, err)
}

func TestHTTPClient_SaveHedgesKeepsRawBody(t *testing.T) {
	body := `{"input_id":"2f6c","hedges_to_plant":1,"length_to_plant":1370,"hedges_to_remove":0,"length_to_remove":0,"lineaire_detruit_pac":0,"extra":"kept"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{SaveURL: srv.URL + "/haies/saisie/"}, time.Second)
	resp, err := c.SaveHedges(context.Background(), sampleHedges())
	require.NoError(t, err)
	assert.Equal(t, "2f6c", resp.InputID)
	assert.Equal(t, 1370, resp.LengthToPlant)
	assert.JSONEq(t, body, string(resp.Raw))
}

func TestHTTPClient_FetchHedges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/haies/saisie/abc/", r.URL.Path)
		json.NewEncoder(w).Encode(sampleHedges())
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{SaveURL: srv.URL + "/haies/saisie/"}, time.Second)
	hedges, err := c.FetchHedges(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, sampleHedges(), hedges)
}

func TestHTTPClient_StructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_hedges","message":"unknown hedge type"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{SaveURL: srv.URL}, time.Second)
	_, err := c.SaveHedges(context.Background(), sampleHedges())

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "invalid_hedges", re.Code)
	assert.Equal(t, "unknown hedge type", re.Message)
	assert.False(t, isTransient(err))
}

func TestHTTPClient_UnstructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(Endpoints{ConditionsURL: srv.URL}, time.Second)
	_, err := c.EvaluateConditions(context.Background(), nil)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "unknown", re.Code)
	assert.Equal(t, http.StatusBadGateway, re.Status)
	assert.True(t, isTransient(err))
}

func TestHTTPClient_MissingEndpoint(t *testing.T) {
	c := NewHTTPClient(Endpoints{}, time.Second)
	_, err := c.EvaluateConditions(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEndpoint)
	_, err = c.SaveHedges(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEndpoint)
	_, err = c.FetchHedges(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestDatasetURL(t *testing.T) {
	assert.Equal(t, "http://h/haies/saisie/abc/", DatasetURL("http://h/haies/saisie/", "abc"))
	assert.Equal(t, "http://h/haies/saisie/abc/", DatasetURL("http://h/haies/saisie", "abc"))
}
