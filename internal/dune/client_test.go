package dune

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("test-key", zap.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func testRequest() UploadRequest {
	return UploadRequest{
		TableName:   "eth_validator_queue_metrics",
		Description: "Ethereum validator queue metrics, sourced from validatorqueue.com",
		Data:        "date,apr\n2024-01-01,3.5\n",
		IsPrivate:   false,
	}
}

func TestNewClient_MissingKeyFailsFast(t *testing.T) {
	_, err := NewClient("", zap.NewNop())
	require.ErrorIs(t, err, ErrAuth)
}

func TestUploadCSV_SendsKeyAndPayload(t *testing.T) {
	var got UploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/table/upload/csv", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-DUNE-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`true`))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, testRequest(), got)
	assert.True(t, result.Confirmed)
	assert.Equal(t, "eth_validator_queue_metrics", result.TableName)
}

func TestUploadCSV_BooleanFalseIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`false`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrUpload)
}

func TestUploadCSV_ObjectWithTableName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"table_name":"dune.team.eth_validator_queue_metrics"}`))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, result.Confirmed)
	assert.Equal(t, "dune.team.eth_validator_queue_metrics", result.TableName)
}

func TestUploadCSV_SuccessFlagObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
}

func TestUploadCSV_SuccessFalseObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"table limit reached"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrUpload)
}

func TestUploadCSV_UnrecognizedShapeIsWeakSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows_written":42}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	c, err := NewClient("test-key", zap.New(core), WithBaseURL(srv.URL))
	require.NoError(t, err)

	result, err := c.UploadCSV(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, result.Confirmed)
	assert.Empty(t, result.TableName)
	require.Len(t, logs.FilterMessageSnippet("not recognized").All(), 1)
}

func TestUploadCSV_UnauthorizedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrAuth)
}

func TestUploadCSV_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).UploadCSV(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrUpload)
}

func TestUploadCSV_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := NewClient("test-key", zap.NewNop(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.UploadCSV(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrUpload)
}
