package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	sdkMocks "go.temporal.io/sdk/mocks"
	"gopkg.in/yaml.v3"

	"github.com/leowmjw/go-timeline-annotations/pkg/temporal"
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// encodedValue wraps v the way a query result comes back from Temporal
func encodedValue(t *testing.T, v interface{}) converter.EncodedValue {
	t.Helper()
	payloads, err := converter.GetDefaultDataConverter().ToPayloads(v)
	require.NoError(t, err)
	return client.NewValue(payloads)
}

func TestServer_handleCommands(t *testing.T) {
	mockClient := new(sdkMocks.Client)
	server := NewServer(testLogger(), mockClient, ":8080")

	var sent temporal.CommandSignal
	mockClient.On("SignalWorkflow",
		mock.Anything,
		"annotations-session-1",
		"",
		temporal.CommandSignalName,
		mock.AnythingOfType("temporal.CommandSignal"),
	).Run(func(args mock.Arguments) {
		sent = args.Get(4).(temporal.CommandSignal)
	}).Return(nil).Once()

	body := `{"commands": [
		{"id": "keep", "type": "add_conditions", "conditions": [{"tag": "stim"}]},
		{"type": "add_events", "events": [{"onset": 3, "duration": 2}]}
	]}`
	req := httptest.NewRequest("POST", "/timelines/session-1/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var response struct {
		CommandIDs []string `json:"command_ids"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Len(t, response.CommandIDs, 2)
	assert.Equal(t, "keep", response.CommandIDs[0])
	_, err := uuid.Parse(response.CommandIDs[1])
	assert.NoError(t, err, "missing command ids are generated")

	require.Len(t, sent.Commands, 2)
	assert.Equal(t, response.CommandIDs[1], sent.Commands[1].ID)
	assert.Equal(t, temporal.AddEvents, sent.Commands[1].Type)
	require.Len(t, sent.Commands[1].Events, 1)
	assert.Equal(t, 3.0, *sent.Commands[1].Events[0].Onset)

	assert.Equal(t, 1.0, testutil.ToFloat64(server.metrics.CommandsSent.WithLabelValues("add_events")))
	mockClient.AssertExpectations(t)
}

func TestServer_handleCommands_BadRequests(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "invalid json"},
		{name: "no commands", body: `{"commands": []}`},
		{name: "missing type", body: `{"commands": [{"id": "x"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockClient := new(sdkMocks.Client)
			server := NewServer(testLogger(), mockClient, ":8080")

			req := httptest.NewRequest("POST", "/timelines/session-1/commands", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			mockClient.AssertNotCalled(t, "SignalWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestServer_handleCommands_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unknown timeline", err: serviceerror.NewNotFound("workflow not found"), status: http.StatusNotFound},
		{name: "temporal unavailable", err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockClient := new(sdkMocks.Client)
			server := NewServer(testLogger(), mockClient, ":8080")

			mockClient.On("SignalWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(tc.err).Once()

			body, _ := json.Marshal(temporal.CommandSignal{Commands: []temporal.Command{{Type: temporal.Close}}})
			req := httptest.NewRequest("POST", "/timelines/gone/commands", bytes.NewBuffer(body))
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestServer_handleSnapshot(t *testing.T) {
	tl, err := timeline.New(timeline.WithLength(50), timeline.WithTimelineRegistry(timeline.NewIDRegistry()))
	require.NoError(t, err)
	snap := tl.Snapshot()

	mockClient := new(sdkMocks.Client)
	server := NewServer(testLogger(), mockClient, ":8080")
	mockClient.On("QueryWorkflow", mock.Anything, "annotations-s1", "", temporal.SnapshotQueryName).
		Return(encodedValue(t, snap), nil).Twice()

	t.Run("json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/timelines/s1", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		var got timeline.Snapshot
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 50, got.Length)
		assert.Equal(t, snap.Version, got.Version)
	})

	t.Run("yaml", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/timelines/s1?format=yaml", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, ContentTypeYAML, rr.Header().Get("Content-Type"))
		var got map[string]interface{}
		require.NoError(t, yaml.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, 50, got["length"])
	})

	mockClient.AssertExpectations(t)
}

func TestServer_handleSnapshot_NotFound(t *testing.T) {
	mockClient := new(sdkMocks.Client)
	server := NewServer(testLogger(), mockClient, ":8080")
	mockClient.On("QueryWorkflow", mock.Anything, "annotations-nope", "", temporal.SnapshotQueryName).
		Return(nil, serviceerror.NewNotFound("workflow not found")).Once()

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/timelines/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockClient.AssertExpectations(t)
}

func TestServer_handleJournal(t *testing.T) {
	outcomes := []temporal.CommandOutcome{
		{Seq: 1, CommandID: "a", Type: temporal.AddConditions, Applied: true, CreatedIDs: []int{1}},
		{Seq: 2, CommandID: "b", Type: temporal.AssociateEvents, Error: "overlap", ErrorKind: "overlap_conflict"},
		{Seq: 3, CommandID: "c", Type: temporal.Close, Applied: true},
	}

	mockClient := new(sdkMocks.Client)
	server := NewServer(testLogger(), mockClient, ":8080")
	mockClient.On("QueryWorkflow", mock.Anything, "annotations-s1", "", temporal.JournalQueryName).
		Return(encodedValue(t, outcomes), nil).Once()

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/timelines/s1/journal?since=1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []temporal.CommandOutcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].CommandID)
	assert.Equal(t, "overlap_conflict", got[0].ErrorKind)
	mockClient.AssertExpectations(t)

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/timelines/s1/journal?since=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_handleHealth(t *testing.T) {
	mockClient := &sdkMocks.Client{}
	server := NewServer(testLogger(), mockClient, ":8080")

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var response map[string]string
	err := json.NewDecoder(rr.Body).Decode(&response)
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %s", response["status"])
	}

	if response["time"] == "" {
		t.Error("Expected time field to be populated")
	}
}

func TestServer_loggingMiddleware(t *testing.T) {
	mockClient := &sdkMocks.Client{}
	server := NewServer(testLogger(), mockClient, ":8080")

	// Create a test handler
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("test response"))
	})

	// Wrap with logging middleware
	wrapped := server.loggingMiddleware(testHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "test response", rr.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(server.metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "418")))
}

func TestServer_metrics(t *testing.T) {
	mockClient := &sdkMocks.Client{}
	server := NewServer(testLogger(), mockClient, ":8080")
	handler := server.Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `timeline_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
}

func TestResponseWrapper(t *testing.T) {
	rr := httptest.NewRecorder()
	wrapper := &responseWrapper{ResponseWriter: rr, statusCode: http.StatusOK}

	wrapper.WriteHeader(http.StatusNotFound)

	if wrapper.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, wrapper.statusCode)
	}

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected response code %d, got %d", http.StatusNotFound, rr.Code)
	}
}
