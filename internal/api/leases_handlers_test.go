package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLeasesStore struct {
	segments []domain.Segment
	all      service.AllLeases
	segment  service.SegmentLeases
	err      error
}

func (m *mockLeasesStore) Segments() []domain.Segment {
	return m.segments
}

func (m *mockLeasesStore) GetAll(context.Context) (service.AllLeases, error) {
	return m.all, m.err
}

func (m *mockLeasesStore) GetSegment(_ context.Context, name string) (service.SegmentLeases, error) {
	if m.err != nil {
		return service.SegmentLeases{}, m.err
	}
	for _, s := range m.segments {
		if s.Name == name {
			return m.segment, nil
		}
	}
	return service.SegmentLeases{}, fmt.Errorf("%w: %s", service.ErrSegmentNotFound, name)
}

func storedLease(segment, ip string) domain.Lease {
	return domain.Lease{
		ID:        1,
		Segment:   segment,
		IPAddress: ip,
		HWAddress: "aa:bb:cc:dd:ee:ff",
		SubnetID:  128,
		ValidLft:  3600,
		Cltt:      1700000000,
		FqdnFwd:   true,
		CreatedAt: 1700000000,
		UpdatedAt: 1700000600,
	}
}

func serveLeases(store LeasesStore, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	leases := NewLeases(store)
	r.Get("/api/segments", leases.SegmentsHandler)
	r.Get("/api/leases", leases.AllLeasesHandler)
	r.Get("/api/leases/{segment}", leases.SegmentLeasesHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestLeases_SegmentsHandler(t *testing.T) {
	store := &mockLeasesStore{segments: []domain.Segment{{Name: "128", URL: "http://10.0.128.2:8000"}}}

	w := serveLeases(store, "GET", "/api/segments")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"128","url":"http://10.0.128.2:8000"}]`, w.Body.String())
}

func TestLeases_SegmentsHandler_Empty(t *testing.T) {
	w := serveLeases(&mockLeasesStore{}, "GET", "/api/segments")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLeases_AllLeasesHandler(t *testing.T) {
	store := &mockLeasesStore{all: service.AllLeases{
		Leases: []domain.Lease{storedLease("128", "192.168.128.10")},
		Errors: []service.SegmentError{},
	}}

	w := serveLeases(store, "GET", "/api/leases")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "errors", "errors is omitted when every segment answered")
	assert.Contains(t, body, "timestamp")

	var leases []map[string]any
	require.NoError(t, json.Unmarshal(body["leases"], &leases))
	require.Len(t, leases, 1)
	lease := leases[0]
	assert.Equal(t, "192.168.128.10", lease["ip-address"])
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", lease["hw-address"])
	assert.Equal(t, float64(128), lease["subnet-id"])
	assert.Equal(t, float64(3600), lease["valid-lft"])
	assert.Equal(t, true, lease["fqdn-fwd"])
	assert.Equal(t, false, lease["fqdn-rev"])
	assert.Equal(t, "128", lease["segment"])
	assert.Equal(t, float64(1700000000), lease["created-at"])
	assert.Equal(t, float64(1700000600), lease["updated-at"])
	assert.NotContains(t, lease, "hostname")
	assert.NotContains(t, lease, "client-id")
	assert.NotContains(t, lease, "id")
}

func TestLeases_AllLeasesHandler_SegmentErrors(t *testing.T) {
	store := &mockLeasesStore{all: service.AllLeases{
		Leases: []domain.Lease{},
		Errors: []service.SegmentError{{Segment: "129", Error: "HTTP 502: Bad Gateway"}},
	}}

	w := serveLeases(store, "GET", "/api/leases")
	require.Equal(t, http.StatusOK, w.Code)

	var response AllLeasesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotNil(t, response.Leases)
	assert.Empty(t, response.Leases)
	assert.Equal(t, []SegmentErrorResponse{{Segment: "129", Error: "HTTP 502: Bad Gateway"}}, response.Errors)
}

func TestLeases_AllLeasesHandler_StoreError(t *testing.T) {
	store := &mockLeasesStore{err: errors.New("database is locked")}

	w := serveLeases(store, "GET", "/api/leases")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Error)
}

func TestLeases_SegmentLeasesHandler(t *testing.T) {
	store := &mockLeasesStore{
		segments: []domain.Segment{{Name: "128", URL: "http://10.0.128.2:8000"}},
		segment: service.SegmentLeases{
			Segment: "128",
			Leases:  []domain.Lease{storedLease("128", "192.168.128.10")},
			Error:   "HTTP 503: Service Unavailable",
		},
	}

	w := serveLeases(store, "GET", "/api/leases/128")
	require.Equal(t, http.StatusOK, w.Code)

	var response SegmentLeasesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "128", response.Segment)
	assert.Equal(t, "HTTP 503: Service Unavailable", response.Error)
	require.Len(t, response.Leases, 1)
	assert.Equal(t, "192.168.128.10", response.Leases[0].IPAddress)
	assert.NotEmpty(t, response.Timestamp)
}

func TestLeases_SegmentLeasesHandler_NotFound(t *testing.T) {
	store := &mockLeasesStore{segments: []domain.Segment{{Name: "128"}}}

	w := serveLeases(store, "GET", "/api/leases/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Endpoint '999' not found"}`, w.Body.String())
}

func TestLeases_SegmentLeasesHandler_StoreError(t *testing.T) {
	store := &mockLeasesStore{segments: []domain.Segment{{Name: "128"}}, err: errors.New("disk I/O error")}

	w := serveLeases(store, "GET", "/api/leases/128")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
