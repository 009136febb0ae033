package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/service"
)

// LeasesStore is what the lease handlers need from the lease service
type LeasesStore interface {
	Segments() []domain.Segment
	GetAll(ctx context.Context) (service.AllLeases, error)
	GetSegment(ctx context.Context, name string) (service.SegmentLeases, error)
}

// Leases groups lease handlers for testability
type Leases struct {
	store LeasesStore
}

func NewLeases(store LeasesStore) *Leases {
	return &Leases{store: store}
}

// LeaseResponse is a stored lease in Kea's field naming plus its history columns
type LeaseResponse struct {
	IPAddress string `json:"ip-address"`
	HWAddress string `json:"hw-address"`
	Hostname  string `json:"hostname,omitempty"`
	SubnetID  int64  `json:"subnet-id"`
	ValidLft  int64  `json:"valid-lft"`
	Cltt      int64  `json:"cltt"`
	State     int    `json:"state"`
	FqdnFwd   bool   `json:"fqdn-fwd"`
	FqdnRev   bool   `json:"fqdn-rev"`
	ClientID  string `json:"client-id,omitempty"`
	Segment   string `json:"segment"`
	CreatedAt int64  `json:"created-at"`
	UpdatedAt int64  `json:"updated-at"`
}

type SegmentErrorResponse struct {
	Segment string `json:"segment"`
	Error   string `json:"error"`
}

type AllLeasesResponse struct {
	Leases    []LeaseResponse        `json:"leases"`
	Errors    []SegmentErrorResponse `json:"errors,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

type SegmentLeasesResponse struct {
	Segment   string          `json:"segment"`
	Leases    []LeaseResponse `json:"leases"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// SegmentsHandler handles GET /api/segments
func (l *Leases) SegmentsHandler(w http.ResponseWriter, r *http.Request) {
	segments := l.store.Segments()
	if segments == nil {
		segments = []domain.Segment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// AllLeasesHandler handles GET /api/leases.
//
// Polls every segment, then returns the whole lease history. Segments that
// could not be polled are listed in "errors"; the response is still 200.
func (l *Leases) AllLeasesHandler(w http.ResponseWriter, r *http.Request) {
	result, err := l.store.GetAll(r.Context())
	if err != nil {
		log.Printf("failed to get leases: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read lease store")
		return
	}

	response := AllLeasesResponse{
		Leases:    toLeaseResponses(result.Leases),
		Timestamp: timestamp(),
	}
	for _, e := range result.Errors {
		response.Errors = append(response.Errors, SegmentErrorResponse{Segment: e.Segment, Error: e.Error})
	}

	writeJSON(w, http.StatusOK, response)
}

// SegmentLeasesHandler handles GET /api/leases/{segment}.
//
// Returns 404 for an unconfigured segment. A failed live fetch is reported in
// "error" next to the last stored state.
func (l *Leases) SegmentLeasesHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "segment")

	result, err := l.store.GetSegment(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrSegmentNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Endpoint '%s' not found", name))
			return
		}
		log.Printf("failed to get leases for segment %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to read lease store")
		return
	}

	writeJSON(w, http.StatusOK, SegmentLeasesResponse{
		Segment:   result.Segment,
		Leases:    toLeaseResponses(result.Leases),
		Error:     result.Error,
		Timestamp: timestamp(),
	})
}

func toLeaseResponses(leases []domain.Lease) []LeaseResponse {
	response := make([]LeaseResponse, len(leases))
	for i, lease := range leases {
		response[i] = LeaseResponse{
			IPAddress: lease.IPAddress,
			HWAddress: lease.HWAddress,
			Hostname:  lease.Hostname,
			SubnetID:  lease.SubnetID,
			ValidLft:  lease.ValidLft,
			Cltt:      lease.Cltt,
			State:     lease.State,
			FqdnFwd:   lease.FqdnFwd,
			FqdnRev:   lease.FqdnRev,
			ClientID:  lease.ClientID,
			Segment:   lease.Segment,
			CreatedAt: lease.CreatedAt,
			UpdatedAt: lease.UpdatedAt,
		}
	}
	return response
}
