package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/service"
)

// ZonesStore is what the zone handlers need from the zone service
type ZonesStore interface {
	Endpoints() []domain.ZoneEndpoint
	GetAll(ctx context.Context) []domain.ZoneData
	GetZone(ctx context.Context, name string) (domain.ZoneData, error)
}

// Zones groups zone handlers for testability
type Zones struct {
	store ZonesStore
}

func NewZones(store ZonesStore) *Zones {
	return &Zones{store: store}
}

type AllZonesResponse struct {
	Zones     []domain.ZoneData `json:"zones"`
	Message   string            `json:"message,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

type ZoneResponse struct {
	domain.ZoneData
	Timestamp string `json:"timestamp"`
}

// AllZonesHandler handles GET /api/zones
func (z *Zones) AllZonesHandler(w http.ResponseWriter, r *http.Request) {
	if len(z.store.Endpoints()) == 0 {
		writeJSON(w, http.StatusOK, AllZonesResponse{
			Zones:   []domain.ZoneData{},
			Message: "No zone endpoints configured",
		})
		return
	}

	writeJSON(w, http.StatusOK, AllZonesResponse{
		Zones:     z.store.GetAll(r.Context()),
		Timestamp: timestamp(),
	})
}

// ZoneHandler handles GET /api/zones/{zoneName}. A failed transfer is
// still 200 with "error" set; only an unconfigured zone is 404.
func (z *Zones) ZoneHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "zoneName")

	data, err := z.store.GetZone(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrZoneNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Zone '%s' not found in configuration", name))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ZoneResponse{ZoneData: data, Timestamp: timestamp()})
}
