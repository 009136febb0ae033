package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// API wires the lease and zone handlers onto a router
type API struct {
	leases    LeasesStore
	zones     ZonesStore
	staticDir string
}

// NewAPI creates a new API. staticDir holds the dashboard build; an empty
// or missing directory serves a plain-text banner instead.
func NewAPI(leases LeasesStore, zones ZonesStore, staticDir string) *API {
	return &API{leases: leases, zones: zones, staticDir: staticDir}
}

// Router returns the complete HTTP handler: request logging, panic
// recovery, CORS, the JSON API and the dashboard.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", a.healthHandler)

	leases := NewLeases(a.leases)
	r.Get("/api/segments", leases.SegmentsHandler)
	r.Route("/api/leases", func(r chi.Router) {
		r.Get("/", leases.AllLeasesHandler)
		r.Get("/{segment}", leases.SegmentLeasesHandler)
	})

	zones := NewZones(a.zones)
	r.Route("/api/zones", func(r chi.Router) {
		r.Get("/", zones.AllZonesHandler)
		r.Get("/{zoneName}", zones.ZoneHandler)
	})

	// unknown API paths are a JSON 404, never the dashboard
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})

	r.Get("/*", NewStatic(a.staticDir).ServeHTTP)
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: timestamp()})
}

func logWriteError(what string, err error) {
	if err != nil {
		log.Printf("failed to write %s: %v", what, err)
	}
}
