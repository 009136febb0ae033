package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/zone"
)

// ErrZoneNotFound is returned for a zone name that is not configured
var ErrZoneNotFound = errors.New("zone not found")

// ZoneService transfers the configured zones on demand. Nothing is persisted.
type ZoneService struct {
	endpoints []domain.ZoneEndpoint
	source    zone.ZoneSource
}

// NewZoneService creates a zone service over a fixed list of zone endpoints
func NewZoneService(endpoints []domain.ZoneEndpoint, source zone.ZoneSource) *ZoneService {
	return &ZoneService{endpoints: endpoints, source: source}
}

// Endpoints returns the configured zone endpoints
func (s *ZoneService) Endpoints() []domain.ZoneEndpoint {
	return s.endpoints
}

// GetAll transfers every zone concurrently. Each zone reports its own
// failure in ZoneData.Error; results keep configuration order.
func (s *ZoneService) GetAll(ctx context.Context) []domain.ZoneData {
	zones := make([]domain.ZoneData, len(s.endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range s.endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zones[i] = s.source.FetchZone(ctx, endpoint)
		}()
	}
	wg.Wait()

	return zones
}

// GetZone transfers a single configured zone
func (s *ZoneService) GetZone(ctx context.Context, name string) (domain.ZoneData, error) {
	for _, endpoint := range s.endpoints {
		if endpoint.Name == name {
			return s.source.FetchZone(ctx, endpoint), nil
		}
	}
	return domain.ZoneData{}, fmt.Errorf("%w: %s", ErrZoneNotFound, name)
}
