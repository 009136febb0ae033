package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeZoneSource fails zones listed in failures and returns one A record otherwise
type fakeZoneSource struct {
	failures map[string]string
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeZoneSource) FetchZone(_ context.Context, endpoint domain.ZoneEndpoint) domain.ZoneData {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(f.delay)

	if msg, ok := f.failures[endpoint.Name]; ok {
		return domain.ZoneData{Zone: endpoint.Name, Records: []domain.ZoneRecord{}, Error: msg}
	}
	return domain.ZoneData{
		Zone:    endpoint.Name,
		Records: []domain.ZoneRecord{{Name: "www", Type: "A", Value: "192.0.2.10"}},
	}
}

var testZones = []domain.ZoneEndpoint{
	{Name: "example.com", Endpoint: "dns://10.0.0.53:53"},
	{Name: "168.192.in-addr.arpa", Endpoint: "dns://10.0.0.53:53"},
	{Name: "example.net", Endpoint: "dns://10.0.0.54:53"},
}

func TestZoneService_GetAll(t *testing.T) {
	source := &fakeZoneSource{
		failures: map[string]string{"168.192.in-addr.arpa": "transfer failed"},
		delay:    50 * time.Millisecond,
	}
	svc := NewZoneService(testZones, source)

	zones := svc.GetAll(context.Background())
	require.Len(t, zones, 3)

	assert.Equal(t, "example.com", zones[0].Zone)
	assert.Empty(t, zones[0].Error)
	assert.Len(t, zones[0].Records, 1)

	assert.Equal(t, "168.192.in-addr.arpa", zones[1].Zone)
	assert.Equal(t, "transfer failed", zones[1].Error)
	assert.Empty(t, zones[1].Records)

	assert.Equal(t, "example.net", zones[2].Zone)
	assert.Empty(t, zones[2].Error)

	assert.Greater(t, source.peak.Load(), int32(1), "zones should be fetched concurrently")
}

func TestZoneService_GetAll_NoEndpoints(t *testing.T) {
	svc := NewZoneService(nil, &fakeZoneSource{})
	zones := svc.GetAll(context.Background())
	assert.NotNil(t, zones)
	assert.Empty(t, zones)
}

func TestZoneService_GetZone(t *testing.T) {
	svc := NewZoneService(testZones, &fakeZoneSource{})

	data, err := svc.GetZone(context.Background(), "example.net")
	require.NoError(t, err)
	assert.Equal(t, "example.net", data.Zone)

	_, err = svc.GetZone(context.Background(), "example.org")
	assert.ErrorIs(t, err, ErrZoneNotFound)
}

func TestZoneService_Endpoints(t *testing.T) {
	svc := NewZoneService(testZones, &fakeZoneSource{})
	assert.Equal(t, testZones, svc.Endpoints())
}
