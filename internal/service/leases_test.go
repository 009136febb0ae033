package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/kea"
	"github.com/jbweber/homelab/lookingglass/internal/repository"
	"github.com/jbweber/homelab/lookingglass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeaseSource answers GetLeases from a per-URL table
type fakeLeaseSource struct {
	mu      sync.Mutex
	results map[string]kea.Result
	calls   map[string]int
}

func newFakeLeaseSource() *fakeLeaseSource {
	return &fakeLeaseSource{results: map[string]kea.Result{}, calls: map[string]int{}}
}

func (f *fakeLeaseSource) set(url string, result kea.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = result
}

func (f *fakeLeaseSource) GetLeases(_ context.Context, url string) kea.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	result, ok := f.results[url]
	if !ok {
		return kea.Result{Leases: []domain.KeaLease{}, Error: "dial tcp: connection refused"}
	}
	return result
}

// failingStore is a LeaseRepository whose writes fail
type failingStore struct {
	repository.LeaseRepository
}

func (failingStore) UpsertAll(context.Context, string, []domain.KeaLease) error {
	return errors.New("disk I/O error")
}

func (failingStore) PruneExpired(context.Context, int) (int64, error) {
	return 0, errors.New("disk I/O error")
}

var testSegments = []domain.Segment{
	{Name: "128", URL: "http://kea-128:8000"},
	{Name: "129", URL: "http://kea-129:8000"},
}

func lease(ip, mac string) domain.KeaLease {
	return domain.KeaLease{
		IPAddress: ip,
		HWAddress: mac,
		Hostname:  "host-" + ip,
		SubnetID:  1,
		ValidLft:  3600,
		Cltt:      1700000000,
	}
}

func fetched(leases ...domain.KeaLease) kea.Result {
	return kea.Result{Success: true, Leases: leases}
}

func setupLeaseService(t *testing.T, name string, source kea.LeaseSource) (*LeaseService, repository.LeaseRepository) {
	t.Helper()
	db, cleanup := testutil.SetupTestDBWithMigrations(t, name)
	repo := repository.NewLeaseRepository(db)
	t.Cleanup(func() {
		repo.Close()
		cleanup()
	})
	return NewLeaseService(testSegments, source, repo), repo
}

func TestLeaseService_GetAll(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	source.set("http://kea-129:8000", fetched(lease("192.168.129.10", "aa:aa:aa:aa:aa:02"), lease("192.168.129.11", "aa:aa:aa:aa:aa:03")))
	svc, _ := setupLeaseService(t, "TestLeaseService_GetAll", source)

	result, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Leases, 3)
	assert.Empty(t, result.Errors)

	segments := map[string]int{}
	for _, l := range result.Leases {
		segments[l.Segment]++
	}
	assert.Equal(t, map[string]int{"128": 1, "129": 2}, segments)
}

func TestLeaseService_GetAll_PartialFailure(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	// 129 is unreachable
	svc, _ := setupLeaseService(t, "TestLeaseService_GetAll_PartialFailure", source)

	result, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Leases, 1)
	assert.Equal(t, "128", result.Leases[0].Segment)
	assert.Equal(t, "192.168.128.10", result.Leases[0].IPAddress)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "129", result.Errors[0].Segment)
	assert.Contains(t, result.Errors[0].Error, "connection refused")
}

func TestLeaseService_GetAll_ErrorsInSegmentOrder(t *testing.T) {
	source := newFakeLeaseSource()
	svc, _ := setupLeaseService(t, "TestLeaseService_GetAll_ErrorsInSegmentOrder", source)

	result, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Leases)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "128", result.Errors[0].Segment)
	assert.Equal(t, "129", result.Errors[1].Segment)
}

func TestLeaseService_GetAll_PreservesHistory(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(
		lease("192.168.128.10", "aa:aa:aa:aa:aa:01"),
		lease("192.168.128.11", "aa:aa:aa:aa:aa:02"),
	))
	source.set("http://kea-129:8000", fetched())
	svc, repo := setupLeaseService(t, "TestLeaseService_GetAll_PreservesHistory", source)

	_, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	// the second lease disappears upstream
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))

	result, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Leases, 2)

	_, err = repo.Find(context.Background(), "128", "192.168.128.11", "aa:aa:aa:aa:aa:02")
	assert.NoError(t, err)
}

func TestLeaseService_GetAll_StoreFailure(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	svc := NewLeaseService(testSegments, source, failingStore{})

	_, err := svc.GetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment 128")
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestLeaseService_GetAll_MalformedLeaseIsSegmentError(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	source.set("http://kea-129:8000", fetched(
		lease("192.168.129.10", "aa:aa:aa:aa:aa:02"),
		domain.KeaLease{HWAddress: "aa:aa:aa:aa:aa:03", ValidLft: 3600},
	))
	svc, _ := setupLeaseService(t, "TestLeaseService_GetAll_MalformedLease", source)

	result, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Leases, 1)
	assert.Equal(t, "128", result.Leases[0].Segment)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "129", result.Errors[0].Segment)
	assert.Contains(t, result.Errors[0].Error, "ip-address is required")
}

func TestLeaseService_GetSegment_MalformedLeaseReturnsStoredState(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-129:8000", fetched(lease("192.168.129.10", "aa:aa:aa:aa:aa:02")))
	svc, _ := setupLeaseService(t, "TestLeaseService_GetSegment_MalformedLease", source)

	_, err := svc.GetSegment(context.Background(), "129")
	require.NoError(t, err)

	source.set("http://kea-129:8000", fetched(domain.KeaLease{HWAddress: "aa:aa:aa:aa:aa:03"}))

	result, err := svc.GetSegment(context.Background(), "129")
	require.NoError(t, err)
	assert.Contains(t, result.Error, "malformed lease")
	require.Len(t, result.Leases, 1)
	assert.Equal(t, "192.168.129.10", result.Leases[0].IPAddress)
}

func TestLeaseService_GetSegment(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	source.set("http://kea-129:8000", fetched(lease("192.168.129.10", "aa:aa:aa:aa:aa:02")))
	svc, _ := setupLeaseService(t, "TestLeaseService_GetSegment", source)

	result, err := svc.GetSegment(context.Background(), "129")
	require.NoError(t, err)

	assert.Equal(t, "129", result.Segment)
	assert.Empty(t, result.Error)
	require.Len(t, result.Leases, 1)
	assert.Equal(t, "192.168.129.10", result.Leases[0].IPAddress)

	assert.Equal(t, 0, source.calls["http://kea-128:8000"], "only the requested segment is polled")
}

func TestLeaseService_GetSegment_FetchFailureReturnsStoredState(t *testing.T) {
	source := newFakeLeaseSource()
	source.set("http://kea-128:8000", fetched(lease("192.168.128.10", "aa:aa:aa:aa:aa:01")))
	svc, _ := setupLeaseService(t, "TestLeaseService_GetSegment_FetchFailure", source)

	_, err := svc.GetSegment(context.Background(), "128")
	require.NoError(t, err)

	source.set("http://kea-128:8000", kea.Result{Leases: []domain.KeaLease{}, Error: "HTTP 503: Service Unavailable"})

	result, err := svc.GetSegment(context.Background(), "128")
	require.NoError(t, err)
	assert.Equal(t, "HTTP 503: Service Unavailable", result.Error)
	require.Len(t, result.Leases, 1)
	assert.Equal(t, "192.168.128.10", result.Leases[0].IPAddress)
}

func TestLeaseService_GetSegment_Unknown(t *testing.T) {
	svc, _ := setupLeaseService(t, "TestLeaseService_GetSegment_Unknown", newFakeLeaseSource())

	_, err := svc.GetSegment(context.Background(), "999")
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestLeaseService_Segments(t *testing.T) {
	svc := NewLeaseService(testSegments, newFakeLeaseSource(), failingStore{})
	assert.Equal(t, testSegments, svc.Segments())
}

func TestLeaseService_Prune(t *testing.T) {
	svc, _ := setupLeaseService(t, "TestLeaseService_Prune", newFakeLeaseSource())

	removed, err := svc.Prune(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	_, err = NewLeaseService(testSegments, newFakeLeaseSource(), failingStore{}).Prune(context.Background(), 30)
	assert.Error(t, err)
}
