// Package service fans requests out across the configured lease segments and
// zone endpoints and joins the results.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jbweber/homelab/lookingglass/internal/domain"
	"github.com/jbweber/homelab/lookingglass/internal/kea"
	"github.com/jbweber/homelab/lookingglass/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ErrSegmentNotFound is returned for a segment name that is not configured
var ErrSegmentNotFound = errors.New("segment not found")

// SegmentError reports a segment whose live fetch failed
type SegmentError struct {
	Segment string
	Error   string
}

// AllLeases is the merged lease history plus the segments that could not be polled
type AllLeases struct {
	Leases []domain.Lease
	Errors []SegmentError
}

// SegmentLeases is the stored history of one segment. Error is set when the
// live fetch failed and Leases is the last persisted state.
type SegmentLeases struct {
	Segment string
	Leases  []domain.Lease
	Error   string
}

// LeaseService polls Kea segments and records what it sees
type LeaseService struct {
	segments []domain.Segment
	source   kea.LeaseSource
	store    repository.LeaseRepository
}

// NewLeaseService creates a lease service over a fixed list of segments
func NewLeaseService(segments []domain.Segment, source kea.LeaseSource, store repository.LeaseRepository) *LeaseService {
	return &LeaseService{segments: segments, source: source, store: store}
}

// Segments returns the configured segments
func (s *LeaseService) Segments() []domain.Segment {
	return s.segments
}

// GetAll polls every segment concurrently, stores the leases of each segment
// that answered, and returns the full stored history. A failed segment does
// not fail the call; a store failure does.
func (s *LeaseService) GetAll(ctx context.Context) (AllLeases, error) {
	fetchErrors := make([]string, len(s.segments))

	var g errgroup.Group
	for i, segment := range s.segments {
		g.Go(func() error {
			msg, err := s.poll(ctx, segment)
			fetchErrors[i] = msg
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return AllLeases{}, err
	}

	result := AllLeases{Errors: []SegmentError{}}
	for i, msg := range fetchErrors {
		if msg != "" {
			result.Errors = append(result.Errors, SegmentError{Segment: s.segments[i].Name, Error: msg})
		}
	}

	leases, err := s.store.FindAll(ctx)
	if err != nil {
		return AllLeases{}, err
	}
	result.Leases = leases
	return result, nil
}

// GetSegment polls one segment and returns its stored history
func (s *LeaseService) GetSegment(ctx context.Context, name string) (SegmentLeases, error) {
	segment, ok := s.lookup(name)
	if !ok {
		return SegmentLeases{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, name)
	}

	msg, err := s.poll(ctx, segment)
	if err != nil {
		return SegmentLeases{}, err
	}

	leases, err := s.store.FindBySegment(ctx, segment.Name)
	if err != nil {
		return SegmentLeases{}, err
	}
	return SegmentLeases{Segment: segment.Name, Leases: leases, Error: msg}, nil
}

// Prune removes leases unseen for olderThanDays whose lifetime has also run out
func (s *LeaseService) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	removed, err := s.store.PruneExpired(ctx, olderThanDays)
	if err != nil {
		return 0, err
	}
	log.Printf("pruned %d expired leases older than %d days", removed, olderThanDays)
	return removed, nil
}

// poll fetches one segment and stores the result. The returned message is
// the fetch failure, if any, including a payload the store rejects as
// invalid; the error is reserved for storage I/O.
func (s *LeaseService) poll(ctx context.Context, segment domain.Segment) (string, error) {
	result := s.source.GetLeases(ctx, segment.URL)
	if !result.Success {
		log.Printf("failed to fetch leases from segment %s (%s): %s", segment.Name, segment.URL, result.Error)
		return result.Error, nil
	}

	err := s.store.UpsertAll(ctx, segment.Name, result.Leases)
	if errors.Is(err, repository.ErrInvalidEntity) {
		msg := fmt.Sprintf("malformed lease in Kea response: %v", err)
		log.Printf("rejected leases from segment %s (%s): %s", segment.Name, segment.URL, msg)
		return msg, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to store leases for segment %s: %w", segment.Name, err)
	}
	return "", nil
}

func (s *LeaseService) lookup(name string) (domain.Segment, bool) {
	for _, segment := range s.segments {
		if segment.Name == name {
			return segment, true
		}
	}
	return domain.Segment{}, false
}
