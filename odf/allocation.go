/*
Package odf provides port allocation for optical distribution frames.

PURPOSE:
  An ODF is a patch panel with a fixed number of ports. Ports are a scarce
  shared resource: every active service order or circuit referencing a port
  occupies it, and no port may ever hold two occupants. This package is the
  single allocation abstraction the rest of the workflow goes through -
  occupancy is never recomputed ad hoc per screen.

INVARIANT:
  availablePorts(odf) = {1..totalPorts} \ occupiedPorts(odf)

  Availability reads are advisory snapshots. The authoritative check happens
  at commit: the store's reservation insert fails on a UNIQUE(odf, port)
  violation, which surfaces here as a PortConflictError. Two operators racing
  to approve against the same ODF cannot both win the same port.

FAILURE HANDLING:
  PortConflictError is recoverable: the caller re-fetches availability and
  re-selects. A port outside 1..totalPorts is a validation error, not a
  capacity error.

SEE ALSO:
  - viability/machine.go: reserves ports during approval, atomically with
    order creation
  - store/sqlite: UNIQUE-index-backed OccupancyStore implementation
*/
package odf

import (
	"context"
	"fmt"
	"sort"

	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// TYPES
// =============================================================================

// ODF is an optical distribution frame: a code and a fixed port count.
type ODF struct {
	Code       string
	TotalPorts int
}

// PortAssignment names one (odf, port) pair chosen for a connection point.
type PortAssignment struct {
	ODFCode string
	Port    int
}

func (p PortAssignment) String() string {
	return fmt.Sprintf("%s/%d", p.ODFCode, p.Port)
}

// Reservation is a committed occupancy: a port held by one consumer.
// ConsumerRef is "order:<id>" for service orders.
type Reservation struct {
	ODFCode     string
	Port        int
	ConsumerRef string
}

// Availability is the advisory snapshot returned to selectors.
type Availability struct {
	ODFCode        string
	TotalPorts     int
	AvailablePorts []int
}

// =============================================================================
// ERRORS
// =============================================================================

// PortConflictError reports a port already held by another consumer at
// commit time. Recoverable: re-fetch availability and choose again.
type PortConflictError struct {
	ODFCode string
	Port    int
	HeldBy  string
}

func (e *PortConflictError) Error() string {
	if e.HeldBy != "" {
		return fmt.Sprintf("port %d on %s already reserved by %s", e.Port, e.ODFCode, e.HeldBy)
	}
	return fmt.Sprintf("port %d on %s already reserved", e.Port, e.ODFCode)
}

func (e *PortConflictError) Unwrap() error { return workflow.ErrConflict }

// PortRangeError reports a port number outside the ODF's capacity.
type PortRangeError struct {
	ODFCode    string
	Port       int
	TotalPorts int
}

func (e *PortRangeError) Error() string {
	return fmt.Sprintf("port %d out of range for %s (1..%d)", e.Port, e.ODFCode, e.TotalPorts)
}

func (e *PortRangeError) Unwrap() error { return workflow.ErrValidation }

// SelfConflictError reports the same (odf, port) pair used for both the
// primary and the redundant connection point of one request.
type SelfConflictError struct {
	Pair PortAssignment
}

func (e *SelfConflictError) Error() string {
	return fmt.Sprintf("primary and redundant point both use %s", e.Pair)
}

func (e *SelfConflictError) Unwrap() error { return workflow.ErrValidation }

// =============================================================================
// OCCUPANCY STORE
// =============================================================================

// OccupancyStore is the persistence interface behind the allocator.
// Reserve must be atomic and must fail with a PortConflictError when any of
// the requested ports is already held.
type OccupancyStore interface {
	// GetODF returns nil (not an error) when the code is unknown.
	GetODF(ctx context.Context, code string) (*ODF, error)

	// ListODFs returns every known frame.
	ListODFs(ctx context.Context) ([]ODF, error)

	// OccupiedPorts returns the ports currently held on the frame.
	OccupiedPorts(ctx context.Context, code string) ([]int, error)

	// Reserve commits the reservations atomically. Either all ports are
	// held by the consumer afterwards or none are.
	Reserve(ctx context.Context, reservations ...Reservation) error

	// Release frees every reservation held by the consumer.
	Release(ctx context.Context, consumerRef string) error
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	Store OccupancyStore
}

func NewAllocator(store OccupancyStore) *Allocator { return &Allocator{Store: store} }

// Availability computes the advisory available-port snapshot for a frame.
func (a *Allocator) Availability(ctx context.Context, odfCode string) (*Availability, error) {
	frame, err := a.Store.GetODF(ctx, odfCode)
	if err != nil {
		return nil, fmt.Errorf("get odf: %w", err)
	}
	if frame == nil {
		return nil, &workflow.NotFoundError{Kind: "odf", ID: odfCode}
	}

	occupied, err := a.Store.OccupiedPorts(ctx, odfCode)
	if err != nil {
		return nil, fmt.Errorf("occupied ports: %w", err)
	}

	taken := make(map[int]bool, len(occupied))
	for _, p := range occupied {
		taken[p] = true
	}

	available := make([]int, 0, frame.TotalPorts-len(occupied))
	for p := 1; p <= frame.TotalPorts; p++ {
		if !taken[p] {
			available = append(available, p)
		}
	}
	sort.Ints(available)

	return &Availability{
		ODFCode:        frame.Code,
		TotalPorts:     frame.TotalPorts,
		AvailablePorts: available,
	}, nil
}

// ValidateAssignment checks a single pair against the frame's capacity.
// Range violations are validation errors; unknown frames are not-found.
func (a *Allocator) ValidateAssignment(ctx context.Context, pair PortAssignment) error {
	if pair.ODFCode == "" {
		return workflow.MissingField("odf_code")
	}
	frame, err := a.Store.GetODF(ctx, pair.ODFCode)
	if err != nil {
		return fmt.Errorf("get odf: %w", err)
	}
	if frame == nil {
		return &workflow.NotFoundError{Kind: "odf", ID: pair.ODFCode}
	}
	if pair.Port < 1 || pair.Port > frame.TotalPorts {
		return &PortRangeError{ODFCode: frame.Code, Port: pair.Port, TotalPorts: frame.TotalPorts}
	}
	return nil
}

// ValidatePair enforces the primary/redundant point rules before commit:
// without redundancy no secondary may be supplied; with redundancy both
// secondary fields are mandatory and the two pairs must differ.
func ValidatePair(primary PortAssignment, secondary *PortAssignment, usesRedundantPoint bool) error {
	if primary.ODFCode == "" {
		return workflow.MissingField("primary_odf_code")
	}
	if primary.Port == 0 {
		return workflow.MissingField("primary_port")
	}

	if !usesRedundantPoint {
		if secondary != nil {
			return &workflow.FieldError{
				Field:   "secondary_odf_code",
				Message: "not allowed without redundant point",
			}
		}
		return nil
	}

	if secondary == nil || secondary.ODFCode == "" {
		return workflow.MissingField("secondary_odf_code")
	}
	if secondary.Port == 0 {
		return workflow.MissingField("secondary_port")
	}
	if secondary.ODFCode == primary.ODFCode && secondary.Port == primary.Port {
		return &SelfConflictError{Pair: primary}
	}
	return nil
}

// Reserve validates the assignments against capacity and commits them for
// the consumer. The commit is the authoritative conflict check: advisory
// availability may be stale by the time this runs.
func (a *Allocator) Reserve(ctx context.Context, consumerRef string, pairs ...PortAssignment) error {
	if consumerRef == "" {
		return workflow.MissingField("consumer_ref")
	}

	reservations := make([]Reservation, 0, len(pairs))
	for _, pair := range pairs {
		if err := a.ValidateAssignment(ctx, pair); err != nil {
			return err
		}
		reservations = append(reservations, Reservation{
			ODFCode:     pair.ODFCode,
			Port:        pair.Port,
			ConsumerRef: consumerRef,
		})
	}

	return a.Store.Reserve(ctx, reservations...)
}
