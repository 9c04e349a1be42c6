/*
generator.go - Order editing and one-time circuit materialization

PURPOSE:
  Orders are created by the approval transition, never here. This file owns
  what happens to an order afterwards:
  1. UpdateOrder: partial edits to service details, contacts, and (for the
     special flow) late port assignment
  2. AddAttachment: recording verification artifacts (OTDR traces)
  3. CreateCircuit: the explicitly user-triggered, exactly-once conversion
     of a completed order into a billable circuit

ONCE-ONLY GUARANTEE:
  CircuitCreated gates circuit creation. The store flips the flag with a
  guarded update (succeeds only while the flag is false) in the same
  transaction that inserts the circuit, so two racing operators cannot both
  create one.

ARTIFACT GUARD:
  A circuit requires at least one OTDR trace attached to the order. Absence
  is a validation failure, never silently skipped.

PORT EDITS:
  Late port assignment uses the same allocator rules as approval and swaps
  the order's reservations atomically with the row update, so edited ports
  hold real occupancy and conflict like approved ones.

SEE ALSO:
  - types.go: ServiceOrder, Circuit, Attachment
  - store/sqlite: the guarded CreateCircuit implementation
*/
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/event"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// ERRORS
// =============================================================================

// CircuitExistsError reports a circuit-creation attempt on an order whose
// circuit was already created. No state changes.
type CircuitExistsError struct {
	OrderID workflow.OrderID
}

func (e *CircuitExistsError) Error() string {
	return fmt.Sprintf("order %s already has a circuit", e.OrderID)
}

func (e *CircuitExistsError) Unwrap() error { return workflow.ErrConflict }

// MissingArtifactError reports absent verification artifacts.
type MissingArtifactError struct {
	OrderID workflow.OrderID
	Kind    AttachmentKind
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("order %s has no %s attachment", e.OrderID, e.Kind)
}

func (e *MissingArtifactError) Unwrap() error { return workflow.ErrValidation }

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence interface for orders and circuits.
type Store interface {
	// GetOrder returns nil (not an error) when the order is unknown.
	GetOrder(ctx context.Context, id workflow.OrderID) (*ServiceOrder, error)
	ListOrders(ctx context.Context) ([]ServiceOrder, error)
	UpdateOrder(ctx context.Context, o *ServiceOrder) error

	// UpdateOrderPorts replaces the order's port assignments and their
	// occupancy reservations in one transaction: the order's previous
	// reservations are released, the new ones inserted, the row updated.
	// Any port held by another consumer fails the whole change with a
	// PortConflictError.
	UpdateOrderPorts(ctx context.Context, o *ServiceOrder, reservations []odf.Reservation) error

	AddAttachment(ctx context.Context, att Attachment) error
	ListAttachments(ctx context.Context, orderID workflow.OrderID) ([]Attachment, error)

	// CreateCircuit inserts the circuit and flips the order's CircuitCreated
	// flag in one transaction. Returns a CircuitExistsError when the flag is
	// already set.
	CreateCircuit(ctx context.Context, c *Circuit) error
	GetCircuit(ctx context.Context, id workflow.CircuitID) (*Circuit, error)
	GetCircuitByOrder(ctx context.Context, orderID workflow.OrderID) (*Circuit, error)

	// NextDocumentNumber issues the next business document number of a kind.
	NextDocumentNumber(ctx context.Context, kind workflow.DocumentKind) (string, error)
}

// =============================================================================
// GENERATOR
// =============================================================================

type Generator struct {
	Store     Store
	Allocator *odf.Allocator
	Events    *event.Manager
	Log       zerolog.Logger
}

func NewGenerator(store Store, alloc *odf.Allocator, events *event.Manager, log zerolog.Logger) *Generator {
	return &Generator{Store: store, Allocator: alloc, Events: events, Log: log}
}

// Get returns an order or a not-found error.
func (g *Generator) Get(ctx context.Context, id workflow.OrderID) (*ServiceOrder, error) {
	o, err := g.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, &workflow.NotFoundError{Kind: "order", ID: string(id)}
	}
	return o, nil
}

// Update applies a partial edit. The originating viability link and the
// CircuitCreated flag are not part of the patch and cannot change. Port
// edits go through the same allocation rules as approval: range and pair
// validation, then an atomic occupancy swap under the order's consumer ref,
// so a port attached here leaves availability exactly like an approved one.
func (g *Generator) Update(ctx context.Context, id workflow.OrderID, patch OrderPatch) (*ServiceOrder, error) {
	o, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.LocationDetail != nil {
		o.LocationDetail = *patch.LocationDetail
	}
	if patch.InterconnectionDetail != nil {
		o.InterconnectionDetail = *patch.InterconnectionDetail
	}
	if patch.ServiceDetail != nil {
		o.ServiceDetail = *patch.ServiceDetail
	}
	if patch.CommercialContactID != nil {
		o.CommercialContactID = *patch.CommercialContactID
	}
	if patch.TechnicalContactID != nil {
		o.TechnicalContactID = *patch.TechnicalContactID
	}
	o.UpdatedAt = time.Now().UTC()

	portsTouched := patch.Primary != nil || patch.Secondary != nil || patch.ClearSecondary
	if !portsTouched {
		if err := g.Store.UpdateOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
		g.fire(workflow.EventOrderUpdated, event.M{"id": string(o.ID), "document": o.DocumentNumber})
		return o, nil
	}

	if patch.Primary != nil {
		o.Primary = patch.Primary
	}
	if patch.ClearSecondary {
		o.Secondary = nil
		o.UsesRedundantPoint = false
	}
	if patch.Secondary != nil {
		o.Secondary = patch.Secondary
		o.UsesRedundantPoint = true
	}

	if o.Primary == nil {
		return nil, &workflow.FieldError{Field: "primary", Message: "a redundant point needs a primary point first"}
	}
	if err := g.Allocator.ValidateAssignment(ctx, *o.Primary); err != nil {
		return nil, err
	}
	if o.Secondary != nil {
		if err := g.Allocator.ValidateAssignment(ctx, *o.Secondary); err != nil {
			return nil, err
		}
	}
	if err := odf.ValidatePair(*o.Primary, o.Secondary, o.UsesRedundantPoint); err != nil {
		return nil, err
	}

	reservations := []odf.Reservation{{
		ODFCode:     o.Primary.ODFCode,
		Port:        o.Primary.Port,
		ConsumerRef: o.ConsumerRef(),
	}}
	if o.Secondary != nil {
		reservations = append(reservations, odf.Reservation{
			ODFCode:     o.Secondary.ODFCode,
			Port:        o.Secondary.Port,
			ConsumerRef: o.ConsumerRef(),
		})
	}

	if err := g.Store.UpdateOrderPorts(ctx, o, reservations); err != nil {
		return nil, err
	}

	g.fire(workflow.EventOrderUpdated, event.M{"id": string(o.ID), "document": o.DocumentNumber})
	return o, nil
}

// AddAttachment records a verification artifact on the order.
func (g *Generator) AddAttachment(ctx context.Context, id workflow.OrderID, kind AttachmentKind, filename string) (*Attachment, error) {
	if filename == "" {
		return nil, workflow.MissingField("filename")
	}
	switch kind {
	case AttachmentOTDR, AttachmentPhoto, AttachmentOther:
	default:
		return nil, &workflow.FieldError{Field: "kind", Message: "unknown attachment kind"}
	}

	if _, err := g.Get(ctx, id); err != nil {
		return nil, err
	}

	att := Attachment{
		ID:         uuid.NewString(),
		OrderID:    id,
		Kind:       kind,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}
	if err := g.Store.AddAttachment(ctx, att); err != nil {
		return nil, fmt.Errorf("add attachment: %w", err)
	}
	return &att, nil
}

// CreateCircuit materializes the circuit from a completed order, exactly once.
func (g *Generator) CreateCircuit(ctx context.Context, id workflow.OrderID, attrs PhysicalAttributes) (*Circuit, error) {
	o, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CircuitCreated {
		return nil, &CircuitExistsError{OrderID: o.ID}
	}
	if attrs.CIDA == "" {
		return nil, workflow.MissingField("cid_a")
	}
	if attrs.CIDZ == "" {
		return nil, workflow.MissingField("cid_z")
	}

	// Physical verification must exist before a circuit can bill.
	if err := g.requireOTDRTrace(ctx, o.ID); err != nil {
		return nil, err
	}

	doc, err := g.Store.NextDocumentNumber(ctx, workflow.DocCircuit)
	if err != nil {
		return nil, fmt.Errorf("document number: %w", err)
	}

	c := &Circuit{
		ID:             workflow.CircuitID(uuid.NewString()),
		DocumentNumber: doc,
		OrderID:        o.ID,
		CIDA:           attrs.CIDA,
		CIDZ:           attrs.CIDZ,
		Primary:        o.Primary,
		Secondary:      o.Secondary,
		FTPReference:   attrs.FTPReference,
		DistanceKM:     pick(attrs.DistanceKM, o.DistanceKM),
		MRC:            pick(attrs.MRC, o.MRC),
		NRC:            pick(attrs.NRC, o.NRC),
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.Store.CreateCircuit(ctx, c); err != nil {
		return nil, err
	}

	g.Log.Info().
		Str("order", string(o.ID)).
		Str("circuit", string(c.ID)).
		Str("document", c.DocumentNumber).
		Msg("circuit created")
	g.fire(workflow.EventCircuitCreated, event.M{
		"id":       string(c.ID),
		"document": c.DocumentNumber,
		"order":    string(o.ID),
	})
	return c, nil
}

func (g *Generator) requireOTDRTrace(ctx context.Context, id workflow.OrderID) error {
	atts, err := g.Store.ListAttachments(ctx, id)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	for _, a := range atts {
		if a.Kind == AttachmentOTDR {
			return nil
		}
	}
	return &MissingArtifactError{OrderID: id, Kind: AttachmentOTDR}
}

func (g *Generator) fire(name string, params event.M) {
	if g.Events != nil {
		g.Events.MustFire(name, params)
	}
}

func pick(override *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return fallback
}
