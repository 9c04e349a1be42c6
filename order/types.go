/*
Package order provides service orders and physical circuits.

PURPOSE:
  A ServiceOrder is materialized exactly once when a viability request is
  approved; it snapshots the price, route, and port assignments current at
  approval time. Later, once the link is physically built and verified, the
  order is passed exactly once through the circuit generator to produce the
  billable Circuit ("enlace").

KEY CONCEPTS IN THIS FILE (types.go):
  - ServiceOrder: approval snapshot + mutable service detail fields
  - Circuit: final physical attributes used for billing
  - Attachment: physical-verification artifacts (OTDR traces)

IMMUTABILITY:
  The order's link to its originating viability and its CircuitCreated flag
  (once true) never change. Everything else is editable through UpdateOrder.

SEE ALSO:
  - generator.go: circuit creation gated by CircuitCreated + OTDR artifacts
  - viability/machine.go: the only caller that creates orders
*/
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// SERVICE ORDER
// =============================================================================

// ServiceOrder is the approved snapshot of a viability request. The snapshot
// fields are copied at approval and never recomputed.
type ServiceOrder struct {
	ID             workflow.OrderID
	DocumentNumber string
	ViabilityID    workflow.ViabilityID
	CompanyID      string

	// Snapshot at approval time
	RouteID          string
	ConnectionTypeID string
	DistanceKM       decimal.Decimal
	MRC              decimal.Decimal
	NRC              decimal.Decimal

	// Physical termination. Secondary is present iff the approval used a
	// redundant point. Nil port assignments occur only on the special flow,
	// where ports are assigned later through UpdateOrder.
	Primary            *odf.PortAssignment
	Secondary          *odf.PortAssignment
	UsesRedundantPoint bool

	CommercialContactID string
	TechnicalContactID  string

	// Editable service details
	LocationDetail        string
	InterconnectionDetail string
	ServiceDetail         string

	CircuitCreated bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConsumerRef is the occupancy reference under which the order's ports are
// reserved.
func (o *ServiceOrder) ConsumerRef() string { return "order:" + string(o.ID) }

// OrderPatch carries the editable fields of UpdateOrder. Nil means unchanged.
// Setting Secondary turns the redundant point on; ClearSecondary is the
// explicit way to turn it off again and release the port.
type OrderPatch struct {
	LocationDetail        *string
	InterconnectionDetail *string
	ServiceDetail         *string
	Primary               *odf.PortAssignment
	Secondary             *odf.PortAssignment
	ClearSecondary        bool
	CommercialContactID   *string
	TechnicalContactID    *string
}

// =============================================================================
// CIRCUIT
// =============================================================================

// Circuit is the billable physical link created from a completed order.
type Circuit struct {
	ID             workflow.CircuitID
	DocumentNumber string
	OrderID        workflow.OrderID

	CIDA string
	CIDZ string

	Primary      *odf.PortAssignment
	Secondary    *odf.PortAssignment
	FTPReference string
	DistanceKM   decimal.Decimal
	MRC          decimal.Decimal
	NRC          decimal.Decimal

	CreatedAt time.Time
}

// PhysicalAttributes is the operator input to circuit creation.
type PhysicalAttributes struct {
	CIDA         string
	CIDZ         string
	FTPReference string
	DistanceKM   *decimal.Decimal // nil keeps the order's snapshot distance
	MRC          *decimal.Decimal // nil keeps the order's snapshot price
	NRC          *decimal.Decimal
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

type AttachmentKind string

const (
	AttachmentOTDR  AttachmentKind = "otdr"
	AttachmentPhoto AttachmentKind = "photo"
	AttachmentOther AttachmentKind = "other"
)

// Attachment is verification-artifact metadata. File bytes live elsewhere.
type Attachment struct {
	ID         string
	OrderID    workflow.OrderID
	Kind       AttachmentKind
	Filename   string
	UploadedAt time.Time
}
