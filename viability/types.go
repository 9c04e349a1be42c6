/*
Package viability owns the lifecycle of viability (feasibility) requests.

PURPOSE:
  A viability request is a priced feasibility study for a connectivity link
  between two endpoints. It is created in the RequestForQuote classification
  and only ever moves through the transitions defined by the state machine:

    create  ──▶ RequestForQuote ──▶ PendingApproval ──▶ Approved
                     │   │                  │
                     │   └──────────────────┴─▶ NotApproved (reason required)
                     └─▶ CancelledRequest (reason required, idempotent)

  Approved is only reachable through the approval workflow, which reserves
  ODF ports and materializes a ServiceOrder atomically with the transition.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: the viability record; never physically deleted
  - CreateInput / ApprovalInput: transition side-data
  - Special flow: operator-priced exception requests

SPECIAL FLOW:
  Special is orthogonal to classification and set only at creation. A special
  request follows the same transitions, but its MRC/NRC are operator-entered
  instead of resolver-derived and its approval is a simplified two-outcome
  approve/reject without the multi-step workflow.

SEE ALSO:
  - machine.go: transitions and guards
  - approval package: the multi-step workflow feeding ApprovalInput
*/
package viability

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is a viability record. Classification changes only through the
// state machine; cancellation and rejection are terminal classifications,
// never row removal.
type Request struct {
	ID             workflow.ViabilityID
	DocumentNumber string
	Classification workflow.Classification

	// Special marks the manually-priced exception flow. Set at creation,
	// never mutated by any transition.
	Special bool

	CompanyID string

	// The resolved cascade selection: both endpoints, route, connection
	// type, and price. Always complete for non-special requests.
	Selection catalog.Selection

	// Reason is present iff classification is NotApproved or CancelledRequest.
	Reason *string

	CreatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
}

// MRC returns the recurring charge, nil when unpriced.
func (r *Request) MRC() *decimal.Decimal { return r.Selection.MRC }

// NRC returns the non-recurring charge, nil when unpriced.
func (r *Request) NRC() *decimal.Decimal { return r.Selection.NRC }

// =============================================================================
// TRANSITION INPUTS
// =============================================================================

// CreateInput is the payload of the create transition. For special requests
// SpecialMRC/SpecialNRC are required and used verbatim; otherwise the price
// is resolved server-side from the selection's route and connection type.
type CreateInput struct {
	CompanyID  string
	Selection  catalog.Selection
	Special    bool
	SpecialMRC *decimal.Decimal
	SpecialNRC *decimal.Decimal
}

// ApprovalInput is the single atomic payload assembled by the approval
// workflow: contacts, port assignments, and the redundancy indicator.
type ApprovalInput struct {
	CommercialContactID string
	TechnicalContactID  string
	Primary             odf.PortAssignment
	Secondary           *odf.PortAssignment
	UsesRedundantPoint  bool
	ApprovedBy          string
}
