/*
Package workflow provides the shared core of the provisioning workflow engine.

PURPOSE:
  This package contains the types every domain package agrees on: the
  classification state space of a viability request, the error taxonomy
  used across the workflow, and the names of domain events fired when a
  record changes state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Classification: The five-way lifecycle state of a viability request
  - ContactType: Commercial vs technical contact roles
  - Type-safe identifiers for viabilities, orders, and circuits

DESIGN PRINCIPLES:
  1. One state space: classification is a single tagged value, not a mix
     of overlapping enums. The "special" flow is an orthogonal boolean on
     the request, never a classification.
  2. Type Safety: Strong typing for IDs prevents mixing viability/order IDs
  3. No dependencies: domain packages import workflow, never the reverse

SEE ALSO:
  - errors.go: Error taxonomy shared by all domain packages
  - events.go: Domain event names
*/
package workflow

// =============================================================================
// CLASSIFICATION - Lifecycle state of a viability request
// =============================================================================

type Classification string

const (
	// RequestForQuote is the initial classification of every request.
	RequestForQuote Classification = "request_for_quote"

	// PendingApproval marks a quoted request awaiting the approval workflow.
	PendingApproval Classification = "pending_approval"

	// Approved is terminal and implies a ServiceOrder exists for the request.
	Approved Classification = "approved"

	// NotApproved is terminal and always carries a rejection reason.
	NotApproved Classification = "not_approved"

	// CancelledRequest is terminal and always carries a cancellation reason.
	CancelledRequest Classification = "cancelled"
)

// Valid reports whether c is one of the five known classifications.
func (c Classification) Valid() bool {
	switch c {
	case RequestForQuote, PendingApproval, Approved, NotApproved, CancelledRequest:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave c.
func (c Classification) Terminal() bool {
	switch c {
	case Approved, NotApproved, CancelledRequest:
		return true
	}
	return false
}

// =============================================================================
// CONTACTS
// =============================================================================

type ContactType string

const (
	ContactCommercial ContactType = "commercial"
	ContactTechnical  ContactType = "technical"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ViabilityID string
type OrderID string
type CircuitID string

// DocumentKind selects the business document-number sequence.
type DocumentKind string

const (
	DocViability DocumentKind = "VB"
	DocOrder     DocumentKind = "OS"
	DocCircuit   DocumentKind = "EN"
)
