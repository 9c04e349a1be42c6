/*
events.go - Domain event names

PURPOSE:
  The state machine and the order/circuit generator fire events on every
  lifecycle change through a gookit/event manager wired in main. Billing
  and reporting listen; they never write workflow state directly.

EVENT PAYLOAD CONVENTION:
  Every event carries "id" (the record's ID) and "document" (the business
  document number). Approval and rejection additionally carry "actor".

SEE ALSO:
  - cmd/server/main.go: audit listener subscribing to all events
*/
package workflow

const (
	EventViabilityCreated   = "viability.created"
	EventViabilityQuoted    = "viability.quoted"
	EventViabilityCancelled = "viability.cancelled"
	EventViabilityRejected  = "viability.rejected"
	EventViabilityApproved  = "viability.approved"
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventCircuitCreated     = "circuit.created"
)

// Events lists every event name fired by the engine, for audit subscription.
func Events() []string {
	return []string{
		EventViabilityCreated,
		EventViabilityQuoted,
		EventViabilityCancelled,
		EventViabilityRejected,
		EventViabilityApproved,
		EventOrderCreated,
		EventOrderUpdated,
		EventCircuitCreated,
	}
}
