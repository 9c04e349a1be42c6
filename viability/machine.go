/*
machine.go - The viability state machine

PURPOSE:
  Owns every classification transition. Each transition validates its guard,
  applies all-or-nothing, and fires a domain event on success. A failed guard
  leaves the record untouched and names the missing or invalid field.

TRANSITIONS:
  Create          -> RequestForQuote   endpoints resolved, priced (or special)
  Quote           -> PendingApproval   commercial quoting step completed
  Cancel          -> CancelledRequest  reason required; idempotent when
                                       already cancelled
  Reject          -> NotApproved       reason required
  Approve         -> Approved          only via ApprovalInput; reserves ports
                                       and creates the ServiceOrder atomically
  ApproveSpecial  -> Approved          special flow; order without ports

ATOMICITY:
  Approval is one storage transaction: classification update, order insert,
  and port reservations commit together or not at all. A port conflict rolls
  everything back and surfaces as a recoverable *odf.PortConflictError.

SEE ALSO:
  - types.go: Request and transition inputs
  - store/sqlite: CommitApproval implementation
*/
package viability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/event"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// ERRORS
// =============================================================================

// TransitionError reports a classification guard violation: the requested
// transition is not legal from the record's current classification.
type TransitionError struct {
	ID      workflow.ViabilityID
	From    workflow.Classification
	Attempt string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s viability %s in classification %q", e.Attempt, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return workflow.ErrConflict }

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence interface of the state machine.
type Store interface {
	// CreateViability inserts a new request. IDs and document numbers are
	// assigned by the machine before the call.
	CreateViability(ctx context.Context, r *Request) error

	// GetViability returns nil (not an error) when the ID is unknown.
	GetViability(ctx context.Context, id workflow.ViabilityID) (*Request, error)

	ListViabilities(ctx context.Context, classification *workflow.Classification) ([]Request, error)

	// UpdateViability persists a transition's field changes.
	UpdateViability(ctx context.Context, r *Request) error

	// CommitApproval applies an approval atomically: the request update, the
	// order insert, and the port reservations either all commit or none do.
	// Port conflicts surface as *odf.PortConflictError.
	CommitApproval(ctx context.Context, r *Request, o *order.ServiceOrder, reservations []odf.Reservation) error

	// GetCompany / GetContact return nil when unknown.
	GetCompany(ctx context.Context, id string) (*catalog.Company, error)
	GetContact(ctx context.Context, id string) (*catalog.Contact, error)

	NextDocumentNumber(ctx context.Context, kind workflow.DocumentKind) (string, error)
}

// =============================================================================
// MACHINE
// =============================================================================

type Machine struct {
	Store     Store
	Resolver  *catalog.Resolver
	Allocator *odf.Allocator
	Events    *event.Manager
	Log       zerolog.Logger
}

func NewMachine(store Store, resolver *catalog.Resolver, alloc *odf.Allocator, events *event.Manager, log zerolog.Logger) *Machine {
	return &Machine{Store: store, Resolver: resolver, Allocator: alloc, Events: events, Log: log}
}

// Get returns a request or a not-found error.
func (m *Machine) Get(ctx context.Context, id workflow.ViabilityID) (*Request, error) {
	r, err := m.Store.GetViability(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get viability: %w", err)
	}
	if r == nil {
		return nil, &workflow.NotFoundError{Kind: "viability", ID: string(id)}
	}
	return r, nil
}

// List returns requests, optionally filtered by classification.
func (m *Machine) List(ctx context.Context, classification *workflow.Classification) ([]Request, error) {
	return m.Store.ListViabilities(ctx, classification)
}

// =============================================================================
// CREATE -> RequestForQuote
// =============================================================================

// Create validates the composed selection and persists the request in the
// RequestForQuote classification. The price of a non-special request is
// re-resolved server-side; the client's cached quote is advisory only.
func (m *Machine) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if err := m.validateCreate(ctx, &in); err != nil {
		return nil, err
	}

	sel := in.Selection
	if in.Special {
		sel.MRC = in.SpecialMRC
		sel.NRC = in.SpecialNRC
	} else {
		quote, err := m.Resolver.Price(ctx, sel.RouteID, sel.ConnectionTypeID)
		if err != nil {
			return nil, err
		}
		sel = catalog.WithQuote(sel, quote)
	}

	doc, err := m.Store.NextDocumentNumber(ctx, workflow.DocViability)
	if err != nil {
		return nil, fmt.Errorf("document number: %w", err)
	}

	r := &Request{
		ID:             workflow.ViabilityID(uuid.NewString()),
		DocumentNumber: doc,
		Classification: workflow.RequestForQuote,
		Special:        in.Special,
		CompanyID:      in.CompanyID,
		Selection:      sel,
		CreatedAt:      time.Now().UTC(),
	}

	if err := m.Store.CreateViability(ctx, r); err != nil {
		return nil, fmt.Errorf("create viability: %w", err)
	}

	m.Log.Info().
		Str("viability", string(r.ID)).
		Str("document", r.DocumentNumber).
		Bool("special", r.Special).
		Msg("viability created")
	m.fire(workflow.EventViabilityCreated, event.M{"id": string(r.ID), "document": r.DocumentNumber})
	return r, nil
}

func (m *Machine) validateCreate(ctx context.Context, in *CreateInput) error {
	if in.CompanyID == "" {
		return workflow.MissingField("company_id")
	}
	company, err := m.Store.GetCompany(ctx, in.CompanyID)
	if err != nil {
		return fmt.Errorf("get company: %w", err)
	}
	if company == nil || !company.Active {
		return &workflow.NotFoundError{Kind: "company", ID: in.CompanyID}
	}

	if err := validateEndpoint("endpoint_a", in.Selection.A); err != nil {
		return err
	}
	if err := validateEndpoint("endpoint_z", in.Selection.Z); err != nil {
		return err
	}
	if in.Selection.RouteID == "" {
		return workflow.MissingField("route")
	}
	if in.Selection.ConnectionTypeID == "" {
		return workflow.MissingField("connection_type")
	}

	if in.Special {
		if in.SpecialMRC == nil {
			return workflow.MissingField("special_mrc")
		}
		if in.SpecialNRC == nil {
			return workflow.MissingField("special_nrc")
		}
	}
	return nil
}

func validateEndpoint(prefix string, ep catalog.Endpoint) error {
	switch {
	case ep.AreaID == "":
		return workflow.MissingField(prefix + ".area")
	case ep.LocationID == "":
		return workflow.MissingField(prefix + ".location")
	case ep.ModuleID == "":
		return workflow.MissingField(prefix + ".module")
	case ep.Coordinates == "":
		return workflow.MissingField(prefix + ".coordinates")
	}
	return nil
}

// =============================================================================
// QUOTE -> PendingApproval
// =============================================================================

// Quote marks the commercial quoting step done, moving the request to
// PendingApproval ("por aprobar").
func (m *Machine) Quote(ctx context.Context, id workflow.ViabilityID) (*Request, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Classification != workflow.RequestForQuote {
		return nil, &TransitionError{ID: r.ID, From: r.Classification, Attempt: "quote"}
	}

	r.Classification = workflow.PendingApproval
	if err := m.Store.UpdateViability(ctx, r); err != nil {
		return nil, fmt.Errorf("update viability: %w", err)
	}
	m.fire(workflow.EventViabilityQuoted, event.M{"id": string(r.ID), "document": r.DocumentNumber})
	return r, nil
}

// =============================================================================
// CANCEL -> CancelledRequest
// =============================================================================

// Cancel moves a RequestForQuote to CancelledRequest with a mandatory
// reason. Cancelling an already-cancelled request is an idempotent no-op.
func (m *Machine) Cancel(ctx context.Context, id workflow.ViabilityID, reason string) (*Request, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Classification == workflow.CancelledRequest {
		return r, nil
	}
	if r.Classification != workflow.RequestForQuote {
		return nil, &TransitionError{ID: r.ID, From: r.Classification, Attempt: "cancel"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, workflow.MissingField("reason")
	}

	now := time.Now().UTC()
	r.Classification = workflow.CancelledRequest
	r.Reason = &reason
	r.RejectedAt = &now
	if err := m.Store.UpdateViability(ctx, r); err != nil {
		return nil, fmt.Errorf("update viability: %w", err)
	}

	m.Log.Info().Str("viability", string(r.ID)).Str("reason", reason).Msg("viability cancelled")
	m.fire(workflow.EventViabilityCancelled, event.M{"id": string(r.ID), "document": r.DocumentNumber})
	return r, nil
}

// =============================================================================
// REJECT -> NotApproved
// =============================================================================

// Reject moves a RequestForQuote or PendingApproval request to NotApproved
// with a mandatory reason. This is also the reject outcome of the special
// flow's simplified approval.
func (m *Machine) Reject(ctx context.Context, id workflow.ViabilityID, reason, actor string) (*Request, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Classification != workflow.RequestForQuote && r.Classification != workflow.PendingApproval {
		return nil, &TransitionError{ID: r.ID, From: r.Classification, Attempt: "reject"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, workflow.MissingField("reason")
	}

	now := time.Now().UTC()
	r.Classification = workflow.NotApproved
	r.Reason = &reason
	r.RejectedAt = &now
	if err := m.Store.UpdateViability(ctx, r); err != nil {
		return nil, fmt.Errorf("update viability: %w", err)
	}

	m.Log.Info().Str("viability", string(r.ID)).Str("actor", actor).Msg("viability rejected")
	m.fire(workflow.EventViabilityRejected, event.M{
		"id": string(r.ID), "document": r.DocumentNumber, "actor": actor,
	})
	return r, nil
}

// =============================================================================
// APPROVE -> Approved (full workflow)
// =============================================================================

// Approve applies the assembled approval payload as one atomic commit:
// contact validation, port pair validation, order materialization, and port
// reservation. On any failure nothing is applied and the classification is
// unchanged. Special requests must go through ApproveSpecial instead.
func (m *Machine) Approve(ctx context.Context, id workflow.ViabilityID, in ApprovalInput) (*Request, *order.ServiceOrder, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if r.Special {
		return nil, nil, &workflow.FieldError{Field: "special", Message: "special requests use the simplified approval"}
	}
	if r.Classification != workflow.RequestForQuote && r.Classification != workflow.PendingApproval {
		return nil, nil, &TransitionError{ID: r.ID, From: r.Classification, Attempt: "approve"}
	}

	if err := m.validateContacts(ctx, r.CompanyID, in.CommercialContactID, in.TechnicalContactID); err != nil {
		return nil, nil, err
	}
	if err := odf.ValidatePair(in.Primary, in.Secondary, in.UsesRedundantPoint); err != nil {
		return nil, nil, err
	}
	if err := m.Allocator.ValidateAssignment(ctx, in.Primary); err != nil {
		return nil, nil, err
	}
	if in.Secondary != nil {
		if err := m.Allocator.ValidateAssignment(ctx, *in.Secondary); err != nil {
			return nil, nil, err
		}
	}

	o, err := m.buildOrder(ctx, r, &in)
	if err != nil {
		return nil, nil, err
	}

	reservations := []odf.Reservation{{
		ODFCode:     in.Primary.ODFCode,
		Port:        in.Primary.Port,
		ConsumerRef: o.ConsumerRef(),
	}}
	if in.Secondary != nil {
		reservations = append(reservations, odf.Reservation{
			ODFCode:     in.Secondary.ODFCode,
			Port:        in.Secondary.Port,
			ConsumerRef: o.ConsumerRef(),
		})
	}

	now := time.Now().UTC()
	approved := *r
	approved.Classification = workflow.Approved
	approved.ApprovedAt = &now

	if err := m.Store.CommitApproval(ctx, &approved, o, reservations); err != nil {
		// Nothing was applied; the caller re-fetches availability on conflict.
		return nil, nil, err
	}
	*r = approved

	m.Log.Info().
		Str("viability", string(r.ID)).
		Str("order", string(o.ID)).
		Str("actor", in.ApprovedBy).
		Bool("redundant", in.UsesRedundantPoint).
		Msg("viability approved")
	m.fire(workflow.EventViabilityApproved, event.M{
		"id": string(r.ID), "document": r.DocumentNumber, "actor": in.ApprovedBy,
	})
	m.fire(workflow.EventOrderCreated, event.M{
		"id": string(o.ID), "document": o.DocumentNumber, "viability": string(r.ID),
	})
	return r, o, nil
}

// ApproveSpecial is the simplified approve outcome for special requests.
// The order is created without port assignments; ports are attached later
// through order editing.
func (m *Machine) ApproveSpecial(ctx context.Context, id workflow.ViabilityID, actor string) (*Request, *order.ServiceOrder, error) {
	r, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !r.Special {
		return nil, nil, &workflow.FieldError{Field: "special", Message: "not a special request"}
	}
	if r.Classification != workflow.RequestForQuote && r.Classification != workflow.PendingApproval {
		return nil, nil, &TransitionError{ID: r.ID, From: r.Classification, Attempt: "approve"}
	}

	o, err := m.buildOrder(ctx, r, nil)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	approved := *r
	approved.Classification = workflow.Approved
	approved.ApprovedAt = &now

	if err := m.Store.CommitApproval(ctx, &approved, o, nil); err != nil {
		return nil, nil, err
	}
	*r = approved

	m.Log.Info().Str("viability", string(r.ID)).Str("actor", actor).Msg("special viability approved")
	m.fire(workflow.EventViabilityApproved, event.M{
		"id": string(r.ID), "document": r.DocumentNumber, "actor": actor,
	})
	m.fire(workflow.EventOrderCreated, event.M{
		"id": string(o.ID), "document": o.DocumentNumber, "viability": string(r.ID),
	})
	return r, o, nil
}

func (m *Machine) validateContacts(ctx context.Context, companyID, commercialID, technicalID string) error {
	if commercialID == "" {
		return workflow.MissingField("commercial_contact_id")
	}
	if technicalID == "" {
		return workflow.MissingField("technical_contact_id")
	}
	if err := m.checkContact(ctx, companyID, commercialID, string(workflow.ContactCommercial)); err != nil {
		return err
	}
	return m.checkContact(ctx, companyID, technicalID, string(workflow.ContactTechnical))
}

func (m *Machine) checkContact(ctx context.Context, companyID, contactID, wantType string) error {
	c, err := m.Store.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("get contact: %w", err)
	}
	if c == nil || !c.Active {
		return &workflow.NotFoundError{Kind: "contact", ID: contactID}
	}
	if c.CompanyID != companyID {
		return &workflow.FieldError{Field: wantType + "_contact_id", Message: "contact belongs to another company"}
	}
	if c.Type != wantType {
		return &workflow.FieldError{Field: wantType + "_contact_id", Message: "contact is not " + wantType}
	}
	return nil
}

// buildOrder snapshots the request into a ServiceOrder. in is nil on the
// special flow.
func (m *Machine) buildOrder(ctx context.Context, r *Request, in *ApprovalInput) (*order.ServiceOrder, error) {
	if r.Selection.MRC == nil || r.Selection.NRC == nil {
		return nil, workflow.MissingField("price")
	}

	doc, err := m.Store.NextDocumentNumber(ctx, workflow.DocOrder)
	if err != nil {
		return nil, fmt.Errorf("document number: %w", err)
	}

	var distance = decimal.Zero
	if m.Resolver != nil {
		routes, err := m.Resolver.Routes(ctx, r.Selection.Z.LocationID, "")
		if err != nil {
			return nil, err
		}
		for _, opt := range routes {
			if opt.Route.ID == r.Selection.RouteID {
				distance = opt.Route.DistanceKM
				break
			}
		}
	}

	now := time.Now().UTC()
	o := &order.ServiceOrder{
		ID:               workflow.OrderID(uuid.NewString()),
		DocumentNumber:   doc,
		ViabilityID:      r.ID,
		CompanyID:        r.CompanyID,
		RouteID:          r.Selection.RouteID,
		ConnectionTypeID: r.Selection.ConnectionTypeID,
		DistanceKM:       distance,
		MRC:              *r.Selection.MRC,
		NRC:              *r.Selection.NRC,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in != nil {
		primary := in.Primary
		o.Primary = &primary
		o.Secondary = in.Secondary
		o.UsesRedundantPoint = in.UsesRedundantPoint
		o.CommercialContactID = in.CommercialContactID
		o.TechnicalContactID = in.TechnicalContactID
	}
	return o, nil
}

func (m *Machine) fire(name string, params event.M) {
	if m.Events != nil {
		m.Events.MustFire(name, params)
	}
}
