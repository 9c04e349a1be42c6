/*
handlers.go - HTTP API handlers for the provisioning workflow

PURPOSE:
  Exposes the viability provisioning engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog (cascade reads):
    GET  /api/catalog/areas
    GET  /api/catalog/areas/{id}/locations
    GET  /api/catalog/locations/{id}/modules
    GET  /api/catalog/modules/{id}
    GET  /api/catalog/locations/{id}/routes?connection_type=...
    GET  /api/catalog/connection-types
    GET  /api/catalog/price?route=...&connection_type=...
    POST /api/selection/apply

  Companies:
    GET  /api/companies
    GET  /api/companies/{id}/contacts?type=...

  ODFs:
    GET  /api/odfs
    GET  /api/odfs/{code}/availability

  Viabilities:
    GET  /api/viabilities?classification=...
    POST /api/viabilities
    GET  /api/viabilities/{id}
    GET  /api/viabilities/{id}/order
    POST /api/viabilities/{id}/quote
    POST /api/viabilities/{id}/cancel
    POST /api/viabilities/{id}/reject
    POST /api/viabilities/{id}/approve-special
    POST /api/viabilities/{id}/approval           (start session)

  Approval sessions:
    GET    /api/approvals/{sid}
    POST   /api/approvals/{sid}/contacts
    POST   /api/approvals/{sid}/ports
    POST   /api/approvals/{sid}/back
    POST   /api/approvals/{sid}/confirm
    POST   /api/approvals/{sid}/submit
    DELETE /api/approvals/{sid}

  Orders / circuits:
    GET  /api/orders
    GET  /api/orders/{id}
    PUT  /api/orders/{id}
    GET  /api/orders/{id}/attachments
    POST /api/orders/{id}/attachments
    POST /api/orders/{id}/circuit
    GET  /api/orders/{id}/circuit
    GET  /api/circuits/{id}

ERROR HANDLING:
  Domain errors are mapped via the workflow error taxonomy:
  - 400: validation errors (missing field, bad pair, no rate configured)
  - 404: unknown or inactive record
  - 409: commit-time conflicts (port taken, guard violated, circuit exists)
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fibernova/provision-engine/approval"
	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/store/sqlite"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Resolver  *catalog.Resolver
	Allocator *odf.Allocator
	Machine   *viability.Machine
	Orders    *order.Generator
	Approvals *approval.Orchestrator
	Log       zerolog.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the handler from an already-constructed domain stack.
func NewHandler(store *sqlite.Store, machine *viability.Machine, orders *order.Generator, approvals *approval.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Resolver:  machine.Resolver,
		Allocator: machine.Allocator,
		Machine:   machine,
		Orders:    orders,
		Approvals: approvals,
		Log:       log,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListAreas returns the active development areas.
func (h *Handler) ListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.Store.ListAreas(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list areas", err)
		return
	}
	dtos := make([]AreaDTO, 0, len(areas))
	for _, a := range areas {
		dtos = append(dtos, AreaDTO{ID: a.ID, Name: a.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLocations returns locations under an area. Empty when the area has
// none; unknown areas also yield an empty set, matching cascade semantics.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Resolver.Locations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	dtos := make([]LocationDTO, 0, len(locs))
	for _, l := range locs {
		dtos = append(dtos, LocationDTO{ID: l.ID, AreaID: l.AreaID, Name: l.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListModules returns modules under a location.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	mods, err := h.Resolver.Modules(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moduleDTOs(mods))
}

// GetModule returns one module with its auto-fill details.
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	mod, err := h.Resolver.ModuleDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moduleDTOs([]catalog.Module{*mod})[0])
}

// ListRoutes returns the Z-side route candidates, priced when a connection
// type is supplied.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Resolver.Routes(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("connection_type"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	dtos := make([]RouteOptionDTO, 0, len(opts))
	for _, opt := range opts {
		dto := RouteOptionDTO{
			ID:         opt.Route.ID,
			Name:       opt.Route.Name,
			DistanceKM: opt.Route.DistanceKM.String(),
		}
		if opt.Quote != nil {
			mrc, nrc := opt.Quote.MRC.String(), opt.Quote.NRC.String()
			dto.MRC, dto.NRC = &mrc, &nrc
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListConnectionTypes returns the active connection types.
func (h *Handler) ListConnectionTypes(w http.ResponseWriter, r *http.Request) {
	cts, err := h.Store.ListConnectionTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list connection types", err)
		return
	}
	dtos := make([]ConnectionTypeDTO, 0, len(cts))
	for _, ct := range cts {
		dtos = append(dtos, ConnectionTypeDTO{ID: ct.ID, Name: ct.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPrice resolves the quote for a route/connection-type pair. A missing
// rate mapping is reported with a distinct code, never rendered as zero.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.Resolver.Price(r.Context(), q.Get("route"), q.Get("connection_type"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		RouteID:          quote.RouteID,
		ConnectionTypeID: quote.ConnectionTypeID,
		MRC:              quote.MRC.String(),
		NRC:              quote.NRC.String(),
	})
}

// ApplySelectionChange derives the next selection after one wizard edit,
// resetting dependent levels. Module changes auto-fill coordinates and
// tenant name from the catalog.
func (h *Handler) ApplySelectionChange(w http.ResponseWriter, r *http.Request) {
	var req ApplyChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sel, err := toSelection(req.Selection)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	ch, err := parseChange(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	next := catalog.Apply(sel, ch)
	if ch.Level == catalog.LevelModule && ch.Value != "" {
		mod, err := h.Resolver.ModuleDetails(r.Context(), ch.Value)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		next = catalog.AutoFill(next, ch.Side, mod)
	}

	writeJSON(w, http.StatusOK, fromSelection(next))
}

func parseChange(req ApplyChangeRequest) (catalog.Change, error) {
	ch := catalog.Change{Value: req.Value}

	switch req.Side {
	case "a", "":
		ch.Side = catalog.SideA
	case "z":
		ch.Side = catalog.SideZ
	default:
		return ch, &workflow.FieldError{Field: "side", Message: "must be a or z"}
	}

	switch req.Level {
	case "area":
		ch.Level = catalog.LevelArea
	case "location":
		ch.Level = catalog.LevelLocation
	case "module":
		ch.Level = catalog.LevelModule
	case "route":
		ch.Level = catalog.LevelRoute
	case "connection_type":
		ch.Level = catalog.LevelConnectionType
	default:
		return ch, &workflow.FieldError{Field: "level", Message: "unknown level"}
	}
	return ch, nil
}

func moduleDTOs(mods []catalog.Module) []ModuleDTO {
	dtos := make([]ModuleDTO, 0, len(mods))
	for _, m := range mods {
		dtos = append(dtos, ModuleDTO{
			ID:          m.ID,
			LocationID:  m.LocationID,
			Name:        m.Name,
			Coordinates: m.Coordinates,
			TenantName:  m.TenantName,
		})
	}
	return dtos
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// ListCompanies returns the active companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Store.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies", err)
		return
	}
	dtos := make([]CompanyDTO, 0, len(companies))
	for _, c := range companies {
		dtos = append(dtos, CompanyDTO{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListContacts returns a company's active contacts, optionally filtered by
// type ("commercial" or "technical").
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "id")
	contactType := workflow.ContactType(r.URL.Query().Get("type"))

	contacts, err := h.Store.ListContacts(r.Context(), companyID, contactType, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contacts", err)
		return
	}
	dtos := make([]ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		dtos = append(dtos, ContactDTO{
			ID: c.ID, CompanyID: c.CompanyID, Name: c.Name, Email: c.Email, Type: c.Type,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ODF HANDLERS
// =============================================================================

// ListODFs returns every known frame.
func (h *Handler) ListODFs(w http.ResponseWriter, r *http.Request) {
	frames, err := h.Store.ListODFs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ODFs", err)
		return
	}
	dtos := make([]ODFDTO, 0, len(frames))
	for _, f := range frames {
		dtos = append(dtos, ODFDTO{Code: f.Code, TotalPorts: f.TotalPorts})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAvailability returns the advisory available-port snapshot for a frame.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	avail, err := h.Allocator.Availability(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		ODFCode:        avail.ODFCode,
		TotalPorts:     avail.TotalPorts,
		AvailablePorts: avail.AvailablePorts,
	})
}

// =============================================================================
// VIABILITY HANDLERS
// =============================================================================

// ListViabilities returns requests, optionally filtered by classification.
func (h *Handler) ListViabilities(w http.ResponseWriter, r *http.Request) {
	var filter *workflow.Classification
	if raw := r.URL.Query().Get("classification"); raw != "" {
		c := workflow.Classification(raw)
		if !c.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown classification", nil)
			return
		}
		filter = &c
	}

	requests, err := h.Machine.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list viabilities", err)
		return
	}
	dtos := make([]ViabilityDTO, 0, len(requests))
	for i := range requests {
		dtos = append(dtos, fromViability(&requests[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateViability validates the composed selection and creates the request.
func (h *Handler) CreateViability(w http.ResponseWriter, r *http.Request) {
	var req CreateViabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sel, err := toSelection(req.Selection)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	in := viability.CreateInput{
		CompanyID: req.CompanyID,
		Selection: sel,
		Special:   req.Special,
	}
	if in.SpecialMRC, err = parseDecimalPtr("special_mrc", req.SpecialMRC); err != nil {
		respondDomainError(w, err)
		return
	}
	if in.SpecialNRC, err = parseDecimalPtr("special_nrc", req.SpecialNRC); err != nil {
		respondDomainError(w, err)
		return
	}

	record, err := h.Machine.Create(r.Context(), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromViability(record))
}

// GetViability returns a single request.
func (h *Handler) GetViability(w http.ResponseWriter, r *http.Request) {
	record, err := h.Machine.Get(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromViability(record))
}

// GetViabilityOrder returns the order materialized when the request was
// approved.
func (h *Handler) GetViabilityOrder(w http.ResponseWriter, r *http.Request) {
	id := workflow.ViabilityID(chi.URLParam(r, "id"))
	o, err := h.Store.GetOrderByViability(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "Viability has no order", nil)
		return
	}
	writeJSON(w, http.StatusOK, fromOrder(o))
}

// QuoteViability marks the commercial quoting step done.
func (h *Handler) QuoteViability(w http.ResponseWriter, r *http.Request) {
	record, err := h.Machine.Quote(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromViability(record))
}

// CancelViability cancels a request-for-quote with a mandatory reason.
func (h *Handler) CancelViability(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, err := h.Machine.Cancel(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")), req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromViability(record))
}

// RejectViability rejects a request with a mandatory reason. Also serves as
// the reject outcome of the special flow's simplified approval.
func (h *Handler) RejectViability(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, err := h.Machine.Reject(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")), req.Reason, req.Actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromViability(record))
}

// ApproveSpecialViability is the simplified approve outcome for special
// requests: the order is created without port assignments.
func (h *Handler) ApproveSpecialViability(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, o, err := h.Machine.ApproveSpecial(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")), req.Actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"viability": fromViability(record),
		"order":     fromOrder(o),
	})
}

// =============================================================================
// APPROVAL SESSION HANDLERS
// =============================================================================

// StartApproval opens a multi-step approval session for a request.
func (h *Handler) StartApproval(w http.ResponseWriter, r *http.Request) {
	s, err := h.Approvals.Start(r.Context(), workflow.ViabilityID(chi.URLParam(r, "id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromSession(s))
}

// GetApproval returns a session's current step and entered values.
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	s, err := h.Approvals.Get(chi.URLParam(r, "sid"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSession(s))
}

// SetApprovalContacts records step 1.
func (h *Handler) SetApprovalContacts(w http.ResponseWriter, r *http.Request) {
	var req SetContactsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := h.Approvals.SetContacts(chi.URLParam(r, "sid"), req.CommercialContactID, req.TechnicalContactID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSession(s))
}

// SetApprovalPorts records step 2.
func (h *Handler) SetApprovalPorts(w http.ResponseWriter, r *http.Request) {
	var req SetPortsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	primary := odf.PortAssignment{ODFCode: req.Primary.ODFCode, Port: req.Primary.Port}
	s, err := h.Approvals.SetPorts(chi.URLParam(r, "sid"), primary, toAssignment(req.Secondary), req.UsesRedundantPoint)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSession(s))
}

// ApprovalBack navigates one step earlier without losing entered values.
func (h *Handler) ApprovalBack(w http.ResponseWriter, r *http.Request) {
	s, err := h.Approvals.Back(chi.URLParam(r, "sid"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSession(s))
}

// ApprovalConfirm records the explicit confirmation on step 3.
func (h *Handler) ApprovalConfirm(w http.ResponseWriter, r *http.Request) {
	s, err := h.Approvals.Confirm(chi.URLParam(r, "sid"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromSession(s))
}

// ApprovalSubmit applies the assembled approval atomically. On a conflict
// the session survives with its values and the caller re-selects ports.
func (h *Handler) ApprovalSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	record, o, err := h.Approvals.Submit(r.Context(), chi.URLParam(r, "sid"), req.Actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"viability": fromViability(record),
		"order":     fromOrder(o),
	})
}

// AbandonApproval drops the session. Nothing was persisted before submit.
func (h *Handler) AbandonApproval(w http.ResponseWriter, r *http.Request) {
	h.Approvals.Abandon(chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns all service orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}
	dtos := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, fromOrder(&orders[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), workflow.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromOrder(o))
}

// UpdateOrder applies a partial edit to an order's editable fields.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := order.OrderPatch{
		LocationDetail:        req.LocationDetail,
		InterconnectionDetail: req.InterconnectionDetail,
		ServiceDetail:         req.ServiceDetail,
		Primary:               toAssignment(req.Primary),
		Secondary:             toAssignment(req.Secondary),
		ClearSecondary:        req.ClearSecondary,
		CommercialContactID:   req.CommercialContactID,
		TechnicalContactID:    req.TechnicalContactID,
	}
	o, err := h.Orders.Update(r.Context(), workflow.OrderID(chi.URLParam(r, "id")), patch)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromOrder(o))
}

// ListAttachments returns an order's verification artifacts.
func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := h.Store.ListAttachments(r.Context(), workflow.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attachments", err)
		return
	}
	dtos := make([]AttachmentDTO, 0, len(atts))
	for _, a := range atts {
		dtos = append(dtos, fromAttachment(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddAttachment records a verification artifact (OTDR trace, photo).
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var req AddAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	att, err := h.Orders.AddAttachment(r.Context(), workflow.OrderID(chi.URLParam(r, "id")), order.AttachmentKind(req.Kind), req.Filename)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromAttachment(*att))
}

// =============================================================================
// CIRCUIT HANDLERS
// =============================================================================

// CreateCircuit materializes the billable circuit from a completed order,
// exactly once.
func (h *Handler) CreateCircuit(w http.ResponseWriter, r *http.Request) {
	var req CreateCircuitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	attrs := order.PhysicalAttributes{
		CIDA:         req.CIDA,
		CIDZ:         req.CIDZ,
		FTPReference: req.FTPReference,
	}
	var err error
	if attrs.DistanceKM, err = parseDecimalPtr("distance_km", req.DistanceKM); err != nil {
		respondDomainError(w, err)
		return
	}
	if attrs.MRC, err = parseDecimalPtr("mrc", req.MRC); err != nil {
		respondDomainError(w, err)
		return
	}
	if attrs.NRC, err = parseDecimalPtr("nrc", req.NRC); err != nil {
		respondDomainError(w, err)
		return
	}

	c, err := h.Orders.CreateCircuit(r.Context(), workflow.OrderID(chi.URLParam(r, "id")), attrs)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fromCircuit(c))
}

// GetOrderCircuit returns the circuit created from an order.
func (h *Handler) GetOrderCircuit(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCircuitByOrder(r.Context(), workflow.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get circuit", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Order has no circuit", nil)
		return
	}
	writeJSON(w, http.StatusOK, fromCircuit(c))
}

// GetCircuit returns a circuit by ID.
func (h *Handler) GetCircuit(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCircuit(r.Context(), workflow.CircuitID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get circuit", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Circuit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, fromCircuit(c))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// respondDomainError maps the workflow error taxonomy to HTTP status codes.
// Conflicts (port taken, guard violated, circuit exists) are 409 so clients
// re-fetch and re-select instead of retrying as-is.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case catalog.IsNoRate(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "No rate configured", Details: err.Error(), Code: "no_rate_configured",
		})
	case workflow.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case workflow.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case workflow.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
