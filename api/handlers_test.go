/*
handlers_test.go - End-to-end tests over the HTTP surface

Walks the provisioning workflow the way the admin frontend does: load a
scenario, read the cascade, create a viability, approve it through a
session, then build the circuit. Uses a real in-memory sqlite store behind
the full router.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gookit/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibernova/provision-engine/api"
	"github.com/fibernova/provision-engine/approval"
	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/store/sqlite"
	"github.com/fibernova/provision-engine/viability"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type env struct {
	t      *testing.T
	server *httptest.Server
}

func newEnv(t *testing.T) *env {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	events := event.NewManager("provision-test")
	allocator := odf.NewAllocator(store)
	machine := viability.NewMachine(store, catalog.NewResolver(store), allocator, events, log)
	orders := order.NewGenerator(store, allocator, events, log)
	approvals := approval.NewOrchestrator(machine, log)

	handler := api.NewHandler(store, machine, orders, approvals, log)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)

	e := &env{t: t, server: server}
	e.post("/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "metro-campus"}, http.StatusOK, nil)
	return e
}

// get issues a GET and decodes the response into out when the status matches.
func (e *env) get(path string, wantStatus int, out any) {
	e.t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(e.t, err)
	e.decode(resp, wantStatus, out)
}

func (e *env) post(path string, body any, wantStatus int, out any) {
	e.t.Helper()
	e.send(http.MethodPost, path, body, wantStatus, out)
}

func (e *env) put(path string, body any, wantStatus int, out any) {
	e.t.Helper()
	e.send(http.MethodPut, path, body, wantStatus, out)
}

func (e *env) delete(path string, wantStatus int) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.server.URL+path, nil)
	require.NoError(e.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.decode(resp, wantStatus, nil)
}

func (e *env) send(method, path string, body any, wantStatus int, out any) {
	e.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(e.t, err)
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.decode(resp, wantStatus, out)
}

func (e *env) decode(resp *http.Response, wantStatus int, out any) {
	e.t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(e.t, wantStatus, resp.StatusCode, "body: %s", buf.String())
	if out != nil {
		require.NoError(e.t, json.Unmarshal(buf.Bytes(), out))
	}
}

func strPtr(s string) *string { return &s }

// metroSelection is a complete selection over the metro-campus scenario.
func metroSelection() api.SelectionDTO {
	return api.SelectionDTO{
		A: api.EndpointDTO{
			AreaID: "area-north", LocationID: "loc-n1", ModuleID: "mod-n1a",
			Coordinates: "19.4326,-99.1332", TenantName: "Telecom North SA",
		},
		Z: api.EndpointDTO{
			AreaID: "area-south", LocationID: "loc-s1", ModuleID: "mod-s1a",
			Coordinates: "19.3910,-99.2837", TenantName: "DataSouth SA",
		},
		RouteID:          "route-ns-1",
		ConnectionTypeID: "ct-dark-fiber",
	}
}

// createViability posts a viability over route-ns-1 and returns its DTO.
func (e *env) createViability() api.ViabilityDTO {
	e.t.Helper()
	var v api.ViabilityDTO
	e.post("/api/viabilities/", api.CreateViabilityRequest{
		CompanyID: "co-acme",
		Selection: metroSelection(),
	}, http.StatusCreated, &v)
	return v
}

// approveViability drives a full approval session and returns the order.
func (e *env) approveViability(viabilityID string, port int) api.OrderDTO {
	e.t.Helper()
	var s api.SessionDTO
	e.post("/api/viabilities/"+viabilityID+"/approval", struct{}{}, http.StatusCreated, &s)
	e.post("/api/approvals/"+s.ID+"/contacts", api.SetContactsRequest{
		CommercialContactID: "ct-acme-comm",
		TechnicalContactID:  "ct-acme-tech",
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/ports", api.SetPortsRequest{
		Primary: api.PortAssignmentDTO{ODFCode: "ODF-01", Port: port},
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/confirm", struct{}{}, http.StatusOK, nil)

	var result struct {
		Viability api.ViabilityDTO `json:"viability"`
		Order     api.OrderDTO     `json:"order"`
	}
	e.post("/api/approvals/"+s.ID+"/submit", api.SubmitRequest{Actor: "admin"}, http.StatusOK, &result)
	assert.Equal(e.t, "approved", result.Viability.Classification)
	return result.Order
}

// =============================================================================
// CATALOG CASCADE TESTS
// =============================================================================

func TestCatalogCascade_ReadsFollowTheScenario(t *testing.T) {
	e := newEnv(t)

	var areas []api.AreaDTO
	e.get("/api/catalog/areas", http.StatusOK, &areas)
	require.Len(t, areas, 2)

	var locs []api.LocationDTO
	e.get("/api/catalog/areas/area-south/locations", http.StatusOK, &locs)
	require.Len(t, locs, 1)
	assert.Equal(t, "loc-s1", locs[0].ID)

	var mods []api.ModuleDTO
	e.get("/api/catalog/locations/loc-s1/modules", http.StatusOK, &mods)
	assert.Len(t, mods, 2)

	var routes []api.RouteOptionDTO
	e.get("/api/catalog/locations/loc-s1/routes?connection_type=ct-dark-fiber", http.StatusOK, &routes)
	require.Len(t, routes, 1)
	require.NotNil(t, routes[0].MRC)
	assert.Equal(t, "50", (*routes[0].MRC)[:2])
}

func TestCatalogPrice_ResolvedAndMissing(t *testing.T) {
	e := newEnv(t)

	var quote api.QuoteDTO
	e.get("/api/catalog/price?route=route-ns-1&connection_type=ct-dark-fiber", http.StatusOK, &quote)
	assert.Equal(t, "50", quote.MRC)
	assert.Equal(t, "200", quote.NRC)

	// ct-wavelength has no rate on route-ns-1.
	var errResp api.ErrorResponse
	e.get("/api/catalog/price?route=route-ns-1&connection_type=ct-wavelength", http.StatusBadRequest, &errResp)
	assert.Equal(t, "no_rate_configured", errResp.Code)
}

func TestSelectionApply_AreaChangeResetsDownstream(t *testing.T) {
	e := newEnv(t)

	sel := metroSelection()
	mrc, nrc := "50", "200"
	sel.MRC, sel.NRC = &mrc, &nrc

	var next api.SelectionDTO
	e.post("/api/selection/apply", api.ApplyChangeRequest{
		Selection: sel, Side: "z", Level: "area", Value: "area-north",
	}, http.StatusOK, &next)

	assert.Equal(t, "area-north", next.Z.AreaID)
	assert.Empty(t, next.Z.LocationID)
	assert.Empty(t, next.RouteID, "Z-side area change resets the route")
	assert.Nil(t, next.MRC)
}

func TestSelectionApply_ModuleChangeAutoFills(t *testing.T) {
	e := newEnv(t)

	sel := metroSelection()
	var next api.SelectionDTO
	e.post("/api/selection/apply", api.ApplyChangeRequest{
		Selection: sel, Side: "z", Level: "module", Value: "mod-s1b",
	}, http.StatusOK, &next)

	assert.Equal(t, "mod-s1b", next.Z.ModuleID)
	assert.Equal(t, "19.3921,-99.2840", next.Z.Coordinates, "coordinates auto-fill from the module")
	assert.Equal(t, "route-ns-1", next.RouteID, "module change keeps the route")
}

// =============================================================================
// VIABILITY LIFECYCLE TESTS
// =============================================================================

func TestViability_CreateAndRead(t *testing.T) {
	e := newEnv(t)
	v := e.createViability()

	assert.Equal(t, "request_for_quote", v.Classification)
	assert.Contains(t, v.DocumentNumber, "VB-")
	require.NotNil(t, v.Selection.MRC, "price resolved server-side")
	assert.Equal(t, "50", *v.Selection.MRC)

	var fetched api.ViabilityDTO
	e.get("/api/viabilities/"+v.ID, http.StatusOK, &fetched)
	assert.Equal(t, v.DocumentNumber, fetched.DocumentNumber)

	var listed []api.ViabilityDTO
	e.get("/api/viabilities/?classification=request_for_quote", http.StatusOK, &listed)
	assert.Len(t, listed, 1)
}

func TestViability_CancelAndReject(t *testing.T) {
	e := newEnv(t)

	v := e.createViability()
	var errResp api.ErrorResponse
	e.post("/api/viabilities/"+v.ID+"/cancel", api.ReasonRequest{}, http.StatusBadRequest, &errResp)

	var cancelled api.ViabilityDTO
	e.post("/api/viabilities/"+v.ID+"/cancel", api.ReasonRequest{Reason: "client withdrew"}, http.StatusOK, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Classification)

	w := e.createViability()
	var rejected api.ViabilityDTO
	e.post("/api/viabilities/"+w.ID+"/reject", api.ReasonRequest{Reason: "no capacity", Actor: "admin"}, http.StatusOK, &rejected)
	assert.Equal(t, "not_approved", rejected.Classification)
	require.NotNil(t, rejected.Reason)
}

// =============================================================================
// APPROVAL WORKFLOW TESTS
// =============================================================================

func TestApprovalWorkflow_EndToEnd(t *testing.T) {
	// GIVEN: The metro-campus scenario
	// WHEN: Walking create -> session -> contacts -> ports -> confirm -> submit
	// THEN: Approved viability, OS order snapshotting the price, port held

	e := newEnv(t)
	v := e.createViability()
	o := e.approveViability(v.ID, 3)

	assert.Contains(t, o.DocumentNumber, "OS-")
	assert.Equal(t, v.ID, o.ViabilityID)
	assert.Equal(t, "50", o.MRC)
	assert.Equal(t, "12.5", o.DistanceKM)
	require.NotNil(t, o.Primary)
	assert.Equal(t, 3, o.Primary.Port)

	var avail api.AvailabilityDTO
	e.get("/api/odfs/ODF-01/availability", http.StatusOK, &avail)
	assert.NotContains(t, avail.AvailablePorts, 3)
	assert.Len(t, avail.AvailablePorts, 7)

	var fetched api.OrderDTO
	e.get("/api/viabilities/"+v.ID+"/order", http.StatusOK, &fetched)
	assert.Equal(t, o.ID, fetched.ID)
}

func TestApprovalWorkflow_PortConflictIs409AndRecoverable(t *testing.T) {
	// GIVEN: Port 3 held by a previously approved viability
	// WHEN: A second approval submits against port 3
	// THEN: 409 with the session intact; re-selecting port 4 succeeds

	e := newEnv(t)
	first := e.createViability()
	e.approveViability(first.ID, 3)

	second := e.createViability()
	var s api.SessionDTO
	e.post("/api/viabilities/"+second.ID+"/approval", struct{}{}, http.StatusCreated, &s)
	e.post("/api/approvals/"+s.ID+"/contacts", api.SetContactsRequest{
		CommercialContactID: "ct-acme-comm", TechnicalContactID: "ct-acme-tech",
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/ports", api.SetPortsRequest{
		Primary: api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 3},
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/confirm", struct{}{}, http.StatusOK, nil)

	e.post("/api/approvals/"+s.ID+"/submit", api.SubmitRequest{Actor: "admin"}, http.StatusConflict, nil)

	var after api.SessionDTO
	e.get("/api/approvals/"+s.ID, http.StatusOK, &after)
	assert.Equal(t, "confirm", after.Step)
	assert.NotEmpty(t, after.LastError)
	assert.Equal(t, "ct-acme-comm", after.CommercialContactID, "entered values survive the conflict")

	e.post("/api/approvals/"+s.ID+"/ports", api.SetPortsRequest{
		Primary: api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 4},
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/confirm", struct{}{}, http.StatusOK, nil)

	var result struct {
		Viability api.ViabilityDTO `json:"viability"`
	}
	e.post("/api/approvals/"+s.ID+"/submit", api.SubmitRequest{Actor: "admin"}, http.StatusOK, &result)
	assert.Equal(t, "approved", result.Viability.Classification)
}

func TestApprovalWorkflow_AbandonHoldsNothing(t *testing.T) {
	e := newEnv(t)
	v := e.createViability()

	var s api.SessionDTO
	e.post("/api/viabilities/"+v.ID+"/approval", struct{}{}, http.StatusCreated, &s)
	e.post("/api/approvals/"+s.ID+"/contacts", api.SetContactsRequest{
		CommercialContactID: "ct-acme-comm", TechnicalContactID: "ct-acme-tech",
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/ports", api.SetPortsRequest{
		Primary: api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 5},
	}, http.StatusOK, nil)

	e.delete("/api/approvals/"+s.ID, http.StatusNoContent)
	e.get("/api/approvals/"+s.ID, http.StatusNotFound, nil)

	var avail api.AvailabilityDTO
	e.get("/api/odfs/ODF-01/availability", http.StatusOK, &avail)
	assert.Len(t, avail.AvailablePorts, 8, "abandoned sessions hold no ports")
}

func TestSpecialViability_SimplifiedApproval(t *testing.T) {
	e := newEnv(t)

	var v api.ViabilityDTO
	e.post("/api/viabilities/", api.CreateViabilityRequest{
		CompanyID:  "co-acme",
		Selection:  metroSelection(),
		Special:    true,
		SpecialMRC: strPtr("999.99"),
		SpecialNRC: strPtr("10.00"),
	}, http.StatusCreated, &v)
	assert.True(t, v.Special)

	// The multi-step workflow refuses special requests.
	e.post("/api/viabilities/"+v.ID+"/approval", struct{}{}, http.StatusBadRequest, nil)

	var result struct {
		Viability api.ViabilityDTO `json:"viability"`
		Order     api.OrderDTO     `json:"order"`
	}
	e.post("/api/viabilities/"+v.ID+"/approve-special", api.SubmitRequest{Actor: "admin"}, http.StatusOK, &result)
	assert.Equal(t, "approved", result.Viability.Classification)
	assert.Nil(t, result.Order.Primary, "special orders get ports later through editing")
	assert.Equal(t, "999.99", result.Order.MRC)
}

// =============================================================================
// ORDER AND CIRCUIT TESTS
// =============================================================================

func TestOrderEditing_PartialUpdate(t *testing.T) {
	e := newEnv(t)
	v := e.createViability()
	o := e.approveViability(v.ID, 3)

	var updated api.OrderDTO
	e.put("/api/orders/"+o.ID, api.UpdateOrderRequest{
		ServiceDetail: strPtr("dark fiber pair 7/8"),
	}, http.StatusOK, &updated)

	assert.Equal(t, "dark fiber pair 7/8", updated.ServiceDetail)
	assert.Equal(t, "ct-acme-comm", updated.CommercialContactID, "absent fields unchanged")
	assert.Equal(t, "50", updated.MRC, "price snapshot not editable")
}

func TestOrderEditing_PortEditHoldsOccupancy(t *testing.T) {
	// GIVEN: A special order without ports
	// WHEN: Attaching a port through order editing
	// THEN: The port leaves availability and a later approval on it gets 409

	e := newEnv(t)
	var v api.ViabilityDTO
	e.post("/api/viabilities/", api.CreateViabilityRequest{
		CompanyID:  "co-acme",
		Selection:  metroSelection(),
		Special:    true,
		SpecialMRC: strPtr("999.99"),
		SpecialNRC: strPtr("10.00"),
	}, http.StatusCreated, &v)

	var result struct {
		Order api.OrderDTO `json:"order"`
	}
	e.post("/api/viabilities/"+v.ID+"/approve-special", api.SubmitRequest{Actor: "admin"}, http.StatusOK, &result)

	var updated api.OrderDTO
	e.put("/api/orders/"+result.Order.ID, api.UpdateOrderRequest{
		Primary: &api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 5},
	}, http.StatusOK, &updated)
	require.NotNil(t, updated.Primary)
	assert.Equal(t, 5, updated.Primary.Port)

	var avail api.AvailabilityDTO
	e.get("/api/odfs/ODF-01/availability", http.StatusOK, &avail)
	assert.NotContains(t, avail.AvailablePorts, 5, "edited ports hold occupancy")

	other := e.createViability()
	var s api.SessionDTO
	e.post("/api/viabilities/"+other.ID+"/approval", struct{}{}, http.StatusCreated, &s)
	e.post("/api/approvals/"+s.ID+"/contacts", api.SetContactsRequest{
		CommercialContactID: "ct-acme-comm", TechnicalContactID: "ct-acme-tech",
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/ports", api.SetPortsRequest{
		Primary: api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 5},
	}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/confirm", struct{}{}, http.StatusOK, nil)
	e.post("/api/approvals/"+s.ID+"/submit", api.SubmitRequest{Actor: "admin"}, http.StatusConflict, nil)
}

func TestOrderEditing_ClearSecondaryReleasesPort(t *testing.T) {
	e := newEnv(t)
	v := e.createViability()
	o := e.approveViability(v.ID, 3)

	var updated api.OrderDTO
	e.put("/api/orders/"+o.ID, api.UpdateOrderRequest{
		Secondary: &api.PortAssignmentDTO{ODFCode: "ODF-01", Port: 4},
	}, http.StatusOK, &updated)
	assert.True(t, updated.UsesRedundantPoint)

	updated = api.OrderDTO{}
	e.put("/api/orders/"+o.ID, api.UpdateOrderRequest{ClearSecondary: true}, http.StatusOK, &updated)
	assert.False(t, updated.UsesRedundantPoint)
	assert.Nil(t, updated.Secondary)

	var avail api.AvailabilityDTO
	e.get("/api/odfs/ODF-01/availability", http.StatusOK, &avail)
	assert.Contains(t, avail.AvailablePorts, 4, "the cleared redundant port frees up")
	assert.NotContains(t, avail.AvailablePorts, 3)
}

func TestCircuitCreation_EndToEnd(t *testing.T) {
	// GIVEN: An approved order
	// WHEN: Creating the circuit before and after attaching an OTDR trace
	// THEN: Refused without the trace; once created, exactly once

	e := newEnv(t)
	v := e.createViability()
	o := e.approveViability(v.ID, 3)

	e.post("/api/orders/"+o.ID+"/circuit", api.CreateCircuitRequest{
		CIDA: "CID-A-1", CIDZ: "CID-Z-1",
	}, http.StatusBadRequest, nil)

	e.post("/api/orders/"+o.ID+"/attachments", api.AddAttachmentRequest{
		Kind: "otdr", Filename: "trace-a.sor",
	}, http.StatusCreated, nil)

	var c api.CircuitDTO
	e.post("/api/orders/"+o.ID+"/circuit", api.CreateCircuitRequest{
		CIDA: "CID-A-1", CIDZ: "CID-Z-1", FTPReference: "ftp://traces/1",
	}, http.StatusCreated, &c)

	assert.Contains(t, c.DocumentNumber, "EN-")
	assert.Equal(t, o.ID, c.OrderID)
	assert.Equal(t, "12.5", c.DistanceKM)
	assert.Equal(t, "50", c.MRC)

	e.post("/api/orders/"+o.ID+"/circuit", api.CreateCircuitRequest{
		CIDA: "CID-A-2", CIDZ: "CID-Z-2",
	}, http.StatusConflict, nil)

	var byOrder api.CircuitDTO
	e.get("/api/orders/"+o.ID+"/circuit", http.StatusOK, &byOrder)
	assert.Equal(t, c.ID, byOrder.ID)

	var byID api.CircuitDTO
	e.get(fmt.Sprintf("/api/circuits/%s", c.ID), http.StatusOK, &byID)
	assert.Equal(t, c.DocumentNumber, byID.DocumentNumber)
}

func TestDocumentNumbers_PerKindSeries(t *testing.T) {
	e := newEnv(t)

	first := e.createViability()
	second := e.createViability()
	assert.NotEqual(t, first.DocumentNumber, second.DocumentNumber)

	o := e.approveViability(first.ID, 1)
	assert.Contains(t, o.DocumentNumber, "OS-")
	assert.Contains(t, o.DocumentNumber, "-000001", "OS series counts independently of VB")
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestScenarios_LoadResetsWorkflowState(t *testing.T) {
	e := newEnv(t)
	v := e.createViability()
	e.approveViability(v.ID, 3)

	e.post("/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "multi-route"}, http.StatusOK, nil)

	var listed []api.ViabilityDTO
	e.get("/api/viabilities/", http.StatusOK, &listed)
	assert.Empty(t, listed, "reload clears workflow state")

	var odfs []api.ODFDTO
	e.get("/api/odfs/", http.StatusOK, &odfs)
	assert.Len(t, odfs, 2)

	var current api.ScenarioDTO
	e.get("/api/scenarios/current", http.StatusOK, &current)
	assert.Equal(t, "multi-route", current.ID)
}

func TestScenarios_UnknownIDRejected(t *testing.T) {
	e := newEnv(t)
	e.post("/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "nope"}, http.StatusBadRequest, nil)
}
