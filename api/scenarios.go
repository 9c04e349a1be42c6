/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	catalog data for testing and demos: development areas, locations,
	modules, routes, rates, connection types, ODFs, companies, and contacts.

AVAILABLE SCENARIOS:

	metro-campus:   Two areas, one priced route, one 8-port ODF
	multi-route:    Several routes with mixed rate coverage, two ODFs

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed catalog rows through the store's Save methods
 3. The workflow starts empty: no viabilities, orders, or reservations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "metro-campus"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
  - store/sqlite: the Save methods these loaders call
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "metro-campus",
		Name:        "Metro Campus",
		Description: "Two development areas, one priced route, one 8-port ODF",
	},
	{
		ID:          "multi-route",
		Name:        "Multi-Route",
		Description: "Several Z-side routes with mixed rate coverage and two ODFs",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and seeds the chosen scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "metro-campus":
		err = loadMetroCampus(ctx, h)
	case "multi-route":
		err = loadMultiRoute(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

// loadMetroCampus seeds the smallest complete catalog: enough to walk the
// wizard end to end and approve against ODF-01.
func loadMetroCampus(ctx context.Context, h *Handler) error {
	seed := seeder{ctx: ctx, h: h}

	seed.area("area-north", "North Development Area")
	seed.area("area-south", "South Development Area")

	seed.location("loc-n1", "area-north", "North Campus 1")
	seed.location("loc-s1", "area-south", "South Campus 1")

	seed.module("mod-n1a", "loc-n1", "Building A", "19.4326,-99.1332", "Telecom North SA")
	seed.module("mod-s1a", "loc-s1", "Building A", "19.3910,-99.2837", "DataSouth SA")
	seed.module("mod-s1b", "loc-s1", "Building B", "19.3921,-99.2840", "DataSouth SA")

	seed.connectionType("ct-dark-fiber", "Dark Fiber")
	seed.connectionType("ct-wavelength", "Wavelength 10G")

	seed.route("route-ns-1", "loc-s1", "North-South Trunk 1", "12.5")
	seed.rate("route-ns-1", "ct-dark-fiber", "50.00", "200.00")

	seed.odf("ODF-01", 8)

	seed.company("co-acme", "Acme Telecom")
	seed.contact("ct-acme-comm", "co-acme", "Laura Trejo", "laura@acme.example", "commercial")
	seed.contact("ct-acme-tech", "co-acme", "Marco Iglesias", "marco@acme.example", "technical")

	return seed.err
}

// loadMultiRoute seeds mixed rate coverage: some route/connection-type pairs
// priced, others deliberately without a rate to demo the distinct no-rate
// outcome.
func loadMultiRoute(ctx context.Context, h *Handler) error {
	seed := seeder{ctx: ctx, h: h}

	seed.area("area-metro", "Metro Area")
	seed.location("loc-m1", "area-metro", "Metro Hub 1")
	seed.location("loc-m2", "area-metro", "Metro Hub 2")

	seed.module("mod-m1a", "loc-m1", "Hall A", "19.4000,-99.1000", "HubCo")
	seed.module("mod-m2a", "loc-m2", "Hall A", "19.4100,-99.1100", "HubCo")
	seed.module("mod-m2b", "loc-m2", "Hall B", "19.4105,-99.1108", "ColoMax")

	seed.connectionType("ct-dark-fiber", "Dark Fiber")
	seed.connectionType("ct-wavelength", "Wavelength 10G")
	seed.connectionType("ct-ethernet", "Ethernet 1G")

	seed.route("route-m-1", "loc-m2", "Metro Ring East", "4.2")
	seed.route("route-m-2", "loc-m2", "Metro Ring West", "6.8")
	seed.route("route-m-3", "loc-m2", "Express Path", "3.1")

	seed.rate("route-m-1", "ct-dark-fiber", "80.00", "350.00")
	seed.rate("route-m-1", "ct-wavelength", "120.00", "500.00")
	seed.rate("route-m-2", "ct-dark-fiber", "95.00", "400.00")
	// route-m-3 has no rates on purpose.

	seed.odf("ODF-01", 8)
	seed.odf("ODF-02", 24)

	seed.company("co-acme", "Acme Telecom")
	seed.company("co-globex", "Globex Fiber")
	seed.contact("ct-acme-comm", "co-acme", "Laura Trejo", "laura@acme.example", "commercial")
	seed.contact("ct-acme-tech", "co-acme", "Marco Iglesias", "marco@acme.example", "technical")
	seed.contact("ct-globex-comm", "co-globex", "Dana Ruiz", "dana@globex.example", "commercial")
	seed.contact("ct-globex-tech", "co-globex", "Pat Nakamura", "pat@globex.example", "technical")

	return seed.err
}

// =============================================================================
// SEED HELPER
// =============================================================================

// seeder accumulates the first error so loaders read as flat row lists.
type seeder struct {
	ctx context.Context
	h   *Handler
	err error
}

func (s *seeder) area(id, name string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveArea(s.ctx, catalog.DevelopmentArea{ID: id, Name: name, Active: true})
}

func (s *seeder) location(id, areaID, name string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveLocation(s.ctx, catalog.Location{ID: id, AreaID: areaID, Name: name, Active: true})
}

func (s *seeder) module(id, locationID, name, coords, tenant string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveModule(s.ctx, catalog.Module{
		ID: id, LocationID: locationID, Name: name,
		Coordinates: coords, TenantName: tenant, Active: true,
	})
}

func (s *seeder) connectionType(id, name string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveConnectionType(s.ctx, catalog.ConnectionType{ID: id, Name: name, Active: true})
}

func (s *seeder) route(id, locationID, name, distanceKM string) {
	if s.err != nil {
		return
	}
	d, err := decimal.NewFromString(distanceKM)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.h.Store.SaveRoute(s.ctx, catalog.Route{ID: id, LocationID: locationID, Name: name, DistanceKM: d})
}

func (s *seeder) rate(routeID, connectionTypeID, mrc, nrc string) {
	if s.err != nil {
		return
	}
	m, err := decimal.NewFromString(mrc)
	if err != nil {
		s.err = err
		return
	}
	n, err := decimal.NewFromString(nrc)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.h.Store.SaveRate(s.ctx, catalog.Rate{
		RouteID: routeID, ConnectionTypeID: connectionTypeID, MRC: m, NRC: n,
	})
}

func (s *seeder) odf(code string, ports int) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveODF(s.ctx, odf.ODF{Code: code, TotalPorts: ports})
}

func (s *seeder) company(id, name string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveCompany(s.ctx, catalog.Company{ID: id, Name: name, Active: true})
}

func (s *seeder) contact(id, companyID, name, email, contactType string) {
	if s.err != nil {
		return
	}
	s.err = s.h.Store.SaveContact(s.ctx, catalog.Contact{
		ID: id, CompanyID: companyID, Name: name, Email: email, Type: contactType, Active: true,
	})
}
