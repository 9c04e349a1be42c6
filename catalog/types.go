/*
Package catalog provides the dependent-selection cascade for viability requests.

PURPOSE:
  A viability request is composed by walking a chain of catalog choices:

    Development Area -> Location -> Module        (per endpoint, A and Z)
    Z-side Location  -> Route                     (with precomputed distance)
    Route + Connection Type -> Rate (MRC, NRC)

  Each choice narrows the next level's options and ultimately determines the
  price. This package owns the catalog entity types, the Selection tuple, and
  the pure derivation that keeps the tuple consistent when a level changes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Catalog rows: DevelopmentArea, Location, Module, Route, ConnectionType, Rate
  - Endpoint: the resolved A- or Z-side of a request
  - Selection: the full selection tuple for one request
  - Quote: a resolved (MRC, NRC) pair

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float64
  2. Unpriced is nil, never zero: an unresolved rate must not look like a
     free service
  3. Derivation is pure: resolver queries read options, Apply mutates nothing

SEE ALSO:
  - resolver.go: Option queries and the Apply derivation
*/
package catalog

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG ROWS
// =============================================================================

type DevelopmentArea struct {
	ID     string
	Name   string
	Active bool
}

type Location struct {
	ID     string
	AreaID string
	Name   string
	Active bool
}

// Module is a physical building/module inside a location. Its coordinates and
// tenant name auto-fill the endpoint when selected, but remain user-editable.
type Module struct {
	ID          string
	LocationID  string
	Name        string
	Coordinates string
	TenantName  string
	Active      bool
}

// Route is a candidate fiber path terminating at a Z-side location. Distance
// is precomputed by engineering; this system never measures it.
type Route struct {
	ID         string
	LocationID string
	Name       string
	DistanceKM decimal.Decimal
}

type ConnectionType struct {
	ID     string
	Name   string
	Active bool
}

// Rate maps a (route, connection type) pair to its recurring and
// non-recurring charge.
type Rate struct {
	RouteID          string
	ConnectionTypeID string
	MRC              decimal.Decimal
	NRC              decimal.Decimal
}

// Company and Contact back the approval workflow's contact selectors.
type Company struct {
	ID     string
	Name   string
	Active bool
}

type Contact struct {
	ID        string
	CompanyID string
	Name      string
	Email     string
	Type      string // "commercial" or "technical"
	Active    bool
}

// =============================================================================
// ENDPOINT - One resolved side of a request
// =============================================================================

// Endpoint describes one termination side. AreaID/LocationID/ModuleID follow
// the cascade; Coordinates and TenantName auto-fill from the module but may
// be overridden by the operator.
type Endpoint struct {
	AreaID      string
	LocationID  string
	ModuleID    string
	Coordinates string
	TenantName  string
}

// Resolved reports whether every cascade level of the endpoint is selected.
func (e Endpoint) Resolved() bool {
	return e.AreaID != "" && e.LocationID != "" && e.ModuleID != "" && e.Coordinates != ""
}

// =============================================================================
// SELECTION - The full tuple composing one request
// =============================================================================

// Selection is the current state of the request wizard: both endpoints, the
// chosen route and connection type, and the resolved price. A nil MRC/NRC
// means "not priced yet" - resolved zero would mean a free service.
type Selection struct {
	A Endpoint
	Z Endpoint

	RouteID          string
	ConnectionTypeID string

	MRC *decimal.Decimal
	NRC *decimal.Decimal
}

// Priced reports whether the selection carries a resolved quote.
func (s Selection) Priced() bool { return s.MRC != nil && s.NRC != nil }

// Complete reports whether the selection can back a viability request:
// both endpoints resolved, route and connection type chosen, price attached.
func (s Selection) Complete() bool {
	return s.A.Resolved() && s.Z.Resolved() &&
		s.RouteID != "" && s.ConnectionTypeID != "" && s.Priced()
}

// Quote is a resolved (MRC, NRC) pair for a route/connection-type combination.
type Quote struct {
	RouteID          string
	ConnectionTypeID string
	MRC              decimal.Decimal
	NRC              decimal.Decimal
}

// RouteOption is a candidate route offered to the wizard, with its price for
// the currently selected connection type when one is configured.
type RouteOption struct {
	Route Route
	Quote *Quote // nil when no connection type selected or no rate configured
}
