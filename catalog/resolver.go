/*
resolver.go - Cascade option queries and selection derivation

PURPOSE:
  Two halves of the cascade contract:

  1. Resolver: answers "what may be chosen next" for the current Selection.
     Querying a level whose parent is unselected returns an empty option set,
     not an error. A route/connection-type pair with no configured rate is
     reported as ErrNoRateConfigured so the caller can surface it distinctly
     from "not yet selected".

  2. Apply: the single pure derivation applied on every change. Selecting a
     new value at any level clears every dependent level below it, so the
     tuple can never hold a module that belongs to a previously selected
     location, or a price computed from an abandoned route.

CASCADE ORDER:
  Area -> Location -> Module           (per endpoint)
  Z Location -> Route                  (route candidates are Z-side)
  Route + ConnectionType -> MRC/NRC    (price is last, cleared by everything)

SEE ALSO:
  - types.go: Selection and catalog row types
  - store/sqlite: the production Source implementation
*/
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fibernova/provision-engine/workflow"
)

// ErrNoRateConfigured is returned when a route/connection-type pair has no
// price mapping. This is never silently rendered as zero.
var ErrNoRateConfigured = errors.New("no rate configured for route/connection type")

// IsNoRate reports whether err means a missing rate mapping.
func IsNoRate(err error) bool { return errors.Is(err, ErrNoRateConfigured) }

// =============================================================================
// SOURCE - Read-side catalog interface
// =============================================================================

// Source is the read-only catalog the resolver queries. Implemented by the
// sqlite store; tests use small in-memory fixtures.
type Source interface {
	ListAreas(ctx context.Context) ([]DevelopmentArea, error)
	ListLocationsByArea(ctx context.Context, areaID string) ([]Location, error)
	ListModulesByLocation(ctx context.Context, locationID string) ([]Module, error)
	GetModule(ctx context.Context, moduleID string) (*Module, error)
	ListRoutesByLocation(ctx context.Context, locationID string) ([]Route, error)
	ListConnectionTypes(ctx context.Context) ([]ConnectionType, error)

	// GetRate returns nil (not an error) when no rate is configured.
	GetRate(ctx context.Context, routeID, connectionTypeID string) (*Rate, error)
}

// =============================================================================
// RESOLVER - Option queries for the current selection
// =============================================================================

type Resolver struct {
	Source Source
}

func NewResolver(src Source) *Resolver { return &Resolver{Source: src} }

// Locations returns the active locations selectable under the given area.
// With no area selected the option set is empty.
func (r *Resolver) Locations(ctx context.Context, areaID string) ([]Location, error) {
	if areaID == "" {
		return nil, nil
	}
	locs, err := r.Source.ListLocationsByArea(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return activeLocations(locs), nil
}

// Modules returns the active modules selectable under the given location.
func (r *Resolver) Modules(ctx context.Context, locationID string) ([]Module, error) {
	if locationID == "" {
		return nil, nil
	}
	mods, err := r.Source.ListModulesByLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	out := make([]Module, 0, len(mods))
	for _, m := range mods {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

// ModuleDetails returns the module used to auto-fill endpoint coordinates
// and tenant name.
func (r *Resolver) ModuleDetails(ctx context.Context, moduleID string) (*Module, error) {
	mod, err := r.Source.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}
	if mod == nil || !mod.Active {
		return nil, &workflow.NotFoundError{Kind: "module", ID: moduleID}
	}
	return mod, nil
}

// Routes returns candidate routes for the Z-side location, each carrying its
// precomputed distance. When a connection type is already selected, every
// option with a configured rate also carries its quote.
func (r *Resolver) Routes(ctx context.Context, zLocationID, connectionTypeID string) ([]RouteOption, error) {
	if zLocationID == "" {
		return nil, nil
	}
	routes, err := r.Source.ListRoutesByLocation(ctx, zLocationID)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	opts := make([]RouteOption, 0, len(routes))
	for _, rt := range routes {
		opt := RouteOption{Route: rt}
		if connectionTypeID != "" {
			rate, err := r.Source.GetRate(ctx, rt.ID, connectionTypeID)
			if err != nil {
				return nil, fmt.Errorf("get rate: %w", err)
			}
			if rate != nil {
				opt.Quote = &Quote{
					RouteID:          rt.ID,
					ConnectionTypeID: connectionTypeID,
					MRC:              rate.MRC,
					NRC:              rate.NRC,
				}
			}
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// Price resolves the quote for a (route, connection type) pair. A missing
// mapping is ErrNoRateConfigured, distinct from "not yet selected".
func (r *Resolver) Price(ctx context.Context, routeID, connectionTypeID string) (*Quote, error) {
	if routeID == "" {
		return nil, workflow.MissingField("route")
	}
	if connectionTypeID == "" {
		return nil, workflow.MissingField("connection_type")
	}
	rate, err := r.Source.GetRate(ctx, routeID, connectionTypeID)
	if err != nil {
		return nil, fmt.Errorf("get rate: %w", err)
	}
	if rate == nil {
		return nil, fmt.Errorf("route %s / connection type %s: %w",
			routeID, connectionTypeID, ErrNoRateConfigured)
	}
	return &Quote{
		RouteID:          routeID,
		ConnectionTypeID: connectionTypeID,
		MRC:              rate.MRC,
		NRC:              rate.NRC,
	}, nil
}

// activeLocations never filters in place: the input slice belongs to the
// Source and must not be reordered under it.
func activeLocations(locs []Location) []Location {
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// APPLY - Pure selection derivation
// =============================================================================

// Side selects which endpoint a change targets. Route and connection type are
// request-level and ignore the side.
type Side int

const (
	SideA Side = iota
	SideZ
)

// Level identifies which selection level changed.
type Level int

const (
	LevelArea Level = iota
	LevelLocation
	LevelModule
	LevelRoute
	LevelConnectionType
)

// Change is one user edit to the selection tuple.
type Change struct {
	Side  Side
	Level Level
	Value string
}

// Apply returns the selection after a change, with every dependent level
// below the changed one reset to unselected. The input is never mutated.
//
// Reset rules:
//   - endpoint area change clears that endpoint's location and module
//   - endpoint location change clears that endpoint's module
//   - any Z-side change clears the route (route candidates are Z-located)
//   - any change at all clears the price: MRC/NRC only exist for a fully
//     stable (route, connection type) pair and must re-resolve after an edit
func Apply(sel Selection, ch Change) Selection {
	next := sel

	switch ch.Level {
	case LevelArea:
		ep := endpointOf(&next, ch.Side)
		ep.AreaID = ch.Value
		ep.LocationID = ""
		ep.ModuleID = ""
		ep.Coordinates = ""
		ep.TenantName = ""
		if ch.Side == SideZ {
			next.RouteID = ""
		}
	case LevelLocation:
		ep := endpointOf(&next, ch.Side)
		ep.LocationID = ch.Value
		ep.ModuleID = ""
		ep.Coordinates = ""
		ep.TenantName = ""
		if ch.Side == SideZ {
			next.RouteID = ""
		}
	case LevelModule:
		ep := endpointOf(&next, ch.Side)
		ep.ModuleID = ch.Value
		ep.Coordinates = ""
		ep.TenantName = ""
	case LevelRoute:
		next.RouteID = ch.Value
	case LevelConnectionType:
		next.ConnectionTypeID = ch.Value
	}

	next.MRC = nil
	next.NRC = nil
	return next
}

// AutoFill copies the module's coordinates and tenant name onto the endpoint,
// leaving operator overrides possible afterwards.
func AutoFill(sel Selection, side Side, mod *Module) Selection {
	next := sel
	ep := endpointOf(&next, side)
	ep.Coordinates = mod.Coordinates
	ep.TenantName = mod.TenantName
	return next
}

// WithQuote attaches a resolved price to the selection.
func WithQuote(sel Selection, q *Quote) Selection {
	next := sel
	mrc, nrc := q.MRC, q.NRC
	next.MRC = &mrc
	next.NRC = &nrc
	return next
}

func endpointOf(sel *Selection, side Side) *Endpoint {
	if side == SideZ {
		return &sel.Z
	}
	return &sel.A
}
