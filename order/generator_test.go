package order_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/store/sqlite"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestRig seeds a catalog and builds the machine/generator pair the way
// main does, so generator tests run against orders the real workflow
// produced.
func newTestRig(t *testing.T) (*viability.Machine, *order.Generator, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveArea(ctx, catalog.DevelopmentArea{ID: "area-1", Name: "North", Active: true}))
	require.NoError(t, store.SaveLocation(ctx, catalog.Location{ID: "loc-1", AreaID: "area-1", Name: "Campus 1", Active: true}))
	require.NoError(t, store.SaveModule(ctx, catalog.Module{
		ID: "mod-1", LocationID: "loc-1", Name: "Building A",
		Coordinates: "19.43,-99.13", TenantName: "TelcoA", Active: true,
	}))
	require.NoError(t, store.SaveRoute(ctx, catalog.Route{ID: "route-1", LocationID: "loc-1", Name: "Trunk 1", DistanceKM: dec("12.5")}))
	require.NoError(t, store.SaveConnectionType(ctx, catalog.ConnectionType{ID: "ct-1", Name: "Dark Fiber", Active: true}))
	require.NoError(t, store.SaveRate(ctx, catalog.Rate{RouteID: "route-1", ConnectionTypeID: "ct-1", MRC: dec("50.00"), NRC: dec("200.00")}))
	require.NoError(t, store.SaveODF(ctx, odf.ODF{Code: "ODF-01", TotalPorts: 8}))
	require.NoError(t, store.SaveCompany(ctx, catalog.Company{ID: "co-1", Name: "Acme Telecom", Active: true}))
	require.NoError(t, store.SaveContact(ctx, catalog.Contact{ID: "comm-1", CompanyID: "co-1", Name: "Laura", Type: "commercial", Active: true}))
	require.NoError(t, store.SaveContact(ctx, catalog.Contact{ID: "tech-1", CompanyID: "co-1", Name: "Marco", Type: "technical", Active: true}))

	allocator := odf.NewAllocator(store)
	machine := viability.NewMachine(store, catalog.NewResolver(store), allocator, nil, zerolog.Nop())
	return machine, order.NewGenerator(store, allocator, nil, zerolog.Nop()), store
}

func newApprovedOrder(t *testing.T) (*order.Generator, *order.ServiceOrder, *sqlite.Store) {
	machine, g, store := newTestRig(t)
	return g, approveNewViability(t, machine, 3), store
}

// approveNewViability creates a fresh request and approves it on the port.
func approveNewViability(t *testing.T, machine *viability.Machine, port int) *order.ServiceOrder {
	t.Helper()
	r, err := machine.Create(context.Background(), testCreateInput())
	require.NoError(t, err)
	_, o, err := machine.Approve(context.Background(), r.ID, viability.ApprovalInput{
		CommercialContactID: "comm-1",
		TechnicalContactID:  "tech-1",
		Primary:             odf.PortAssignment{ODFCode: "ODF-01", Port: port},
		ApprovedBy:          "admin",
	})
	require.NoError(t, err)
	return o
}

// newSpecialOrder approves a special request, yielding an order without
// port assignments.
func newSpecialOrder(t *testing.T, machine *viability.Machine) *order.ServiceOrder {
	t.Helper()
	in := testCreateInput()
	in.Special = true
	mrc, nrc := dec("999.99"), dec("10.00")
	in.SpecialMRC, in.SpecialNRC = &mrc, &nrc
	r, err := machine.Create(context.Background(), in)
	require.NoError(t, err)
	_, o, err := machine.ApproveSpecial(context.Background(), r.ID, "admin")
	require.NoError(t, err)
	return o
}

func testCreateInput() viability.CreateInput {
	endpoint := catalog.Endpoint{
		AreaID: "area-1", LocationID: "loc-1", ModuleID: "mod-1",
		Coordinates: "19.43,-99.13", TenantName: "TelcoA",
	}
	return viability.CreateInput{
		CompanyID: "co-1",
		Selection: catalog.Selection{A: endpoint, Z: endpoint, RouteID: "route-1", ConnectionTypeID: "ct-1"},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func str(s string) *string { return &s }

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestGenerator_Update_NilFieldsUnchanged(t *testing.T) {
	// GIVEN: An approved order
	// WHEN: Patching only the service detail
	// THEN: Other fields keep their approval-time values

	g, o, _ := newApprovedOrder(t)
	ctx := context.Background()

	updated, err := g.Update(ctx, o.ID, order.OrderPatch{ServiceDetail: str("dark fiber pair 7/8")})
	require.NoError(t, err)

	assert.Equal(t, "dark fiber pair 7/8", updated.ServiceDetail)
	assert.Equal(t, "comm-1", updated.CommercialContactID)
	assert.Equal(t, o.ViabilityID, updated.ViabilityID, "the originating link never changes")
	require.NotNil(t, updated.Primary)
	assert.Equal(t, 3, updated.Primary.Port)
	assert.True(t, updated.MRC.Equal(dec("50.00")), "price snapshot is not editable")
}

func TestGenerator_Update_SecondarySetsRedundantPoint(t *testing.T) {
	g, o, _ := newApprovedOrder(t)

	updated, err := g.Update(context.Background(), o.ID, order.OrderPatch{
		Secondary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 5},
	})
	require.NoError(t, err)

	assert.True(t, updated.UsesRedundantPoint)
	require.NotNil(t, updated.Secondary)
	assert.Equal(t, 5, updated.Secondary.Port)
}

func TestGenerator_Update_PortPatchSwapsOccupancy(t *testing.T) {
	// GIVEN: An approved order holding port 3
	// WHEN: Patching the primary to port 5
	// THEN: Port 5 is held under the order, port 3 is released, and another
	//       consumer reserving port 5 conflicts

	g, o, store := newApprovedOrder(t)
	ctx := context.Background()

	updated, err := g.Update(ctx, o.ID, order.OrderPatch{
		Primary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 5},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Primary)
	assert.Equal(t, 5, updated.Primary.Port)

	avail, err := odf.NewAllocator(store).Availability(ctx, "ODF-01")
	require.NoError(t, err)
	assert.NotContains(t, avail.AvailablePorts, 5, "edited port leaves availability")
	assert.Contains(t, avail.AvailablePorts, 3, "the replaced port frees up")

	err = store.Reserve(ctx, odf.Reservation{ODFCode: "ODF-01", Port: 5, ConsumerRef: "order:other"})
	var conflict *odf.PortConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, o.ConsumerRef(), conflict.HeldBy)
}

func TestGenerator_Update_PortPatchConflict_NothingApplied(t *testing.T) {
	// GIVEN: Two approved orders on ports 3 and 4
	// WHEN: Editing the second order onto port 3
	// THEN: PortConflictError; the second order keeps port 4 and its hold

	machine, g, store := newTestRig(t)
	ctx := context.Background()
	first := approveNewViability(t, machine, 3)
	second := approveNewViability(t, machine, 4)

	_, err := g.Update(ctx, second.ID, order.OrderPatch{
		Primary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 3},
	})
	var conflict *odf.PortConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ConsumerRef(), conflict.HeldBy)

	fresh, err := g.Get(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.Primary)
	assert.Equal(t, 4, fresh.Primary.Port)

	avail, err := odf.NewAllocator(store).Availability(ctx, "ODF-01")
	require.NoError(t, err)
	assert.NotContains(t, avail.AvailablePorts, 4, "the rolled-back edit keeps the original hold")
}

func TestGenerator_Update_SpecialOrder_LatePortsHoldOccupancy(t *testing.T) {
	// GIVEN: A special order approved without ports
	// WHEN: Attaching a primary port through editing
	// THEN: The port is reserved like an approved one; a later approval on
	//       the same port loses

	machine, g, store := newTestRig(t)
	ctx := context.Background()
	o := newSpecialOrder(t, machine)
	require.Nil(t, o.Primary)

	_, err := g.Update(ctx, o.ID, order.OrderPatch{
		Primary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 4},
	})
	require.NoError(t, err)

	avail, err := odf.NewAllocator(store).Availability(ctx, "ODF-01")
	require.NoError(t, err)
	assert.NotContains(t, avail.AvailablePorts, 4)

	r, err := machine.Create(ctx, testCreateInput())
	require.NoError(t, err)
	_, _, err = machine.Approve(ctx, r.ID, viability.ApprovalInput{
		CommercialContactID: "comm-1",
		TechnicalContactID:  "tech-1",
		Primary:             odf.PortAssignment{ODFCode: "ODF-01", Port: 4},
		ApprovedBy:          "admin",
	})
	var conflict *odf.PortConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, o.ConsumerRef(), conflict.HeldBy)
}

func TestGenerator_Update_PortPatchRules(t *testing.T) {
	g, o, _ := newApprovedOrder(t)
	ctx := context.Background()

	t.Run("port out of range", func(t *testing.T) {
		_, err := g.Update(ctx, o.ID, order.OrderPatch{
			Primary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 99},
		})
		assert.True(t, workflow.IsValidation(err))
	})

	t.Run("secondary equal to primary", func(t *testing.T) {
		_, err := g.Update(ctx, o.ID, order.OrderPatch{
			Secondary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 3},
		})
		var selfErr *odf.SelfConflictError
		assert.ErrorAs(t, err, &selfErr)
	})

	t.Run("secondary without a primary", func(t *testing.T) {
		machine, gen, _ := newTestRig(t)
		special := newSpecialOrder(t, machine)
		_, err := gen.Update(ctx, special.ID, order.OrderPatch{
			Secondary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 2},
		})
		assert.True(t, workflow.IsValidation(err))
	})
}

func TestGenerator_Update_ClearSecondary_ReleasesPort(t *testing.T) {
	g, o, store := newApprovedOrder(t)
	ctx := context.Background()

	_, err := g.Update(ctx, o.ID, order.OrderPatch{
		Secondary: &odf.PortAssignment{ODFCode: "ODF-01", Port: 5},
	})
	require.NoError(t, err)

	updated, err := g.Update(ctx, o.ID, order.OrderPatch{ClearSecondary: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Secondary)
	assert.False(t, updated.UsesRedundantPoint)

	avail, err := odf.NewAllocator(store).Availability(ctx, "ODF-01")
	require.NoError(t, err)
	assert.Contains(t, avail.AvailablePorts, 5, "the cleared redundant port frees up")
	assert.NotContains(t, avail.AvailablePorts, 3, "the primary stays held")
}

func TestGenerator_Update_UnknownOrder_NotFound(t *testing.T) {
	g, _, _ := newApprovedOrder(t)

	_, err := g.Update(context.Background(), "no-such-order", order.OrderPatch{})
	assert.True(t, workflow.IsNotFound(err))
}

// =============================================================================
// ATTACHMENT TESTS
// =============================================================================

func TestGenerator_AddAttachment_Guards(t *testing.T) {
	g, o, _ := newApprovedOrder(t)
	ctx := context.Background()

	_, err := g.AddAttachment(ctx, o.ID, order.AttachmentOTDR, "")
	assert.True(t, workflow.IsValidation(err), "filename is mandatory")

	_, err = g.AddAttachment(ctx, o.ID, order.AttachmentKind("spreadsheet"), "trace.xlsx")
	assert.True(t, workflow.IsValidation(err), "unknown kind is rejected")

	att, err := g.AddAttachment(ctx, o.ID, order.AttachmentOTDR, "trace-a.sor")
	require.NoError(t, err)
	assert.Equal(t, o.ID, att.OrderID)

	atts, err := g.Store.ListAttachments(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, atts, 1)
}

// =============================================================================
// CIRCUIT TESTS
// =============================================================================

func TestGenerator_CreateCircuit_RequiresCIDsAndOTDR(t *testing.T) {
	g, o, _ := newApprovedOrder(t)
	ctx := context.Background()

	_, err := g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{CIDZ: "CID-Z-1"})
	assert.True(t, workflow.IsValidation(err), "cid_a is mandatory")

	_, err = g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{CIDA: "CID-A-1"})
	assert.True(t, workflow.IsValidation(err), "cid_z is mandatory")

	_, err = g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{CIDA: "CID-A-1", CIDZ: "CID-Z-1"})
	var missing *order.MissingArtifactError
	require.ErrorAs(t, err, &missing, "no OTDR trace attached yet")
	assert.Equal(t, order.AttachmentOTDR, missing.Kind)
}

func TestGenerator_CreateCircuit_SnapshotsOrderValues(t *testing.T) {
	// GIVEN: An order with an OTDR trace and no overrides
	// WHEN: Creating the circuit
	// THEN: Distance/MRC/NRC and ports come from the approval snapshot,
	//       document number is an EN series, order flagged CircuitCreated

	g, o, store := newApprovedOrder(t)
	ctx := context.Background()
	_, err := g.AddAttachment(ctx, o.ID, order.AttachmentOTDR, "trace-a.sor")
	require.NoError(t, err)

	c, err := g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{
		CIDA: "CID-A-1", CIDZ: "CID-Z-1", FTPReference: "ftp://traces/ord-1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(c.DocumentNumber, "EN-"))
	assert.Equal(t, o.ID, c.OrderID)
	assert.True(t, c.DistanceKM.Equal(dec("12.5")))
	assert.True(t, c.MRC.Equal(dec("50.00")))
	assert.True(t, c.NRC.Equal(dec("200.00")))
	require.NotNil(t, c.Primary)
	assert.Equal(t, 3, c.Primary.Port)

	fresh, err := g.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, fresh.CircuitCreated)

	persisted, err := store.GetCircuitByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, c.ID, persisted.ID)
}

func TestGenerator_CreateCircuit_OverridesWin(t *testing.T) {
	g, o, _ := newApprovedOrder(t)
	ctx := context.Background()
	_, err := g.AddAttachment(ctx, o.ID, order.AttachmentOTDR, "trace-a.sor")
	require.NoError(t, err)

	measured := dec("12.9")
	c, err := g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{
		CIDA: "CID-A-1", CIDZ: "CID-Z-1", DistanceKM: &measured,
	})
	require.NoError(t, err)

	assert.True(t, c.DistanceKM.Equal(measured), "measured distance replaces the snapshot")
	assert.True(t, c.MRC.Equal(dec("50.00")), "unoverridden values keep the snapshot")
}

func TestGenerator_CreateCircuit_ExactlyOnce(t *testing.T) {
	// GIVEN: An order whose circuit already exists
	// WHEN: Creating a second circuit
	// THEN: CircuitExistsError, recoverable conflict, nothing changes

	g, o, store := newApprovedOrder(t)
	ctx := context.Background()
	_, err := g.AddAttachment(ctx, o.ID, order.AttachmentOTDR, "trace-a.sor")
	require.NoError(t, err)

	first, err := g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{CIDA: "CID-A-1", CIDZ: "CID-Z-1"})
	require.NoError(t, err)

	_, err = g.CreateCircuit(ctx, o.ID, order.PhysicalAttributes{CIDA: "CID-A-2", CIDZ: "CID-Z-2"})
	var exists *order.CircuitExistsError
	require.ErrorAs(t, err, &exists)
	assert.True(t, workflow.IsConflict(err))

	persisted, err := store.GetCircuitByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, persisted.ID, "the original circuit survives")
}
