package approval_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibernova/provision-engine/approval"
	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/store/sqlite"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	orchestrator *approval.Orchestrator
	machine      *viability.Machine
	store        *sqlite.Store
	viabilityID  workflow.ViabilityID
}

func newFixture(t *testing.T) *fixture {
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

	machine := viability.NewMachine(store, catalog.NewResolver(store), odf.NewAllocator(store), nil, zerolog.Nop())

	endpoint := catalog.Endpoint{
		AreaID: "area-1", LocationID: "loc-1", ModuleID: "mod-1",
		Coordinates: "19.43,-99.13", TenantName: "TelcoA",
	}
	r, err := machine.Create(ctx, viability.CreateInput{
		CompanyID: "co-1",
		Selection: catalog.Selection{A: endpoint, Z: endpoint, RouteID: "route-1", ConnectionTypeID: "ct-1"},
	})
	require.NoError(t, err)

	return &fixture{
		orchestrator: approval.NewOrchestrator(machine, zerolog.Nop()),
		machine:      machine,
		store:        store,
		viabilityID:  r.ID,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// walkToConfirm drives a fresh session through contacts and ports.
func (f *fixture) walkToConfirm(t *testing.T, port int) *approval.Session {
	ctx := context.Background()
	s, err := f.orchestrator.Start(ctx, f.viabilityID)
	require.NoError(t, err)

	_, err = f.orchestrator.SetContacts(s.ID, "comm-1", "tech-1")
	require.NoError(t, err)
	_, err = f.orchestrator.SetPorts(s.ID, odf.PortAssignment{ODFCode: "ODF-01", Port: port}, nil, false)
	require.NoError(t, err)
	return s
}

// =============================================================================
// SESSION LIFECYCLE TESTS
// =============================================================================

func TestOrchestrator_Start_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown viability", func(t *testing.T) {
		_, err := f.orchestrator.Start(ctx, "no-such-id")
		assert.True(t, workflow.IsNotFound(err))
	})

	t.Run("special request refused", func(t *testing.T) {
		mrc, nrc := dec("999.99"), dec("10.00")
		endpoint := catalog.Endpoint{
			AreaID: "area-1", LocationID: "loc-1", ModuleID: "mod-1",
			Coordinates: "19.43,-99.13", TenantName: "TelcoA",
		}
		r, err := f.machine.Create(ctx, viability.CreateInput{
			CompanyID:  "co-1",
			Selection:  catalog.Selection{A: endpoint, Z: endpoint, RouteID: "route-1", ConnectionTypeID: "ct-1"},
			Special:    true,
			SpecialMRC: &mrc, SpecialNRC: &nrc,
		})
		require.NoError(t, err)

		_, err = f.orchestrator.Start(ctx, r.ID)
		assert.True(t, workflow.IsValidation(err))
	})

	t.Run("terminal classification refused", func(t *testing.T) {
		_, err := f.machine.Reject(ctx, f.viabilityID, "no capacity", "admin")
		require.NoError(t, err)

		_, err = f.orchestrator.Start(ctx, f.viabilityID)
		var tErr *viability.TransitionError
		assert.ErrorAs(t, err, &tErr)
	})
}

func TestOrchestrator_StepOrderEnforced(t *testing.T) {
	// GIVEN: A fresh session with no contacts entered
	// WHEN: Jumping straight to the ports step
	// THEN: Validation error; the session stays on contacts

	f := newFixture(t)
	s, err := f.orchestrator.Start(context.Background(), f.viabilityID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepContacts, s.Step)

	_, err = f.orchestrator.SetPorts(s.ID, odf.PortAssignment{ODFCode: "ODF-01", Port: 3}, nil, false)
	assert.True(t, workflow.IsValidation(err))

	fresh, err := f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepContacts, fresh.Step)
}

func TestOrchestrator_SetContacts_AdvancesToPorts(t *testing.T) {
	f := newFixture(t)
	s, _ := f.orchestrator.Start(context.Background(), f.viabilityID)

	_, err := f.orchestrator.SetContacts(s.ID, "comm-1", "")
	assert.True(t, workflow.IsValidation(err))

	updated, err := f.orchestrator.SetContacts(s.ID, "comm-1", "tech-1")
	require.NoError(t, err)
	assert.Equal(t, approval.StepPorts, updated.Step)
}

func TestOrchestrator_SetPorts_PairRulesSurfaceEarly(t *testing.T) {
	f := newFixture(t)
	s, _ := f.orchestrator.Start(context.Background(), f.viabilityID)
	_, err := f.orchestrator.SetContacts(s.ID, "comm-1", "tech-1")
	require.NoError(t, err)

	same := odf.PortAssignment{ODFCode: "ODF-01", Port: 3}
	_, err = f.orchestrator.SetPorts(s.ID, same, &same, true)
	var selfErr *odf.SelfConflictError
	assert.ErrorAs(t, err, &selfErr, "self-conflict is caught before the summary")

	updated, err := f.orchestrator.SetPorts(s.ID, same, nil, false)
	require.NoError(t, err)
	assert.Equal(t, approval.StepConfirm, updated.Step)
}

func TestOrchestrator_Back_KeepsEnteredValues(t *testing.T) {
	// GIVEN: A session on the confirmation step
	// WHEN: Going back to ports and then to contacts
	// THEN: Every entered value survives; confirmation is cleared

	f := newFixture(t)
	s := f.walkToConfirm(t, 3)

	back, err := f.orchestrator.Back(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepPorts, back.Step)
	assert.False(t, back.Confirmed)
	require.NotNil(t, back.Primary)
	assert.Equal(t, 3, back.Primary.Port)

	back, err = f.orchestrator.Back(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepContacts, back.Step)
	assert.Equal(t, "comm-1", back.CommercialContactID)

	back, err = f.orchestrator.Back(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepContacts, back.Step, "back from the first step stays put")
}

func TestOrchestrator_Get_ReturnsDetachedCopy(t *testing.T) {
	// GIVEN: A session in progress
	// WHEN: Mutating the struct a read handed out
	// THEN: The orchestrator's own record is unaffected

	f := newFixture(t)
	s := f.walkToConfirm(t, 3)

	got, err := f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	got.CommercialContactID = "scribbled"
	got.Step = approval.StepContacts
	got.Completed = true

	fresh, err := f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "comm-1", fresh.CommercialContactID)
	assert.Equal(t, approval.StepConfirm, fresh.Step)
	assert.False(t, fresh.Completed)

	s.TechnicalContactID = "also scribbled"
	fresh, err = f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", fresh.TechnicalContactID, "Start hands out a copy too")
}

// =============================================================================
// CONFIRM AND SUBMIT TESTS
// =============================================================================

func TestOrchestrator_Confirm_RequiresEarlierSteps(t *testing.T) {
	f := newFixture(t)
	s, _ := f.orchestrator.Start(context.Background(), f.viabilityID)

	_, err := f.orchestrator.Confirm(s.ID)
	assert.True(t, workflow.IsValidation(err))
}

func TestOrchestrator_Submit_RequiresExplicitConfirmation(t *testing.T) {
	f := newFixture(t)
	s := f.walkToConfirm(t, 3)

	_, _, err := f.orchestrator.Submit(context.Background(), s.ID, "admin")
	assert.True(t, workflow.IsValidation(err), "submit without confirm is refused")
}

func TestOrchestrator_Submit_ApprovesAtomically(t *testing.T) {
	// GIVEN: A confirmed session
	// WHEN: Submitting
	// THEN: Viability approved, order created, session completed

	f := newFixture(t)
	s := f.walkToConfirm(t, 3)
	_, err := f.orchestrator.Confirm(s.ID)
	require.NoError(t, err)

	r, o, err := f.orchestrator.Submit(context.Background(), s.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, workflow.Approved, r.Classification)
	require.NotNil(t, o.Primary)
	assert.Equal(t, 3, o.Primary.Port)

	done, err := f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Empty(t, done.LastError)

	_, _, err = f.orchestrator.Submit(context.Background(), s.ID, "admin")
	assert.True(t, workflow.IsValidation(err), "a completed session cannot re-submit")
}

func TestOrchestrator_Submit_ConflictKeepsSessionRecoverable(t *testing.T) {
	// GIVEN: Port 3 taken between port selection and submit
	// WHEN: Submitting
	// THEN: Conflict surfaces on the confirmation step; contacts and ports
	//       survive; re-selecting a free port and re-submitting succeeds

	f := newFixture(t)
	ctx := context.Background()
	s := f.walkToConfirm(t, 3)
	_, err := f.orchestrator.Confirm(s.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.Reserve(ctx, odf.Reservation{ODFCode: "ODF-01", Port: 3, ConsumerRef: "order:other"}))

	_, _, err = f.orchestrator.Submit(ctx, s.ID, "admin")
	var conflict *odf.PortConflictError
	require.ErrorAs(t, err, &conflict)

	after, err := f.orchestrator.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StepConfirm, after.Step)
	assert.False(t, after.Completed)
	assert.NotEmpty(t, after.LastError)
	assert.Equal(t, "comm-1", after.CommercialContactID, "entered values survive the failure")

	_, err = f.orchestrator.SetPorts(s.ID, odf.PortAssignment{ODFCode: "ODF-01", Port: 4}, nil, false)
	require.NoError(t, err)
	_, err = f.orchestrator.Confirm(s.ID)
	require.NoError(t, err)

	r, _, err := f.orchestrator.Submit(ctx, s.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, workflow.Approved, r.Classification)
}

func TestOrchestrator_Abandon_DropsSession(t *testing.T) {
	f := newFixture(t)
	s := f.walkToConfirm(t, 3)

	f.orchestrator.Abandon(s.ID)

	_, err := f.orchestrator.Get(s.ID)
	assert.True(t, workflow.IsNotFound(err))

	avail, err := odf.NewAllocator(f.store).Availability(context.Background(), "ODF-01")
	require.NoError(t, err)
	assert.Len(t, avail.AvailablePorts, 8, "nothing was reserved before submit")
}
