/*
Package approval provides the bounded multi-step approval workflow.

PURPOSE:
  Approving a viability request needs side-data gathered across three steps:

    Step 1  Contacts   commercial + technical, scoped to the request's company
    Step 2  Ports      primary ODF+port, optional redundant ODF+port
    Step 3  Confirm    read-only summary, explicit confirmation, submit

  Step N+1 is reachable only once step N validates. Going back never
  discards later steps' entered values. Submission assembles one atomic
  ApprovalInput and invokes the state machine's approve transition in a
  single call; on failure the session stays on the confirmation step with
  the server-reported reason (commonly a port conflict) and loses nothing.

NO PERSISTENCE:
  Sessions are in-memory. Nothing is persisted before the atomic submit, so
  abandoning a session needs no compensating action.

SEE ALSO:
  - viability/machine.go: the Approve transition this feeds
*/
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// =============================================================================
// SESSION
// =============================================================================

type Step int

const (
	StepContacts Step = iota + 1
	StepPorts
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepContacts:
		return "contacts"
	case StepPorts:
		return "ports"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Session is one in-flight approval. Entered values survive back-navigation;
// only Submit touches the backend. The orchestrator hands out copies: the
// live record stays behind its mutex.
type Session struct {
	ID          string
	ViabilityID workflow.ViabilityID
	Step        Step

	// Step 1
	CommercialContactID string
	TechnicalContactID  string

	// Step 2
	Primary            *odf.PortAssignment
	Secondary          *odf.PortAssignment
	UsesRedundantPoint bool

	// Step 3
	Confirmed bool

	// LastError carries the server-reported reason of the most recent
	// failed submit, surfaced on the confirmation step.
	LastError string

	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) contactsDone() bool {
	return s.CommercialContactID != "" && s.TechnicalContactID != ""
}

func (s *Session) portsDone() bool {
	return s.Primary != nil && odf.ValidatePair(*s.Primary, s.Secondary, s.UsesRedundantPoint) == nil
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	Machine *viability.Machine
	Log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewOrchestrator(machine *viability.Machine, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Machine:  machine,
		Log:      log,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for a request that is currently approvable. Special
// requests are refused: they use the simplified two-outcome path.
func (o *Orchestrator) Start(ctx context.Context, viabilityID workflow.ViabilityID) (*Session, error) {
	r, err := o.Machine.Get(ctx, viabilityID)
	if err != nil {
		return nil, err
	}
	if r.Special {
		return nil, &workflow.FieldError{Field: "viability_id", Message: "special requests use the simplified approval"}
	}
	if r.Classification != workflow.RequestForQuote && r.Classification != workflow.PendingApproval {
		return nil, &viability.TransitionError{ID: r.ID, From: r.Classification, Attempt: "approve"}
	}

	now := time.Now().UTC()
	s := &Session{
		ID:          uuid.NewString(),
		ViabilityID: viabilityID,
		Step:        StepContacts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()

	return snapshot(s), nil
}

// get returns the live session. Callers must hold the mutex.
func (o *Orchestrator) get(sessionID string) (*Session, error) {
	s, ok := o.sessions[sessionID]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "approval session", ID: sessionID}
	}
	return s, nil
}

// snapshot copies a session for return to callers. Handlers serialize the
// result outside the mutex, so the live record never escapes.
func snapshot(s *Session) *Session {
	out := *s
	return &out
}

// Get returns a copy of a session by ID.
func (o *Orchestrator) Get(sessionID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.get(sessionID)
	if err != nil {
		return nil, err
	}
	return snapshot(s), nil
}

// SetContacts records step 1. Both contacts are required before step 2
// becomes reachable.
func (o *Orchestrator) SetContacts(sessionID, commercialID, technicalID string) (*Session, error) {
	if commercialID == "" {
		return nil, workflow.MissingField("commercial_contact_id")
	}
	if technicalID == "" {
		return nil, workflow.MissingField("technical_contact_id")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.CommercialContactID = commercialID
	s.TechnicalContactID = technicalID
	if s.Step == StepContacts {
		s.Step = StepPorts
	}
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// SetPorts records step 2. Unreachable until step 1 validates. The pair
// rules (redundancy, self-conflict) are enforced here so the user learns of
// them before the summary.
func (o *Orchestrator) SetPorts(sessionID string, primary odf.PortAssignment, secondary *odf.PortAssignment, usesRedundantPoint bool) (*Session, error) {
	if err := odf.ValidatePair(primary, secondary, usesRedundantPoint); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.contactsDone() {
		return nil, &workflow.FieldError{Field: "step", Message: "contacts step not completed"}
	}
	s.Primary = &primary
	s.Secondary = secondary
	s.UsesRedundantPoint = usesRedundantPoint
	if s.Step < StepConfirm {
		s.Step = StepConfirm
	}
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// Back moves one step earlier without discarding anything entered later.
func (o *Orchestrator) Back(sessionID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Step > StepContacts {
		s.Step--
	}
	s.Confirmed = false
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// Confirm records the explicit confirmation that enables submit.
func (o *Orchestrator) Confirm(sessionID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.contactsDone() || !s.portsDone() {
		return nil, &workflow.FieldError{Field: "step", Message: "earlier steps not completed"}
	}
	s.Step = StepConfirm
	s.Confirmed = true
	s.UpdatedAt = time.Now().UTC()
	return snapshot(s), nil
}

// Submit assembles the approval payload and applies it as one atomic call.
// On failure the session remains on the confirmation step, keeps every
// entered value, and surfaces the server-reported reason; re-submission is
// an explicit user action.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, actor string) (*viability.Request, *order.ServiceOrder, error) {
	// Assemble the payload from a snapshot; the machine call must not run
	// under the session mutex.
	o.mu.Lock()
	s, err := o.get(sessionID)
	if err != nil {
		o.mu.Unlock()
		return nil, nil, err
	}
	if s.Completed {
		o.mu.Unlock()
		return nil, nil, &workflow.FieldError{Field: "session", Message: "already submitted"}
	}
	if !s.Confirmed {
		o.mu.Unlock()
		return nil, nil, &workflow.FieldError{Field: "confirmed", Message: "explicit confirmation required"}
	}
	viabilityID := s.ViabilityID
	in := viability.ApprovalInput{
		CommercialContactID: s.CommercialContactID,
		TechnicalContactID:  s.TechnicalContactID,
		Primary:             *s.Primary,
		Secondary:           s.Secondary,
		UsesRedundantPoint:  s.UsesRedundantPoint,
		ApprovedBy:          actor,
	}
	o.mu.Unlock()

	r, ord, err := o.Machine.Approve(ctx, viabilityID, in)

	o.mu.Lock()
	if live, lookupErr := o.get(sessionID); lookupErr == nil {
		if err != nil {
			live.LastError = err.Error()
			live.Step = StepConfirm
		} else {
			live.Completed = true
			live.LastError = ""
		}
		live.UpdatedAt = time.Now().UTC()
	}
	o.mu.Unlock()

	if err != nil {
		o.Log.Warn().
			Str("session", sessionID).
			Str("viability", string(viabilityID)).
			Err(err).
			Msg("approval submit failed")
		return nil, nil, err
	}
	return r, ord, nil
}

// Abandon drops a session. Nothing was persisted before submit, so there is
// nothing to compensate.
func (o *Orchestrator) Abandon(sessionID string) {
	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()
}
