package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/event"
	"missioncontrol/api/internal/journal"
	"missioncontrol/api/internal/ledger"
	"missioncontrol/api/internal/rbac"
	"missioncontrol/api/internal/realtime"
	"missioncontrol/api/internal/search"
	"missioncontrol/api/internal/spatial"
	"missioncontrol/api/internal/store"
	"missioncontrol/api/internal/tracker"
	"missioncontrol/api/internal/zone"
)

// Principal is the caller of a Service operation.
type Principal struct {
	ID     string
	Name   string
	Role   rbac.Role
	TeamID string
}

// AllTeams as a principal's TeamID grants access to every team.
const AllTeams = "*"

// trackerPrincipal is the identity of webhook deliveries.
var trackerPrincipal = Principal{ID: "tracker", Name: "Tracker", Role: rbac.RoleAgent, TeamID: AllTeams}

// CanAccessTeam reports whether p may read or act on teamID. Admins span teams.
func (p Principal) CanAccessTeam(teamID string) bool {
	return p.Role == rbac.RoleAdmin || p.TeamID == AllTeams || p.TeamID == teamID
}

type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeReassigned       Outcome = "reassigned"
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeDeleted          Outcome = "deleted"
	OutcomeUpdated          Outcome = "updated"
	OutcomeSeen             Outcome = "seen"
)

// Result is returned by every entity transition.
type Result struct {
	Outcome          Outcome               `json:"outcome"`
	AlreadyProcessed bool                  `json:"alreadyProcessed,omitempty"`
	AlreadyCompleted bool                  `json:"alreadyCompleted,omitempty"`
	Entity           *realtime.EntityState `json:"entity,omitempty"`
	Credit           *CreditView           `json:"credit,omitempty"`
	// Warning is set when the tracker could not be told about a committed change.
	Warning string `json:"warning,omitempty"`
}

type CreditView struct {
	TransactionID string    `json:"transactionId,omitempty"`
	TeamID        string    `json:"teamId"`
	PayeeID       string    `json:"payeeId,omitempty"`
	SourceID      string    `json:"sourceId"`
	Label         string    `json:"label"`
	Points        int       `json:"points"`
	Outcome       string    `json:"outcome"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

type OwnerBalanceView struct {
	OwnerID        string `json:"ownerId"`
	PersonalPoints int64  `json:"personalPoints"`
}

type BalanceView struct {
	TeamID      string             `json:"teamId"`
	TotalPoints int64              `json:"totalPoints"`
	Owners      []OwnerBalanceView `json:"owners"`
}

type DriftView struct {
	TeamID   string `json:"teamId"`
	Recorded int64  `json:"recorded"`
	Computed int64  `json:"computed"`
}

// EditInput is a partial update from an operator or a client write-back.
type EditInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Kind        *string `json:"kind"`
	Priority    *string `json:"priority"`
	Points      *int    `json:"points"`
}

type entityStore interface {
	Ping(context.Context) error
	AdmitEntity(context.Context, store.Entity, store.PlaceFunc) (store.Entity, store.Admission, error)
	ReassignEntity(context.Context, string, string, store.PlaceFunc) (store.Entity, store.Entity, error)
	CompleteEntity(context.Context, string, func(store.Entity) (store.PointTransaction, bool)) (store.Entity, store.CompleteResult, error)
	DeleteEntity(context.Context, string, bool) (store.Entity, error)
	UpdateEntity(context.Context, string, store.EntityPatch) (store.Entity, error)
	MarkSeen(context.Context, string, string) (store.Entity, bool, error)
	GetEntity(context.Context, string) (store.Entity, error)
	GetEntityByExternalID(context.Context, string) (store.Entity, error)
	ListEntities(context.Context, string) ([]store.Entity, error)
	SearchEntities(context.Context, store.EntityQuery) ([]store.Entity, int, error)
	InsertCredit(context.Context, store.PointTransaction) (store.PointTransaction, store.CreditOutcome, error)
	TeamBalance(context.Context, string) (store.TeamBalance, error)
	OwnerBalances(context.Context, string) ([]store.OwnerBalance, error)
	ListTransactions(context.Context, string, int) ([]store.PointTransaction, error)
	AuditBalances(context.Context) ([]store.BalanceDrift, error)
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	IndexEntity(store.Entity)
	DeleteEntity(string)
}

// Deps are the collaborators of Service. Zero fields get working defaults.
type Deps struct {
	Directory *zone.Directory
	Allocator *spatial.Allocator
	Notifier  tracker.Notifier
	Publisher realtime.Publisher
	Search    searchService
	Journal   journal.Recorder
}

type Service struct {
	cfg       config.Config
	store     entityStore
	ledger    *ledger.Ledger
	dir       *zone.Directory
	alloc     *spatial.Allocator
	notifier  tracker.Notifier
	publisher realtime.Publisher
	search    searchService
	journal   journal.Recorder
	events    *event.Parser
}

func New(cfg config.Config, dataStore entityStore, deps Deps) *Service {
	if deps.Directory == nil {
		deps.Directory = zone.Default()
	}
	if deps.Allocator == nil {
		deps.Allocator = spatial.New(deps.Directory, spatial.DefaultParams(), cfg.AllocatorSeed)
	}
	if deps.Notifier == nil {
		deps.Notifier = tracker.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = realtime.NewHub(0, nil)
	}
	if deps.Search == nil {
		deps.Search = search.NewService(nil, dataStore)
	}
	if deps.Journal == nil {
		deps.Journal = journal.Discard
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		ledger:    ledger.New(dataStore),
		dir:       deps.Directory,
		alloc:     deps.Allocator,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		search:    deps.Search,
		journal:   deps.Journal,
		events:    event.MustParser(),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) DefaultTeamID() string {
	return s.cfg.DefaultTeamID
}

// IngestPayload validates a raw tracker event, applies it and journals the
// outcome.
func (s *Service) IngestPayload(ctx context.Context, p Principal, raw []byte) (Result, error) {
	ev, err := s.events.Parse(raw)
	if err != nil {
		s.record(event.Kind(""), "", "", "rejected", raw)
		return Result{}, classify(err)
	}
	res, err := s.Ingest(ctx, p, ev)
	externalID, entityID := eventRefs(ev)
	if res.Entity != nil {
		entityID = res.Entity.ID
	}
	outcome := string(res.Outcome)
	if err != nil {
		var domainErr *DomainError
		outcome = "error"
		if errors.As(err, &domainErr) {
			outcome = strings.ToLower(domainErr.Code)
		}
	}
	s.record(ev.EventKind(), externalID, entityID, outcome, raw)
	return res, err
}

func (s *Service) record(kind event.Kind, externalID, entityID, outcome string, raw []byte) {
	entry := journal.Entry{
		At:         time.Now().UTC(),
		Kind:       string(kind),
		ExternalID: externalID,
		EntityID:   entityID,
		Outcome:    outcome,
	}
	if json.Valid(raw) {
		entry.Payload = json.RawMessage(raw)
	}
	if err := s.journal.Record(entry); err != nil {
		log.Printf("journal: record %s %s: %v", kind, externalID, err)
	}
}

func eventRefs(ev event.Event) (externalID, entityID string) {
	switch e := ev.(type) {
	case event.Create:
		return e.ExternalID, ""
	case event.Reassign:
		return e.ExternalID, e.EntityID
	case event.Complete:
		return e.ExternalID, e.EntityID
	case event.Delete:
		return e.ExternalID, e.EntityID
	}
	return "", ""
}

// Ingest applies an already decoded event.
func (s *Service) Ingest(ctx context.Context, p Principal, ev event.Event) (Result, error) {
	switch e := ev.(type) {
	case event.Create:
		if strings.TrimSpace(e.TeamID) == "" && p.TeamID != AllTeams && p.TeamID != "" {
			e.TeamID = p.TeamID
		}
		team := strings.TrimSpace(e.TeamID)
		if team == "" {
			team = s.cfg.DefaultTeamID
		}
		if !p.CanAccessTeam(team) {
			return Result{}, forbidden("Team not accessible")
		}
		return s.Create(ctx, e)
	case event.Reassign:
		if err := s.authorizeTarget(ctx, p, e.Target); err != nil {
			return Result{}, err
		}
		return s.Reassign(ctx, e.Target, e.NewOwner)
	case event.Complete:
		if err := s.authorizeTarget(ctx, p, e.Target); err != nil {
			return Result{}, err
		}
		return s.Complete(ctx, e.Target)
	case event.Delete:
		if err := s.authorizeTarget(ctx, p, e.Target); err != nil {
			return Result{}, err
		}
		return s.Delete(ctx, p, e.Target, e.Privileged)
	default:
		return Result{}, validationError("Unsupported event", nil)
	}
}

// Create admits a tracker task and places it in its owner's zone. A
// redelivered create reports AlreadyProcessed and changes nothing.
func (s *Service) Create(ctx context.Context, c event.Create) (Result, error) {
	if strings.TrimSpace(c.ExternalID) == "" || strings.TrimSpace(c.Name) == "" {
		return Result{}, validationError("externalId and name are required", nil)
	}
	if c.Points < 0 {
		return Result{}, validationError("points must not be negative", nil)
	}
	teamID := strings.TrimSpace(c.TeamID)
	if teamID == "" {
		teamID = s.cfg.DefaultTeamID
	}
	owner := zone.Normalize(c.OwnerHint)
	priority := ""
	if strings.TrimSpace(c.Priority) != "" {
		priority = ledger.ParsePriority(c.Priority)
	}

	entity, admission, err := s.store.AdmitEntity(ctx, store.Entity{
		TeamID:        teamID,
		ExternalID:    strings.TrimSpace(c.ExternalID),
		OwnerID:       string(owner),
		Name:          strings.TrimSpace(c.Name),
		Description:   c.Description,
		Kind:          ledger.ParseKind(c.Kind),
		Priority:      priority,
		TrackerStatus: c.Status,
		Points:        c.Points,
	}, s.placer(owner))
	if err != nil {
		return Result{}, classify(err)
	}
	if admission == store.AlreadyProcessed {
		res := Result{Outcome: OutcomeAlreadyProcessed, AlreadyProcessed: true}
		if entity.ID != "" {
			res.Entity = viewOf(entity)
		}
		return res, nil
	}

	s.broadcast(ctx, entity, realtime.AllFields)
	s.search.IndexEntity(entity)
	return Result{Outcome: OutcomeCreated, Entity: viewOf(entity)}, nil
}

// Reassign hands an entity to newOwner. Claiming an unassigned entity goes
// through the same path.
func (s *Service) Reassign(ctx context.Context, target event.Target, newOwner string) (Result, error) {
	owner := zone.Normalize(newOwner)
	if owner == zone.Unassigned {
		return Result{}, validationError("newOwner is required", nil)
	}
	current, err := s.resolve(ctx, target)
	if err != nil {
		return Result{}, err
	}
	if err := CanReassign(current).Error(); err != nil {
		return Result{}, err
	}

	_, after, err := s.store.ReassignEntity(ctx, current.ID, string(owner), s.placer(owner))
	if err != nil {
		return Result{}, classify(err)
	}

	s.broadcast(ctx, after, []string{realtime.FieldOwner, realtime.FieldPosition, realtime.FieldSeenBy})
	s.search.IndexEntity(after)
	return Result{
		Outcome: OutcomeReassigned,
		Entity:  viewOf(after),
		Warning: s.notify(ctx, after, tracker.ActionReassigned),
	}, nil
}

// Complete freezes an assigned entity and credits its owner in the same
// transaction. Completing twice is a no-op.
func (s *Service) Complete(ctx context.Context, target event.Target) (Result, error) {
	current, err := s.resolve(ctx, target)
	if err != nil {
		return Result{}, err
	}
	if err := CanComplete(current).Error(); err != nil {
		return Result{}, err
	}

	entity, outcome, err := s.store.CompleteEntity(ctx, current.ID, ledger.CompletionCredit)
	if err != nil {
		return Result{}, classify(err)
	}
	if outcome.AlreadyCompleted {
		return Result{Outcome: OutcomeAlreadyCompleted, AlreadyCompleted: true, Entity: viewOf(entity)}, nil
	}

	res := Result{Outcome: OutcomeCompleted, Entity: viewOf(entity)}
	if outcome.Credited {
		res.Credit = creditView(outcome.Transaction, outcome.Credit)
	}
	s.broadcast(ctx, entity, []string{realtime.FieldCompleted})
	s.search.IndexEntity(entity)
	res.Warning = s.notify(ctx, entity, tracker.ActionCompleted)
	return res, nil
}

// Delete removes an entity. Completed entities need a privileged request from
// a role allowed to destroy.
func (s *Service) Delete(ctx context.Context, p Principal, target event.Target, privileged bool) (Result, error) {
	if privileged && !rbac.Can(p.Role, rbac.ActionDestroy) {
		return Result{}, forbidden("Destroying entities requires the admin role")
	}
	current, err := s.resolve(ctx, target)
	if err != nil {
		return Result{}, err
	}
	if err := CanDelete(current, privileged).Error(); err != nil {
		return Result{}, err
	}

	deleted, err := s.store.DeleteEntity(ctx, current.ID, privileged)
	if err != nil {
		return Result{}, classify(err)
	}

	if err := s.publisher.Publish(ctx, realtime.Delta{
		EntityID: deleted.ID,
		TeamID:   deleted.TeamID,
		Revision: deleted.Revision,
		Deleted:  true,
	}); err != nil {
		log.Printf("realtime: publish delete %s: %v", deleted.ID, err)
	}
	s.search.DeleteEntity(deleted.ID)
	return Result{
		Outcome: OutcomeDeleted,
		Entity:  viewOf(deleted),
		Warning: s.notify(ctx, deleted, tracker.ActionDestroyed),
	}, nil
}

// Edit patches descriptive fields of a non-completed entity.
func (s *Service) Edit(ctx context.Context, entityID string, input EditInput) (Result, error) {
	patch, changed, err := patchFor(input)
	if err != nil {
		return Result{}, err
	}
	current, err := s.resolve(ctx, event.Target{EntityID: entityID})
	if err != nil {
		return Result{}, err
	}
	if err := CanEdit(current).Error(); err != nil {
		return Result{}, err
	}
	if patch.Empty() {
		return Result{Outcome: OutcomeUpdated, Entity: viewOf(current)}, nil
	}

	updated, err := s.store.UpdateEntity(ctx, current.ID, patch)
	if err != nil {
		return Result{}, classify(err)
	}
	s.broadcast(ctx, updated, changed)
	s.search.IndexEntity(updated)
	return Result{Outcome: OutcomeUpdated, Entity: viewOf(updated)}, nil
}

func patchFor(input EditInput) (store.EntityPatch, []string, error) {
	var (
		patch   store.EntityPatch
		changed []string
	)
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return patch, nil, validationError("name must not be empty", nil)
		}
		patch.Name = &name
		changed = append(changed, realtime.FieldName)
	}
	if input.Description != nil {
		patch.Description = input.Description
		changed = append(changed, realtime.FieldDescription)
	}
	if input.Kind != nil {
		kind := ledger.ParseKind(*input.Kind)
		patch.Kind = &kind
		changed = append(changed, realtime.FieldKind)
	}
	if input.Priority != nil {
		priority := ledger.ParsePriority(*input.Priority)
		patch.Priority = &priority
		changed = append(changed, realtime.FieldPriority)
	}
	if input.Points != nil {
		if *input.Points < 0 {
			return patch, nil, validationError("points must not be negative", nil)
		}
		patch.Points = input.Points
		changed = append(changed, realtime.FieldPoints)
	}
	return patch, changed, nil
}

func (s *Service) MarkSeen(ctx context.Context, entityID, viewer string) (Result, error) {
	viewer = string(zone.Normalize(viewer))
	if viewer == "" {
		return Result{}, validationError("viewer is required", nil)
	}
	entity, changed, err := s.store.MarkSeen(ctx, entityID, viewer)
	if err != nil {
		return Result{}, classify(err)
	}
	if changed {
		s.broadcast(ctx, entity, []string{realtime.FieldSeenBy})
	}
	return Result{Outcome: OutcomeSeen, Entity: viewOf(entity)}, nil
}

func (s *Service) Entity(ctx context.Context, entityID string) (realtime.EntityState, error) {
	e, err := s.resolve(ctx, event.Target{EntityID: entityID})
	if err != nil {
		return realtime.EntityState{}, err
	}
	return *viewOf(e), nil
}

// Snapshot lists the current state of every entity of teamID.
func (s *Service) Snapshot(ctx context.Context, teamID string) ([]realtime.EntityState, error) {
	entities, err := s.store.ListEntities(ctx, teamID)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]realtime.EntityState, 0, len(entities))
	for _, e := range entities {
		out = append(out, *viewOf(e))
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if q.TeamID == "" {
		q.TeamID = s.cfg.DefaultTeamID
	}
	if q.OwnerID != "" {
		q.OwnerID = string(zone.Normalize(q.OwnerID))
	}
	return s.search.Search(ctx, q)
}

// Credit applies a side-channel award. A replay reports already_credited.
func (s *Service) Credit(ctx context.Context, c ledger.Credit) (CreditView, error) {
	if c.TeamID == "" {
		c.TeamID = s.cfg.DefaultTeamID
	}
	c.PayeeID = string(zone.Normalize(c.PayeeID))
	txn, outcome, err := s.ledger.Credit(ctx, c)
	if err != nil {
		return CreditView{}, classify(err)
	}
	if outcome == store.AlreadyCredited {
		return CreditView{
			TeamID:   c.TeamID,
			PayeeID:  c.PayeeID,
			SourceID: c.SourceID,
			Label:    c.Label,
			Points:   c.Points,
			Outcome:  outcome.String(),
		}, nil
	}
	return *creditView(txn, outcome), nil
}

// Correct records a manual adjustment made by p.
func (s *Service) Correct(ctx context.Context, p Principal, teamID string, delta int, label string) (CreditView, error) {
	if !rbac.Can(p.Role, rbac.ActionCorrect) {
		return CreditView{}, forbidden("Corrections require the admin role")
	}
	if teamID == "" {
		teamID = s.cfg.DefaultTeamID
	}
	actor := p.Name
	if actor == "" {
		actor = p.ID
	}
	txn, err := s.ledger.Correct(ctx, teamID, delta, label, actor)
	if err != nil {
		return CreditView{}, classify(err)
	}
	return *creditView(txn, store.CreditApplied), nil
}

func (s *Service) Balance(ctx context.Context, teamID string) (BalanceView, error) {
	balance, err := s.ledger.Balance(ctx, teamID)
	if err != nil {
		return BalanceView{}, classify(err)
	}
	owners, err := s.ledger.OwnerBalances(ctx, teamID)
	if err != nil {
		return BalanceView{}, classify(err)
	}
	view := BalanceView{TeamID: teamID, TotalPoints: balance.TotalPoints, Owners: []OwnerBalanceView{}}
	for _, o := range owners {
		view.Owners = append(view.Owners, OwnerBalanceView{OwnerID: o.OwnerID, PersonalPoints: o.PersonalPoints})
	}
	return view, nil
}

func (s *Service) Transactions(ctx context.Context, teamID string, limit int) ([]CreditView, error) {
	txns, err := s.ledger.Transactions(ctx, teamID, limit)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]CreditView, 0, len(txns))
	for _, txn := range txns {
		out = append(out, *creditView(txn, store.CreditApplied))
	}
	return out, nil
}

// Audit lists teams whose recorded balance disagrees with their transactions.
func (s *Service) Audit(ctx context.Context) ([]DriftView, error) {
	drifts, err := s.ledger.Audit(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]DriftView, 0, len(drifts))
	for _, d := range drifts {
		out = append(out, DriftView{TeamID: d.TeamID, Recorded: d.Recorded, Computed: d.Computed})
	}
	return out, nil
}

// authorizeTarget rejects targets in teams p cannot access. Missing targets
// pass through so the operation reports them.
func (s *Service) authorizeTarget(ctx context.Context, p Principal, target event.Target) error {
	if p.TeamID == AllTeams || p.Role == rbac.RoleAdmin {
		return nil
	}
	e, err := s.resolve(ctx, target)
	if err != nil {
		return nil
	}
	if !p.CanAccessTeam(e.TeamID) {
		return forbidden("Team not accessible")
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, target event.Target) (store.Entity, error) {
	var (
		e   store.Entity
		err error
	)
	switch {
	case target.EntityID != "":
		e, err = s.store.GetEntity(ctx, target.EntityID)
	case target.ExternalID != "":
		e, err = s.store.GetEntityByExternalID(ctx, target.ExternalID)
	default:
		return store.Entity{}, validationError("entityId or externalId is required", nil)
	}
	if err != nil {
		return store.Entity{}, classify(err)
	}
	return e, nil
}

// placer allocates inside owner's zone, treating only entities anchored to
// the same zone as obstacles.
func (s *Service) placer(owner zone.Owner) store.PlaceFunc {
	anchor := s.dir.ZoneOf(owner)
	if owner != "" && !s.dir.Known(owner) {
		log.Printf("spatial: owner %q has no zone, placing around mission control", owner)
	}
	return func(occupants []store.Occupant) zone.Point {
		var obstacles []zone.Point
		for _, o := range occupants {
			if s.dir.ZoneOf(zone.Owner(o.OwnerID)) == anchor {
				obstacles = append(obstacles, o.Point)
			}
		}
		placement := s.alloc.Allocate(owner, obstacles)
		if placement.Fallback {
			log.Printf("spatial: zone of %q saturated (%d obstacles), using fallback ring at radius %.0f",
				owner, len(obstacles), s.alloc.Params().FallbackRadius())
		}
		return placement.Point
	}
}

func (s *Service) broadcast(ctx context.Context, e store.Entity, changed []string) {
	d := realtime.Delta{
		EntityID: e.ID,
		TeamID:   e.TeamID,
		Revision: e.Revision,
		Changed:  changed,
		State:    viewOf(e),
	}
	if err := s.publisher.Publish(ctx, d); err != nil {
		log.Printf("realtime: publish %s rev %d: %v", e.ID, e.Revision, err)
	}
}

// notify mirrors a committed transition to the tracker. Failures never undo
// local state; they come back as the response warning.
func (s *Service) notify(ctx context.Context, e store.Entity, action tracker.Action) string {
	if e.ExternalID == "" {
		return ""
	}
	update := tracker.Update{ExternalID: e.ExternalID, Action: action}
	if action == tracker.ActionReassigned {
		ref, ok := s.dir.TrackerUserID(zone.Owner(e.OwnerID))
		if !ok {
			log.Printf("tracker: %s reassigned to %q which has no tracker identity", e.ExternalID, e.OwnerID)
			return tracker.ErrNoAssigneeRef.Error()
		}
		update.AssigneeRef = ref
	}
	if err := s.notifier.Notify(ctx, update); err != nil {
		log.Printf("tracker: notify %s %s: %v", action, e.ExternalID, err)
		return err.Error()
	}
	return ""
}

func viewOf(e store.Entity) *realtime.EntityState {
	return &realtime.EntityState{
		ID:            e.ID,
		TeamID:        e.TeamID,
		ExternalID:    e.ExternalID,
		OwnerID:       e.OwnerID,
		Name:          e.Name,
		Description:   e.Description,
		Kind:          e.Kind,
		Priority:      e.Priority,
		TrackerStatus: e.TrackerStatus,
		Position:      realtime.Position{X: e.Position.X, Y: e.Position.Y},
		Points:        ledger.PointsFor(e),
		Completed:     e.Completed,
		SeenBy:        store.SeenByList(e),
		Revision:      e.Revision,
	}
}

func creditView(txn store.PointTransaction, outcome store.CreditOutcome) *CreditView {
	return &CreditView{
		TransactionID: txn.ID,
		TeamID:        txn.TeamID,
		PayeeID:       txn.PayeeID,
		SourceID:      txn.SourceID,
		Label:         txn.Label,
		Points:        txn.Points,
		Outcome:       outcome.String(),
		CreatedAt:     txn.CreatedAt,
	}
}
