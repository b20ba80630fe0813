// Package session owns all mutable search state: the result store, the
// phase machine, and every derived artifact. Mutations happen one at a
// time behind a single mutex, whether they come from the stream, a user
// action, or an analysis call completing.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/analysis"
	"github.com/sp1nlock/legwork/pkg/cluster"
	"github.com/sp1nlock/legwork/pkg/export"
	"github.com/sp1nlock/legwork/pkg/layout"
	"github.com/sp1nlock/legwork/pkg/phase"
	"github.com/sp1nlock/legwork/pkg/profile"
	"github.com/sp1nlock/legwork/pkg/rank"
	"github.com/sp1nlock/legwork/pkg/results"
	"github.com/sp1nlock/legwork/pkg/stream"
)

// Options configure a session at creation time.
type Options struct {
	ModelAssist bool
	ClusterMode cluster.Mode
}

// Snapshot is a read-only copy of the session for presentation layers.
type Snapshot struct {
	SessionID    string
	Subject      cluster.Subject
	Phases       map[phase.Slot]phase.State
	Availability []results.Record
	Profiles     []profile.Resolved
	Legs         []cluster.Leg
	Heuristic    *analysis.Report
	Model        *analysis.Report
	Status       string
}

// Controller sequences the five-phase workflow for one search subject at
// a time.
type Controller struct {
	ingestor *stream.Ingestor
	analyzer *analysis.Analyzer

	mu        sync.Mutex
	opts      Options
	sessionID string
	subject   cluster.Subject
	store     *results.Store
	machine   *phase.Machine

	foundSet  []results.Record
	profiles  []profile.Resolved
	legs      []cluster.Leg
	heuristic *analysis.Report
	model     *analysis.Report
	status    string
}

func New(transport stream.Transport, analyzer *analysis.Analyzer, opts Options) *Controller {
	c := &Controller{
		analyzer: analyzer,
		opts:     opts,
		store:    results.NewStore(),
		machine:  phase.NewMachine(opts.ModelAssist),
	}
	c.ingestor = stream.NewIngestor(transport, (*sink)(c))
	return c
}

// StartSearch begins a fresh search run, replacing any active one.
func (c *Controller) StartSearch(ctx context.Context, username, email string) error {
	if username == "" {
		return errors.New("a subject username is required")
	}

	// Cancel any prior stream before reseeding, so late events from the
	// old subject cannot land in the new session.
	c.ingestor.Stop()

	c.mu.Lock()
	c.sessionID = uuid.NewString()
	c.subject = cluster.Subject{Username: username, Email: email}
	c.store.Reset(username)
	c.machine.IngestionStarted()
	c.foundSet = nil
	c.profiles = nil
	c.legs = nil
	c.heuristic = nil
	c.model = nil
	c.status = "searching"
	c.mu.Unlock()

	if err := c.ingestor.Start(ctx, username); err != nil {
		c.mu.Lock()
		c.store.SweepChecking()
		c.machine.IngestionFinished(0)
		c.status = "search failed to start"
		c.mu.Unlock()
		return err
	}
	utils.Log.Infof("search started for %s (session %s)", username, c.SessionID())
	return nil
}

// StopSearch cancels the running stream, if any, and sweeps stuck entries.
func (c *Controller) StopSearch() {
	c.ingestor.Stop()
}

// Searching reports whether a stream is currently open.
func (c *Controller) Searching() bool {
	return c.ingestor.Active()
}

// sink adapts the controller to the ingestor callback interface without
// exporting the methods on Controller itself.
type sink Controller

func (s *sink) UpsertResult(r results.Record) {
	c := (*Controller)(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Upsert(r)
}

func (s *sink) SearchComplete(found []results.Record) {
	c := (*Controller)(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range found {
		c.store.Upsert(r)
	}
	c.foundSet = found
	c.store.SweepChecking()
	c.machine.IngestionFinished(len(found))
	c.status = fmt.Sprintf("search complete: %d profiles found", len(found))
}

func (s *sink) SearchStopped(cause error) {
	c := (*Controller)(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	swept := c.store.SweepChecking()
	if c.machine.Get(phase.Availability) == phase.Running {
		c.machine.IngestionFinished(len(c.store.Found()))
	}
	if cause != nil {
		utils.Log.Warnf("search stopped: %v", cause)
		c.status = "search stopped: " + cause.Error()
	} else if swept > 0 {
		c.status = "search stopped"
	}
}

// CommitProfiles finishes the profile-check phase: it materializes the
// resolved profiles, clusters them into legs, and ranks each leg.
func (c *Controller) CommitProfiles() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.CommitProfiles(); err != nil {
		return err
	}
	found := c.foundSet
	if found == nil {
		found = c.store.Found()
	}
	c.profiles = profile.Resolve(found, c.subject.Username)
	c.rebuildLegsLocked()
	c.status = fmt.Sprintf("%d profiles committed into %d legs", len(c.profiles), len(c.legs))
	return nil
}

func (c *Controller) rebuildLegsLocked() {
	c.legs = cluster.Build(c.profiles, c.subject, c.opts.ClusterMode)
	rank.SortLegs(c.legs, c.subject)
}

// SetClusterMode switches clustering strategy and rebuilds legs from the
// committed profile set.
func (c *Controller) SetClusterMode(mode cluster.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.ClusterMode = mode
	if c.profiles != nil {
		c.rebuildLegsLocked()
	}
}

// RunHeuristic executes the heuristic analysis phase.
func (c *Controller) RunHeuristic(ctx context.Context) error {
	c.mu.Lock()
	if err := c.machine.HeuristicStarted(); err != nil {
		c.mu.Unlock()
		return err
	}
	req := c.analysisRequestLocked(false)
	sid := c.sessionID
	c.mu.Unlock()

	rep, err := c.analyzer.Analyze(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sid {
		// A new search replaced the session while the call was in
		// flight; the result belongs to the old one.
		return errors.New("session replaced while heuristic analysis was running")
	}
	if err != nil {
		c.machine.HeuristicFailed()
		c.heuristic = nil
		c.status = "heuristic analysis failed: " + err.Error()
		return fmt.Errorf("heuristic analysis: %w", err)
	}
	c.heuristic = &rep
	c.machine.HeuristicSucceeded()
	c.status = "heuristic analysis complete"
	return nil
}

// RunModel executes the model-assisted analysis phase. A degraded
// heuristic-fallback response counts as failure: the phase stays
// retryable and no partial result is kept.
func (c *Controller) RunModel(ctx context.Context) error {
	c.mu.Lock()
	if err := c.machine.ModelStarted(); err != nil {
		c.mu.Unlock()
		return err
	}
	req := c.analysisRequestLocked(true)
	sid := c.sessionID
	c.mu.Unlock()

	rep, err := c.analyzer.Analyze(ctx, req)
	if err == nil && rep.Mode == analysis.ModeHeuristicFallback {
		msg := rep.LLMError
		if msg == "" {
			msg = "model analysis unavailable"
		}
		err = errors.New(msg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sid {
		return errors.New("session replaced while model analysis was running")
	}
	if err != nil {
		c.machine.ModelFailed()
		c.model = nil
		c.status = "model analysis failed: " + err.Error()
		return fmt.Errorf("model analysis: %w", err)
	}
	c.model = &rep
	c.machine.ModelSucceeded()
	c.status = "model analysis complete"
	return nil
}

// RunAnalysis runs the heuristic phase and, when the model phase is
// eligible, the model phase right after. The first failure propagates and
// the second stage is not attempted.
func (c *Controller) RunAnalysis(ctx context.Context) error {
	if err := c.RunHeuristic(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	eligible := c.machine.CanRunModel()
	c.mu.Unlock()
	if !eligible {
		return nil
	}
	return c.RunModel(ctx)
}

// Rerun resets a done phase and its dependents, dropping their results.
func (c *Controller) Rerun(slot phase.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.Rerun(slot); err != nil {
		return err
	}
	switch slot {
	case phase.Profile:
		c.profiles = nil
		c.legs = nil
		c.heuristic = nil
		c.model = nil
	case phase.Heuristic:
		c.heuristic = nil
		c.model = nil
	case phase.Model:
		c.model = nil
	}
	return nil
}

func (c *Controller) analysisRequestLocked(useLLM bool) analysis.Request {
	profiles := make([]analysis.Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		profiles = append(profiles, analysis.Profile{
			Platform:    p.Platform,
			URL:         p.URL,
			DisplayName: p.DisplayName,
			Bio:         p.Bio,
			Avatar:      p.Avatar,
			Category:    p.Category,
		})
	}
	return analysis.Request{
		Profiles: profiles,
		UseLLM:   useLLM,
		Username: c.subject.Username,
		Email:    c.subject.Email,
	}
}

// Phase returns the current state of one slot.
func (c *Controller) Phase(slot phase.Slot) phase.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Get(slot)
}

// CanCommitProfiles, CanRunHeuristic and CanRunModel expose the gating
// booleans the orchestration layer binds actions to.
func (c *Controller) CanCommitProfiles() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.CanCommitProfiles()
}

func (c *Controller) CanRunHeuristic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.CanRunHeuristic()
}

func (c *Controller) CanRunModel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.CanRunModel()
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Snapshot returns a copy of the full session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:    c.sessionID,
		Subject:      c.subject,
		Phases:       c.phasesLocked(),
		Availability: c.store.Snapshot(),
		Profiles:     append([]profile.Resolved(nil), c.profiles...),
		Legs:         append([]cluster.Leg(nil), c.legs...),
		Heuristic:    c.heuristic,
		Model:        c.model,
		Status:       c.status,
	}
}

func (c *Controller) phasesLocked() map[phase.Slot]phase.State {
	return map[phase.Slot]phase.State{
		phase.Availability: c.machine.Get(phase.Availability),
		phase.Profile:      c.machine.Get(phase.Profile),
		phase.Heuristic:    c.machine.Get(phase.Heuristic),
		phase.Model:        c.machine.Get(phase.Model),
	}
}

// Export builds the export document from current state.
func (c *Controller) Export() export.Document {
	snap := c.Snapshot()
	return export.Document{
		Username:     snap.Subject.Username,
		Email:        snap.Subject.Email,
		SessionID:    snap.SessionID,
		ExportedAt:   time.Now().UTC(),
		Availability: snap.Availability,
		Profiles:     snap.Profiles,
		Analysis: export.Analysis{
			Heuristic: snap.Heuristic,
			Model:     snap.Model,
		},
	}
}

// Layout projects the current legs onto a canvas.
func (c *Controller) Layout(cfg layout.Config) []layout.Node {
	snap := c.Snapshot()
	return layout.Project(cfg, snap.Subject.Username, snap.Legs)
}
