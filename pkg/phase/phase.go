// Package phase implements the four-slot gated workflow: availability,
// profile commit, heuristic analysis, and model-assisted analysis. All
// transitions live here so the workflow can be tested in isolation from
// transport and presentation.
package phase

import "fmt"

// State is the lattice each slot moves through.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
	Ready   State = "ready"
	Done    State = "done"
)

// Slot names one stage of the workflow.
type Slot string

const (
	Availability Slot = "availability"
	Profile      Slot = "profile"
	Heuristic    Slot = "heuristic"
	Model        Slot = "model"
)

// Machine holds the current slot states. Availability skips ready and is
// driven by ingestion, never set by user actions.
type Machine struct {
	availability State
	profile      State
	heuristic    State
	model        State

	modelEnabled bool
}

func NewMachine(modelEnabled bool) *Machine {
	return &Machine{
		availability: Idle,
		profile:      Idle,
		heuristic:    Idle,
		model:        Idle,
		modelEnabled: modelEnabled,
	}
}

// SetModelEnabled toggles the model-assist option. Disabling while the
// model slot is merely eligible drops it back to idle; a finished result
// is kept.
func (m *Machine) SetModelEnabled(enabled bool) {
	m.modelEnabled = enabled
	if !enabled && m.model == Ready {
		m.model = Idle
	}
}

func (m *Machine) ModelEnabled() bool { return m.modelEnabled }

// Get returns the state of a slot.
func (m *Machine) Get(slot Slot) State {
	switch slot {
	case Availability:
		return m.availability
	case Profile:
		return m.profile
	case Heuristic:
		return m.heuristic
	case Model:
		return m.model
	}
	return Idle
}

// IngestionStarted marks availability running. Starting a fresh search
// resets every downstream slot: the old result set is gone.
func (m *Machine) IngestionStarted() {
	m.availability = Running
	m.profile = Idle
	m.heuristic = Idle
	m.model = Idle
}

// IngestionFinished marks availability done. The profile slot becomes
// ready iff the found set is non-empty and the slot has not already been
// committed, else it returns to idle.
func (m *Machine) IngestionFinished(foundCount int) {
	m.availability = Done
	if m.profile == Done {
		return
	}
	if foundCount > 0 {
		m.profile = Ready
	} else {
		m.profile = Idle
	}
}

// CanCommitProfiles gates the profile-check commit action.
func (m *Machine) CanCommitProfiles() bool {
	return m.profile == Ready
}

// CommitProfiles moves profile ready→done and makes heuristic eligible.
// The model slot becomes eligible only when model assist is enabled.
func (m *Machine) CommitProfiles() error {
	if m.profile != Ready {
		return fmt.Errorf("profile phase is %s, expected %s", m.profile, Ready)
	}
	m.profile = Done
	m.heuristic = Ready
	if m.modelEnabled {
		m.model = Ready
	} else {
		m.model = Idle
	}
	return nil
}

// CanRunHeuristic gates the heuristic run action.
func (m *Machine) CanRunHeuristic() bool {
	return m.profile == Done && (m.heuristic == Ready || m.heuristic == Idle)
}

// HeuristicStarted guards re-entry while a heuristic request is pending.
func (m *Machine) HeuristicStarted() error {
	if !m.CanRunHeuristic() {
		return fmt.Errorf("heuristic phase is %s with profile %s", m.heuristic, m.profile)
	}
	m.heuristic = Running
	return nil
}

// HeuristicSucceeded finishes the heuristic slot and, when eligible,
// unlocks the model slot.
func (m *Machine) HeuristicSucceeded() {
	m.heuristic = Done
	if m.modelEnabled && m.model != Done {
		m.model = Ready
	}
}

// HeuristicFailed reverts to idle, not ready: the user must re-trigger
// from the profile phase context.
func (m *Machine) HeuristicFailed() {
	m.heuristic = Idle
}

// CanRunModel gates the model-assisted run: heuristic must be done and the
// option enabled.
func (m *Machine) CanRunModel() bool {
	return m.modelEnabled && m.heuristic == Done && (m.model == Ready || m.model == Idle)
}

func (m *Machine) ModelStarted() error {
	if !m.CanRunModel() {
		return fmt.Errorf("model phase is %s with heuristic %s (enabled=%v)", m.model, m.heuristic, m.modelEnabled)
	}
	m.model = Running
	return nil
}

func (m *Machine) ModelSucceeded() {
	m.model = Done
}

// ModelFailed reverts to ready: the model run stays retryable without
// redoing the heuristic.
func (m *Machine) ModelFailed() {
	m.model = Ready
}

// Rerun resets an already-done slot and every dependent downstream slot to
// a non-done state so the action can re-enter running.
func (m *Machine) Rerun(slot Slot) error {
	switch slot {
	case Profile:
		if m.profile != Done {
			return fmt.Errorf("profile phase is %s, nothing to re-run", m.profile)
		}
		m.profile = Ready
		m.heuristic = Idle
		m.model = Idle
	case Heuristic:
		if m.heuristic != Done {
			return fmt.Errorf("heuristic phase is %s, nothing to re-run", m.heuristic)
		}
		m.heuristic = Ready
		m.model = Idle
	case Model:
		if m.model != Done {
			return fmt.Errorf("model phase is %s, nothing to re-run", m.model)
		}
		m.model = Ready
	default:
		return fmt.Errorf("cannot re-run slot %s", slot)
	}
	return nil
}
