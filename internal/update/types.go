package update

import (
	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "update" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one ingest cycle.
type Metrics struct {
	FactorsApplied int
	Eliminated     []knowledge.EntityID // newly eliminated this cycle
	Boosted        []knowledge.EntityID
	Renormalized   bool
	TopEntity      knowledge.EntityID
	TopConfidence  float64
}

// #endregion metrics

// #region update-config
// UpdateConfig holds the tunable policy of the confidence engine.
type UpdateConfig struct {
	BoostFactor float64 // multiplier applied once per satisfied boost constraint
	// RenormalizeAfterElimination redistributes mass to survivors after
	// constraints fire. When false, survivors keep their raw values.
	RenormalizeAfterElimination bool
	SettledThreshold            float64 // top confidence above which information gain is flat
	SettledGain                 float64 // gain reported once settled
}

// DefaultUpdateConfig returns the production policy.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		BoostFactor:                 knowledge.BoostFactor,
		RenormalizeAfterElimination: true,
		SettledThreshold:            0.75,
		SettledGain:                 0.1,
	}
}

// #endregion update-config

// #region update-result
// UpdateResult bundles everything returned by Ingest().
type UpdateResult struct {
	NewState state.AgentState
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
