package eval

import "github.com/danielpatrickdp/entity-advisor/internal/knowledge"

// #region eval-config
// EvalConfig holds thresholds for recommendation validation.
type EvalConfig struct {
	MinConfidence   float64 // informational: below this a check is marked failed but not blocking
	MaxContributors int     // factors listed in an explanation
}

// DefaultEvalConfig returns production defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinConfidence:   0.6,
		MaxContributors: 3,
	}
}

// #endregion eval-config

// #region eval-check
// EvalCheck captures a single validation check result.
type EvalCheck struct {
	Name     string
	Pass     bool
	Blocking bool
	Detail   string
}

// #endregion eval-check

// #region eval-result
// EvalResult is the outcome of validating a recommended entity.
type EvalResult struct {
	Entity     knowledge.EntityID
	Passed     bool
	Checks     []EvalCheck
	Violations []knowledge.ConditionID // elimination conditions that hold for the entity
	Reason     string
}

// Contribution is one gathered factor's pull toward an entity.
type Contribution struct {
	Factor knowledge.FactorType
	Value  string
	Weight float64
	Impact float64
	Score  float64
}

// Explanation says why an entity scored as it did.
type Explanation struct {
	Entity        knowledge.EntityID
	Confidence    float64
	Contributions []Contribution
	Text          string
}

// #endregion eval-result
