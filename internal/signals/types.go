package signals

import (
	"regexp"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

// #region rule
// rule emits one factor when its pattern matches the normalized answer.
type rule struct {
	factor     knowledge.FactorType
	value      string
	impact     float64
	confidence float64
	pattern    *regexp.Regexp
}

// contextRule resolves a bare yes/no answer against the question that was asked.
type contextRule struct {
	factor   knowledge.FactorType
	question *regexp.Regexp
	yes      rule
	no       rule
}

// #endregion rule

// #region confidence-levels
const (
	confExplicit   = 0.9  // direct keyword hit
	confContextual = 0.85 // yes/no resolved against the question
	confBroad      = 0.7  // weak lexical cue
	confAmbiguous  = 0.5  // conflicting cues for the same factor
)

// #endregion confidence-levels

// #region factor-order
// factorOrder fixes output order so extraction is deterministic.
var factorOrder = []knowledge.FactorType{
	knowledge.FactorPurpose,
	knowledge.FactorFounders,
	knowledge.FactorNRI,
	knowledge.FactorInvestment,
	knowledge.FactorRisk,
	knowledge.FactorExpansion,
	knowledge.FactorDirectors,
	knowledge.FactorRevenue,
}

// #endregion factor-order
