package knowledge

// #region entity-id
// EntityID names one of the nine legal-entity categories.
type EntityID string

const (
	EntityPrivateLimited EntityID = "Private Limited Company"
	EntityLLP            EntityID = "LLP"
	EntityOPC            EntityID = "OPC"
	EntityPartnership    EntityID = "Partnership Firm"
	EntitySoleProp       EntityID = "Sole Proprietorship"
	EntityPublicLimited  EntityID = "Public Limited Company"
	EntitySection8       EntityID = "Section 8 Company"
	EntityTrust          EntityID = "Trust"
	EntitySociety        EntityID = "Society"
)

// Entities returns every entity in canonical order.
func Entities() []EntityID {
	return []EntityID{
		EntityPrivateLimited,
		EntityLLP,
		EntityOPC,
		EntityPartnership,
		EntitySoleProp,
		EntityPublicLimited,
		EntitySection8,
		EntityTrust,
		EntitySociety,
	}
}

// Valid reports whether e is one of the known entities.
func (e EntityID) Valid() bool {
	_, ok := rules[e]
	return ok
}

// #endregion entity-id

// #region factor-type
// FactorType is the closed set of business-factor categories.
//
// Sign conventions for BusinessFactor.Impact:
//
//	founders   + solo             - multiple
//	investment + external/foreign - bootstrapped
//	revenue    + large scale      - small
//	risk       + wants protection - indifferent
//	nri        + NRI/foreign      - resident
//	expansion  + branches         - single site
//	directors  + formal board     - informal
//	purpose    + for-profit       - charity
type FactorType string

const (
	FactorFounders   FactorType = "founders"
	FactorInvestment FactorType = "investment"
	FactorRevenue    FactorType = "revenue"
	FactorRisk       FactorType = "risk"
	FactorNRI        FactorType = "nri"
	FactorExpansion  FactorType = "expansion"
	FactorDirectors  FactorType = "directors"
	FactorPurpose    FactorType = "purpose"
	FactorOther      FactorType = "other"
)

// Canonical factor values. Constraint predicates match on these.
const (
	ValueSolo      = "solo"
	ValueMultiple  = "multiple"
	ValueYes       = "yes"
	ValueNo        = "no"
	ValueVC        = "vc"
	ValueForeign   = "foreign"
	ValueLoan      = "loan"
	ValueBootstrap = "bootstrap"
	ValueProfit    = "profit"
	ValueCharity   = "charity"
	ValueLarge     = "large"
	ValueSmall     = "small"
)

// #endregion factor-type

// #region business-factor
// BusinessFactor is one structured piece of evidence about the venture.
type BusinessFactor struct {
	Type       FactorType `json:"type"`
	Value      string     `json:"value"`
	Impact     float64    `json:"impact"`     // [-1, 1]
	Confidence float64    `json:"confidence"` // [0, 1]
	Source     string     `json:"source"`
}

// Label renders the factor as "type: value".
func (f BusinessFactor) Label() string {
	return string(f.Type) + ": " + f.Value
}

// #endregion business-factor

// #region rules
// Effect is what a satisfied constraint does to its entity.
type Effect string

const (
	EffectEliminate Effect = "eliminate"
	EffectBoost     Effect = "boost"
)

// Constraint binds a named predicate to an effect on the owning entity.
type Constraint struct {
	Condition ConditionID
	Effect    Effect
	Priority  int
}

// EntityRule describes how evidence moves belief in one entity.
type EntityRule struct {
	Entity            EntityID
	RequiredFactors   []FactorType
	ProhibitedFactors []FactorType
	ScoringWeights    map[FactorType]float64
	HardConstraints   []Constraint
}

// Requires reports whether t is a required factor type for the rule.
func (r EntityRule) Requires(t FactorType) bool {
	for _, f := range r.RequiredFactors {
		if f == t {
			return true
		}
	}
	return false
}

// Prohibits reports whether t is a prohibited factor type for the rule.
func (r EntityRule) Prohibits(t FactorType) bool {
	for _, f := range r.ProhibitedFactors {
		if f == t {
			return true
		}
	}
	return false
}

// EntityConstraint is a constraint paired with the entity it belongs to.
type EntityConstraint struct {
	Entity EntityID
	Constraint
}

// #endregion rules

// #region critical-factor
// CriticalFactor is a high-value piece of information the advisor asks for.
type CriticalFactor struct {
	ID                     string
	FactorType             FactorType
	QuestionText           string
	Importance             int // 0-10
	DifferentiatedEntities []EntityID
}

// #endregion critical-factor
