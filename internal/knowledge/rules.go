package knowledge

import "slices"

// BoostFactor multiplies a hypothesis once when a boost constraint holds.
const BoostFactor = 1.5

// #region rules-table
var rules = map[EntityID]EntityRule{
	EntitySoleProp: {
		Entity:            EntitySoleProp,
		RequiredFactors:   []FactorType{FactorFounders},
		ProhibitedFactors: []FactorType{FactorNRI},
		ScoringWeights: map[FactorType]float64{
			FactorInvestment: -0.6,
			FactorRisk:       -0.5,
			FactorExpansion:  -0.3,
			FactorRevenue:    -0.3,
			FactorDirectors:  -0.4,
			FactorPurpose:    0.3,
		},
		HardConstraints: []Constraint{
			{Condition: CondHasNRIPositive, Effect: EffectEliminate, Priority: 10},
			{Condition: CondHasForeignInvestment, Effect: EffectEliminate, Priority: 10},
			{Condition: CondFoundersGT1, Effect: EffectEliminate, Priority: 10},
		},
	},
	EntityOPC: {
		Entity:          EntityOPC,
		RequiredFactors: []FactorType{FactorFounders},
		ScoringWeights: map[FactorType]float64{
			FactorRisk:      0.5,
			FactorDirectors: 0.3,
			FactorNRI:       0.3,
			FactorRevenue:   -0.5,
			FactorExpansion: -0.4,
			FactorPurpose:   0.4,
		},
		HardConstraints: []Constraint{
			{Condition: CondFoundersGT1, Effect: EffectEliminate, Priority: 10},
		},
	},
	EntityPrivateLimited: {
		Entity: EntityPrivateLimited,
		ScoringWeights: map[FactorType]float64{
			FactorInvestment: 0.8,
			FactorRisk:       0.6,
			FactorExpansion:  0.6,
			FactorDirectors:  0.6,
			FactorRevenue:    0.4,
			FactorFounders:   -0.2,
			FactorPurpose:    0.6,
		},
		HardConstraints: []Constraint{
			{Condition: CondHasForeignInvestment, Effect: EffectBoost, Priority: 8},
		},
	},
	EntityLLP: {
		Entity: EntityLLP,
		ScoringWeights: map[FactorType]float64{
			FactorFounders:   -0.6,
			FactorRisk:       0.5,
			FactorDirectors:  -0.4,
			FactorExpansion:  0.3,
			FactorInvestment: 0.2,
			FactorPurpose:    0.5,
		},
		HardConstraints: []Constraint{
			{Condition: CondFoundersSolo, Effect: EffectEliminate, Priority: 9},
		},
	},
	EntityPartnership: {
		Entity:            EntityPartnership,
		ProhibitedFactors: []FactorType{FactorFounders, FactorNRI},
		ScoringWeights: map[FactorType]float64{
			FactorInvestment: -0.5,
			FactorRisk:       -0.5,
			FactorDirectors:  -0.3,
			FactorRevenue:    -0.2,
			FactorPurpose:    0.4,
		},
		HardConstraints: []Constraint{
			{Condition: CondHasNRIPositive, Effect: EffectEliminate, Priority: 10},
			{Condition: CondHasForeignInvestment, Effect: EffectEliminate, Priority: 10},
			{Condition: CondFoundersSolo, Effect: EffectEliminate, Priority: 10},
		},
	},
	EntityPublicLimited: {
		Entity: EntityPublicLimited,
		ScoringWeights: map[FactorType]float64{
			FactorRevenue:    0.8,
			FactorInvestment: 0.7,
			FactorExpansion:  0.5,
			FactorDirectors:  0.5,
			FactorRisk:       0.4,
			FactorFounders:   -0.4,
			FactorPurpose:    0.5,
		},
	},
	EntitySection8: {
		Entity:            EntitySection8,
		ProhibitedFactors: []FactorType{FactorPurpose},
		ScoringWeights: map[FactorType]float64{
			FactorDirectors: 0.3,
			FactorRisk:      0.2,
		},
		HardConstraints: []Constraint{
			{Condition: CondBusinessTypeNotCharity, Effect: EffectEliminate, Priority: 10},
			{Condition: CondBusinessTypeCharity, Effect: EffectBoost, Priority: 6},
		},
	},
	EntityTrust: {
		Entity:            EntityTrust,
		ProhibitedFactors: []FactorType{FactorPurpose},
		ScoringWeights: map[FactorType]float64{
			FactorDirectors: -0.3,
			FactorExpansion: -0.2,
		},
		HardConstraints: []Constraint{
			{Condition: CondBusinessTypeNotCharity, Effect: EffectEliminate, Priority: 10},
		},
	},
	EntitySociety: {
		Entity:            EntitySociety,
		ProhibitedFactors: []FactorType{FactorPurpose},
		ScoringWeights: map[FactorType]float64{
			FactorFounders:  -0.3,
			FactorExpansion: -0.3,
		},
		HardConstraints: []Constraint{
			{Condition: CondBusinessTypeNotCharity, Effect: EffectEliminate, Priority: 10},
		},
	},
}

// #endregion rules-table

// #region lookup
// Rule returns the rule for entity. Unknown entities get an empty rule, which
// leaves every likelihood neutral.
func Rule(entity EntityID) EntityRule {
	r, ok := rules[entity]
	if !ok {
		return EntityRule{Entity: entity}
	}
	return r
}

// AllConstraints returns every constraint across all entities, highest priority first.
func AllConstraints() []EntityConstraint {
	var out []EntityConstraint
	for _, e := range Entities() {
		for _, c := range rules[e].HardConstraints {
			out = append(out, EntityConstraint{Entity: e, Constraint: c})
		}
	}
	slices.SortStableFunc(out, func(a, b EntityConstraint) int {
		return b.Priority - a.Priority
	})
	return out
}

// #endregion lookup

// #region critical-factors
var criticalFactors = []CriticalFactor{
	{
		ID:                     "business_type",
		FactorType:             FactorPurpose,
		QuestionText:           "Are you starting a for-profit business or a non-profit/charity?",
		Importance:             10,
		DifferentiatedEntities: []EntityID{EntitySection8, EntityTrust, EntitySociety},
	},
	{
		ID:                     "founders_count",
		FactorType:             FactorFounders,
		QuestionText:           "How many people will own and run this business?",
		Importance:             9,
		DifferentiatedEntities: []EntityID{EntitySoleProp, EntityOPC, EntityPartnership, EntityLLP},
	},
	{
		ID:                     "nri_status",
		FactorType:             FactorNRI,
		QuestionText:           "Are you or any of the founders NRI (Non-Resident Indian) or foreign citizens?",
		Importance:             9,
		DifferentiatedEntities: []EntityID{EntitySoleProp, EntityPartnership, EntityOPC},
	},
	{
		ID:                     "funding_type",
		FactorType:             FactorInvestment,
		QuestionText:           "How do you plan to fund this - own money, VC/investors, or loans?",
		Importance:             8,
		DifferentiatedEntities: []EntityID{EntityPrivateLimited, EntityLLP, EntityPublicLimited},
	},
	{
		ID:                     "liability_protection",
		FactorType:             FactorRisk,
		QuestionText:           "How important is it to protect your personal assets from business liabilities?",
		Importance:             7,
		DifferentiatedEntities: []EntityID{EntityPrivateLimited, EntityLLP, EntityOPC},
	},
	{
		ID:                     "expansion_plans",
		FactorType:             FactorExpansion,
		QuestionText:           "Do you plan to open franchises or multiple branches?",
		Importance:             7,
		DifferentiatedEntities: []EntityID{EntityPrivateLimited, EntityLLP},
	},
	{
		ID:                     "directors_shareholders",
		FactorType:             FactorDirectors,
		QuestionText:           "Do you want a formal structure with directors and shareholders?",
		Importance:             6,
		DifferentiatedEntities: []EntityID{EntityPrivateLimited, EntityOPC, EntityLLP},
	},
	{
		ID:                     "annual_turnover",
		FactorType:             FactorRevenue,
		QuestionText:           "Roughly what annual turnover do you expect in the first few years?",
		Importance:             5,
		DifferentiatedEntities: []EntityID{EntityPublicLimited, EntityOPC, EntitySoleProp},
	},
}

// CriticalFactors returns the ordered critical-factor list. Callers get a copy.
func CriticalFactors() []CriticalFactor {
	out := make([]CriticalFactor, len(criticalFactors))
	copy(out, criticalFactors)
	return out
}

// #endregion critical-factors
