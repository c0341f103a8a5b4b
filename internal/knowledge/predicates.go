package knowledge

// #region condition-id
// ConditionID names a predicate over the gathered factor set.
type ConditionID string

const (
	CondHasNRIPositive         ConditionID = "HAS_NRI_POSITIVE"
	CondHasForeignInvestment   ConditionID = "HAS_FOREIGN_INVESTMENT"
	CondFoundersGT1            ConditionID = "FOUNDERS_GT_1"
	CondFoundersSolo           ConditionID = "FOUNDERS_SOLO"
	CondBusinessTypeNotCharity ConditionID = "BUSINESS_TYPE_NOT_CHARITY"
	CondBusinessTypeCharity    ConditionID = "BUSINESS_TYPE_CHARITY"
)

// #endregion condition-id

// #region evaluate
// Holds evaluates the predicate against factors. Unknown conditions never hold.
func (c ConditionID) Holds(factors []BusinessFactor) bool {
	switch c {
	case CondHasNRIPositive:
		return anyFactor(factors, func(f BusinessFactor) bool {
			return f.Type == FactorNRI && f.Impact > 0
		})
	case CondHasForeignInvestment:
		return anyFactor(factors, func(f BusinessFactor) bool {
			return f.Type == FactorInvestment && f.Value == ValueForeign
		})
	case CondFoundersGT1:
		return anyFactor(factors, func(f BusinessFactor) bool {
			return f.Type == FactorFounders && f.Value == ValueMultiple
		})
	case CondFoundersSolo:
		return anyFactor(factors, func(f BusinessFactor) bool {
			return f.Type == FactorFounders && f.Value == ValueSolo
		})
	case CondBusinessTypeNotCharity:
		// only explicit for-profit evidence eliminates the non-profit forms
		return anyFactor(factors, isPurpose(ValueProfit)) && !anyFactor(factors, isPurpose(ValueCharity))
	case CondBusinessTypeCharity:
		return anyFactor(factors, isPurpose(ValueCharity))
	}
	return false
}

// #endregion evaluate

// #region helpers
func anyFactor(factors []BusinessFactor, pred func(BusinessFactor) bool) bool {
	for _, f := range factors {
		if pred(f) {
			return true
		}
	}
	return false
}

func isPurpose(value string) func(BusinessFactor) bool {
	return func(f BusinessFactor) bool {
		return f.Type == FactorPurpose && f.Value == value
	}
}

// #endregion helpers
