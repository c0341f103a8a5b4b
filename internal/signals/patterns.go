package signals

import (
	"regexp"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

// #region founder-patterns
var (
	soloFounder = regexp.MustCompile(`\b(only me|just me|just myself|by myself|solo|alone|myself|i'?m the only|i am the only|single founder|sole (owner|founder)|one person|one-person|on my own)\b`)

	multipleFounders = regexp.MustCompile(`\b(partners?|co-?founders?|my (friend|brother|sister|wife|husband|spouse)|team of|both of us|(two|three|four|five|six|[2-9]|\d{2,})\s+(of us|people|persons|founders|partners|owners|co-?founders|friends|members))\b`)

	foundersQuestion = regexp.MustCompile(`\b(how many|founders?|own and run|owners?)\b`)

	leadingCount = regexp.MustCompile(`^(?:just |only |about |around )?(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
)

// #endregion founder-patterns

// #region negation-patterns
var negatedNoun = regexp.MustCompile(`\b(?:no|without|not|never|don'?t (?:have|want|need)|won'?t (?:have|need))\s+(?:any\s+|a\s+|an\s+|external\s+|outside\s+)?(partners?|co-?founders?|investors?|vcs?|funding|franchises?|branch(?:es)?|directors?|board)\b`)

// #endregion negation-patterns

// #region yes-no
var (
	yesAnswer = regexp.MustCompile(`^(yes|yeah|yep|yup|y|sure|definitely|absolutely|of course|correct|very much|very|it is|we do|i do)\b`)
	noAnswer  = regexp.MustCompile(`^(no|nope|nah|n|not really|not at all|never|none|we don'?t|i don'?t)\b`)
)

// #endregion yes-no

// #region type-rules
func defaultRules() map[knowledge.FactorType][]rule {
	return map[knowledge.FactorType][]rule{
		knowledge.FactorPurpose: {
			// charity first: "non-profit" contains "profit" and "section 8 company" contains "company"
			{knowledge.FactorPurpose, knowledge.ValueCharity, -1.0, confExplicit,
				regexp.MustCompile(`\b(charity|charitable|ngo|non[- ]?profit|not[- ]for[- ]profit|social (cause|welfare|work)|religious|donations?|philanthrop\w*|section[- ]?8|trusts?|societ(y|ies)|foundation|welfare|educational)\b`)},
			{knowledge.FactorPurpose, knowledge.ValueProfit, 0.8, confExplicit,
				regexp.MustCompile(`\b(for[- ]profit|profit|profitable|commercial)\b`)},
			{knowledge.FactorPurpose, knowledge.ValueProfit, 0.6, confBroad,
				regexp.MustCompile(`\b(business|startup|company|shop|store|cafe|restaurant|consult\w*|agency|sell\w*|trading|manufactur\w*|app|saas|e-?commerce|clinic|bakery|boutique)\b`)},
		},
		knowledge.FactorNRI: {
			{knowledge.FactorNRI, knowledge.ValueNo, -0.5, confExplicit,
				regexp.MustCompile(`\b(not (an |a )?(nri|foreigner|foreign (citizen|national))|indian (citizen|resident|national)|resident indian|(live|living|based) in india|none of us (is|are) (nri|foreign))\b`)},
			{knowledge.FactorNRI, knowledge.ValueYes, 1.0, confExplicit,
				regexp.MustCompile(`\b(nri|non[- ]resident|foreign (citizen|national)|foreigner|oci|overseas citizen|(live|living|based) (abroad|overseas|outside india))\b`)},
		},
		knowledge.FactorInvestment: {
			{knowledge.FactorInvestment, knowledge.ValueForeign, 1.0, confExplicit,
				regexp.MustCompile(`\b(foreign (investment|investors?|funding|capital|vc)|fdi|overseas (investors?|funding))\b`)},
			{knowledge.FactorInvestment, knowledge.ValueBootstrap, -0.6, confExplicit,
				regexp.MustCompile(`\b(bootstrap\w*|own (money|savings|funds|capital|pocket)|self[- ]funded|self[- ]fund\w*|my savings|personal (funds|savings))\b`)},
			{knowledge.FactorInvestment, knowledge.ValueVC, 0.9, confExplicit,
				regexp.MustCompile(`\b(vcs?|venture capital\w*|investors?|angels?|angel investors?|raise (money|funds|capital)|fund ?rais\w*|seed round|series [a-c]|equity funding)\b`)},
			{knowledge.FactorInvestment, knowledge.ValueLoan, 0.2, confBroad,
				regexp.MustCompile(`\b(bank loans?|loans?|debt|mudra|borrow\w*)\b`)},
		},
		knowledge.FactorRisk: {
			{knowledge.FactorRisk, "indifferent", -0.5, confExplicit,
				regexp.MustCompile(`\b(not (that |very |really |too )?important|don'?t (care|mind)|not (worried|concerned)|doesn'?t matter|low risk)\b`)},
			{knowledge.FactorRisk, "protect", 0.8, confExplicit,
				regexp.MustCompile(`\b(protect\w*|limited liability|liability protection|personal assets|shield\w*|ring-?fenc\w*|very important|extremely important|crucial|high risk)\b`)},
		},
		knowledge.FactorExpansion: {
			{knowledge.FactorExpansion, knowledge.ValueNo, -0.4, confExplicit,
				regexp.MustCompile(`\b(single (location|outlet|shop|store|branch)|one (location|outlet|shop|store)|stay small|keep it small|no plans to (expand|grow))\b`)},
			{knowledge.FactorExpansion, knowledge.ValueYes, 0.7, confExplicit,
				regexp.MustCompile(`\b(franchis\w*|branch(es)?|expan(d|sion)\w*|multiple (locations|outlets|cities|stores|branches)|scale (up|nationally|globally)|chain|pan[- ]india|nationwide)\b`)},
		},
		knowledge.FactorDirectors: {
			{knowledge.FactorDirectors, knowledge.ValueNo, -0.6, confExplicit,
				regexp.MustCompile(`\b(informal|keep it simple|simple structure|minimal compliance|less compliance)\b`)},
			{knowledge.FactorDirectors, knowledge.ValueYes, 0.7, confExplicit,
				regexp.MustCompile(`\b(directors?|shareholders?|board( of directors)?|formal structure|esops?|equity shares?)\b`)},
		},
		knowledge.FactorRevenue: {
			{knowledge.FactorRevenue, knowledge.ValueLarge, 0.8, confExplicit,
				regexp.MustCompile(`\b(\d+\s*crores?|crores?|\d+\s*cr|large[- ]scale|ipo|go(ing)? public|stock exchange|public (issue|offering)|billions?|millions?|high turnover)\b`)},
			{knowledge.FactorRevenue, knowledge.ValueSmall, -0.5, confExplicit,
				regexp.MustCompile(`\b(lakhs?|small[- ]scale|side (business|hustle|project)|modest|home[- ]based|freelanc\w*|low turnover)\b`)},
		},
	}
}

// #endregion type-rules

// #region context-rules
func defaultContextRules() []contextRule {
	return []contextRule{
		{
			factor:   knowledge.FactorNRI,
			question: regexp.MustCompile(`\b(nri|non-resident|foreign citizens?)\b`),
			yes:      rule{knowledge.FactorNRI, knowledge.ValueYes, 1.0, confContextual, nil},
			no:       rule{knowledge.FactorNRI, knowledge.ValueNo, -0.5, confContextual, nil},
		},
		{
			factor:   knowledge.FactorRisk,
			question: regexp.MustCompile(`\b(liabilit\w*|personal assets)\b`),
			yes:      rule{knowledge.FactorRisk, "protect", 0.8, confContextual, nil},
			no:       rule{knowledge.FactorRisk, "indifferent", -0.5, confContextual, nil},
		},
		{
			factor:   knowledge.FactorDirectors,
			question: regexp.MustCompile(`\b(directors?|shareholders?)\b`),
			yes:      rule{knowledge.FactorDirectors, knowledge.ValueYes, 0.7, confContextual, nil},
			no:       rule{knowledge.FactorDirectors, knowledge.ValueNo, -0.6, confContextual, nil},
		},
		{
			factor:   knowledge.FactorExpansion,
			question: regexp.MustCompile(`\b(franchises?|branch(es)?|expan\w*)\b`),
			yes:      rule{knowledge.FactorExpansion, knowledge.ValueYes, 0.7, confContextual, nil},
			no:       rule{knowledge.FactorExpansion, knowledge.ValueNo, -0.4, confContextual, nil},
		},
		{
			factor:   knowledge.FactorRevenue,
			question: regexp.MustCompile(`\b(turnover|revenue|go public|ipo)\b`),
			yes:      rule{knowledge.FactorRevenue, knowledge.ValueLarge, 0.8, confContextual, nil},
			no:       rule{knowledge.FactorRevenue, knowledge.ValueSmall, -0.5, confContextual, nil},
		},
	}
}

// #endregion context-rules
