package signals

import (
	"strconv"
	"strings"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

// #region extractor

// Extractor turns a free-text answer into structured business factors.
// It is deterministic and holds no mutable state, so one instance can be
// shared across sessions.
type Extractor struct {
	rules        map[knowledge.FactorType][]rule
	contextRules []contextRule
}

// NewExtractor builds the default keyword rule set.
func NewExtractor() *Extractor {
	return &Extractor{
		rules:        defaultRules(),
		contextRules: defaultContextRules(),
	}
}

// #endregion extractor

// #region extract

// Extract returns every factor the answer supports, in a fixed type order,
// at most one per factor type. questionContext is the assistant prompt the
// answer replied to and is used to resolve bare yes/no or numeric answers.
// Text that matches nothing yields an empty slice.
func (e *Extractor) Extract(answer, questionContext string) []knowledge.BusinessFactor {
	text := normalize(answer)
	out := []knowledge.BusinessFactor{}
	if text == "" {
		return out
	}

	text, hints := stripNegations(text)
	hits := make(map[knowledge.FactorType]knowledge.BusinessFactor)

	for _, ft := range factorOrder {
		if ft == knowledge.FactorFounders {
			if f, ok := foundersFactor(text, hints); ok {
				hits[ft] = f
			}
			continue
		}
		for _, r := range e.rules[ft] {
			if r.pattern.MatchString(text) {
				hits[ft] = r.emit()
				break
			}
		}
	}

	for ft, f := range hints {
		if _, ok := hits[ft]; !ok && ft != knowledge.FactorFounders {
			hits[ft] = f
		}
	}

	question := normalize(questionContext)
	if question != "" {
		e.resolveContext(text, question, hits)
	}

	source := "utterance"
	if questionContext != "" {
		source = questionContext
	}
	for _, ft := range factorOrder {
		if f, ok := hits[ft]; ok {
			f.Source = source
			out = append(out, f)
		}
	}
	return out
}

// resolveContext fills in the factor the question asked about when the
// answer itself was only "yes", "no" or a head count.
func (e *Extractor) resolveContext(text, question string, hits map[knowledge.FactorType]knowledge.BusinessFactor) {
	if foundersQuestion.MatchString(question) {
		if _, ok := hits[knowledge.FactorFounders]; !ok {
			if n, ok := headCount(text); ok {
				if n <= 1 {
					hits[knowledge.FactorFounders] = foundersSolo(confContextual)
				} else {
					hits[knowledge.FactorFounders] = foundersMultiple(confContextual)
				}
			}
		}
	}

	for _, cr := range e.contextRules {
		if _, ok := hits[cr.factor]; ok {
			continue
		}
		if !cr.question.MatchString(question) {
			continue
		}
		switch {
		case yesAnswer.MatchString(text):
			hits[cr.factor] = cr.yes.emit()
		case noAnswer.MatchString(text):
			hits[cr.factor] = cr.no.emit()
		}
	}
}

// #endregion extract

// #region founders

func foundersFactor(text string, hints map[knowledge.FactorType]knowledge.BusinessFactor) (knowledge.BusinessFactor, bool) {
	_, negatedPartner := hints[knowledge.FactorFounders]
	solo := soloFounder.MatchString(text) || negatedPartner
	multi := multipleFounders.MatchString(text)
	switch {
	case solo && multi:
		return foundersMultiple(confAmbiguous), true
	case multi:
		return foundersMultiple(confExplicit), true
	case solo:
		return foundersSolo(confExplicit), true
	}
	return knowledge.BusinessFactor{}, false
}

func foundersSolo(conf float64) knowledge.BusinessFactor {
	return knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueSolo, Impact: 0.8, Confidence: conf}
}

func foundersMultiple(conf float64) knowledge.BusinessFactor {
	return knowledge.BusinessFactor{Type: knowledge.FactorFounders, Value: knowledge.ValueMultiple, Impact: -0.8, Confidence: conf}
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// headCount reads a leading count such as "2", "three" or "just one".
func headCount(text string) (int, bool) {
	m := leadingCount.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	if n, err := strconv.Atoi(m[1]); err == nil {
		return n, true
	}
	n, ok := numberWords[m[1]]
	return n, ok
}

// #endregion founders

// #region negation

// stripNegations removes "no partners"-style phrases so they cannot trigger
// positive rules, and returns the factor each removed phrase implies.
func stripNegations(text string) (string, map[knowledge.FactorType]knowledge.BusinessFactor) {
	hints := make(map[knowledge.FactorType]knowledge.BusinessFactor)
	for _, m := range negatedNoun.FindAllStringSubmatch(text, -1) {
		noun := m[len(m)-1]
		switch {
		case strings.HasPrefix(noun, "partner"), strings.HasPrefix(noun, "co"):
			hints[knowledge.FactorFounders] = foundersSolo(confExplicit)
		case strings.HasPrefix(noun, "investor"), strings.HasPrefix(noun, "vc"), strings.HasSuffix(noun, "funding"):
			hints[knowledge.FactorInvestment] = knowledge.BusinessFactor{
				Type: knowledge.FactorInvestment, Value: knowledge.ValueBootstrap, Impact: -0.6, Confidence: confBroad,
			}
		case strings.HasPrefix(noun, "franchise"), strings.HasPrefix(noun, "branch"):
			hints[knowledge.FactorExpansion] = knowledge.BusinessFactor{
				Type: knowledge.FactorExpansion, Value: knowledge.ValueNo, Impact: -0.4, Confidence: confExplicit,
			}
		case strings.HasPrefix(noun, "director"), noun == "board":
			hints[knowledge.FactorDirectors] = knowledge.BusinessFactor{
				Type: knowledge.FactorDirectors, Value: knowledge.ValueNo, Impact: -0.6, Confidence: confExplicit,
			}
		}
	}
	return negatedNoun.ReplaceAllString(text, " "), hints
}

// #endregion negation

// #region helpers

func (r rule) emit() knowledge.BusinessFactor {
	return knowledge.BusinessFactor{
		Type:       r.factor,
		Value:      r.value,
		Impact:     r.impact,
		Confidence: r.confidence,
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

// #endregion helpers
