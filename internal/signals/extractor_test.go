package signals

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/danielpatrickdp/entity-advisor/internal/knowledge"
)

type tv struct {
	Type  knowledge.FactorType
	Value string
}

func typesAndValues(fs []knowledge.BusinessFactor) []tv {
	out := make([]tv, len(fs))
	for i, f := range fs {
		out[i] = tv{f.Type, f.Value}
	}
	return out
}

func TestExtractKeywordAnswers(t *testing.T) {
	x := NewExtractor()
	tests := []struct {
		name     string
		answer   string
		question string
		want     []tv
	}{
		{"solo cafe", "It's just me, I want to open a cafe", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueProfit}, {knowledge.FactorFounders, knowledge.ValueSolo}}},
		{"solo and nri", "just me, and I'm NRI", "",
			[]tv{{knowledge.FactorFounders, knowledge.ValueSolo}, {knowledge.FactorNRI, knowledge.ValueYes}}},
		{"co-founders", "Me and two co-founders", "",
			[]tv{{knowledge.FactorFounders, knowledge.ValueMultiple}}},
		{"negated partner", "I'll run it alone, no partners", "",
			[]tv{{knowledge.FactorFounders, knowledge.ValueSolo}}},
		{"charity not profit", "It's a non-profit for kids' education", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"section 8 company", "I want to register a Section 8 company for rural education", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"trust", "We are setting up a trust to run a school", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"society", "a registered society for our housing colony", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"foundation", "a foundation doing welfare work in villages", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"educational", "an educational institution", "",
			[]tv{{knowledge.FactorPurpose, knowledge.ValueCharity}}},
		{"not nri", "No, I'm not an NRI, I live in India", "",
			[]tv{{knowledge.FactorNRI, knowledge.ValueNo}}},
		{"foreign investment", "We expect foreign investment from a US fund", "",
			[]tv{{knowledge.FactorInvestment, knowledge.ValueForeign}}},
		{"bootstrap", "Own money for now, bootstrapped", "",
			[]tv{{knowledge.FactorInvestment, knowledge.ValueBootstrap}}},
		{"vc", "We want to raise money from VCs next year", "",
			[]tv{{knowledge.FactorInvestment, knowledge.ValueVC}}},
		{"no investors", "no investors at all", "",
			[]tv{{knowledge.FactorInvestment, knowledge.ValueBootstrap}}},
		{"liability", "Protecting my personal assets is crucial", "",
			[]tv{{knowledge.FactorRisk, "protect"}}},
		{"not important", "not that important to me", "",
			[]tv{{knowledge.FactorRisk, "indifferent"}}},
		{"franchise", "Yes, we plan to franchise across cities", "",
			[]tv{{knowledge.FactorExpansion, knowledge.ValueYes}}},
		{"no branches", "no branches, a single location", "",
			[]tv{{knowledge.FactorExpansion, knowledge.ValueNo}}},
		{"large", "Turnover should cross 50 crore", "",
			[]tv{{knowledge.FactorRevenue, knowledge.ValueLarge}}},
		{"nothing", "hmm let me think about that", "", []tv{}},
		{"empty", "   ", "", []tv{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := typesAndValues(x.Extract(tt.answer, tt.question))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Extract(%q) mismatch (-want +got):\n%s", tt.answer, diff)
			}
		})
	}
}

func TestExtractResolvesYesNoAgainstQuestion(t *testing.T) {
	x := NewExtractor()
	cfs := knowledge.CriticalFactors()
	question := func(id string) string {
		for _, cf := range cfs {
			if cf.ID == id {
				return cf.QuestionText
			}
		}
		t.Fatalf("no critical factor %s", id)
		return ""
	}

	tests := []struct {
		name     string
		answer   string
		question string
		want     []tv
	}{
		{"nri yes", "yes", question("nri_status"), []tv{{knowledge.FactorNRI, knowledge.ValueYes}}},
		{"nri no", "No", question("nri_status"), []tv{{knowledge.FactorNRI, knowledge.ValueNo}}},
		{"directors yes", "yeah", question("directors_shareholders"), []tv{{knowledge.FactorDirectors, knowledge.ValueYes}}},
		{"directors no", "nope", question("directors_shareholders"), []tv{{knowledge.FactorDirectors, knowledge.ValueNo}}},
		{"expansion no", "no", question("expansion_plans"), []tv{{knowledge.FactorExpansion, knowledge.ValueNo}}},
		{"liability yes", "yes", question("liability_protection"), []tv{{knowledge.FactorRisk, "protect"}}},
		{"head count one", "1", question("founders_count"), []tv{{knowledge.FactorFounders, knowledge.ValueSolo}}},
		{"head count three", "three", question("founders_count"), []tv{{knowledge.FactorFounders, knowledge.ValueMultiple}}},
		{"yes without context", "yes", "", []tv{}},
		{"yes to ambiguous question", "yes", question("funding_type"), []tv{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := typesAndValues(x.Extract(tt.answer, tt.question))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractRecordsSource(t *testing.T) {
	x := NewExtractor()
	fs := x.Extract("just me", "How many people will own and run this business?")
	if len(fs) != 1 {
		t.Fatalf("expected 1 factor, got %d", len(fs))
	}
	if fs[0].Source != "How many people will own and run this business?" {
		t.Fatalf("unexpected source %q", fs[0].Source)
	}
	fs = x.Extract("just me", "")
	if fs[0].Source != "utterance" {
		t.Fatalf("unexpected source %q", fs[0].Source)
	}
}

func TestExtractAmbiguousFoundersLowersConfidence(t *testing.T) {
	fs := NewExtractor().Extract("just me for now, maybe a partner later", "")
	if len(fs) != 1 || fs[0].Value != knowledge.ValueMultiple {
		t.Fatalf("expected multiple founders, got %+v", fs)
	}
	if fs[0].Confidence != confAmbiguous {
		t.Fatalf("expected ambiguous confidence, got %f", fs[0].Confidence)
	}
}

func TestPropertyExtractionDeterministicAndBounded(t *testing.T) {
	x := NewExtractor()
	words := []string{"just", "me", "partner", "nri", "no", "yes", "vc", "own", "money",
		"franchise", "charity", "profit", "crore", "directors", "protect", "cafe", "two", "of", "us", "not"}
	rapid.Check(t, func(rt *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(words), 0, 12).Draw(rt, "words")
		answer := ""
		for i, p := range parts {
			if i > 0 {
				answer += " "
			}
			answer += p
		}
		q := rapid.SampledFrom([]string{"", "Are you NRI?", "How many people will own and run this business?"}).Draw(rt, "question")

		a := x.Extract(answer, q)
		b := x.Extract(answer, q)
		if diff := cmp.Diff(a, b); diff != "" {
			rt.Fatalf("non-deterministic extraction:\n%s", diff)
		}
		seen := map[knowledge.FactorType]bool{}
		for _, f := range a {
			if seen[f.Type] {
				rt.Fatalf("factor type %s emitted twice", f.Type)
			}
			seen[f.Type] = true
			if f.Impact < -1 || f.Impact > 1 || f.Confidence < 0 || f.Confidence > 1 {
				rt.Fatalf("factor out of range: %+v", f)
			}
		}
	})
}
