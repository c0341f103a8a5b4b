package replay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
)

// #region fixture-types

// Fixture is a recorded conversation: scripted reasoner output plus the user
// turns and what each turn is expected to produce.
type Fixture struct {
	Description string         `yaml:"description"`
	SessionID   string         `yaml:"session_id"`
	Config      FixtureConfig  `yaml:"config"`
	Reasoner    []FixtureStep  `yaml:"reasoner"`
	Fallback    *FixtureStep   `yaml:"fallback"` // returned once Reasoner is used up
	Turns       []FixtureTurn  `yaml:"turns"`
	Final       FixtureOutcome `yaml:"final"`
}

// FixtureStep is one scripted reasoner reply. Error makes the call fail.
type FixtureStep struct {
	Text         string `yaml:"text"`
	Error        string `yaml:"error"`
	InputTokens  int    `yaml:"input_tokens"`
	OutputTokens int    `yaml:"output_tokens"`
}

// FixtureTurn is one user utterance and its expectations.
type FixtureTurn struct {
	User   string        `yaml:"user"`
	Expect FixtureExpect `yaml:"expect"`
}

// FixtureExpect lists per-turn checks. Zero values are not checked.
type FixtureExpect struct {
	Terminated      *bool    `yaml:"terminated"`
	NextAction      string   `yaml:"next_action"`
	MessageContains string   `yaml:"message_contains"`
	Eliminated      []string `yaml:"eliminated"`
	Violation       string   `yaml:"violation"`
}

// FixtureOutcome lists end-of-session checks.
type FixtureOutcome struct {
	Terminated        *bool    `yaml:"terminated"`
	Recommendation    string   `yaml:"recommendation"`
	NotRecommended    []string `yaml:"not_recommended"`
	MaxReasonerCalls  int      `yaml:"max_reasoner_calls"`
	TentativeExpected *bool    `yaml:"tentative"`
}

// FixtureConfig overrides loop and guardrail limits for the run.
type FixtureConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxIterations       int     `yaml:"max_iterations"`
	MaxCostPerSession   float64 `yaml:"max_cost_per_session"`
	MaxToolCalls        int     `yaml:"max_tool_calls_per_iteration"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Turns) == 0 {
		return nil, fmt.Errorf("fixture %s: no turns", path)
	}
	if f.SessionID == "" {
		f.SessionID = filepath.Base(path)
	}
	return &f, nil
}

// LoadFixtures reads every *.yaml fixture in dir, sorted by name.
func LoadFixtures(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}
	sort.Strings(paths)
	out := make([]*Fixture, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ToStep converts a fixture step to a scripted provider step.
func (s FixtureStep) ToStep() reasoner.Step {
	step := reasoner.Step{Text: s.Text, InputTokens: s.InputTokens, OutputTokens: s.OutputTokens}
	if s.Error != "" {
		step.Err = errors.New(s.Error)
	}
	return step
}

// #endregion fixture-loader
