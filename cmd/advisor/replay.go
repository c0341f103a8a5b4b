package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-advisor/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.yaml|dir>...",
	Short: "Replay recorded conversations against scripted reasoner output",
	Long: `Replays YAML fixtures through the decision core with a scripted
reasoner and checks every turn's expectations. Exits non-zero when any
expectation fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var fixtures []*replay.Fixture
		for _, arg := range args {
			fs, err := loadFixtureArg(arg)
			if err != nil {
				return err
			}
			fixtures = append(fixtures, fs...)
		}

		results := make([]replay.Result, 0, len(fixtures))
		for _, f := range fixtures {
			res, err := replay.Replay(cmd.Context(), f, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", f.SessionID, err)
			}
			printResult(cmd.OutOrStdout(), f, res)
			results = append(results, res)
		}

		s := replay.Summarize(results)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d fixtures passed, %d turns, %d terminated, $%.4f\n",
			s.Passed, s.Fixtures, s.Turns, s.Terminated, s.Cost)
		if s.Passed != s.Fixtures {
			return fmt.Errorf("%d fixture(s) failed", s.Fixtures-s.Passed)
		}
		return nil
	},
}

func loadFixtureArg(path string) ([]*replay.Fixture, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return replay.LoadFixtures(path)
	}
	f, err := replay.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return []*replay.Fixture{f}, nil
}

func printResult(w io.Writer, f *replay.Fixture, res replay.Result) {
	status := "PASS"
	if !res.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s", status, f.SessionID)
	if f.Description != "" {
		fmt.Fprintf(w, " (%s)", f.Description)
	}
	fmt.Fprintln(w)
	for _, t := range res.Turns {
		fmt.Fprintf(w, "  %2d %-10s top=%s %.0f%%", t.Index, t.NextAction, t.TopEntity, t.TopConfidence*100)
		if len(t.Eliminated) > 0 {
			fmt.Fprintf(w, " eliminated=%v", t.Eliminated)
		}
		fmt.Fprintln(w)
		for _, m := range t.Mismatches {
			fmt.Fprintf(w, "     ! %s\n", m)
		}
	}
	for _, m := range res.Mismatches {
		fmt.Fprintf(w, "  ! %s\n", m)
	}
}
