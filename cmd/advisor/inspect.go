package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-advisor/internal/logging"
	"github.com/danielpatrickdp/entity-advisor/internal/state"
)

var (
	inspectLast    int
	inspectSession string
	inspectJSON    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List stored sessions or show one session's audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if inspectSession == "" {
			sums, err := a.svc.Sessions(cmd.Context(), inspectLast)
			if err != nil {
				return err
			}
			return printSessions(out, sums, inspectJSON)
		}

		if a.db == nil {
			return errors.New("audit trail requires the sqlite store")
		}
		rows, err := logging.QueryAudit(cmd.Context(), a.db, inspectSession, inspectLast)
		if err != nil {
			return err
		}
		return printAudit(out, rows, inspectJSON)
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "maximum rows (0 for all)")
	inspectCmd.Flags().StringVar(&inspectSession, "session", "", "show the audit trail of one session")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of a table")
}

// #region printers

func printSessions(w io.Writer, sums []state.SessionSummary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, sums)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPHASE\tITER\tTOP\tCONF\tUPDATED")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.1f%%\t%s\n",
			s.SessionID, s.NextAction, s.IterationCount, s.TopEntity, s.TopConfidence*100,
			s.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printAudit(w io.Writer, rows []logging.AuditRow, asJSON bool) error {
	if asJSON {
		return writeJSON(w, rows)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tMODEL\tCOST\tLATENCY\tPAYLOAD")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%.5f\t%dms\t%s\n",
			r.ID, r.Kind, r.Model, r.Cost, r.LatencyMs, truncate(string(r.Payload), 80))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion printers
