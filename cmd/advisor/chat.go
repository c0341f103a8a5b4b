package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-advisor/internal/advisor"
)

var turnTimeout time.Duration

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interview yourself from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(ctx, a.svc, os.Stdin, cmd.OutOrStdout(), turnTimeout)
	},
}

func init() {
	chatCmd.Flags().DurationVar(&turnTimeout, "turn-timeout", 60*time.Second, "deadline for one turn")
}

// #region chat-loop

// runChat drives one session from in until it terminates, the input ends
// or the user types quit.
func runChat(ctx context.Context, svc *advisor.Service, in io.Reader, out io.Writer, perTurn time.Duration) error {
	res, err := svc.OpenSession(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	id := res.State.SessionID
	fmt.Fprintf(out, "%s\n\n", res.AssistantMessage)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		turnCtx, cancel := context.WithTimeout(ctx, perTurn)
		res, err = svc.ProcessTurn(turnCtx, id, line)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\n%s\n\n", res.AssistantMessage)
		if res.Terminated {
			u := svc.Usage(id)
			fmt.Fprintf(out, "session %s: %d reasoner calls, %d tokens, $%.4f\n", id, u.RequestCount, u.TotalTokens, u.Cost)
			return nil
		}
	}
	return scanner.Err()
}

// #endregion chat-loop
