// Package cli implements the interactive pieces of the sequent command.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/openlms/sequent"
	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/adapters/file"
	"github.com/openlms/sequent/pkg/domain"
)

// WalkOptions configures an interactive walk.
type WalkOptions struct {
	ManifestPath string
	Browse       bool
	Debug        bool
}

// NewLogger builds the command logger at the requested verbosity.
func NewLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelWarn)
}

// Walk runs an interactive sequencing session on the terminal: it prints the
// current activity and the valid requests, reads commands from in, and feeds
// them to the engine until the session ends.
func Walk(ctx context.Context, opts WalkOptions, in io.Reader, out io.Writer) error {
	logger := NewLogger(opts.Debug)

	engineOpts := []sequent.Option{
		sequent.WithLoader(file.NewLoader(opts.ManifestPath)),
		sequent.WithLogger(logger),
	}
	if opts.Browse {
		engineOpts = append(engineOpts, sequent.WithBrowseMode())
	}

	eng, err := sequent.New(ctx, nil, engineOpts...)
	if err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}
	if _, err := eng.Initialize(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "session %s started", eng.ID())
	if opts.Browse {
		fmt.Fprint(out, " (browse mode)")
	}
	fmt.Fprintln(out)

	res, err := eng.Navigate(ctx, domain.NavStart, "")
	if err != nil {
		return err
	}
	printResult(out, res)

	scanner := bufio.NewScanner(in)
	for {
		state := eng.State()
		if state.SessionState == domain.SessionEnded {
			fmt.Fprintln(out, "session ended")
			return nil
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			_, err := eng.Terminate(ctx)
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "quit", "exit":
			if _, err := eng.Terminate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "session ended")
			return nil

		case "state":
			printState(out, state)

		case "help":
			printHelp(out)

		case "complete", "pass", "fail":
			target := state.CurrentActivityID
			if len(fields) > 1 {
				target = fields[1]
			}
			if target == "" {
				fmt.Fprintln(out, "no current activity")
				continue
			}
			update := progressFor(fields[0])
			pres, err := eng.UpdateProgress(ctx, target, update)
			if err != nil {
				return err
			}
			printProgress(out, pres)

		case "score":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: score <measure> [activity]")
				continue
			}
			measure, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Fprintf(out, "invalid measure %q\n", fields[1])
				continue
			}
			target := state.CurrentActivityID
			if len(fields) > 2 {
				target = fields[2]
			}
			pres, err := eng.UpdateProgress(ctx, target, domain.ProgressUpdate{Measure: &measure})
			if err != nil {
				return err
			}
			printProgress(out, pres)

		default:
			kind, ok := domain.ParseNavigationRequest(fields[0])
			if !ok {
				fmt.Fprintf(out, "unknown command %q (try help)\n", fields[0])
				continue
			}
			var target string
			if len(fields) > 1 {
				target = fields[1]
			}
			res, err := eng.Navigate(ctx, kind, target)
			if err != nil {
				return err
			}
			printResult(out, res)
		}
	}
}

func progressFor(cmd string) domain.ProgressUpdate {
	yes, no := true, false
	switch cmd {
	case "pass":
		return domain.ProgressUpdate{Completed: &yes, Satisfied: &yes}
	case "fail":
		return domain.ProgressUpdate{Completed: &yes, Satisfied: &no}
	default:
		return domain.ProgressUpdate{Completed: &yes}
	}
}

func printResult(out io.Writer, res domain.NavigationResult) {
	if !res.Success {
		fmt.Fprintf(out, "denied (%s): %s\n", res.Code, res.Reason)
		return
	}
	if res.Target != nil {
		title := res.Target.Title
		if title == "" {
			title = res.Target.ID
		}
		fmt.Fprintf(out, "current: %s [%s]\n", title, res.Target.ResourceRef)
	}
	fmt.Fprintf(out, "available: %s\n", joinRequests(res.Available))
}

func printProgress(out io.Writer, res domain.ProgressResult) {
	if !res.Success {
		fmt.Fprintf(out, "denied (%s): %s\n", res.Code, res.Reason)
		return
	}
	fmt.Fprintf(out, "recorded; rolled up %d activities", len(res.Rollup.Updated))
	if res.PostActionName != "" {
		fmt.Fprintf(out, "; post action: %s", res.PostActionName)
	}
	fmt.Fprintln(out)
}

func printState(out io.Writer, state domain.SessionSnapshot) {
	fmt.Fprintf(out, "session: %s\n", state.SessionState)
	if state.CurrentActivityID != "" {
		fmt.Fprintf(out, "current: %s\n", state.CurrentActivityID)
	}
	fmt.Fprintf(out, "available: %s\n", joinRequests(state.Available))
	for id, g := range state.GlobalObjectives {
		fmt.Fprintf(out, "objective %s: satisfied=%s", id, g.Satisfied)
		if g.MeasureKnown {
			fmt.Fprintf(out, " measure=%.2f", g.Measure)
		}
		fmt.Fprintln(out)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  start | continue | previous | choice <id>   navigate
  exit | exitAll | suspendAll | abandon       leave the current activity
  complete [id] | pass [id] | fail [id]       report progress
  score <measure> [id]                        report a score in [-1,1]
  state                                       show session state
  quit                                        terminate the session`)
}

func joinRequests(reqs []domain.NavigationRequest) string {
	if len(reqs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
