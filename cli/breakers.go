// ABOUTME: Shows circuit breaker state per external dependency
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harperreed/consult/resilience"
)

// BreakersCommand prints breaker stats, or resets one with --reset.
func BreakersCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("breakers", flag.ExitOnError)
	reset := fs.String("reset", "", "Force the named breaker closed (calendar or crm)")
	_ = fs.Parse(args)

	if *reset != "" {
		if err := app.Orchestrator.ResetBreaker(*reset); err != nil {
			return err
		}
		fmt.Println(ok(fmt.Sprintf("Breaker %s reset", *reset)))
	}

	printBreakers(os.Stdout, app.Orchestrator.BreakerStats())
	return nil
}

func printBreakers(w io.Writer, stats []resilience.BreakerStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BREAKER\tSTATE\tFAILURES\tCALLS\tOK\tFAILED\tNEXT ATTEMPT")
	for _, s := range stats {
		next := "-"
		if s.State == resilience.StateOpen {
			next = s.NextAttemptTime.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Name, stateLabel(s.State), s.Failures, s.TotalCalls, s.TotalSuccesses, s.TotalFailures, next)
	}
	_ = tw.Flush()
}

func stateLabel(s resilience.State) string {
	switch s {
	case resilience.StateClosed:
		return okStyle.Render(s.String())
	case resilience.StateHalfOpen:
		return warnStyle.Render(s.String())
	default:
		return errStyle.Render(s.String())
	}
}
