// status.go implements "codetrek status", showing backend reachability and
// a summary of the local event journal.
package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codetrek/codetrek/internal/config"
	"github.com/codetrek/codetrek/internal/log"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend reachability and session activity",
	Long: `Ping the configured backend and summarise the events recorded in the
local event journal.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()
	out := cmd.OutOrStdout()

	client := env.client()
	fmt.Fprintln(out, "CodeTrek Status")
	fmt.Fprintf(out, "Backend: %s\n", client.BaseURL())
	if err := client.Ping(cmd.Context()); err != nil {
		fmt.Fprintf(out, "  unreachable: %v\n", err)
	} else {
		fmt.Fprintln(out, "  ok")
	}
	fmt.Fprintln(out)

	journal, err := log.NewLogger(config.Resolve(env.root, env.cfg.Logging.EventsPath))
	if err != nil {
		return err
	}
	events, err := journal.ReadAll()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No session activity recorded yet.")
		return nil
	}

	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Event]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Events (%s):\n", journal.Path())
	for _, name := range names {
		fmt.Fprintf(out, "  %-22s %d\n", name, counts[name])
	}
	last := events[len(events)-1]
	fmt.Fprintf(out, "\nLast activity: %s (%s)\n", last.Time.Local().Format("2006-01-02 15:04:05"), last.Event)
	return nil
}
