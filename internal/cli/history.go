// history.go implements "codetrek history" and "codetrek problems", which
// list what the backend has stored.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent chat exchanges stored by the backend",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the backend's problem catalogue",
	Args:  cobra.NoArgs,
	RunE:  runProblems,
}

var (
	historyLimitFlag  int
	problemsTopicFlag string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of exchanges to show")
	problemsCmd.Flags().StringVarP(&problemsTopicFlag, "topic", "t", "", "Only list problems for this topic")
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := env.client().History(cmd.Context(), historyLimitFlag)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No chat history.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "[%s] %s/%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), orDash(r.Topic), orDash(r.Level))
		fmt.Fprintf(out, "  you:   %s\n", oneLine(r.Message))
		fmt.Fprintf(out, "  tutor: %s\n", oneLine(r.Response))
	}
	return nil
}

func runProblems(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	list, err := env.client().Problems(cmd.Context(), problemsTopicFlag)
	if err != nil {
		return fmt.Errorf("fetching problems: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, p := range list {
		fmt.Fprintf(out, "  %-4d %-8s %-22s %s\n", p.ID, p.Difficulty, p.Topic, p.Title)
	}
	fmt.Fprintf(out, "\n%d problems\n", len(list))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// oneLine collapses whitespace and truncates s for list output.
func oneLine(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) > 100 {
		return string(r[:97]) + "..."
	}
	return string(r)
}
