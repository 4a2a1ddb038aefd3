// problem.go implements "codetrek problem", a headless question fetch.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/tutor"
)

var problemCmd = &cobra.Command{
	Use:   "problem",
	Short: "Fetch a practice question",
	Long: `Fetch a practice question for a topic and level from the backend and
print it as markdown.`,
	Args: cobra.NoArgs,
	RunE: runProblem,
}

var (
	problemTopicFlag string
	problemLevelFlag string
)

func init() {
	problemCmd.Flags().StringVarP(&problemTopicFlag, "topic", "t", "", "Topic, e.g. \"Arrays\" (required)")
	problemCmd.Flags().StringVarP(&problemLevelFlag, "level", "l", "", "easy, medium or hard (default: session.default_level)")
	_ = problemCmd.MarkFlagRequired("topic")
}

func runProblem(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	ctrl, err := env.controller(nil)
	if err != nil {
		return err
	}
	if err := applyLevel(ctrl, problemLevelFlag); err != nil {
		return err
	}
	ctrl.SelectTopic(problemTopicFlag)

	fetchErr := ctrl.FetchCurrent(cmd.Context())
	if errors.Is(fetchErr, tutor.ErrNoTopic) {
		return fetchErr
	}

	// The fetch appended either the question or the failure message.
	snap := ctrl.Store().Snapshot()
	last := snap.Transcript[len(snap.Transcript)-1]
	fmt.Fprintln(cmd.OutOrStdout(), last.Text)
	if fetchErr != nil {
		return fetchErr
	}
	if snap.Question == nil {
		return errors.New("no question fetched")
	}
	return nil
}

func applyLevel(ctrl *tutor.Controller, flag string) error {
	if flag == "" {
		return nil
	}
	lvl, err := session.ParseLevel(flag)
	if err != nil {
		return err
	}
	ctrl.SetLevel(lvl)
	return nil
}
