// ask.go implements "codetrek ask", a one-shot chat message.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codetrek/codetrek/internal/transcript"
	"github.com/codetrek/codetrek/internal/tutor"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one chat message to the tutor",
	Long: `Send a single chat message for a topic and level and print the tutor's
reply.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askTopicFlag string
	askLevelFlag string
)

func init() {
	askCmd.Flags().StringVarP(&askTopicFlag, "topic", "t", "", "Topic the question is about")
	askCmd.Flags().StringVarP(&askLevelFlag, "level", "l", "", "easy, medium or hard (default: session.default_level)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	ctrl, err := env.controller(nil)
	if err != nil {
		return err
	}
	if err := applyLevel(ctrl, askLevelFlag); err != nil {
		return err
	}
	if askTopicFlag != "" {
		ctrl.SelectTopic(askTopicFlag)
	}

	sendErr := ctrl.SendMessage(cmd.Context(), strings.Join(args, " "))
	if errors.Is(sendErr, tutor.ErrEmptyMessage) {
		return sendErr
	}

	// On failure the transcript ends with the failure message.
	snap := ctrl.Store().Snapshot()
	last := snap.Transcript[len(snap.Transcript)-1]
	if last.Kind != transcript.KindBot {
		return errors.New("no reply from tutor")
	}
	fmt.Fprintln(cmd.OutOrStdout(), last.Text)
	return sendErr
}
