// run.go implements the "codetrek run" command which executes a snippet
// headless and prints the result as JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Execute a JavaScript snippet in the sandbox",
	Long: `Execute a snippet the same way the editor's Run action does and print
the execution result as JSON. The snippet is read from the given file, or
from stdin when the argument is "-" or omitted. The snippet body runs as a
function, so use "return" to produce a value.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runTimeoutFlag time.Duration
	runEngineFlag  string
)

func init() {
	runCmd.Flags().DurationVar(&runTimeoutFlag, "timeout", 0, "Execution budget (default: sandbox.timeout_ms)")
	runCmd.Flags().StringVar(&runEngineFlag, "engine", "", "Engine override: interpreter or node")
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	code, err := readSnippet(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	if runTimeoutFlag > 0 {
		env.cfg.Sandbox.TimeoutMs = int(runTimeoutFlag / time.Millisecond)
	}
	if runEngineFlag != "" {
		env.cfg.Sandbox.Engine = runEngineFlag
		if err := env.cfg.Validate(); err != nil {
			return err
		}
	}

	res := env.sandbox().Execute(cmd.Context(), code)
	env.logger.Debug("snippet executed", "engine", res.Engine, "success", res.Success, "elapsed", res.Elapsed)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if !res.Success {
		return errExecutionFailed
	}
	return nil
}

var errExecutionFailed = fmt.Errorf("execution failed")

func readSnippet(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading snippet: %w", err)
	}
	return string(data), nil
}
