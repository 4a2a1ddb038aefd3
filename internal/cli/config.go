// config.go implements "codetrek config init" and "codetrek config show".
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codetrek/codetrek/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage .codetrek/config.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, environment overrides included",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var forceFlag bool

func init() {
	configInitCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func resolveRoot() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return wd, nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	path := config.Path(root)
	if _, err := os.Stat(path); err == nil && !forceFlag {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteConfig(root, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
