// serve.go implements "codetrek serve", the development backend.
package cli

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codetrek/codetrek/internal/backend"
	"github.com/codetrek/codetrek/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development tutoring backend",
	Long: `Serve the tutoring API locally: problems from an SQLite catalogue seeded
from the bundled dataset (or --dataset), deterministic guidance, code
evaluation in the sandbox, and chat with history.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddrFlag    string
	serveDBFlag      string
	serveDatasetFlag string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveDBFlag, "db", "", "SQLite database path (default: server.db_path)")
	serveCmd.Flags().StringVar(&serveDatasetFlag, "dataset", "", "CSV dataset to seed from (default: server.dataset_path or bundled)")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	sc := env.cfg.Server
	if serveAddrFlag != "" {
		sc.Addr = serveAddrFlag
	}
	if serveDBFlag != "" {
		sc.DBPath = serveDBFlag
	}
	if serveDatasetFlag != "" {
		sc.DatasetPath = serveDatasetFlag
	}

	db, err := backend.OpenDB(config.Resolve(env.root, sc.DBPath))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := backend.Build(ctx, backend.Options{
		DB:          db,
		DatasetPath: config.Resolve(env.root, sc.DatasetPath),
		Sandbox:     env.sandbox(),
		Logger:      env.logger,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", sc.Addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "CodeTrek backend listening on http://%s\n", ln.Addr())
	return srv.Serve(ctx, ln)
}
