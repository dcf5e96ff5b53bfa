package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tidyloom-cli/internal/source"
)

var (
	queryDriver   string
	queryDatabase string
	queryTimeout  time.Duration
	queryOutput   string
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL query against the configured database and print the result as CSV",
	Long: `Run a query through database/sql. Connection settings come from config
(db_driver, db_server, db_port, db_name, db_user, db_password, db_trusted,
db_sslmode), which may be set in a .env file as TIDYLOOM_DB_* variables.
Supported drivers: sqlite, postgres.`,
	Example: `  tidyloom query "SELECT country, year, cases FROM tb" --driver sqlite --db tb.db -o tb.csv`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn := cfg.Conn()
		if queryDriver != "" {
			conn.Driver = queryDriver
		}
		if queryDatabase != "" {
			conn.Database = queryDatabase
		}
		ctx := cmd.Context()
		if queryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, queryTimeout)
			defer cancel()
		}
		db, err := source.Open(ctx, conn)
		if err != nil {
			return err
		}
		defer db.Close()
		t, err := source.Query(ctx, db, args[0])
		if err != nil {
			return err
		}
		logger.Info("query finished", zap.String("driver", conn.Driver), zap.Int("rows", t.NumRows()))
		return writeTable(cmd, t, queryOutput)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryDriver, "driver", "", "database driver: sqlite|postgres (overrides config)")
	queryCmd.Flags().StringVar(&queryDatabase, "db", "", "database name, or file path for sqlite (overrides config)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "query timeout, e.g. 30s (0 = none)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "write CSV here instead of stdout")
}
