package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/server"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the warehouse queries as a JSON API",
	Long: `serve exposes catalog, series, statistics, chart and correlation queries over HTTP:

  GET /api/areas
  GET /api/areas/{area}/variables
  GET /api/years
  GET /api/municipalities?year=
  GET /api/areas/{area}/variables/{variable}/series?year=&municipality=
  GET /api/areas/{area}/variables/{variable}/stats?year=&municipality=
  GET /api/areas/{area}/variables/{variable}/chart.png?type=bar|line|box
  GET /api/correlation?var=area/name&var=...&method=
  GET /healthz

Files are re-read on every request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		addr := c.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		method, err := analysis.ParseMethod(c.CorrelationMethod)
		if err != nil {
			return err
		}
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(store, method, utils.Log()).ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address (overrides listen_addr)")
}
