package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/agenda/internal/mcp"
)

var serveSession string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve agenda tools over MCP on stdio",
	Long: `Serve runs an MCP server on stdin and stdout. Logs go to stderr so the
protocol stream stays clean. Pending writes expire and idle sessions are
evicted on the configured schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd)
	},
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	a, err := bootstrap(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.obs.Log().Error().Err(err).Msg("shutdown failed")
		}
	}()

	session := serveSession
	if session == "" {
		session = a.cfg.Memory.DefaultSession
	}

	sched, err := a.startScheduler()
	if err != nil {
		return err
	}

	server := mcp.NewServer(a.runtime, session, Version, a.obs)
	a.obs.Log().Info().Str("session", session).Msg("serving MCP on stdio")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A disconnected client ends the server as well.
		defer cancel()
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return stopScheduler(sched)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.obs.Log().Info().Msg("MCP server stopped")
	return err
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveSession, "session", "", "Session id for all tool calls (default memory.default_session)")
}
