package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/server"
	"github.com/chosahoo/cafe24-cs-bot/internal/webhook"
)

var (
	serverPort int
	noPoll     bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API, the Cafe24 webhook and the board poller",
	Long: `Starts the csbot server: the operator REST API, the Cafe24 OAuth install
flow, the webhook endpoint for new board posts, and the background poller
that sweeps the configured boards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		hook := webhook.NewHandler(a.service, cfg.Webhook.Secret, logger)
		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
		}, a.db, server.Handlers{
			Settings:      a.settings,
			Manuals:       a.manuals,
			Logs:          a.logs,
			Monitor:       a.monitor,
			Notifications: a.notifications,
			OAuth:         a.oauth,
			DefaultMall:   cfg.Cafe24.MallID,
			Orchestrator:  a.service,
			Links:         a.links,
			Webhook:       hook,
		}, logger)

		if cfg.Poll.Enabled && !noPoll && len(cfg.Boards) > 0 {
			p := a.newPoller(cfg.Poll.Workers, logger)
			if err := p.Start(ctx); err != nil {
				return err
			}
			defer p.Stop()
		} else {
			logger.Info("background polling disabled")
		}

		go func() {
			<-ctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown", zap.Error(err))
			}
		}()

		fmt.Fprintf(os.Stderr, "csbot server %s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "  Mall: %s  Boards: %v\n", cfg.Cafe24.MallID, cfg.Boards)
		if inst, err := a.oauth.Status(ctx, cfg.Cafe24.MallID); err != nil || inst == nil {
			fmt.Fprintf(os.Stderr, "  App not installed yet: open /cafe24/install?mall_id=%s\n", cfg.Cafe24.MallID)
		}

		err = srv.Start()
		hook.Wait()
		return err
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	serverCmd.Flags().BoolVar(&noPoll, "no-poll", false, "Disable the background board poller")
	rootCmd.AddCommand(serverCmd)
}
