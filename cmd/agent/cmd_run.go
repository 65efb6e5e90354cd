package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/engage-agent/internal/api"
	"github.com/d60-Lab/engage-agent/internal/api/handler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the posting and engagement loop until interrupted",
	RunE:  runAgent,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single active cycle and exit",
	RunE:  runOnce,
}

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Server.Enabled {
		srv := startStatusServer(a)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	if err := a.scheduler.Run(ctx); err != nil && !isShutdown(err) {
		return err
	}
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.scheduler.RunOnce(ctx)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cycle %s: published=%t", res.ID, res.Published)
	if res.PostID != "" {
		fmt.Fprintf(out, " post=%s", res.PostID)
	}
	if res.Err != nil {
		fmt.Fprintf(out, " error=%v", res.Err)
	}
	fmt.Fprintln(out)
	return nil
}

func startStatusServer(a *app) *http.Server {
	h := handler.NewHandler(a.ledger, a.window, a.cfg.Engagement.DailyFollowCap)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(h, a.cfg.App.Name, a.cfg.Server.Mode, a.log.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.log.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("status server failed", zap.Error(err))
		}
	}()
	return srv
}
