package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	chat "nestchat/internal/domain/chat"
	"nestchat/internal/devserver"
	"nestchat/internal/infra/config"
	"nestchat/internal/infra/obs"
)

func newDevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dev",
		Short: "Run a local in-memory backend with demo users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := obs.NewLogger(cfg.Env, obs.ParseLevel(cfg.LogLevel))

			repo := devserver.NewRepo()
			for _, u := range []chat.User{
				{ID: "u-inga", Name: "Inga Host", Online: true},
				{ID: "u-marco", Name: "Marco Guest", Online: true},
			} {
				repo.UpsertUser(u)
				token, err := devserver.MintToken(u.ID, u.Name)
				if err != nil {
					return err
				}
				fmt.Printf("token for %s:\n  %s\n", u.Name, token)
			}

			server := &http.Server{Addr: cfg.DevAddr, Handler: devserver.NewRouter(repo, logger)}
			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("dev server shutdown failed", "error", err)
				}
			}()

			logger.Info("dev server starting", "addr", cfg.DevAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("dev server stopped")
			return nil
		},
	}
}
