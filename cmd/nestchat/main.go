// Command nestchat is a terminal client for the marketplace messaging API.
// It drives the conversation/message stores over the REST backend and can
// also run a local in-memory dev backend for demos and manual testing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appchat "nestchat/internal/app/chat"
	"nestchat/internal/infra/api"
	"nestchat/internal/infra/auth"
	"nestchat/internal/infra/config"
	"nestchat/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "nestchat",
		Short:         "Chat client for the nest marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newWhoamiCmd(),
		newConversationsCmd(),
		newMessagesCmd(),
		newSendCmd(),
		newStartCmd(),
		newDeleteCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newDevCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// core bundles everything a command needs to talk to the backend.
type core struct {
	cfg    config.Config
	logger *slog.Logger
	user   auth.Identity
	store  *appchat.ConversationStore
}

// buildCore loads config, resolves the signed-in identity from the token,
// and wires the store stack.
func buildCore() (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := obs.NewLogger(cfg.Env, obs.ParseLevel(cfg.LogLevel))

	user, err := auth.IdentityFromToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("set NESTCHAT_TOKEN to a valid token: %w", err)
	}
	if auth.Expired(cfg.Token, time.Now()) {
		logger.Warn("configured token is expired, requests will be rejected until it is renewed", "user_id", user.UserID)
	}
	tokens := auth.StaticSource{Value: cfg.Token}

	client, err := api.NewClient(api.Config{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.HTTPTimeout,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
	}, tokens, logger)
	if err != nil {
		return nil, err
	}

	messages := appchat.NewMessageStore(client, user, appchat.MessageStoreOptions{
		CacheTTL:         cfg.CacheTTL,
		FetchMinInterval: cfg.FetchMinInterval,
	}, logger)
	store := appchat.NewConversationStore(client, messages, user, appchat.ConversationStoreOptions{
		CacheTTL: cfg.CacheTTL,
	}, logger)

	return &core{cfg: cfg, logger: logger, user: user, store: store}, nil
}
