package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appchat "nestchat/internal/app/chat"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Follow a conversation live until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.store.SetActive(ctx, args[0]); err != nil {
				return err
			}

			poller := appchat.NewPoller(c.store, appchat.PollerOptions{
				MessageInterval:      c.cfg.MessageInterval,
				ConversationInterval: c.cfg.ConversationInterval,
			}, c.logger)
			poller.Start(ctx)
			defer poller.Stop()

			seen := make(map[string]bool)
			for _, m := range c.store.Messages().Messages() {
				printMessage(m, c.user.UserID)
				seen[m.ID] = true
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					fmt.Println()
					return nil
				case <-ticker.C:
					printNew(c, seen)
				}
			}
		},
	}
}

func printNew(c *core, seen map[string]bool) {
	for _, m := range c.store.Messages().Messages() {
		if seen[m.ID] || m.Pending {
			continue
		}
		printMessage(m, c.user.UserID)
		seen[m.ID] = true
	}
}
