package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	chat "nestchat/internal/domain/chat"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the configured token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", c.user.Name, c.user.UserID)
			return nil
		},
	}
}

func newConversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			if err := c.store.FetchConversations(cmd.Context(), true); err != nil {
				return err
			}
			list := c.store.Conversations()
			if len(list) == 0 {
				fmt.Println("no conversations")
				return nil
			}
			for _, conv := range list {
				printConversation(conv, c.user.UserID)
			}
			if total := c.store.UnreadTotal(); total > 0 {
				fmt.Printf("\n%d unread\n", total)
			}
			return nil
		},
	}
}

func newMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			if err := c.store.SetActive(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, m := range c.store.Messages().Messages() {
				printMessage(m, c.user.UserID)
			}
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			if err := c.store.SetActive(cmd.Context(), args[0]); err != nil {
				return err
			}
			sent, err := c.store.SendMessage(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("sent %s\n", sent.ID)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	var propertyID string
	cmd := &cobra.Command{
		Use:   "start <user-id>",
		Short: "Start (or reopen) a conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			conv, err := c.store.StartConversation(cmd.Context(), chat.User{ID: args[0]}, propertyID)
			if err != nil {
				return err
			}
			fmt.Printf("conversation %s with %s\n", conv.ID, conv.Other(c.user.UserID).Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "property listing to anchor the conversation to")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			if err := c.store.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search users to chat with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			users, err := c.store.SearchUsers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, u := range users {
				marker := " "
				if u.Online {
					marker = "*"
				}
				fmt.Printf("%s %s  %s\n", marker, u.ID, u.Name)
			}
			return nil
		},
	}
}

func printConversation(conv chat.Conversation, userID string) {
	other := conv.Other(userID)
	line := fmt.Sprintf("%s  %s", conv.ID, other.Name)
	if conv.Property != nil {
		line += fmt.Sprintf(" [%s]", conv.Property.Title)
	}
	if unread := conv.UnreadCount(userID); unread > 0 {
		line += fmt.Sprintf(" (%d unread)", unread)
	}
	fmt.Println(line)
	if conv.LastMessage != nil {
		fmt.Printf("    %s  %s\n", conv.LastMessage.CreatedAt.Format(time.Stamp), conv.LastMessage.Content)
	}
}

func printMessage(m chat.Message, userID string) {
	name := "me"
	if m.SenderID != userID && m.Sender != nil {
		name = m.Sender.Name
	}
	marker := ""
	if m.Pending {
		marker = " …"
	}
	fmt.Printf("%s  %-12s %s%s\n", m.CreatedAt.Format(time.Stamp), name+":", m.Content, marker)
}
