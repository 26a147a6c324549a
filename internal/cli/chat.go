package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/controller"
	"github.com/capitalize-ai/campuschat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Open a conversation, or start a new one",
	Long: `Open a conversation by id. Without an id a new conversation is started,
which requires a user id (CHAT_USER_ID or --user).

An id that the backend does not know starts a new conversation as well.

Examples:
  campuschat chat
  campuschat chat 0190c7a4-5b7e-7d2a-9d43-6c1f1b0b7f10
  campuschat chat --backend webhook --user u1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var recentsCmd = &cobra.Command{
	Use:   "recents",
	Short: "Browse your recent conversations",
	Long: `Browse recent conversations, newest first. Enter opens one, n starts a
new chat, r refreshes.

Use --plain to print the list instead of opening the interactive view.`,
	Args: cobra.NoArgs,
	RunE: runRecents,
}

func runChat(cmd *cobra.Command, args []string) error {
	route := controller.RouteNewChat
	if len(args) == 1 {
		route = controller.ChatRoute(args[0])
	}
	return runTUI(route)
}

func runTUI(route string) error {
	client, err := newClient(cfg.Client, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting terminal client",
		zap.String("backend", cfg.Client.Backend),
		zap.String("route", route),
	)

	err = tui.Run(ctx, tui.Config{
		Client:   client,
		Identity: identity(cfg.Client),
		Metadata: metadata(cfg.Client),
		PerPage:  cfg.Client.PerPage,
		Logger:   log,
		Location: location(cfg.Client),
	}, route)
	if err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
