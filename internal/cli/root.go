// Package cli provides the command-line interface for campuschat.
package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/internal/chatclient"
	"github.com/capitalize-ai/campuschat/internal/config"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	backendFlag string
	userFlag    string
	nameFlag    string
	apiURLFlag  string
	verbose     bool

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "campuschat",
	Short: "Chat with the campus assistant from the terminal",
	Long: `campuschat opens your recent conversations with the campus assistant and
lets you continue them or start a new one.

Two backends are supported:
  resource  the conversation API (default)
  webhook   the intent-webhook dialogue service; history lives only for the session`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if backendFlag != "" {
			cfg.Client.Backend = backendFlag
		}
		if userFlag != "" {
			cfg.Client.UserID = userFlag
		}
		if nameFlag != "" {
			cfg.Client.DisplayName = nameFlag
		}
		if apiURLFlag != "" {
			cfg.Client.APIURL = apiURLFlag
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logger.NewFile(level, cfg.Client.LogFile)
		logger.SetGlobal(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "", "chat backend: resource or webhook (overrides CHAT_BACKEND)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id (overrides CHAT_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&nameFlag, "name", "", "display name (overrides CHAT_DISPLAY_NAME)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "conversation API base URL (overrides CHAT_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to the log file")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(recentsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func identity(c config.ClientConfig) chatclient.Identity {
	return chatclient.Identity{
		ID:          c.UserID,
		Username:    c.UserID,
		DisplayName: c.DisplayName,
		Token:       c.Token,
	}
}

func metadata(c config.ClientConfig) chatclient.CreateMetadata {
	return chatclient.CreateMetadata{
		Platform: c.Platform,
		Language: c.Language,
		Topic:    c.Topic,
		Timezone: c.Timezone,
	}
}

// newClient builds the conversation client for the configured backend.
func newClient(c config.ClientConfig, l *logger.Logger) (chatclient.Client, error) {
	opts := []chatclient.Option{
		chatclient.WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout}),
		chatclient.WithLogger(l),
	}
	id := identity(c)

	switch c.Backend {
	case chatclient.BackendResource, "":
		return chatclient.NewResourceBackend(c.APIURL, id, opts...), nil
	case chatclient.BackendWebhook:
		return chatclient.NewWebhookBackend(c.RasaURL, id, opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func location(c config.ClientConfig) *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn("unknown timezone, using local time", zap.String("timezone", c.Timezone), zap.Error(err))
		return time.Local
	}
	return loc
}
