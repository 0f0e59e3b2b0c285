package cli

import (
	"github.com/spf13/cobra"

	"github.com/blackorbit/orbitchat/internal/tui"
	"github.com/blackorbit/orbitchat/pkg/api"
)

func newChatCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the webhook from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if session == "" {
				session = api.NewSessionID()
			}
			return tui.Run(cmd.Context(), app.Webhook, session, app.Cfg.GetString("widget.chat_title"))
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id (default: a new one)")
	return cmd
}
