package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackorbit/orbitchat/internal/render"
	"github.com/blackorbit/orbitchat/pkg/api"
)

func newSendCmd() *cobra.Command {
	var session string
	var raw bool
	var clicked bool
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message to the webhook and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return fmt.Errorf("message is required")
			}
			if session == "" {
				session = api.NewSessionID()
			}
			app.Log.Debug().Str("session", session).Msg("sending")
			reply, err := app.Webhook.Chat(cmd.Context(), session, msg, clicked)
			if err != nil {
				return err
			}
			if raw {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), reply)
			} else {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Markdown(reply))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id (default: a new one)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without rendering")
	cmd.Flags().BoolVar(&clicked, "whatsapp-clicked", false, "mark the session as having followed a WhatsApp link")
	return cmd
}
