package cli

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackorbit/orbitchat/internal/config"
	"github.com/blackorbit/orbitchat/internal/server"
	"github.com/blackorbit/orbitchat/internal/tlsconf"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget script and chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			v := app.Cfg
			applyConfigFlagOverrides(cmd, v, map[string]string{
				"listen":      "http_addr",
				"webhook-url": "webhook.url",
				"db-url":      "db_url",
				"http3":       "http3.enabled",
			})
			if err := config.CheckConfigValidity(v); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}
			app.Webhook.URL = v.GetString("webhook.url")
			if app.Webhook.URL == "" {
				app.Log.Warn().Msg("webhook.url is empty; chat requests will fail")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := app.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()
			w, err := app.Widget()
			if err != nil {
				return err
			}
			tlsConf, challenge, err := tlsconf.FromViper(ctx, v)
			if err != nil {
				return fmt.Errorf("tls: %w", err)
			}

			addr := v.GetString("http_addr")
			handler := server.New(v, store, app.Webhook, w, app.Log).Router()

			g, ctx := errgroup.WithContext(ctx)
			if v.GetBool("http3.enabled") {
				h3, err := tlsconf.NewHTTP3(addr, handler, tlsConf)
				if err != nil {
					return err
				}
				handler = h3.AltSvc(handler)
				g.Go(func() error { return h3.Serve(ctx) })
				app.Log.Info().Str("addr", addr).Msg("http/3 listening")
			}
			if challenge != nil {
				acme := &http.Server{Addr: ":80", Handler: challenge}
				g.Go(func() error { return server.Serve(ctx, acme, nil) })
			}
			httpSrv := &http.Server{Addr: addr, Handler: handler}
			g.Go(func() error { return server.Serve(ctx, httpSrv, tlsConf) })

			app.Log.Info().Str("addr", addr).Bool("tls", tlsConf != nil).Msg("orbitchat listening")
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", "", "listen address (override config http_addr)")
	cmd.Flags().String("webhook-url", "", "webhook URL (override config webhook.url)")
	cmd.Flags().String("db-url", "", "transcript store URL (override config db_url)")
	cmd.Flags().Bool("http3", false, "also serve HTTP/3 (requires TLS)")
	return cmd
}
