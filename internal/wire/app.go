package wire

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/blackorbit/orbitchat/internal/config"
	"github.com/blackorbit/orbitchat/internal/db"
	"github.com/blackorbit/orbitchat/internal/logging"
	"github.com/blackorbit/orbitchat/internal/webhook"
	"github.com/blackorbit/orbitchat/internal/widget"
)

// App aggregates the major services for easy injection. The store and widget
// are built on demand since most commands need neither.
type App struct {
	Cfg     *viper.Viper
	Log     zerolog.Logger
	Webhook *webhook.Client
}

// BuildApp wires dependencies with the provided config. Logs go to stderr.
func BuildApp(ctx context.Context, v *viper.Viper) (*App, error) {
	return BuildAppWithLog(ctx, v, os.Stderr)
}

// BuildAppWithLog is BuildApp with an explicit log destination.
func BuildAppWithLog(ctx context.Context, v *viper.Viper, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, v.GetString("log.level"), v.GetString("log.format"))
	if err != nil {
		return nil, err
	}
	return &App{
		Cfg:     v,
		Log:     logger,
		Webhook: webhook.New(v.GetString("webhook.url"), v.GetDuration("webhook.timeout")),
	}, nil
}

// OpenStore opens the transcript store named by db_url.
func (a *App) OpenStore(ctx context.Context) (db.Store, error) {
	return db.Open(ctx, config.ResolveDBURL(a.Cfg))
}

// Widget renders the widget script from the [widget] section.
func (a *App) Widget() (*widget.Widget, error) {
	return widget.New(config.WidgetConfig(a.Cfg))
}
