package config

import (
	"github.com/spf13/viper"

	"github.com/blackorbit/orbitchat/internal/widget"
)

// WidgetConfig reads the [widget] section.
func WidgetConfig(v *viper.Viper) widget.Config {
	return widget.Config{
		PublicURL:        v.GetString("widget.public_url"),
		PrimaryColor:     v.GetString("widget.primary_color"),
		ChatTitle:        v.GetString("widget.chat_title"),
		InputPlaceholder: v.GetString("widget.input_placeholder"),
		TermsMessage:     v.GetString("widget.terms_message"),
		TermsLinkText:    v.GetString("widget.terms_link_text"),
		TermsLinkURL:     v.GetString("widget.terms_link_url"),
		DarkMode:         v.GetBool("widget.dark_mode"),
		Layout:           v.GetString("widget.layout"),
		Greeting:         v.GetString("widget.greeting"),
	}
}
