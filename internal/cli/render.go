package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blackorbit/orbitchat/internal/render"
	"github.com/blackorbit/orbitchat/internal/tui"
)

func newRenderCmd() *cobra.Command {
	var preview bool
	var stages bool
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render a bot reply from markdown to widget HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if stages {
				_, err := fmt.Fprintln(out, strings.Join(render.Stages(), "\n"))
				return err
			}
			src, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(out, render.Markdown(src)); err != nil {
				return err
			}
			if !preview {
				return nil
			}
			style, width := "notty", 80
			if w, ok := terminalWidth(out); ok {
				style, width = tui.DefaultStyle, w
			}
			_, _ = fmt.Fprintln(out)
			return tui.WriteMarkdown(out, src, style, width)
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "also show a terminal preview of the markdown")
	cmd.Flags().BoolVar(&stages, "stages", false, "list the rendering stages in order and exit")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

// terminalWidth reports the width of w when it is a terminal.
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	return width, true
}
