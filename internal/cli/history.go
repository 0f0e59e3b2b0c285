package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blackorbit/orbitchat/internal/db"
	"github.com/blackorbit/orbitchat/pkg/api"
)

const defaultPager = "less -FRSX"

func newHistoryCmd() *cobra.Command {
	var limit int
	var output string
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Show the stored transcript of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			ctx := cmd.Context()
			store, err := app.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Session(ctx, args[0])
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no session %q", args[0])
			}
			if err != nil {
				return err
			}
			msgs, err := store.ListMessages(ctx, args[0], limit)
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Session  api.Session   `json:"session"`
					Messages []api.Message `json:"messages"`
				}{sess, msgs})
			case "ndjson":
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, m := range msgs {
					if err := enc.Encode(m); err != nil {
						return err
					}
				}
				return nil
			case "plain", "":
				return withPager(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
					return writePlainTranscript(w, sess, msgs)
				})
			default:
				return fmt.Errorf("unknown output %q (plain, json, ndjson)", output)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the newest N messages")
	cmd.Flags().StringVarP(&output, "output", "o", "plain", "output format: plain, json or ndjson")
	return cmd
}

func writePlainTranscript(w io.Writer, sess api.Session, msgs []api.Message) error {
	clicked := api.ClickedNo
	if sess.WhatsAppClicked {
		clicked = api.ClickedYes
	}
	if _, err := fmt.Fprintf(w, "session %s  messages=%d  whatsapp=%s\n\n", sess.ID, sess.Messages, clicked); err != nil {
		return err
	}
	for _, m := range msgs {
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.Role, m.Text); err != nil {
			return err
		}
	}
	return nil
}

func withPager(ctx context.Context, out, errOut io.Writer, write func(io.Writer) error) error {
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return write(out)
	}
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = defaultPager
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", pager)
	cmd.Stdout = outFile
	if errFile, ok := errOut.(*os.File); ok {
		cmd.Stderr = errFile
	} else {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return write(out)
	}
	if err := cmd.Start(); err != nil {
		return write(out)
	}
	writeErr := write(stdin)
	_ = stdin.Close()
	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	return waitErr
}
