package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newWidgetCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Print the configured widget script for static hosting",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := getApp(cmd).Widget()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(w.Script())
				return err
			}
			if err := os.WriteFile(out, w.Script(), 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (etag %s)\n", out, w.ETag())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the script to a file")
	return cmd
}
