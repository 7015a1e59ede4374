package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicebox/internal/ipc"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "import <url-or-path>",
		Short: "Import a voice pack from a URL or a local zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return errors.New("import source is required")
			}

			req := ipc.ImportRequest{}
			if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
				req.URL = source
			} else {
				req.FilePath = source
			}

			return ctx.withClient(func(client *ipc.Client) error {
				started, err := client.Import(req)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !wait {
					if ctx.jsonMode() {
						return writeJSON(cmd, started)
					}
					fmt.Fprintf(stdout, "Import %d started\n", started.ImportID)
					fmt.Fprintln(stdout, "Use `voicebox history` to track progress")
					return nil
				}

				resp, err := client.ImportWait(ipc.ImportWaitRequest{
					ImportID:      started.ImportID,
					TimeoutMillis: timeoutSeconds * 1000,
				})
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				record := resp.Record
				switch record.Status {
				case "succeeded":
					fmt.Fprintf(stdout, "Imported %q\n", record.PackTitle)
				case "failed":
					message := strings.TrimSpace(record.ErrorMessage)
					if message == "" {
						message = "import failed"
					}
					return fmt.Errorf("import %d failed: %s", record.ID, message)
				default:
					return fmt.Errorf("import %d still %s after timeout", record.ID, record.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the import finishes")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 600, "Wait timeout in seconds (with --wait)")
	return cmd
}
