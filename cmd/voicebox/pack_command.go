package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicebox/internal/ipc"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pack",
		Short: "Show the active voice pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CurrentPack()
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if resp.Pack == nil {
					fmt.Fprintln(stdout, "No voice pack loaded")
					return nil
				}

				pack := resp.Pack
				fmt.Fprintf(stdout, "Pack: %s (%d sections, %d voices)\n", pack.Title, len(pack.Sections), len(pack.Voices))

				sectionNames := make(map[string]string, len(pack.Sections))
				for _, section := range pack.Sections {
					sectionNames[section.ID] = section.Name
				}

				rows := make([][]string, 0, len(pack.Voices))
				for _, voice := range pack.Voices {
					section := sectionNames[voice.SectionID]
					if section == "" {
						section = voice.SectionID
					}
					duration := ""
					if voice.DurationMs > 0 {
						duration = fmt.Sprintf("%.1fs", float64(voice.DurationMs)/1000)
					}
					rows = append(rows, []string{voice.ID, section, strings.TrimSpace(voice.Text), duration})
				}
				table := renderTable(
					[]string{"ID", "Section", "Text", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
}
