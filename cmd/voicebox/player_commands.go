package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voicebox/internal/api"
	"voicebox/internal/ipc"
)

func newPlayerCommand(ctx *commandContext) *cobra.Command {
	playerCmd := &cobra.Command{
		Use:   "player",
		Short: "Control voice playback",
	}

	playerCmd.AddCommand(&cobra.Command{
		Use:   "play <voice-id>",
		Short: "Play a voice from the active pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyPlayerAction(ctx, cmd, ipc.PlayerActionRequest{
				Action:  "play",
				VoiceID: strings.TrimSpace(args[0]),
			})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "Pause playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyPlayerAction(ctx, cmd, ipc.PlayerActionRequest{Action: "pause"})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume paused playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyPlayerAction(ctx, cmd, ipc.PlayerActionRequest{Action: "resume"})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyPlayerAction(ctx, cmd, ipc.PlayerActionRequest{Action: "stop"})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "seek <position-ms>",
		Short: "Seek to a position in the current voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || position < 0 {
				return fmt.Errorf("invalid position %q", args[0])
			}
			return applyPlayerAction(ctx, cmd, ipc.PlayerActionRequest{Action: "seek", PositionMs: position})
		},
	})

	playerCmd.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Show the current playback state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PlayerState()
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, renderPlayerState(resp.State, shouldColorize(stdout)))
				return nil
			})
		},
	})

	return playerCmd
}

func applyPlayerAction(ctx *commandContext, cmd *cobra.Command, req ipc.PlayerActionRequest) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.PlayerAction(req)
		if err != nil {
			return err
		}
		if ctx.jsonMode() {
			return writeJSON(cmd, resp)
		}
		stdout := cmd.OutOrStdout()
		fmt.Fprintln(stdout, renderPlayerState(resp.State, shouldColorize(stdout)))
		return nil
	})
}

func renderPlayerState(state api.PlayerState, colorize bool) string {
	kind := statusInfo
	detail := state.State
	switch state.State {
	case "playing":
		kind = statusOK
		detail = fmt.Sprintf("Playing %q (%s)", state.VoiceID, formatPosition(state.PositionMs, state.DurationMs))
		if state.ShortAudio {
			detail += " [short]"
		}
	case "paused":
		kind = statusWarn
		detail = fmt.Sprintf("Paused %q (%s)", state.VoiceID, formatPosition(state.PositionMs, state.DurationMs))
	case "loading":
		detail = fmt.Sprintf("Loading %q", state.VoiceID)
	case "idle":
		detail = "Idle"
	case "error":
		kind = statusError
		detail = state.Message
	}
	return renderStatusLine("Player", kind, detail, colorize)
}

func formatPosition(positionMs, durationMs int64) string {
	if durationMs <= 0 {
		return fmt.Sprintf("%.1fs", float64(positionMs)/1000)
	}
	return fmt.Sprintf("%.1fs / %.1fs", float64(positionMs)/1000, float64(durationMs)/1000)
}
