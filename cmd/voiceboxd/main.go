// Command voiceboxd runs the voicebox daemon in the foreground. The CLI's
// `voicebox start` launches the same runtime through a hidden subcommand;
// this binary exists for init systems that want a dedicated daemon process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"voicebox/internal/config"
	"voicebox/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "ensure directories: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: *logLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "voiceboxd: %v\n", err)
		os.Exit(1)
	}
}
