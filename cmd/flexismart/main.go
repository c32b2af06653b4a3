// Command flexismart bridges a Thermotec AeroFlow FlexiSmart gateway to
// Home Assistant over MQTT and offers one-shot commands for setup and
// manual control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "flexismart",
	Short:         "Thermotec AeroFlow FlexiSmart gateway bridge",
	Long:          `Polls a Thermotec AeroFlow FlexiSmart gateway and mirrors its heaters to Home Assistant.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
