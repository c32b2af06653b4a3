package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zberg/go-flexismart/internal/config"
	"github.com/zberg/go-flexismart/internal/entity"
	"github.com/zberg/go-flexismart/internal/logging"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

var (
	configPath  string
	gatewayHost string
	gatewayPort int
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "flexismart.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&gatewayHost, "host", "", "Gateway host, overrides the configuration file")
	rootCmd.PersistentFlags().IntVar(&gatewayPort, "port", 0, "Gateway UDP port, overrides the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traffic to stderr")

	setupCmd.Flags().Bool("extended-data", true, "Poll anti-freeze and holiday data")
	reconfigureCmd.Flags().Bool("extended-data", true, "Poll anti-freeze and holiday data")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(reconfigureCmd)
	rootCmd.AddCommand(setTemperatureCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(windowDetectionCmd)
	rootCmd.AddCommand(antiFreezeCmd)
	rootCmd.AddCommand(syncTimeCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover FlexiSmart gateways on the network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Discovering gateways...")
		results, err := flexismart.Discover(cmd.Context())
		if err != nil {
			return fmt.Errorf("discovering: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No gateways found.")
			return nil
		}
		for _, res := range results {
			fmt.Printf("Found gateway at: %s\n", res.IP)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway and every heater module",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := gatewayConfig()
		if err != nil {
			return err
		}
		client, err := openClient(cmd, gw)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		info, err := client.GetGatewayData(ctx)
		if err != nil {
			return fmt.Errorf("getting gateway data: %w", err)
		}
		fmt.Printf("Gateway %s (%s): firmware %s, MAC %s, zones %v\n",
			info.DeviceName, info.Model, info.FirmwareVersion, info.MACAddress, info.Zones)

		for _, zone := range info.Zones {
			n, err := client.GetModuleCount(ctx, zone)
			if err != nil {
				fmt.Printf("Zone %d: error getting module count: %v\n", zone, err)
				continue
			}
			for m := 1; m <= n; m++ {
				data, err := client.GetModuleData(ctx, zone, m, gw.ExtendedData)
				if err != nil {
					fmt.Printf("Zone %d module %d: error: %v\n", zone, m, err)
					continue
				}
				printClimate(entity.NewClimate(data, true))
			}
		}
		return nil
	},
}

func printClimate(c entity.Climate) {
	fmt.Printf("Zone %d module %d [%s]: %.1f°C -> %.1f°C, %s, preset %s, boost %s, window detection %t",
		c.Zone, c.Module, c.Identifier, c.CurrentTemperature, c.TargetTemperature,
		c.HVACAction, c.PresetMode, c.Attributes.BoostTimeLeft, c.Attributes.WindowOpenDetection)
	if c.Attributes.AntiFreezeTemperature != 0 {
		fmt.Printf(", anti-freeze %.0f°C", c.Attributes.AntiFreezeTemperature)
	}
	fmt.Println()
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Validate a gateway and write a new configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if gatewayHost == "" {
			return errors.New("gateway host required, use --host or run discover first")
		}
		extended, _ := cmd.Flags().GetBool("extended-data")
		gw := config.GatewayConfig{Host: gatewayHost, Port: gatewayPort, ExtendedData: extended}

		cfg, err := config.Setup(cmd.Context(), configPath, config.DialGateway(cliLogger()), gw)
		if err != nil {
			return err
		}
		fmt.Printf("%s at %s:%d written to %s\n", config.EntryTitle, cfg.Gateway.Host, cfg.Gateway.Port, configPath)
		return nil
	},
}

var reconfigureCmd = &cobra.Command{
	Use:   "reconfigure",
	Short: "Change the gateway of an existing configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		edit := func(gw *config.GatewayConfig) {
			if gatewayHost != "" {
				gw.Host = gatewayHost
			}
			if gatewayPort != 0 {
				gw.Port = gatewayPort
			}
			if cmd.Flags().Changed("extended-data") {
				gw.ExtendedData, _ = cmd.Flags().GetBool("extended-data")
			}
		}

		cfg, err := config.Reconfigure(cmd.Context(), configPath, config.DialGateway(cliLogger()), edit)
		if err != nil {
			return err
		}
		fmt.Printf("%s at %s:%d written to %s\n", config.EntryTitle, cfg.Gateway.Host, cfg.Gateway.Port, configPath)
		fmt.Println("Send SIGHUP to a running daemon to apply it.")
		return nil
	},
}

var syncTimeCmd = &cobra.Command{
	Use:   "sync-time",
	Short: "Set the gateway clock to the current time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := gatewayConfig()
		if err != nil {
			return err
		}
		client, err := openClient(cmd, gw)
		if err != nil {
			return err
		}
		defer client.Close()

		now := time.Now()
		if err := client.UpdateDateTime(cmd.Context(), now); err != nil {
			return fmt.Errorf("updating date and time: %w", err)
		}
		fmt.Printf("Gateway clock set to %s.\n", now.Format(time.DateTime))
		return nil
	},
}

// gatewayConfig returns the gateway entry of the configuration file, or
// defaults when --host is given and no file exists. --host and --port
// override the file.
func gatewayConfig() (config.GatewayConfig, error) {
	cfg, err := config.Load(configPath, flagOverrides)
	switch {
	case err == nil:
	case gatewayHost != "" && errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
		flagOverrides(cfg)
	default:
		return config.GatewayConfig{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg.Gateway, nil
}

// flagOverrides applies --host and --port.
func flagOverrides(cfg *config.Config) {
	if gatewayHost != "" {
		cfg.Gateway.Host = gatewayHost
	}
	if gatewayPort != 0 {
		cfg.Gateway.Port = gatewayPort
	}
}

func openClient(cmd *cobra.Command, gw config.GatewayConfig) (*flexismart.Client, error) {
	client, err := flexismart.NewClient(cmd.Context(), gw.Host,
		flexismart.WithPort(gw.Port),
		flexismart.WithConnectTimeout(gw.ConnectTimeout),
		flexismart.WithRequestTimeout(gw.RequestTimeout),
		flexismart.WithLogger(cliLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", gw.Host, err)
	}
	return client, nil
}

// cliLogger logs protocol traffic to stderr with --verbose and nothing
// otherwise.
func cliLogger() *slog.Logger {
	if !verbose {
		return nil
	}
	return logging.New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, version)
}
