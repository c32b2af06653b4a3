package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zberg/go-flexismart/internal/entity"
)

var setTemperatureCmd = &cobra.Command{
	Use:   "set-temperature [zone] [module] [celsius]",
	Short: "Set the target temperature of a heater",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[2])
		}
		return withHeater(cmd, args, func(a *entity.Actions, c entity.Climate) error {
			sent, err := a.SetTemperature(cmd.Context(), c, target)
			if err != nil {
				return err
			}
			fmt.Printf("Target temperature set to %.1f°C.\n", sent)
			return nil
		})
	},
}

var presetCmd = &cobra.Command{
	Use:       "preset [zone] [module] [home|away|boost]",
	Short:     "Switch a heater between home, away and boost",
	Args:      cobra.ExactArgs(3),
	ValidArgs: entity.PresetModes,
	RunE: func(cmd *cobra.Command, args []string) error {
		preset := strings.ToLower(args[2])
		if !slices.Contains(entity.PresetModes, preset) {
			return fmt.Errorf("invalid preset %q, use one of %s", args[2], strings.Join(entity.PresetModes, ", "))
		}
		return withHeater(cmd, args, func(a *entity.Actions, c entity.Climate) error {
			if err := a.SetPresetMode(cmd.Context(), c, preset); err != nil {
				return err
			}
			fmt.Printf("Preset changed from %s to %s.\n", c.PresetMode, preset)
			return nil
		})
	},
}

var windowDetectionCmd = &cobra.Command{
	Use:   "window-detection [zone] [module] [on|off]",
	Short: "Enable or disable window open detection",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseOnOff(args[2])
		if err != nil {
			return err
		}
		return withHeater(cmd, args, func(a *entity.Actions, c entity.Climate) error {
			if err := a.SetWindowOpenDetection(cmd.Context(), c, enabled); err != nil {
				return err
			}
			fmt.Println("Command sent successfully.")
			return nil
		})
	},
}

var antiFreezeCmd = &cobra.Command{
	Use:   "anti-freeze [zone] [module] [celsius]",
	Short: "Set the frost protection temperature (0-17°C)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		celsius, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid temperature %q, whole degrees only", args[2])
		}
		return withHeater(cmd, args, func(a *entity.Actions, c entity.Climate) error {
			if err := a.SetAntiFreezeTemperature(cmd.Context(), c, celsius); err != nil {
				return err
			}
			fmt.Printf("Anti-freeze temperature set to %d°C.\n", celsius)
			return nil
		})
	},
}

// withHeater reads the heater named by args[0] (zone) and args[1] (module)
// and runs fn against it.
func withHeater(cmd *cobra.Command, args []string, fn func(*entity.Actions, entity.Climate) error) error {
	zone, module, err := parseModuleKey(args[0], args[1])
	if err != nil {
		return err
	}
	gw, err := gatewayConfig()
	if err != nil {
		return err
	}
	client, err := openClient(cmd, gw)
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := client.GetModuleData(cmd.Context(), zone, module, gw.ExtendedData)
	if err != nil {
		return fmt.Errorf("reading zone %d module %d: %w", zone, module, err)
	}
	return fn(entity.NewActions(client, cliLogger()), entity.NewClimate(data, true))
}

func parseModuleKey(zoneArg, moduleArg string) (zone, module int, err error) {
	zone, err = strconv.Atoi(zoneArg)
	if err != nil || zone < 0 || zone > 255 {
		return 0, 0, fmt.Errorf("invalid zone %q", zoneArg)
	}
	module, err = strconv.Atoi(moduleArg)
	if err != nil || module < 1 {
		return 0, 0, fmt.Errorf("invalid module %q", moduleArg)
	}
	return zone, module, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q, use on or off", s)
}
