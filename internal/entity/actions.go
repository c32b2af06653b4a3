package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// holidayLength is the longest holiday programme the gateway accepts.
	holidayLength = 240 * 24 * time.Hour

	// boostMinutes is the longest boost the gateway accepts.
	boostMinutes = 95

	MinAntiFreezeTemperature = 0
	MaxAntiFreezeTemperature = 17
)

var (
	// ErrUnknownPreset is returned for presets other than home, away and boost.
	ErrUnknownPreset = errors.New("unknown preset mode")
	// ErrOutOfRange is returned for setting values outside their valid range.
	ErrOutOfRange = errors.New("value out of range")
)

// Controller is the part of the gateway client used by heater actions.
// *flexismart.Client implements it.
type Controller interface {
	SetModuleTemperature(ctx context.Context, zone, module int, celsius float64) error
	SetModuleBoost(ctx context.Context, zone, module, minutes int) error
	SetModuleHolidayMode(ctx context.Context, zone, module int, until time.Time, temperature float64) error
	DisableModuleHolidayMode(ctx context.Context, zone, module int) error
	EnableModuleWindowOpenDetection(ctx context.Context, zone, module int) error
	DisableModuleWindowOpenDetection(ctx context.Context, zone, module int) error
	SetModuleAntiFreezeTemperature(ctx context.Context, zone, module int, celsius float64) error
}

// Actions executes heater commands.
type Actions struct {
	ctrl   Controller
	logger *slog.Logger
	now    func() time.Time
}

// NewActions returns heater actions backed by ctrl. A nil logger disables
// logging.
func NewActions(ctrl Controller, logger *slog.Logger) *Actions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Actions{ctrl: ctrl, logger: logger, now: time.Now}
}

// SetTemperature sets the target temperature, clamped to [MinTemp, MaxTemp].
// It returns the temperature actually sent.
func (a *Actions) SetTemperature(ctx context.Context, c Climate, target float64) (float64, error) {
	target = ClampTemperature(target)
	a.logger.Debug("set temperature", "entity", c.UniqueID, "temperature", target)

	if err := a.ctrl.SetModuleTemperature(ctx, c.Zone, c.Module, target); err != nil {
		return 0, fmt.Errorf("set temperature of %s: %w", c.UniqueID, err)
	}
	return target, nil
}

// SetPresetMode switches between home, away (holiday) and boost. The
// preset being left is cancelled first.
func (a *Actions) SetPresetMode(ctx context.Context, c Climate, preset string) error {
	var err error
	switch preset {
	case PresetAway:
		a.logger.Debug("activate holiday mode", "entity", c.UniqueID)
		if c.PresetMode == PresetBoost {
			if err = a.ctrl.SetModuleBoost(ctx, c.Zone, c.Module, 0); err != nil {
				break
			}
		}
		// The current target is restored when holiday mode ends.
		until := a.now().Add(holidayLength)
		err = a.ctrl.SetModuleHolidayMode(ctx, c.Zone, c.Module, until, c.TargetTemperature)

	case PresetBoost:
		a.logger.Debug("activate boost", "entity", c.UniqueID)
		if c.PresetMode == PresetAway {
			if err = a.ctrl.DisableModuleHolidayMode(ctx, c.Zone, c.Module); err != nil {
				break
			}
		}
		err = a.ctrl.SetModuleBoost(ctx, c.Zone, c.Module, boostMinutes)

	case PresetHome:
		a.logger.Debug("go back to normal mode", "entity", c.UniqueID)
		switch c.PresetMode {
		case PresetBoost:
			err = a.ctrl.SetModuleBoost(ctx, c.Zone, c.Module, 0)
		case PresetAway:
			err = a.ctrl.DisableModuleHolidayMode(ctx, c.Zone, c.Module)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}

	if err != nil {
		return fmt.Errorf("set preset %s of %s: %w", preset, c.UniqueID, err)
	}
	return nil
}

// SetWindowOpenDetection enables or disables window open detection.
func (a *Actions) SetWindowOpenDetection(ctx context.Context, c Climate, enabled bool) error {
	a.logger.Debug("set window open detection", "entity", c.UniqueID, "enabled", enabled)

	var err error
	if enabled {
		err = a.ctrl.EnableModuleWindowOpenDetection(ctx, c.Zone, c.Module)
	} else {
		err = a.ctrl.DisableModuleWindowOpenDetection(ctx, c.Zone, c.Module)
	}
	if err != nil {
		return fmt.Errorf("set window open detection of %s: %w", c.UniqueID, err)
	}
	return nil
}

// SetAntiFreezeTemperature sets the frost protection temperature, a whole
// number of degrees between 0 and 17.
func (a *Actions) SetAntiFreezeTemperature(ctx context.Context, c Climate, celsius int) error {
	if celsius < MinAntiFreezeTemperature || celsius > MaxAntiFreezeTemperature {
		return fmt.Errorf("%w: anti-freeze temperature %d not in [%d, %d]",
			ErrOutOfRange, celsius, MinAntiFreezeTemperature, MaxAntiFreezeTemperature)
	}
	a.logger.Debug("set anti-freeze temperature", "entity", c.UniqueID, "temperature", celsius)

	if err := a.ctrl.SetModuleAntiFreezeTemperature(ctx, c.Zone, c.Module, float64(celsius)); err != nil {
		return fmt.Errorf("set anti-freeze temperature of %s: %w", c.UniqueID, err)
	}
	return nil
}
