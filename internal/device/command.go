package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// CommandType names a local control operation.
type CommandType string

const (
	CommandPower            CommandType = "power"
	CommandBrightness       CommandType = "brightness"
	CommandHue              CommandType = "hue"
	CommandSaturation       CommandType = "saturation"
	CommandColorTemperature CommandType = "color_temperature"
)

// Command is a locally requested state change.
//
// Value carries the numeric argument: brightness percent, hue degrees,
// saturation percent or colour temperature in Kelvin. On is used by
// CommandPower only. Mired, when positive, is the exact colour temperature
// a host asked for and takes precedence over Value.
type Command struct {
	Type  CommandType
	On    bool
	Value float64
	Mired int
}

// Power builds an on/off command.
func Power(on bool) Command {
	return Command{Type: CommandPower, On: on}
}

// Brightness builds a brightness command in percent.
func Brightness(percent int) Command {
	return Command{Type: CommandBrightness, Value: float64(percent)}
}

// Hue builds a hue command in degrees.
func Hue(degrees float64) Command {
	return Command{Type: CommandHue, Value: degrees}
}

// Saturation builds a saturation command in percent.
func Saturation(percent float64) Command {
	return Command{Type: CommandSaturation, Value: percent}
}

// ColorTemperature builds a colour temperature command in Kelvin.
func ColorTemperature(kelvin float64) Command {
	return Command{Type: CommandColorTemperature, Value: kelvin}
}

// ColorTemperatureMired builds a colour temperature command from a mired
// value, as HomeKit reports it.
func ColorTemperatureMired(mired int) Command {
	if mired <= 0 {
		return ColorTemperature(math.NaN())
	}
	cmd := ColorTemperature(MiredToKelvin(float64(mired)))
	cmd.Mired = mired
	return cmd
}

// targetMired is the mired value a colour temperature command sends.
func (c Command) targetMired() int {
	if c.Mired > 0 {
		return clampMiredToBulb(c.Mired)
	}
	return outboundMired(c.Value)
}

func (c Command) String() string {
	if c.Type == CommandPower {
		return fmt.Sprintf("%s=%t", c.Type, c.On)
	}
	return fmt.Sprintf("%s=%g", c.Type, c.Value)
}

// wireCommand is the JSON form accepted by the MQTT and HTTP hosts.
type wireCommand struct {
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// ParseCommand decodes {"command": "...", "value": ...} into a Command.
// Recognised commands: on, off, power (value bool), brightness, hue,
// saturation, color_temperature (Kelvin) and color_temperature_mired.
func ParseCommand(data []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	switch w.Command {
	case "on":
		return Power(true), nil
	case "off":
		return Power(false), nil
	case "power":
		var on bool
		if err := json.Unmarshal(w.Value, &on); err != nil {
			return Command{}, fmt.Errorf("%w: power value must be a boolean", ErrInvalidCommand)
		}
		return Power(on), nil
	}

	v, err := numericValue(w.Value)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, w.Command, err)
	}

	switch w.Command {
	case "brightness":
		return Command{Type: CommandBrightness, Value: v}, nil
	case "hue":
		return Hue(v), nil
	case "saturation":
		return Saturation(v), nil
	case "color_temperature":
		return ColorTemperature(v), nil
	case "color_temperature_mired":
		return ColorTemperatureMired(int(v)), nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, w.Command)
	}
}

func numericValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing value")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, errors.New("value must be a number")
	}
	return v, nil
}
