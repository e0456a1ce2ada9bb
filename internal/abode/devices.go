package abode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Device type tags reported by the Abode API.
const (
	TypeSwitch    = "device_type.power_switch_sensor"
	TypeDimmer    = "device_type.dimmer_meter"
	TypeLightBulb = "device_type.light_bulb"
	TypeHue       = "device_type.hue"
)

// Device is a device record as returned by the Abode API.
// A record is an immutable snapshot; each fetch replaces the previous one.
type Device struct {
	ID       string   `json:"id"`
	TypeTag  string   `json:"type_tag"`
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	UUID     string   `json:"uuid"`
	Status   string   `json:"status"`
	Statuses Statuses `json:"statuses"`
}

// IsEmpty reports whether d is the empty device returned for a 404.
func (d Device) IsEmpty() bool {
	return d.ID == ""
}

// ControlID is the identifier used by the integrations endpoint.
func (d Device) ControlID() string {
	if d.UUID != "" {
		return d.UUID
	}
	return d.ID
}

// Statuses is the raw per-attribute status detail. Values are strings or
// numbers depending on the device and firmware.
type Statuses map[string]any

// Number reads key as a number. Strings are parsed; "N/A", missing and
// malformed values read as 0 with ok=false.
func (s Statuses) Number(key string) (float64, bool) {
	raw, present := s[key]
	if !present || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "N/A") {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String reads key as a string.
func (s Statuses) String(key string) string {
	raw, present := s[key]
	if !present || raw == nil {
		return ""
	}
	if str, ok := raw.(string); ok {
		return str
	}
	return fmt.Sprint(raw)
}

// Switch status values used by the control endpoints.
const (
	StatusOff = 0
	StatusOn  = 1
)

// Bulb actions accepted by the integrations endpoint.
const (
	ActionOn                  = "on"
	ActionOff                 = "off"
	ActionSetPercent          = "setpercent"
	ActionSetColor            = "setcolor"
	ActionSetColorTemperature = "setcolortemperature"
)

// BulbAction is the body of an integrations control call.
type BulbAction struct {
	Action           string   `json:"action"`
	Percentage       *int     `json:"percentage,omitempty"`
	Hue              *float64 `json:"hue,omitempty"`
	Saturation       *float64 `json:"saturation,omitempty"`
	ColorTemperature *int     `json:"colorTemperature,omitempty"`
}

// LightControl is the body of a light control call: either status or level.
type LightControl struct {
	Status *int `json:"status,omitempty"`
	Level  *int `json:"level,omitempty"`
}

// ListDevices fetches every device on the account.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	resp, err := c.Get(ctx, "/api/v1/devices")
	if err != nil {
		return nil, fmt.Errorf("%w: listing devices: %w", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing devices: status %d", ErrFetch, resp.StatusCode)
	}

	var devices []Device
	if err := resp.Decode(&devices); err != nil {
		return nil, fmt.Errorf("%w: listing devices: %w", ErrFetch, err)
	}
	return devices, nil
}

// FetchDevice fetches one device. A 404 returns the empty Device and a nil
// error so callers can tell "not found" from a failed request.
func (c *Client) FetchDevice(ctx context.Context, id string) (Device, error) {
	resp, err := c.Get(ctx, "/api/v1/devices/"+url.PathEscape(id))
	if err != nil {
		var respErr *ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return Device{}, nil
		}
		return Device{}, fmt.Errorf("%w: fetching device %s: %w", ErrFetch, id, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return Device{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Device{}, fmt.Errorf("%w: fetching device %s: status %d", ErrFetch, id, resp.StatusCode)
	}

	// The endpoint answers with a one-element array.
	var devices []Device
	if err := resp.Decode(&devices); err != nil {
		return Device{}, fmt.Errorf("%w: fetching device %s: %w", ErrFetch, id, err)
	}
	if len(devices) == 0 {
		return Device{}, nil
	}
	return devices[0], nil
}

// ControlSwitch sets a power switch on or off.
func (c *Client) ControlSwitch(ctx context.Context, id string, status int) error {
	_, err := c.Put(ctx, "/api/v1/control/power_switch/"+url.PathEscape(id), map[string]int{"status": status})
	if err != nil {
		return fmt.Errorf("controlling switch %s: %w", id, err)
	}
	return nil
}

// ControlLight sends a status or level change to a dimmer.
func (c *Client) ControlLight(ctx context.Context, id string, body LightControl) error {
	_, err := c.Put(ctx, "/api/v1/control/light/"+url.PathEscape(id), body)
	if err != nil {
		return fmt.Errorf("controlling light %s: %w", id, err)
	}
	return nil
}

// ControlBulb posts an action to the integrations endpoint keyed by the
// device's control id.
func (c *Client) ControlBulb(ctx context.Context, controlID string, action BulbAction) error {
	_, err := c.Post(ctx, "/integrations/v1/devices/"+url.PathEscape(controlID), action)
	if err != nil {
		return fmt.Errorf("controlling bulb %s: %w", controlID, err)
	}
	return nil
}
