package tools

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"livemic/internal/domain"
)

var weatherConditions = []string{"sunny", "partly cloudy", "overcast", "light rain", "windy", "snow"}

// RegisterBuiltins adds get_weather and set_device_state to r.
func RegisterBuiltins(r *Registry, devices *DeviceTable) error {
	if devices == nil {
		devices = NewDeviceTable()
	}

	if err := r.Register(GetWeatherDeclaration(), getWeather); err != nil {
		return err
	}
	return r.Register(SetDeviceStateDeclaration(), devices.handle)
}

func GetWeatherDeclaration() domain.ToolDeclaration {
	return domain.ToolDeclaration{
		Name:        "get_weather",
		Description: "Get the current weather for a location.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{"type": "string", "description": "City name"},
				"unit":     map[string]any{"type": "string", "enum": []string{"celsius", "fahrenheit"}},
			},
			"required": []string{"location"},
		},
	}
}

func SetDeviceStateDeclaration() domain.ToolDeclaration {
	return domain.ToolDeclaration{
		Name:        "set_device_state",
		Description: "Turn a named smart-home device on or off.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"device": map[string]any{"type": "string"},
				"state":  map[string]any{"type": "string", "enum": []string{"on", "off"}},
			},
			"required": []string{"device", "state"},
		},
	}
}

// getWeather returns a stable report derived from the location name.
func getWeather(_ context.Context, args map[string]any) (map[string]any, error) {
	location, err := stringArg(args, "location")
	if err != nil {
		return nil, err
	}
	unit := "celsius"
	if raw, ok := args["unit"].(string); ok && raw != "" {
		unit = strings.ToLower(raw)
	}
	if unit != "celsius" && unit != "fahrenheit" {
		return nil, fmt.Errorf("unsupported unit %q", unit)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(location))))
	sum := h.Sum32()

	celsius := float64(int(sum%40) - 5)
	temperature := celsius
	if unit == "fahrenheit" {
		temperature = math.Round(celsius*9/5 + 32)
	}

	return map[string]any{
		"location":    location,
		"temperature": temperature,
		"unit":        unit,
		"condition":   weatherConditions[int(sum/40)%len(weatherConditions)],
	}, nil
}

// DeviceTable is an in-memory set of switchable devices.
type DeviceTable struct {
	mu     sync.Mutex
	states map[string]string
}

func NewDeviceTable() *DeviceTable {
	return &DeviceTable{states: make(map[string]string)}
}

// State returns the device state, or "off" for unknown devices.
func (d *DeviceTable) State(device string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state, ok := d.states[strings.ToLower(device)]; ok {
		return state
	}
	return "off"
}

func (d *DeviceTable) handle(_ context.Context, args map[string]any) (map[string]any, error) {
	device, err := stringArg(args, "device")
	if err != nil {
		return nil, err
	}
	state, err := stringArg(args, "state")
	if err != nil {
		return nil, err
	}
	state = strings.ToLower(state)
	if state != "on" && state != "off" {
		return nil, fmt.Errorf("state must be on or off, got %q", state)
	}

	key := strings.ToLower(device)
	d.mu.Lock()
	previous, ok := d.states[key]
	if !ok {
		previous = "off"
	}
	d.states[key] = state
	d.mu.Unlock()

	return map[string]any{"device": device, "state": state, "previous": previous}, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument %q", name)
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", name)
	}
	return strings.TrimSpace(value), nil
}
