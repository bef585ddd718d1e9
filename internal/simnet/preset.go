package simnet

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrUnknownPreset = errors.New("unknown simulation preset")

// NetworkConfig holds transport settings for one simulation session.
type NetworkConfig struct {
	Latency LatencyConfig
}

// SimConfig is the complete configuration of one simulation session. It is
// passed explicitly to whatever needs it; there is no process-wide default.
type SimConfig struct {
	Net  NetworkConfig
	Seed uint64
}

var presets = map[string]func() SimConfig{
	"wan_latency_50ms": func() SimConfig {
		return SimConfig{Net: NetworkConfig{Latency: LatencyConfig{
			Default: Uniform{Min: 40 * time.Millisecond, Max: 60 * time.Millisecond},
		}}}
	},
	"lan_latency_1ms": func() SimConfig {
		return SimConfig{Net: NetworkConfig{Latency: LatencyConfig{
			Default: Uniform{Min: 500 * time.Microsecond, Max: 1500 * time.Microsecond},
		}}}
	},
	"zero_latency": func() SimConfig {
		return SimConfig{Net: NetworkConfig{Latency: LatencyConfig{Default: Fixed(0)}}}
	},
}

// Preset returns a fresh copy of a named configuration.
func Preset(name string) (SimConfig, error) {
	build, ok := presets[name]
	if !ok {
		return SimConfig{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return build(), nil
}

// WANLatency50ms is the wide-area preset: uniform [40ms, 60ms) on every link.
func WANLatency50ms() SimConfig {
	return presets["wan_latency_50ms"]()
}

// PresetNames lists the known presets in name order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
