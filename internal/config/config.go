// Package config handles YAML configuration parsing.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"simbench/internal/collector"
	"simbench/internal/core"
	"simbench/internal/simnet"
	"simbench/internal/workload"
)

var ErrInvalidConfig = errors.New("invalid config")

// DefaultKeySeed seeds the simulated account when none is configured.
var DefaultKeySeed = func() string {
	sum := sha256.Sum256([]byte("simbench default account"))
	return hex.EncodeToString(sum[:])
}()

// Config is the root configuration structure.
type Config struct {
	Run        RunConfig             `yaml:"run"`
	Simulation SimulationConfig      `yaml:"simulation"`
	Account    AccountConfig         `yaml:"account"`
	Workloads  []WorkloadConfig      `yaml:"workloads"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`
}

// RunConfig controls how long a run lasts and how it is observed.
type RunConfig struct {
	StatInterval  time.Duration `yaml:"statInterval"`
	Duration      time.Duration `yaml:"duration"`
	MaxOperations int64         `yaml:"maxOperations"`
	Abort         AbortConfig   `yaml:"abort"`
	SubmitTimeout time.Duration `yaml:"submitTimeout"`
}

// AbortConfig stops a run whose failure rate gets too high.
type AbortConfig struct {
	MaxFailureRate float64 `yaml:"maxFailureRate"`
	MinSamples     uint64  `yaml:"minSamples"`
}

// SimulationConfig describes the simulated cluster operations are sent to.
// Latency, when set, replaces the preset's default distribution.
type SimulationConfig struct {
	Preset      string                   `yaml:"preset"`
	Latency     *simnet.DistributionSpec `yaml:"latency,omitempty"`
	Links       []LinkConfig             `yaml:"links,omitempty"`
	Seed        uint64                   `yaml:"seed"`
	Validators  int                      `yaml:"validators"`
	TimeScale   float64                  `yaml:"timeScale"`
	FailureRate float64                  `yaml:"failureRate"`
}

// LinkConfig overrides latency on one directed link.
type LinkConfig struct {
	From    string                  `yaml:"from"`
	To      string                  `yaml:"to"`
	Latency simnet.DistributionSpec `yaml:"latency"`
}

// AccountConfig defines the signing account every workload uses.
type AccountConfig struct {
	KeySeed    string `yaml:"keySeed"`
	GasObjects int    `yaml:"gasObjects"`
}

// WorkloadConfig is the serialized form of a workload.Spec.
type WorkloadConfig struct {
	Name                string         `yaml:"name"`
	TargetQPS           float64        `yaml:"targetQPS"`
	NumWorkers          int            `yaml:"numWorkers"`
	InFlightRatio       float64        `yaml:"inFlightRatio"`
	NumTransferAccounts int            `yaml:"numTransferAccounts"`
	NumSharedCounters   int            `yaml:"numSharedCounters"`
	Weights             map[string]int `yaml:"weights"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() Config {
	return Config{
		Run: RunConfig{
			StatInterval: time.Second,
			Duration:     30 * time.Second,
		},
		Simulation: SimulationConfig{
			Preset:     "wan_latency_50ms",
			Validators: 4,
			TimeScale:  1.0,
		},
		Account: AccountConfig{KeySeed: DefaultKeySeed},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks run-level settings. Workload specs are validated when
// they are built.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Run.StatInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("run.statInterval must be positive, got %v", c.Run.StatInterval))
	}
	if c.Run.Duration < 0 {
		result = multierror.Append(result, fmt.Errorf("run.duration must not be negative, got %v", c.Run.Duration))
	}
	if c.Run.MaxOperations < 0 {
		result = multierror.Append(result, fmt.Errorf("run.maxOperations must not be negative, got %d", c.Run.MaxOperations))
	}
	if c.Run.Duration == 0 && c.Run.MaxOperations == 0 {
		result = multierror.Append(result, fmt.Errorf("run needs a duration or maxOperations to stop"))
	}
	if c.Run.SubmitTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("run.submitTimeout must not be negative, got %v", c.Run.SubmitTimeout))
	}
	if err := c.AbortPolicy().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.SimConfig(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.ClusterConfig().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.Keypair(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Account.GasObjects < 0 {
		result = multierror.Append(result, fmt.Errorf("account.gasObjects must not be negative, got %d", c.Account.GasObjects))
	}
	if len(c.Workloads) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one workload is required"))
	}
	if err := c.Thresholds.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) AbortPolicy() collector.AbortPolicy {
	return collector.AbortPolicy{MaxFailureRate: c.Run.Abort.MaxFailureRate, MinSamples: c.Run.Abort.MinSamples}
}

// SimConfig resolves the preset and overrides into a simulation config.
func (c *Config) SimConfig() (simnet.SimConfig, error) {
	preset := c.Simulation.Preset
	if preset == "" {
		preset = "zero_latency"
	}
	sim, err := simnet.Preset(preset)
	if err != nil {
		return simnet.SimConfig{}, err
	}
	sim.Seed = c.Simulation.Seed
	if c.Simulation.Latency != nil {
		d, err := c.Simulation.Latency.Build()
		if err != nil {
			return simnet.SimConfig{}, fmt.Errorf("simulation.latency: %w", err)
		}
		sim.Net.Latency.Default = d
	}
	if len(c.Simulation.Links) > 0 {
		sim.Net.Latency.Links = make(map[simnet.Link]simnet.Distribution, len(c.Simulation.Links))
		for i, l := range c.Simulation.Links {
			d, err := l.Latency.Build()
			if err != nil {
				return simnet.SimConfig{}, fmt.Errorf("simulation.links[%d]: %w", i, err)
			}
			sim.Net.Latency.Links[simnet.Link{From: simnet.NodeID(l.From), To: simnet.NodeID(l.To)}] = d
		}
	}
	return sim, nil
}

// ClusterConfig builds the simulated cluster settings. The simulation part
// is left zero when SimConfig fails; Validate reports that separately.
func (c *Config) ClusterConfig() simnet.ClusterConfig {
	sim, _ := c.SimConfig()
	return simnet.ClusterConfig{
		Sim:         sim,
		Validators:  c.Simulation.Validators,
		TimeScale:   c.Simulation.TimeScale,
		FailureRate: c.Simulation.FailureRate,
	}
}

func (c *Config) Keypair() (core.Keypair, error) {
	kp, err := core.KeypairFromHex(c.Account.KeySeed)
	if err != nil {
		return core.Keypair{}, fmt.Errorf("account.keySeed: %w", err)
	}
	return kp, nil
}

// BuildWorkloads turns each workload entry into a validated workload. All
// workloads share the account; gas objects are derived from its address.
func (c *Config) BuildWorkloads() ([]*workload.Workload, error) {
	kp, err := c.Keypair()
	if err != nil {
		return nil, err
	}
	owner := kp.Address()

	gasCount := c.Account.GasObjects
	for _, wc := range c.Workloads {
		gasCount = max(gasCount, wc.NumTransferAccounts)
	}
	gasCount = max(gasCount, 1)
	gasBase := core.ObjectID(owner)
	gas := make([]core.ObjectRef, gasCount)
	for i := range gas {
		gas[i] = core.ObjectRef{ID: core.DeriveObjectID(gasBase, i), Version: 1}
	}

	out := make([]*workload.Workload, 0, len(c.Workloads))
	for i, wc := range c.Workloads {
		weights, err := wc.kindWeights()
		if err != nil {
			return nil, fmt.Errorf("workloads[%d]: %w", i, err)
		}
		name := wc.Name
		if name == "" {
			name = fmt.Sprintf("workload-%d", i)
		}
		w, err := workload.New(workload.Spec{
			Name:                name,
			TargetQPS:           wc.TargetQPS,
			NumWorkers:          wc.NumWorkers,
			InFlightRatio:       wc.InFlightRatio,
			Weights:             weights,
			Owner:               owner,
			PrimaryGas:          gas[0],
			ExtraGas:            gas[1:],
			Keypair:             kp,
			NumTransferAccounts: wc.NumTransferAccounts,
			NumSharedCounters:   wc.NumSharedCounters,
			Seed:                c.Simulation.Seed + uint64(i),
		})
		if err != nil {
			return nil, fmt.Errorf("workloads[%d] %q: %w", i, name, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// kindWeights orders the weights map by kind name so the generator's
// tie-break order does not depend on map iteration.
func (wc WorkloadConfig) kindWeights() ([]workload.KindWeight, error) {
	names := make([]string, 0, len(wc.Weights))
	for name := range wc.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	weights := make([]workload.KindWeight, 0, len(names))
	for _, name := range names {
		kind, err := workload.ParseKind(name)
		if err != nil {
			return nil, err
		}
		weights = append(weights, workload.KindWeight{Kind: kind, Weight: wc.Weights[name]})
	}
	return weights, nil
}
