package simnet

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLatencyModel_Deterministic(t *testing.T) {
	cfg, err := Preset("wan_latency_50ms")
	if err != nil {
		t.Fatal(err)
	}
	a := NewLatencyModel(cfg.Net.Latency, 42)
	b := NewLatencyModel(cfg.Net.Latency, 42)
	c := NewLatencyModel(cfg.Net.Latency, 43)

	same := true
	for i := 0; i < 1000; i++ {
		x, y, z := a.Sample(), b.Sample(), c.Sample()
		if x != y {
			t.Fatalf("sample %d differs for the same seed: %v vs %v", i, x, y)
		}
		if x != z {
			same = false
		}
	}
	if same {
		t.Error("expected a different seed to produce a different sequence")
	}
}

func TestLatencyModel_PresetRanges(t *testing.T) {
	tests := []struct {
		preset   string
		min, max time.Duration
	}{
		{"wan_latency_50ms", 40 * time.Millisecond, 60 * time.Millisecond},
		{"lan_latency_1ms", 500 * time.Microsecond, 1500 * time.Microsecond},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			cfg, err := Preset(tt.preset)
			if err != nil {
				t.Fatal(err)
			}
			m := NewLatencyModel(cfg.Net.Latency, 7)
			var lo, hi time.Duration = tt.max, tt.min
			for i := 0; i < 10000; i++ {
				d := m.Sample()
				if d < tt.min || d >= tt.max {
					t.Fatalf("sample %v outside [%v,%v)", d, tt.min, tt.max)
				}
				lo, hi = min(lo, d), max(hi, d)
			}
			// the draws should cover most of the range
			span := tt.max - tt.min
			if lo > tt.min+span/20 || hi < tt.max-span/20 {
				t.Errorf("samples only covered [%v,%v]", lo, hi)
			}
		})
	}
}

func TestLatencyModel_ZeroPreset(t *testing.T) {
	cfg, err := Preset("zero_latency")
	if err != nil {
		t.Fatal(err)
	}
	m := NewLatencyModel(cfg.Net.Latency, 1)
	for i := 0; i < 100; i++ {
		if d := m.SampleLink("a", "b"); d != 0 {
			t.Fatalf("expected zero latency, got %v", d)
		}
	}
}

func TestLatencyModel_LinkOverride(t *testing.T) {
	cfg := LatencyConfig{
		Default: Uniform{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond},
		Links:   map[Link]Distribution{{From: "a", To: "b"}: Fixed(5 * time.Millisecond)},
	}
	m := NewLatencyModel(cfg, 9)
	for i := 0; i < 100; i++ {
		if d := m.SampleLink("a", "b"); d != 5*time.Millisecond {
			t.Fatalf("expected override on a->b, got %v", d)
		}
		if d := m.SampleLink("b", "a"); d < 10*time.Millisecond || d >= 20*time.Millisecond {
			t.Fatalf("expected default on b->a, got %v", d)
		}
	}
}

func TestLatencyModel_NilDefaultIsZero(t *testing.T) {
	m := NewLatencyModel(LatencyConfig{}, 1)
	if d := m.Sample(); d != 0 {
		t.Errorf("expected zero latency, got %v", d)
	}
}

func TestLatencyModel_ConfigCopied(t *testing.T) {
	links := map[Link]Distribution{{From: "a", To: "b"}: Fixed(time.Millisecond)}
	m := NewLatencyModel(LatencyConfig{Links: links}, 1)
	links[Link{From: "a", To: "b"}] = Fixed(time.Hour)
	if d := m.SampleLink("a", "b"); d != time.Millisecond {
		t.Errorf("expected model isolated from later config changes, got %v", d)
	}
}

func TestNormal_ClampedAtZero(t *testing.T) {
	m := NewLatencyModel(LatencyConfig{Default: Normal{Mean: time.Millisecond, StdDev: 10 * time.Millisecond}}, 3)
	sawZero := false
	for i := 0; i < 1000; i++ {
		d := m.Sample()
		if d < 0 {
			t.Fatalf("negative latency %v", d)
		}
		if d == 0 {
			sawZero = true
		}
	}
	if !sawZero {
		t.Error("expected some samples clamped to zero")
	}
}

func TestUniform_DegenerateRange(t *testing.T) {
	m := NewLatencyModel(LatencyConfig{Default: Uniform{Min: 3 * time.Millisecond, Max: 3 * time.Millisecond}}, 1)
	if d := m.Sample(); d != 3*time.Millisecond {
		t.Errorf("expected min for empty range, got %v", d)
	}
}

func TestDistributionSpec_Build(t *testing.T) {
	tests := []struct {
		name    string
		spec    DistributionSpec
		want    Distribution
		wantErr bool
	}{
		{"uniform", DistributionSpec{Kind: "uniform", Min: time.Millisecond, Max: 2 * time.Millisecond}, Uniform{Min: time.Millisecond, Max: 2 * time.Millisecond}, false},
		{"fixed", DistributionSpec{Kind: "fixed", Value: time.Millisecond}, Fixed(time.Millisecond), false},
		{"constant alias", DistributionSpec{Kind: "Constant"}, Fixed(0), false},
		{"normal", DistributionSpec{Kind: "normal", Mean: time.Millisecond, StdDev: time.Microsecond}, Normal{Mean: time.Millisecond, StdDev: time.Microsecond}, false},
		{"inverted uniform", DistributionSpec{Kind: "uniform", Min: 2 * time.Millisecond, Max: time.Millisecond}, nil, true},
		{"negative fixed", DistributionSpec{Kind: "fixed", Value: -1}, nil, true},
		{"negative stddev", DistributionSpec{Kind: "normal", StdDev: -1}, nil, true},
		{"missing kind", DistributionSpec{}, nil, true},
		{"unknown kind", DistributionSpec{Kind: "pareto"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Build()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDistribution) {
					t.Fatalf("expected ErrInvalidDistribution, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, err := Preset("moon_latency"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestPreset_ReturnsFreshCopies(t *testing.T) {
	a := WANLatency50ms()
	a.Net.Latency.Default = Fixed(0)
	b, _ := Preset("wan_latency_50ms")
	if _, ok := b.Net.Latency.Default.(Uniform); !ok {
		t.Errorf("expected preset unaffected by caller changes, got %#v", b.Net.Latency.Default)
	}
}

func TestPresetNames(t *testing.T) {
	want := []string{"lan_latency_1ms", "wan_latency_50ms", "zero_latency"}
	if got := PresetNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("PresetNames() = %v, want %v", got, want)
	}
}
