// Package config loads the target-specific settings a caller needs to
// wire a Simulator and a memory proxy against a real device: the
// initial skip-store set, flash geometry, the address sanity ceiling,
// and logging verbosity. None of this is built into the simulator
// itself — every quirk here is a property of the firmware target being
// debugged, not of the interpreter.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkipEntry names one address the memory proxy must never write to,
// and why.
type SkipEntry struct {
	Address uint32 `yaml:"address"`
	Reason  string `yaml:"reason"`
}

// Config is the full set of target-specific knobs. Zero-value fields
// are suspicious, not valid: always start from DefaultConfig or
// Load, not a bare Config{}.
type Config struct {
	// Skips lists addresses stores must never reach, e.g. GPIOs that
	// break the debug backdoor itself, or RAM holding the backdoor's
	// own code.
	Skips []SkipEntry `yaml:"skips"`

	// FlashBoundary is the address below which reads are assumed to be
	// slow flash worth prefetching around.
	FlashBoundary uint32 `yaml:"flash_boundary"`

	// FlashPrefetchChunk is how many bytes a flash prefetch hint reads
	// in one round trip.
	FlashPrefetchChunk int `yaml:"flash_prefetch_chunk"`

	// FlashMinAvailable is the minimum number of locally cached bytes a
	// flash address must have before a prefetch is skipped.
	FlashMinAvailable int `yaml:"flash_min_available"`

	// AddressSanityCeiling is the address at and above which any access
	// is treated as a simulator bug rather than real target state.
	AddressSanityCeiling uint32 `yaml:"address_sanity_ceiling"`

	// Debug turns on verbose (development-mode) logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the settings the reference firmware's own
// debugger installs: the exact skip-store set, flash geometry, and
// sanity ceiling the original tooling used against this target.
func DefaultConfig() Config {
	return Config{
		Skips: []SkipEntry{
			{Address: 0x04001000, Reason: "Reset control?"},
			{Address: 0x04002088, Reason: "LED / Solenoid GPIOs, breaks bitbang backdoor"},
			{Address: 0x04030f04, Reason: "Memory region control flags"},
			{Address: 0x04030f20, Reason: "DRAM memory region, contains backdoor code"},
			{Address: 0x04030f24, Reason: "DRAM memory region, contains backdoor code"},
			{Address: 0x04030f40, Reason: "Stack memory region"},
			{Address: 0x04030f44, Reason: "Stack memory region"},
		},
		FlashBoundary:        0x00200000,
		FlashPrefetchChunk:   0x100,
		FlashMinAvailable:    8,
		AddressSanityCeiling: 0x05000000,
		Debug:                false,
	}
}

// Load reads a YAML config file, starting from DefaultConfig so a file
// that only overrides a handful of fields (debug logging, say) doesn't
// have to repeat the whole skip set.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}

// SkipMap renders the skip list as the address->reason map the memory
// proxy's skip table wants.
func (c Config) SkipMap() map[uint32]string {
	out := make(map[uint32]string, len(c.Skips))
	for _, s := range c.Skips {
		out[s.Address] = s.Reason
	}
	return out
}
