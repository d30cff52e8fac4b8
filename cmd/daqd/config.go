package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hz.tools/daq/control"
)

// Config describes how to wire a daqd instance: which Control Block
// backend to use, where to spool and record, and the default per-channel
// configuration to seed on startup. This is distinct from the dsd
// footer's INI grammar (see the settings package) — daemon
// configuration is plain YAML.
type Config struct {
	// ControlBlockPath, if set, attaches to an external producer's mapped
	// Control Block at this path instead of running the in-process
	// emulated producer.
	ControlBlockPath string `yaml:"control_block_path"`

	SamplingRateHz uint32 `yaml:"sampling_rate_hz"`

	Channels []ChannelConfig `yaml:"channels"`

	RecordPath string `yaml:"record_path"`

	SpoolDir       string `yaml:"spool_dir"`
	SpoolBatchSize int    `yaml:"spool_batch_size"`
}

// ChannelConfig seeds one channel's Control Block state at startup.
type ChannelConfig struct {
	ID      uint8  `yaml:"id"`
	RangeID uint32 `yaml:"range_id"`
	Spike   *Spike `yaml:"spike,omitempty"`
}

// Spike mirrors control.SpikeParams in YAML-friendly form.
type Spike struct {
	Threshold float64 `yaml:"threshold"`
	BlankMS   uint32  `yaml:"blank_ms"`
	Positive  bool    `yaml:"positive"`
	Enabled   bool    `yaml:"enabled"`
}

func (s Spike) toParams() control.SpikeParams {
	return control.SpikeParams{
		Threshold: s.Threshold,
		BlankMS:   s.BlankMS,
		Positive:  s.Positive,
		Enabled:   s.Enabled,
	}
}

// LoadConfig reads and parses a daqd YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("daqd: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("daqd: parsing config: %w", err)
	}
	return &cfg, nil
}

// vim: foldmethod=marker
