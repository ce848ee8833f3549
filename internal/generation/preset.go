package generation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"studio/internal/domain"
)

// Preset is a named set of default generation parameters stored as YAML:
//
//	name: lofi
//	prompt: lofi hip hop, vinyl crackle
//	duration: 90
//	infer_steps: 80
//	format: mp3
type Preset struct {
	Name    string                   `yaml:"name"`
	Request domain.GenerationRequest `yaml:",inline"`
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}
	return ParsePreset(raw)
}

// ParsePreset decodes a preset document, rejecting unknown keys.
func ParsePreset(raw []byte) (Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Preset{}, fmt.Errorf("decode preset: %w", err)
	}
	return p, nil
}

// Overlay returns base with every non-zero field of override applied on top.
func Overlay(base, override domain.GenerationRequest) domain.GenerationRequest {
	out := base
	if override.Prompt != "" {
		out.Prompt = override.Prompt
	}
	if override.Lyrics != "" {
		out.Lyrics = override.Lyrics
	}
	if override.Duration != 0 {
		out.Duration = override.Duration
	}
	if override.InferSteps != 0 {
		out.InferSteps = override.InferSteps
	}
	if override.GuidanceScale != 0 {
		out.GuidanceScale = override.GuidanceScale
	}
	if override.Seed != nil {
		seed := *override.Seed
		out.Seed = &seed
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.CFGType != "" {
		out.CFGType = override.CFGType
	}
	if override.SchedulerType != "" {
		out.SchedulerType = override.SchedulerType
	}
	return out
}
