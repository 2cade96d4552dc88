package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vidpress/orchestrator/internal/job"
)

// Preset is a named bundle of encoding parameters offered as a
// shortcut to manual configuration.
type Preset struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	Quality      int    `yaml:"quality" json:"quality"`
	SpeedPreset  string `yaml:"speed_preset" json:"speed_preset"`
	ScalePercent int    `yaml:"scale_percent" json:"scale_percent"`
	OutputFormat string `yaml:"output_format,omitempty" json:"output_format,omitempty"`
}

// Settings converts the preset into job encoding parameters.
func (p Preset) Settings() job.EncodeSettings {
	return job.EncodeSettings{
		Quality:      p.Quality,
		SpeedPreset:  p.SpeedPreset,
		ScalePercent: p.ScalePercent,
		OutputFormat: p.OutputFormat,
	}
}

type catalogFile struct {
	Presets []Preset `yaml:"presets"`
}

// Catalog resolves preset names to encoding parameters.
type Catalog struct {
	presets map[string]Preset
	order   []string
}

// Builtin returns the stock catalog.
func Builtin() *Catalog {
	c := &Catalog{presets: make(map[string]Preset)}
	for _, p := range []Preset{
		{Name: "fast", Description: "Quick encode, larger output", Quality: 28, SpeedPreset: "veryfast", ScalePercent: 100},
		{Name: "balanced", Description: "Good size/quality trade-off", Quality: 23, SpeedPreset: "medium", ScalePercent: 100},
		{Name: "quality", Description: "Slow encode, best quality", Quality: 18, SpeedPreset: "slow", ScalePercent: 100},
	} {
		c.add(p)
	}
	return c
}

// Load reads a catalog file and overlays it on the builtin presets.
// Named entries replace builtins; new names are appended.
func Load(path string) (*Catalog, error) {
	c := Builtin()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read preset catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse preset catalog: %w", err)
	}

	for _, p := range file.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset catalog entry missing name")
		}
		c.add(p)
	}
	return c, nil
}

func (c *Catalog) add(p Preset) {
	if _, exists := c.presets[p.Name]; !exists {
		c.order = append(c.order, p.Name)
	}
	c.presets[p.Name] = p
}

func (c *Catalog) Get(name string) (Preset, bool) {
	p, ok := c.presets[name]
	return p, ok
}

// List returns presets in catalog order.
func (c *Catalog) List() []Preset {
	out := make([]Preset, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.presets[name])
	}
	return out
}
