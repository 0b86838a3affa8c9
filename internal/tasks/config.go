package tasks

import (
	"io/ioutil"
	"log"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config carries the run-wide settings shared by every task. Task-specific
// knobs (limits, batch sizes, architectures) live on the Spec instead.
type Config struct {
	DBPath    string
	OutputDir string

	// ImageSize is the square side each decoded frame is resized to.
	// Combined tasks see a 2*ImageSize by ImageSize input.
	ImageSize int

	// MaxOffset bounds the augmentation jitter in pixels per axis.
	MaxOffset int

	Epochs int

	// Percentile rescale applied to teacher predictions before gen-2
	// training.
	RescaleLow     float64
	RescaleHigh    float64
	RescaleCeiling float64

	Logf func(format string, args ...interface{})
}

// DefaultConfig returns the production settings for a corpus and output
// directory.
func DefaultConfig(dbPath, outputDir string) Config {
	return Config{
		DBPath:         dbPath,
		OutputDir:      outputDir,
		ImageSize:      128,
		MaxOffset:      10,
		Epochs:         250,
		RescaleLow:     5,
		RescaleHigh:    95,
		RescaleCeiling: 0.75,
		Logf:           log.Printf,
	}
}

type configOverrides struct {
	ImageSize      *int     `yaml:"image_size"`
	MaxOffset      *int     `yaml:"max_offset"`
	Epochs         *int     `yaml:"epochs"`
	RescaleLow     *float64 `yaml:"rescale_low"`
	RescaleHigh    *float64 `yaml:"rescale_high"`
	RescaleCeiling *float64 `yaml:"rescale_ceiling"`
}

// WithOverrides applies the settings found in a YAML file on top of the
// config. Absent keys keep their current values; unknown keys are an error.
func (c Config) WithOverrides(path string) (Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "read config %s", path)
	}
	var ov configOverrides
	if err := yaml.UnmarshalStrict(buf, &ov); err != nil {
		return c, errors.Wrapf(err, "parse config %s", path)
	}
	if ov.ImageSize != nil {
		c.ImageSize = *ov.ImageSize
	}
	if ov.MaxOffset != nil {
		c.MaxOffset = *ov.MaxOffset
	}
	if ov.Epochs != nil {
		c.Epochs = *ov.Epochs
	}
	if ov.RescaleLow != nil {
		c.RescaleLow = *ov.RescaleLow
	}
	if ov.RescaleHigh != nil {
		c.RescaleHigh = *ov.RescaleHigh
	}
	if ov.RescaleCeiling != nil {
		c.RescaleCeiling = *ov.RescaleCeiling
	}
	return c, nil
}
