package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// TFRecordConfig holds configuration for the optional TFRecord export.
type TFRecordConfig struct {
	Output   string `mapstructure:"output"`    // Empty disables the export.
	LabelMap string `mapstructure:"label_map"` // Defaults to label_map.pbtxt in the output dir.
	Shards   int    `mapstructure:"shards"`
}

// RenderConfig holds configuration for preview rendering.
type RenderConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	MaxSide     int    `mapstructure:"max_side"`
	Encoding    string `mapstructure:"encoding"`
	JPEGQuality int    `mapstructure:"jpeg_quality"`
}

// Config holds all runtime configuration for a conversion run.
// Values are populated from .cococonv.yaml, COCOCONV_* env vars, and CLI flags.
type Config struct {
	InputDir      string         `mapstructure:"input_dir"`
	OutputDir     string         `mapstructure:"output_dir"`
	ImageDir      string         `mapstructure:"image_dir"`
	UnknownShapes string         `mapstructure:"unknown_shapes"`
	CategoryScope string         `mapstructure:"category_scope"`
	ImageIDScope  string         `mapstructure:"image_id_scope"`
	InfoFile      string         `mapstructure:"info_file"`
	AutoOrient    bool           `mapstructure:"auto_orient"`
	Pretty        bool           `mapstructure:"pretty"`
	MapCategories []string       `mapstructure:"map_categories"`
	Verbose       bool           `mapstructure:"verbose"`
	TFRecord      TFRecordConfig `mapstructure:"tfrecord"`
	Render        RenderConfig   `mapstructure:"render"`
}

// SetDefaults registers the built-in defaults with viper.
func SetDefaults() {
	viper.SetDefault("input_dir", "./input")
	viper.SetDefault("output_dir", "./output")
	viper.SetDefault("image_dir", "./image")
	viper.SetDefault("unknown_shapes", "fail")
	viper.SetDefault("category_scope", "file")
	viper.SetDefault("image_id_scope", "file")
	viper.SetDefault("info_file", "")
	viper.SetDefault("auto_orient", false)
	viper.SetDefault("pretty", false)
	viper.SetDefault("map_categories", []string{})
	viper.SetDefault("verbose", false)
	viper.SetDefault("tfrecord.output", "")
	viper.SetDefault("tfrecord.label_map", "")
	viper.SetDefault("tfrecord.shards", 1)
	viper.SetDefault("render.output_dir", "./preview")
	viper.SetDefault("render.max_side", 0)
	viper.SetDefault("render.encoding", "jpg")
	viper.SetDefault("render.jpeg_quality", 90)
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.clean()
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.InputDir == "" || c.OutputDir == "" || c.ImageDir == "" {
		return fmt.Errorf("input_dir, output_dir and image_dir must be set")
	}
	if c.UnknownShapes != "fail" && c.UnknownShapes != "skip" {
		return fmt.Errorf("invalid unknown_shapes %q, must be fail or skip", c.UnknownShapes)
	}
	for key, v := range map[string]string{
		"category_scope": c.CategoryScope,
		"image_id_scope": c.ImageIDScope,
	} {
		if v != "file" && v != "run" {
			return fmt.Errorf("invalid %s %q, must be file or run", key, v)
		}
	}
	if c.TFRecord.Output != "" && (c.CategoryScope != "run" || c.ImageIDScope != "run") {
		return fmt.Errorf("tfrecord.output needs category_scope and image_id_scope run")
	}
	if c.TFRecord.Shards < 1 {
		return fmt.Errorf("invalid tfrecord.shards %d, must be at least 1", c.TFRecord.Shards)
	}
	if c.Render.MaxSide < 0 {
		return fmt.Errorf("invalid render.max_side %d", c.Render.MaxSide)
	}
	if c.Render.Encoding != "jpg" && c.Render.Encoding != "png" {
		return fmt.Errorf("invalid render.encoding %q, must be jpg or png", c.Render.Encoding)
	}
	return nil
}

// clean normalises the path settings.
func (c *Config) clean() {
	c.InputDir = filepath.Clean(c.InputDir)
	c.OutputDir = filepath.Clean(c.OutputDir)
	c.ImageDir = filepath.Clean(c.ImageDir)
	c.Render.OutputDir = filepath.Clean(c.Render.OutputDir)
	if c.InfoFile != "" {
		c.InfoFile = filepath.Clean(c.InfoFile)
	}
	if c.TFRecord.Output != "" {
		c.TFRecord.Output = filepath.Clean(c.TFRecord.Output)
	}
	if c.TFRecord.LabelMap != "" {
		c.TFRecord.LabelMap = filepath.Clean(c.TFRecord.LabelMap)
	}
}
