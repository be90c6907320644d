package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sensorable/cococonv"
	"github.com/sensorable/cococonv/internal/config"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the exports in the input directory to a COCO file (the default command)",
	Args:  cobra.NoArgs,
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

// addConvertFlags registers the conversion flags and binds them to their config keys.
func addConvertFlags(fs *pflag.FlagSet) {
	fs.String("input", "", "The `path` to the export input directory (default ./input)")
	fs.String("output", "", "The `path` to the COCO output directory, created if missing"+
		" (default ./output)")
	fs.String("images", "", "The `path` that image file names are relative to (default ./image)")
	fs.String("unknown-shapes", "", "What to do with unknown shape types {fail, skip}"+
		" (default fail)")
	fs.String("category-scope", "", "Category id scope {file, run}; run merges categories by"+
		" name across exports (default file)")
	fs.String("image-id-scope", "", "Image id scope {file, run} (default file)")
	fs.String("info-file", "", "A TOML `file` with the dataset info and licenses")
	fs.Bool("auto-orient", false, "Measure images after applying their EXIF orientation")
	fs.Bool("pretty", false, "Indent the COCO JSON output")
	fs.StringSlice("map-categories", nil, "Comma-separated list of old=new category name"+
		" (sub-)string replacements")
	fs.String("tfrecord", "", "Also write the dataset as TFRecord to this `path`")
	fs.String("tfrecord-label-map", "", "The TFRecord label map `path`"+
		" (default <output>/label_map.pbtxt)")
	fs.Int("num-shards", 0, "The number of TFRecord shard files to create (default 1)")

	for key, flag := range map[string]string{
		"input_dir":          "input",
		"output_dir":         "output",
		"image_dir":          "images",
		"unknown_shapes":     "unknown-shapes",
		"category_scope":     "category-scope",
		"image_id_scope":     "image-id-scope",
		"info_file":          "info-file",
		"auto_orient":        "auto-orient",
		"pretty":             "pretty",
		"map_categories":     "map-categories",
		"tfrecord.output":    "tfrecord",
		"tfrecord.label_map": "tfrecord-label-map",
		"tfrecord.shards":    "num-shards",
	} {
		_ = viper.BindPFlag(key, fs.Lookup(flag))
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := runOptions(cfg)
	if err != nil {
		return err
	}

	outPath, err := cococonv.Run(opts)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if cfg.Verbose {
		log.Printf("Wrote %s", outPath)
	}
	return nil
}

// runOptions translates the configuration to the converter options.
func runOptions(cfg config.Config) (cococonv.RunOptions, error) {
	opts := cococonv.RunOptions{
		InputDir:         cfg.InputDir,
		OutputDir:        cfg.OutputDir,
		ImageDir:         cfg.ImageDir,
		AutoOrient:       cfg.AutoOrient,
		Pretty:           cfg.Pretty,
		MapCategories:    cfg.MapCategories,
		TFRecordPath:     cfg.TFRecord.Output,
		TFRecordLabelMap: cfg.TFRecord.LabelMap,
		TFRecordShards:   cfg.TFRecord.Shards,
	}
	opts.Verbose = cfg.Verbose

	var err error
	if opts.UnknownShapes, err = cococonv.ParseUnknownShapePolicy(cfg.UnknownShapes); err != nil {
		return opts, err
	}
	if opts.CategoryScope, err = cococonv.ParseScope(cfg.CategoryScope); err != nil {
		return opts, err
	}
	if opts.ImageIDScope, err = cococonv.ParseScope(cfg.ImageIDScope); err != nil {
		return opts, err
	}

	opts.Info = cococonv.DefaultDatasetInfo()
	if cfg.InfoFile != "" {
		if opts.Info, err = cococonv.LoadDatasetInfo(cfg.InfoFile); err != nil {
			return opts, err
		}
	}

	return opts, nil
}
