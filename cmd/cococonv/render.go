package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sensorable/cococonv"
	"github.com/sensorable/cococonv/internal/config"
)

var renderCmd = &cobra.Command{
	Use:   "render <coco.json>",
	Short: "Draw the annotations of a COCO file over its images",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().String("out", "", "The preview output `path` (default ./preview)")
	renderCmd.Flags().Int("max-side", 0, "Downsample previews to at most this many `pixels` per side")
	renderCmd.Flags().String("image-enc", "", "The `encoding` for previews {jpg, png} (default jpg)")
	renderCmd.Flags().Int("jpeg-quality", 0, "The quality to use when encoding JPEGs [1, 100]"+
		" (default 90)")

	for key, flag := range map[string]string{
		"render.output_dir":   "out",
		"render.max_side":     "max-side",
		"render.encoding":     "image-enc",
		"render.jpeg_quality": "jpeg-quality",
	} {
		_ = viper.BindPFlag(key, renderCmd.Flags().Lookup(flag))
	}

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	doc, err := cococonv.LoadCOCO(args[0])
	if err != nil {
		return err
	}

	count, err := cococonv.RenderPreviews(doc, cfg.ImageDir, cfg.Render.OutputDir,
		cococonv.RenderOptions{
			Encoding:    cfg.Render.Encoding,
			JPEGQuality: cfg.Render.JPEGQuality,
			MaxSide:     cfg.Render.MaxSide,
			AutoOrient:  cfg.AutoOrient,
		})
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}

	log.Printf("Successfully rendered %d previews to %s", count, cfg.Render.OutputDir)
	return nil
}
