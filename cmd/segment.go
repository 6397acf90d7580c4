package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prasannaganesan/interior-design-app/internal/raster"
	"github.com/prasannaganesan/interior-design-app/internal/segment"
)

var (
	segmentInput  string
	segmentPoint  string
	segmentTopK   int
	segmentOutput string
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Segment the surface under a point and write its mask",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pt, err := parsePoint(segmentPoint)
		if err != nil {
			return err
		}

		img, err := raster.Load(segmentInput)
		if err != nil {
			return err
		}
		logVerbose("loaded %s (%dx%d)", segmentInput, img.Width, img.Height)

		engine := segment.NewEngine(cfg.Segmentation)
		defer engine.Close()

		ctx := cmd.Context()
		if err := engine.Initialize(ctx, cfg.ONNX); err != nil {
			return err
		}
		if err := engine.GenerateEmbedding(ctx, img); err != nil {
			return err
		}

		candidates, err := engine.GenerateMasks(ctx, img, segment.Prompt{
			Positive: []segment.Point{pt},
			TopK:     segmentTopK,
		})
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return fmt.Errorf("no mask candidates for point %s", segmentPoint)
		}

		best := candidates[0]
		logVerbose("best candidate: %d pixels, score %.3f", len(best.Pixels), best.Score)

		out := maskImage(best.Pixels.ToDense(img.PixelCount()), img.Width, img.Height)
		if err := out.Save(segmentOutput); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d pixels, %d candidates)\n", segmentOutput, len(best.Pixels), len(candidates))
		return nil
	},
}

// maskImage renders a dense mask as a white-on-black image.
func maskImage(dense []bool, w, h int) *raster.Image {
	img := raster.New(w, h)
	for i, on := range dense {
		if on {
			img.Pix[i*4] = 0xFF
			img.Pix[i*4+1] = 0xFF
			img.Pix[i*4+2] = 0xFF
		}
	}
	return img
}

func init() {
	segmentCmd.Flags().StringVarP(&segmentInput, "input", "i", "", "input image (required)")
	segmentCmd.Flags().StringVarP(&segmentPoint, "point", "p", "", "prompt point x,y (required)")
	segmentCmd.Flags().IntVarP(&segmentTopK, "top-k", "k", 1, "number of candidate masks to decode")
	segmentCmd.Flags().StringVarP(&segmentOutput, "output", "o", "mask.png", "output mask image")
	segmentCmd.MarkFlagRequired("input")
	segmentCmd.MarkFlagRequired("point")
	rootCmd.AddCommand(segmentCmd)
}
