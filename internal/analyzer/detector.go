// Package analyzer finds the visually busy parts of an image so the camera
// can zoom towards them.
package analyzer

import "image"

// Block is a detected region of interest.
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
}

// Detector is the interface for image analysis strategies.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// Focus returns the center of the strongest block as fractions of the image
// size. Images without any block focus on the middle.
func Focus(d Detector, img image.Image) (fx, fy float64) {
	b := img.Bounds()
	if b.Empty() {
		return 0.5, 0.5
	}
	blocks, err := d.Detect(img)
	if err != nil || len(blocks) == 0 {
		return 0.5, 0.5
	}

	best, bestScore := blocks[0], -1.0
	for _, blk := range blocks {
		score := float64(blk.Rect.Dx()*blk.Rect.Dy()) * blk.Confidence
		if score > bestScore {
			best, bestScore = blk, score
		}
	}
	cx := float64(best.Rect.Min.X+best.Rect.Max.X)/2 - float64(b.Min.X)
	cy := float64(best.Rect.Min.Y+best.Rect.Max.Y)/2 - float64(b.Min.Y)
	return clamp01(cx / float64(b.Dx())), clamp01(cy / float64(b.Dy()))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
