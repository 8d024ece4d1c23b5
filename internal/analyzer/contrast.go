package analyzer

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector implements edge-based region detection using Sobel operator.
// Detection runs on a copy scaled down to at most Work pixels on the long side.
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in pixels² of the work copy
	EdgeThreshold float64 // Gradient magnitude threshold
	Work          int
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  120,
		EdgeThreshold: 30.0,
		Work:          256,
	}
}

// Detect finds regions of interest using edge detection and morphology.
// Rectangles are returned in the coordinates of img.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	// 1. Уменьшенная серая копия
	gray, scale := toGrayscale(img, d.Work)

	// 2. Границы (Sobel)
	edges := sobelEdgeDetection(gray, d.EdgeThreshold)

	// 3. Дилатация, чтобы соседние границы слились
	dilated := dilate(edges, 5, 2)

	// 4. Связные области
	contours := findContours(dilated)

	total := float64(gray.Bounds().Dx() * gray.Bounds().Dy())
	var blocks []Block
	for _, rect := range contours {
		area := rect.Dx() * rect.Dy()
		if area < d.MinBlockArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect: image.Rect(
				b.Min.X+int(float64(rect.Min.X)/scale),
				b.Min.Y+int(float64(rect.Min.Y)/scale),
				b.Min.X+int(math.Ceil(float64(rect.Max.X)/scale)),
				b.Min.Y+int(math.Ceil(float64(rect.Max.Y)/scale)),
			).Intersect(b),
			// области во весь кадр - скорее фон, чем объект
			Confidence: 1 - 0.5*float64(area)/total,
		})
	}
	return blocks, nil
}

// toGrayscale returns a grayscale copy whose long side is at most work
// pixels, and the applied scale factor.
func toGrayscale(img image.Image, work int) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	if long := max(b.Dx(), b.Dy()); work > 0 && long > work {
		scale = float64(work) / float64(long)
	}
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray, scale
}

// sobelEdgeDetection applies Sobel operator to detect edges
func sobelEdgeDetection(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	// ядра Собеля
	gx := [][]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [][]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64

			// Apply convolution
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			// Gradient magnitude
			magnitude := math.Sqrt(sumX*sumX + sumY*sumY)

			// Threshold
			if magnitude > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			} else {
				edges.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	return edges
}

// dilate performs morphological dilation to connect nearby edges
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)

	// Copy original
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			result.SetGray(x, y, img.GrayAt(x, y))
		}
	}

	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)

		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y++ {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x++ {
				maxVal := uint8(0)

				// Check kernel neighborhood
				for ky := -half; ky <= half; ky++ {
					for kx := -half; kx <= half; kx++ {
						val := result.GrayAt(x+kx, y+ky).Y
						if val > maxVal {
							maxVal = val
						}
					}
				}

				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}

		result = temp
	}

	return result
}

// findContours finds bounding rectangles of connected white regions
func findContours(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	contours := []image.Rectangle{}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[y-bounds.Min.Y][x-bounds.Min.X] {
				// Found a new component, flood fill to find bounds
				rect := floodFill(img, visited, x, y)
				contours = append(contours, rect)
			}
		}
	}

	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func floodFill(img *image.Gray, visited [][]bool, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y <= 128 {
			continue
		}

		visited[y-bounds.Min.Y][x-bounds.Min.X] = true

		// Update bounds
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		// Add neighbors
		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
