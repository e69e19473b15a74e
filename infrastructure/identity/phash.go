package identity

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// phashSize is the edge length of the downscaled grayscale image the DCT
// runs over; phashBlock is the edge length of the low-frequency block kept.
const (
	phashSize  = 32
	phashBlock = 8
)

// PerceptualHash computes a 64-bit DCT fingerprint of the image: the picture
// is reduced to 32x32 grayscale, transformed with a 2D DCT, and the top-left
// 8x8 low-frequency block (excluding the DC coefficient for the threshold)
// is median-thresholded into bits. The fingerprint survives re-encoding and
// mild resizing but shifts with real content changes.
func PerceptualHash(img image.Image) uint64 {
	pixels := grayscale32(img)
	coeffs := dct2d(pixels)

	// Flatten the low-frequency block.
	block := make([]float64, 0, phashBlock*phashBlock)
	for y := 0; y < phashBlock; y++ {
		for x := 0; x < phashBlock; x++ {
			block = append(block, coeffs[y][x])
		}
	}

	// Median over the block without the DC term, which otherwise dominates.
	med := median(block[1:])

	var hash uint64
	for i, c := range block {
		if c > med {
			hash |= 1 << uint(63-i)
		}
	}
	return hash
}

// grayscale32 downscales the image to 32x32 and converts it to luminance
// values.
func grayscale32(img image.Image) [][]float64 {
	small := image.NewGray(image.Rect(0, 0, phashSize, phashSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([][]float64, phashSize)
	for y := 0; y < phashSize; y++ {
		pixels[y] = make([]float64, phashSize)
		for x := 0; x < phashSize; x++ {
			pixels[y][x] = float64(small.GrayAt(x, y).Y)
		}
	}
	return pixels
}

// dct2d applies a type-II discrete cosine transform to a square matrix,
// rows then columns.
func dct2d(m [][]float64) [][]float64 {
	n := len(m)

	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = dct1d(m[y])
	}

	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		out[y] = make([]float64, n)
	}
	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		transformed := dct1d(col)
		for y := 0; y < n; y++ {
			out[y][x] = transformed[y]
		}
	}
	return out
}

func dct1d(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
