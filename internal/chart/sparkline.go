package chart

import (
	"bytes"
	"fmt"
	"math"
)

// Braille blocks, 4 sub-blocks high: empty, 1/4, 1/2, 3/4, full
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

// Downsample picks n evenly spaced values, always keeping the first and last
func Downsample(values []float64, n int) []float64 {
	if n < 2 || len(values) <= n {
		return append([]float64(nil), values...)
	}
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = values[int(math.Round(float64(i)*step))]
	}
	return out
}

// Sparkline renders values as a multi-line braille chart with min/max labels.
// The floor is zero so decay curves keep their true proportions.
func Sparkline(values []float64, height int) string {
	if len(values) < 2 {
		return ""
	}
	if height < 1 {
		height = 10
	}

	minVal := 0.0
	maxVal := values[0]
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
		if v < minVal {
			minVal = v
		}
	}
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	subBlocksPerLine := 4.0

	rows := make([][]rune, height)
	width := len(values)
	for i := 0; i < height; i++ {
		rows[i] = make([]rune, width)
		for j := 0; j < width; j++ {
			rows[i][j] = blocks[0]
		}
	}

	for x, val := range values {
		normalized := (val - minVal) / rangeVal
		totalSubBlocks := normalized * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				if remainder < 0 {
					remainder = 0
				}
				if remainder >= len(blocks) {
					remainder = len(blocks) - 1
				}
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	result.WriteString(fmt.Sprintf("Max: %.1f\n", maxVal))
	for i := 0; i < height; i++ {
		result.WriteString(string(rows[i]))
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("Min: %.1f", minVal))

	return result.String()
}

// CompactSparkline renders values as two braille lines, one column per value
func CompactSparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1
	}

	var topLine, bottomLine bytes.Buffer
	for _, val := range values {
		// Scale to 0-4; each line holds half the height
		height := (val - minVal) / rangeVal * 4.0

		var topChar, bottomChar rune
		switch {
		case height >= 4:
			topChar, bottomChar = '⣿', '⣿'
		case height >= 3.5:
			topChar, bottomChar = '⣶', '⣿'
		case height >= 3:
			topChar, bottomChar = '⣤', '⣿'
		case height >= 2.5:
			topChar, bottomChar = '⣀', '⣿'
		case height >= 2:
			topChar, bottomChar = '⠀', '⣿'
		case height >= 1.5:
			topChar, bottomChar = '⠀', '⣶'
		case height >= 1:
			topChar, bottomChar = '⠀', '⣤'
		default:
			topChar, bottomChar = '⠀', '⣀' // Keep a baseline visible
		}

		topLine.WriteRune(topChar)
		bottomLine.WriteRune(bottomChar)
	}

	return topLine.String() + "\n" + bottomLine.String()
}
