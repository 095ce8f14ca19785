package imageproc

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Analysis is the palette of one frame, sorted by proportion in descending order.
type Analysis struct {
	Colors      [][3]uint8 `json:"colors"`
	Proportions []float64  `json:"proportions"`
	Hues        []float64  `json:"hues"`
	Saturations []float64  `json:"saturations"`
	Hex         []string   `json:"hex"`
	// Clusters maps each sorted entry back to its cluster index.
	Clusters   []int `json:"-"`
	Iterations int   `json:"iterations"`
	Converged  bool  `json:"converged"`
}

func newAnalysis(colors [][3]uint8, counts []int, iterations int, converged bool) *Analysis {
	k := len(colors)
	a := &Analysis{
		Colors:      colors,
		Proportions: make([]float64, k),
		Hues:        make([]float64, k),
		Saturations: make([]float64, k),
		Hex:         make([]string, k),
		Clusters:    make([]int, k),
		Iterations:  iterations,
		Converged:   converged,
	}

	var total int
	for _, c := range counts {
		total += c
	}
	for i, c := range colors {
		if total > 0 {
			a.Proportions[i] = float64(counts[i]) / float64(total)
		}
		col := colorful.Color{
			R: float64(c[0]) / 255.0,
			G: float64(c[1]) / 255.0,
			B: float64(c[2]) / 255.0,
		}
		h, s, _ := col.Hsl()
		a.Hues[i] = float64(transformH(h))
		a.Saturations[i] = float64(transformS(s))
		a.Hex[i] = col.Hex()
		a.Clusters[i] = i
	}

	a.sortByProportions()
	return a
}

// sortByProportions reorders every column by proportion in descending order.
func (a *Analysis) sortByProportions() {
	indices := make([]int, len(a.Proportions))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return a.Proportions[indices[i]] > a.Proportions[indices[j]]
	})

	colors := make([][3]uint8, len(indices))
	proportions := make([]float64, len(indices))
	hues := make([]float64, len(indices))
	saturations := make([]float64, len(indices))
	hex := make([]string, len(indices))
	clusters := make([]int, len(indices))
	for newIdx, oldIdx := range indices {
		colors[newIdx] = a.Colors[oldIdx]
		proportions[newIdx] = a.Proportions[oldIdx]
		hues[newIdx] = a.Hues[oldIdx]
		saturations[newIdx] = a.Saturations[oldIdx]
		hex[newIdx] = a.Hex[oldIdx]
		clusters[newIdx] = a.Clusters[oldIdx]
	}
	a.Colors, a.Proportions, a.Hues, a.Saturations, a.Hex, a.Clusters =
		colors, proportions, hues, saturations, hex, clusters
}

// transformH converts a standard HSL hue value (0-360 degrees) to OpenCV HSV hue range (0-179)
func transformH(hue float64) int {
	if hue >= 360.0 {
		hue = 0.0
	}
	return int(hue / 2.0)
}

// transformS converts a standard HSL saturation value (0-1) to OpenCV saturation range (0-255)
func transformS(saturation float64) int {
	if saturation < 0.0 {
		saturation = 0.0
	} else if saturation > 1.0 {
		saturation = 1.0
	}
	return int(saturation * 255.0)
}
