// Package weather provides the sea wind that speeds up or slows down ships.
// Wind drifts smoothly from day to day along a simplex noise curve.
package weather

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Wind is the prevailing wind over the whole sea.
type Wind struct {
	Direction float64 `json:"direction"` // radians, 0 = east
	Strength  float64 `json:"strength"`  // 0.0 (calm) to 1.0 (gale)
}

// Describe returns a short sailor's description of the wind.
func (w Wind) Describe() string {
	switch {
	case w.Strength < 0.15:
		return "calm"
	case w.Strength < 0.4:
		return "light breeze"
	case w.Strength < 0.7:
		return "fresh wind"
	default:
		return "gale"
	}
}

func (w Wind) String() string {
	deg := math.Mod(w.Direction*180/math.Pi+360, 360)
	return fmt.Sprintf("%s %.0f° (%.2f)", w.Describe(), deg, w.Strength)
}

// Field samples wind for a given simulation day.
type Field struct {
	strength  opensimplex.Noise
	direction opensimplex.Noise
	frequency float64
}

// NewField creates a deterministic wind field for a seed.
func NewField(seed int64) *Field {
	return &Field{
		strength:  opensimplex.NewNormalized(seed),
		direction: opensimplex.NewNormalized(seed + 1),
		frequency: 0.08,
	}
}

// At returns the wind on a given day. The same day always yields the same wind.
func (f *Field) At(day uint64) Wind {
	x := float64(day) * f.frequency
	s := octaveNoise(f.strength, x, 0.5, 3, 1.0, 0.5)
	d := octaveNoise(f.direction, x*0.5, 3.5, 2, 1.0, 0.5)
	return Wind{
		Direction: d * 2 * math.Pi,
		Strength:  clamp01(s),
	}
}

// octaveNoise sums several octaves of normalized noise and rescales to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
