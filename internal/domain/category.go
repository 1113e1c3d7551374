package domain

import (
	"fmt"
	"math"
)

// Category is a severity band. The zero value is CategoryUnknown, used for
// quarantined measurements that must not reach the display layer.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryGood
	CategoryModerate
	CategoryUnhealthySensitive
	CategoryUnhealthy
	CategoryVeryUnhealthy
	CategoryHazardous
)

var categoryNames = map[Category]string{
	CategoryUnknown:            "unknown",
	CategoryGood:               "good",
	CategoryModerate:           "moderate",
	CategoryUnhealthySensitive: "unhealthy_sensitive",
	CategoryUnhealthy:          "unhealthy",
	CategoryVeryUnhealthy:      "very_unhealthy",
	CategoryHazardous:          "hazardous",
}

var categoryLabels = map[Category]string{
	CategoryUnknown:            "Unknown",
	CategoryGood:               "Good",
	CategoryModerate:           "Moderate",
	CategoryUnhealthySensitive: "Unhealthy for Sensitive Groups",
	CategoryUnhealthy:          "Unhealthy",
	CategoryVeryUnhealthy:      "Very Unhealthy",
	CategoryHazardous:          "Hazardous",
}

// String returns the machine identifier, e.g. "very_unhealthy".
func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Label returns the human-readable name, e.g. "Very Unhealthy".
func (c Category) Label() string {
	return categoryLabels[c]
}

// AtLeast reports whether c is as severe as or more severe than other.
func (c Category) AtLeast(other Category) bool {
	return c >= other
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	for k, v := range categoryNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", b)
}

// Color is a hex display color.
type Color string

var categoryColors = [...]Color{
	CategoryUnknown:            "#888888",
	CategoryGood:               "#00E400",
	CategoryModerate:           "#FFFF00",
	CategoryUnhealthySensitive: "#FF7E00",
	CategoryUnhealthy:          "#FF0000",
	CategoryVeryUnhealthy:      "#8F3F97",
	CategoryHazardous:          "#7E0023",
}

// ColorOf returns the display color of a category.
func ColorOf(c Category) Color {
	if c < 0 || int(c) >= len(categoryColors) {
		return categoryColors[CategoryUnknown]
	}
	return categoryColors[c]
}

// Breakpoint is one row of a gas's breakpoint table.
type Breakpoint struct {
	Upper    float64 // inclusive; +Inf for the last band
	Category Category
	Color    Color
}

// Breakpoints returns the six-band table for gas. Unknown gases use the PM2.5
// table.
func Breakpoints(gas Gas) []Breakpoint {
	info, ok := gasInfo[gas]
	if !ok {
		info = gasInfo[GasPM25]
	}
	table := make([]Breakpoint, 0, 6)
	for i, upper := range info.Thresholds {
		cat := Category(i + 1)
		table = append(table, Breakpoint{Upper: upper, Category: cat, Color: ColorOf(cat)})
	}
	return append(table, Breakpoint{Upper: math.Inf(1), Category: CategoryHazardous, Color: ColorOf(CategoryHazardous)})
}

// Classify maps a concentration to its severity band and color. It is total
// for value >= 0: negative values are treated as zero, values above the top
// breakpoint clamp to Hazardous, and NaN is treated as zero.
func Classify(gas Gas, value float64) (Category, Color) {
	if math.IsNaN(value) || value < 0 {
		value = 0
	}
	info, ok := gasInfo[gas]
	if !ok {
		info = gasInfo[GasPM25]
	}
	for i, upper := range info.Thresholds {
		if value <= upper {
			cat := Category(i + 1)
			return cat, ColorOf(cat)
		}
	}
	return CategoryHazardous, ColorOf(CategoryHazardous)
}
