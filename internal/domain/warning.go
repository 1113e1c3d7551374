package domain

import "time"

// WarningKind distinguishes the dispersion rule families.
type WarningKind string

const (
	WarningDispersion WarningKind = "dispersion_influence"
	WarningWashout    WarningKind = "weather_washout"
)

// Severity grades a warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Warning is a structured dispersion alert. Warnings are recomputed on each
// request and never persisted.
type Warning struct {
	ID       string          `json:"id"`
	Kind     WarningKind     `json:"kind"`
	Severity Severity        `json:"severity"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Gas      Gas             `json:"gas"`
	Value    float64         `json:"value"`
	Unit     string          `json:"unit"`
	Category Category        `json:"category"`
	Anchor   *Anchor         `json:"anchor_location,omitempty"`
	Movement *MovementVector `json:"movement,omitempty"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Anchor is the location a warning refers to.
type Anchor struct {
	Name string `json:"name"`
	Geo  Geo    `json:"geo"`
}
