package forecast

import "strings"

// Profile is the diurnal shape of a location's prior pollution level.
type Profile string

const (
	ProfileMetro       Profile = "metro"
	ProfileIndustrial  Profile = "industrial"
	ProfileResidential Profile = "residential"
)

var industrial = []string{"kanpur", "surat", "ahmedabad", "lucknow"}

var metro = []string{"delhi", "mumbai", "bangalore", "kolkata", "chennai", "hyderabad"}

// ProfileFor classifies a named location.
func ProfileFor(location string) Profile {
	name := strings.ToLower(location)
	for _, c := range metro {
		if name == c {
			return ProfileMetro
		}
	}
	for _, c := range industrial {
		if name == c {
			return ProfileIndustrial
		}
	}
	return ProfileResidential
}

// Multiplier scales the baseline for the given wall-clock hour: rush hours run
// high, the early morning runs clean.
func (p Profile) Multiplier(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 10:
		if p == ProfileMetro {
			return 1.25
		}
		return 1.15
	case hour >= 17 && hour <= 21:
		if p == ProfileMetro {
			return 1.35
		}
		return 1.20
	case hour >= 22 || hour <= 2:
		if p == ProfileIndustrial {
			return 1.1
		}
		return 0.9
	case hour > 2 && hour <= 5:
		return 0.7
	case hour >= 11 && hour <= 16:
		return 0.95
	default:
		return 1.0
	}
}
