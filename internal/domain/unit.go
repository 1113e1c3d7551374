package domain

import "strings"

// molarVolume is the volume in litres of one mole of ideal gas at 25 °C and
// 1 atm, the reference condition for ppb to mass-concentration conversion.
const molarVolume = 24.45

// molarMass holds the molar mass in g/mol of the gases reported by volume
// mixing ratio. Particulates have no molar mass and cannot be converted from
// ppb or ppm.
var molarMass = map[Gas]float64{
	GasNO2: 46.01,
	GasSO2: 64.07,
	GasCO:  28.01,
	GasO3:  48.00,
}

const (
	unitMicrogram = "µg/m³"
	unitMilligram = "mg/m³"
	unitPPB       = "ppb"
	unitPPM       = "ppm"
)

// CanonicalUnit folds the common spellings of a concentration unit to one
// of "µg/m³", "mg/m³", "ppb" or "ppm". It returns "" for anything else.
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, " ", "")
	u = strings.ReplaceAll(u, "μ", "µ") // Greek mu to micro sign
	u = strings.ReplaceAll(u, "m^3", "m³")
	u = strings.ReplaceAll(u, "m3", "m³")
	switch u {
	case "µg/m³", "ug/m³", "mcg/m³":
		return unitMicrogram
	case "mg/m³":
		return unitMilligram
	case unitPPB:
		return unitPPB
	case unitPPM:
		return unitPPM
	default:
		return ""
	}
}

// ConvertUnit converts value, reported in unit, to the native unit of gas.
// An empty unit means the value is already native. It reports false when the
// unit is not recognised or cannot be converted for this gas.
func ConvertUnit(gas Gas, value float64, unit string) (float64, bool) {
	if strings.TrimSpace(unit) == "" {
		return value, true
	}
	from := CanonicalUnit(unit)
	if from == "" {
		return 0, false
	}

	var micrograms float64
	switch from {
	case unitMicrogram:
		micrograms = value
	case unitMilligram:
		micrograms = value * 1000
	case unitPPB, unitPPM:
		mass, ok := molarMass[gas]
		if !ok {
			return 0, false
		}
		ppb := value
		if from == unitPPM {
			ppb = value * 1000
		}
		micrograms = ppb * mass / molarVolume
	}

	switch gas.Unit() {
	case unitMicrogram:
		return micrograms, true
	case unitMilligram:
		return micrograms / 1000, true
	default:
		return 0, false
	}
}
