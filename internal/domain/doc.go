// Package domain models air-quality observations and the severity rules that
// every derived product shares.
//
// # Gases
//
// Six pollutants are supported, each with a native unit:
//
//	pm25  PM2.5  µg/m³
//	pm10  PM10   µg/m³
//	no2   NO₂    µg/m³
//	so2   SO₂    µg/m³
//	co    CO     mg/m³
//	o3    O₃     µg/m³
//
// Provider payloads name gases loosely ("PM2.5", "pm2_5", "NO2"); [ParseGas]
// folds them into the canonical identifiers above.
//
// # Sources
//
//	ground_station   fixed physical sensor, real-time reading
//	satellite_grid   regularly spaced sample derived from column-density imagery
//	satellite_proxy  PM2.5 derived from aerosol optical depth (AOD × factor)
//
// The AOD conversion factor is configuration (AOD_PM25_FACTOR), not a constant:
// it is a tunable approximation, not a calibrated conversion.
//
// # Severity categories
//
// Each gas has a breakpoint table of five inclusive upper bounds; values above
// the last bound are Hazardous. [Classify] is the single source of truth for
// these semantics and every product calls it.
//
//	gas    good  moderate  sensitive  unhealthy  very unhealthy
//	pm25     50       100        150        200             300
//	pm10    100       200        250        350             430
//	no2      40        80        120        160             200
//	so2      20        40         60         80             100
//	co        1         2          4          6              10
//	o3       60       120        160        200             240
//
// Colors follow the EPA palette: #00E400, #FFFF00, #FF7E00, #FF0000, #8F3F97,
// #7E0023.
//
// # Ingestion outcomes
//
// A raw record is either accepted, quarantined or rejected:
//
//   - rejected: a coordinate, the gas or the value is missing; the gas or
//     source tag is unknown; the value is negative or not a number; the
//     coordinate is outside WGS84 bounds.
//   - quarantined: the location name is absent or "Unknown", the value exceeds
//     the implausibility ceiling (default 1000 in the gas's native unit), or the
//     point lies outside the configured area of interest. Quarantined records
//     are retained for audit but never feed classification display or
//     estimation.
//
// # Identity
//
// Measurement IDs are deterministic SHA-256 hashes of
// source|provider|gas|lat|lon|timestamp|value, so an identical re-delivered
// record has the same ID. The store still retains both copies (each gets its
// own sequence number); consumers that must not double count a station group
// by [Key].
package domain
