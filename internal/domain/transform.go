package domain

import (
	"errors"
	"math"
)

// Wind, temperature and visibility labels.
const (
	WindCalm     = "Calm"
	WindBreeze   = "Breeze"
	WindModerate = "Moderate"
	WindStrong   = "Strong"

	TempCold = "Cold"
	TempMild = "Mild"
	TempHot  = "Hot"

	VisibilityHigh   = "High"
	VisibilityMedium = "Medium"
	VisibilityLow    = "Low"
)

// Thresholds holds the bucket boundaries used to classify weather readings.
// A reading equal to a "Below" boundary falls into the next bucket up; a
// visibility equal to a "From" boundary falls into that bucket.
type Thresholds struct {
	WindCalmBelow     float64
	WindBreezeBelow   float64
	WindModerateBelow float64

	TempColdBelow float64
	TempMildBelow float64

	VisibilityHighFrom   int64
	VisibilityMediumFrom int64
}

// DefaultThresholds returns the stock classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindCalmBelow:        1,
		WindBreezeBelow:      5,
		WindModerateBelow:    15,
		TempColdBelow:        10,
		TempMildBelow:        25,
		VisibilityHighFrom:   10000,
		VisibilityMediumFrom: 4000,
	}
}

// Validate reports boundaries that are not strictly increasing.
func (t Thresholds) Validate() error {
	if !(t.WindCalmBelow < t.WindBreezeBelow && t.WindBreezeBelow < t.WindModerateBelow) {
		return errors.New("wind thresholds must be strictly increasing")
	}
	if !(t.TempColdBelow < t.TempMildBelow) {
		return errors.New("temperature thresholds must be strictly increasing")
	}
	if !(t.VisibilityMediumFrom < t.VisibilityHighFrom) {
		return errors.New("visibility thresholds must be strictly increasing")
	}
	return nil
}

// ClassifyWind maps a wind speed to Calm, Breeze, Moderate or Strong.
func (t Thresholds) ClassifyWind(speed float64) string {
	switch {
	case speed < t.WindCalmBelow:
		return WindCalm
	case speed < t.WindBreezeBelow:
		return WindBreeze
	case speed < t.WindModerateBelow:
		return WindModerate
	default:
		return WindStrong
	}
}

// ClassifyTemperature maps the mean of the daily min and max to Cold, Mild or Hot.
func (t Thresholds) ClassifyTemperature(tempMin, tempMax float64) string {
	mean := (tempMin + tempMax) / 2
	switch {
	case mean < t.TempColdBelow:
		return TempCold
	case mean < t.TempMildBelow:
		return TempMild
	default:
		return TempHot
	}
}

// ClassifyVisibility maps a visibility distance in meters to High, Medium or Low.
func (t Thresholds) ClassifyVisibility(vis int64) string {
	switch {
	case vis >= t.VisibilityHighFrom:
		return VisibilityHigh
	case vis >= t.VisibilityMediumFrom:
		return VisibilityMedium
	default:
		return VisibilityLow
	}
}

// TransformWeather derives the cleaned observation from a raw one. Any
// required field that is NULL or outside its domain yields a *FieldError.
func (t Thresholds) TransformWeather(raw RawWeatherObservation) (CleanedWeatherObservation, error) {
	if err := validateWeather(raw); err != nil {
		return CleanedWeatherObservation{}, err
	}

	return CleanedWeatherObservation{
		City:                      *raw.City,
		Country:                   *raw.Country,
		Description:               Capitalize(*raw.Description),
		Temperature:               *raw.Temperature,
		WindClassification:        t.ClassifyWind(*raw.WindSpeed),
		TemperatureClassification: t.ClassifyTemperature(*raw.TempMin, *raw.TempMax),
		VisibilityClassification:  t.ClassifyVisibility(*raw.Visibility),
		Timestamp:                 *raw.Timestamp,
	}, nil
}

func validateWeather(raw RawWeatherObservation) error {
	required := []struct {
		field   string
		present bool
	}{
		{"ciudad", raw.City != nil},
		{"pais", raw.Country != nil},
		{"descripcion", raw.Description != nil},
		{"temperatura", raw.Temperature != nil},
		{"temp_min", raw.TempMin != nil},
		{"temp_max", raw.TempMax != nil},
		{"viento_velocidad", raw.WindSpeed != nil},
		{"visibilidad", raw.Visibility != nil},
		{"timestamp", raw.Timestamp != nil},
	}
	for _, r := range required {
		if !r.present {
			return &FieldError{Field: r.field, Err: ErrMissingField}
		}
	}

	finite := []struct {
		field string
		value float64
	}{
		{"temperatura", *raw.Temperature},
		{"temp_min", *raw.TempMin},
		{"temp_max", *raw.TempMax},
		{"viento_velocidad", *raw.WindSpeed},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &FieldError{Field: f.field, Err: ErrMalformedField}
		}
	}

	if *raw.WindSpeed < 0 {
		return &FieldError{Field: "viento_velocidad", Err: ErrMalformedField}
	}
	if *raw.Visibility < 0 {
		return &FieldError{Field: "visibilidad", Err: ErrMalformedField}
	}
	return nil
}
