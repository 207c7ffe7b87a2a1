package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
	"github.com/couchcryptid/weather-backup-etl/internal/observability"
)

// Transformer applies the domain cleaning and classification functions to
// whole batches. Rejected records are logged and counted, never fatal.
type Transformer struct {
	thresholds domain.Thresholds
	metrics    *observability.Metrics
}

// NewTransformer creates a Transformer using the given classification thresholds.
func NewTransformer(thresholds domain.Thresholds, metrics *observability.Metrics) *Transformer {
	return &Transformer{thresholds: thresholds, metrics: metrics}
}

// CleanEntries returns the cleaned entries in input order and the number dropped.
func (t *Transformer) CleanEntries(rows []domain.RawEntry, logger *slog.Logger) ([]domain.CleanedEntry, int) {
	out := make([]domain.CleanedEntry, 0, len(rows))
	dropped := 0
	for i, raw := range rows {
		cleaned, err := domain.CleanEntry(raw)
		if err != nil {
			dropped++
			t.metrics.RecordsDropped.WithLabelValues("entries", domain.DropReason(err)).Inc()
			logger.Warn("entry dropped",
				"index", i,
				"ciudad", preview(raw.City),
				"nombre", preview(raw.Name),
				"error", err,
			)
			continue
		}
		out = append(out, cleaned)
	}
	logger.Info("entries cleaned", "count", len(out), "dropped", dropped)
	return out, dropped
}

// TransformWeather returns the classified observations in input order and
// the number dropped.
func (t *Transformer) TransformWeather(rows []domain.RawWeatherObservation, logger *slog.Logger) ([]domain.CleanedWeatherObservation, int) {
	out := make([]domain.CleanedWeatherObservation, 0, len(rows))
	dropped := 0
	for i, raw := range rows {
		cleaned, err := t.thresholds.TransformWeather(raw)
		if err != nil {
			dropped++
			t.metrics.RecordsDropped.WithLabelValues("weather", domain.DropReason(err)).Inc()
			logger.Warn("weather observation dropped",
				"index", i,
				"ciudad", preview(raw.City),
				"timestamp", preview(raw.Timestamp),
				"error", err,
			)
			continue
		}
		out = append(out, cleaned)
	}
	logger.Info("weather observations transformed", "count", len(out), "dropped", dropped)
	return out, dropped
}

// preview renders an optional field for logs, capped so oversized values
// don't flood the log line.
func preview(p *string) string {
	if p == nil {
		return "<null>"
	}
	r := []rune(*p)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return string(r)
}
