// Package quality runs statistical checks over canonical series and emits
// advisory flags. Records are never mutated and flags never block a merge.
package quality

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

// Thresholds, per check.
const (
	outlierZ       = 3.0
	outlierZHigh   = 4.0
	outlierMinN    = 3
	variationLimit = 0.10
	variationHigh  = 0.25
	constantMinN   = 5
	constantShare  = 0.5
)

// Config toggles individual checks and supplies caller-declared series
// semantics. The engine does not guess which series disallow negatives.
type Config struct {
	Outliers       bool
	Variation      bool
	Negatives      bool
	FutureDates    bool
	ConstantSeries bool

	// NonNegative lists series whose semantics disallow values below
	// zero (index levels, price levels).
	NonNegative map[string]bool

	// Now is the processing date used by the future-date check.
	Now time.Time
}

// DefaultConfig enables every check.
func DefaultConfig(now time.Time) Config {
	return Config{
		Outliers:       true,
		Variation:      true,
		Negatives:      true,
		FutureDates:    true,
		ConstantSeries: true,
		Now:            now,
	}
}

// Engine applies the configured checks.
type Engine struct {
	cfg Config
}

// New builds an engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run groups records by series (input already date-sorted) and checks
// each series independently.
func (e *Engine) Run(records []model.CanonicalRecord) []model.QualityFlag {
	var flags []model.QualityFlag

	start := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) || records[i].SeriesID != records[start].SeriesID {
			flags = append(flags, e.CheckSeries(records[start].SeriesID, records[start:i])...)
			start = i
		}
	}

	if len(flags) > 0 {
		zap.L().Info("quality checks flagged records",
			zap.Int("records", len(records)),
			zap.Int("flags", len(flags)))
	}
	return flags
}

// CheckSeries runs all enabled checks over one date-sorted series.
func (e *Engine) CheckSeries(seriesID string, records []model.CanonicalRecord) []model.QualityFlag {
	var flags []model.QualityFlag

	points := make([]point, 0, len(records))
	for i, r := range records {
		if r.Value != nil {
			points = append(points, point{recordIdx: i, value: *r.Value})
		}
	}

	if e.cfg.Outliers {
		flags = append(flags, e.checkOutliers(seriesID, records, points)...)
	}
	if e.cfg.Variation {
		flags = append(flags, e.checkVariation(seriesID, records, points)...)
	}
	if e.cfg.Negatives && e.cfg.NonNegative[seriesID] {
		flags = append(flags, e.checkNegatives(seriesID, records, points)...)
	}
	if e.cfg.FutureDates {
		flags = append(flags, e.checkFutureDates(seriesID, records)...)
	}
	if e.cfg.ConstantSeries {
		flags = append(flags, e.checkConstant(seriesID, records, points)...)
	}

	return flags
}

// checkOutliers flags values more than 3 sigma from the series. Skipped
// (not an error) below 3 non-null values.
func (e *Engine) checkOutliers(seriesID string, records []model.CanonicalRecord, points []point) []model.QualityFlag {
	if len(points) < outlierMinN {
		return nil
	}

	mean, _ := meanStd(values(points))
	zs := zscores(points)

	var flags []model.QualityFlag
	for i, z := range zs {
		if z <= outlierZ {
			continue
		}
		severity := model.SeverityMedium
		if z > outlierZHigh {
			severity = model.SeverityHigh
		}
		r := records[points[i].recordIdx]
		flags = append(flags, model.QualityFlag{
			SeriesID:      seriesID,
			RefDate:       r.RefDate,
			Kind:          model.FlagOutlier,
			Severity:      severity,
			ObservedValue: r.Value,
			Detail:        fmt.Sprintf("z-score %.2f, series mean %.2f", z, mean),
		})
	}
	return flags
}

// checkVariation flags month-over-month moves above 10% between
// consecutive non-null observations.
func (e *Engine) checkVariation(seriesID string, records []model.CanonicalRecord, points []point) []model.QualityFlag {
	var flags []model.QualityFlag
	for i := 1; i < len(points); i++ {
		prev := points[i-1].value
		if prev == 0 {
			continue
		}
		variation := (points[i].value - prev) / prev
		if math.Abs(variation) <= variationLimit {
			continue
		}
		severity := model.SeverityMedium
		if math.Abs(variation) > variationHigh {
			severity = model.SeverityHigh
		}
		r := records[points[i].recordIdx]
		flags = append(flags, model.QualityFlag{
			SeriesID:      seriesID,
			RefDate:       r.RefDate,
			Kind:          model.FlagHighVariation,
			Severity:      severity,
			ObservedValue: r.Value,
			Detail:        fmt.Sprintf("variation %.2f%% over previous period", variation*100),
		})
	}
	return flags
}

func (e *Engine) checkNegatives(seriesID string, records []model.CanonicalRecord, points []point) []model.QualityFlag {
	var flags []model.QualityFlag
	for _, p := range points {
		if p.value >= 0 {
			continue
		}
		r := records[p.recordIdx]
		flags = append(flags, model.QualityFlag{
			SeriesID:      seriesID,
			RefDate:       r.RefDate,
			Kind:          model.FlagNegativeValue,
			Severity:      model.SeverityHigh,
			ObservedValue: r.Value,
			Detail:        fmt.Sprintf("negative value %v in a non-negative series", p.value),
		})
	}
	return flags
}

// checkFutureDates flags records dated after the processing date. These
// indicate an upstream bug (a bad fetch window), not source quality, and
// are always HIGH regardless of value.
func (e *Engine) checkFutureDates(seriesID string, records []model.CanonicalRecord) []model.QualityFlag {
	var flags []model.QualityFlag
	for _, r := range records {
		if !r.RefDate.After(e.cfg.Now) {
			continue
		}
		flags = append(flags, model.QualityFlag{
			SeriesID:      seriesID,
			RefDate:       r.RefDate,
			Kind:          model.FlagFutureDate,
			Severity:      model.SeverityHigh,
			ObservedValue: r.Value,
			Detail:        fmt.Sprintf("reference date %s is after processing date %s", r.RefDate.Format(model.DateLayout), e.cfg.Now.Format(model.DateLayout)),
		})
	}
	return flags
}

// checkConstant flags series stuck on one value: usually a placeholder or
// a frozen upstream feed rather than genuine stability.
func (e *Engine) checkConstant(seriesID string, records []model.CanonicalRecord, points []point) []model.QualityFlag {
	if len(points) < constantMinN {
		return nil
	}
	mode, share := modeShare(points)
	if share <= constantShare {
		return nil
	}
	last := records[points[len(points)-1].recordIdx]
	return []model.QualityFlag{{
		SeriesID:      seriesID,
		RefDate:       last.RefDate,
		Kind:          model.FlagConstantSeries,
		Severity:      model.SeverityMedium,
		ObservedValue: &mode,
		Detail:        fmt.Sprintf("%.0f%% of %d observations equal %v", share*100, len(points), mode),
	}}
}

func values(points []point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.value
	}
	return out
}
