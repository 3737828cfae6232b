package model

import (
	"strconv"
	"time"
)

// FlagKind identifies the anomaly a quality check detected.
type FlagKind string

const (
	FlagOutlier        FlagKind = "OUTLIER"
	FlagHighVariation  FlagKind = "HIGH_VARIATION"
	FlagNegativeValue  FlagKind = "NEGATIVE_VALUE"
	FlagFutureDate     FlagKind = "FUTURE_DATE"
	FlagConstantSeries FlagKind = "CONSTANT_SERIES"
)

// Severity grades a quality flag.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// QualityFlag is an advisory annotation on a record. Flags never remove or
// alter canonical records.
type QualityFlag struct {
	SeriesID      string    `json:"series_id"`
	RefDate       time.Time `json:"reference_date"`
	Kind          FlagKind  `json:"flag_kind"`
	Severity      Severity  `json:"severity"`
	ObservedValue *float64  `json:"observed_value"`
	Detail        string    `json:"detail"`
}

// FlagHeader is the export header for quality flag rows.
func FlagHeader() []string {
	return []string{"series_id", "reference_date", "flag_kind", "severity", "observed_value", "detail"}
}

// Row serializes the flag to one wire row.
func (f QualityFlag) Row() []string {
	observed := ""
	if f.ObservedValue != nil {
		observed = strconv.FormatFloat(*f.ObservedValue, 'f', -1, 64)
	}
	return []string{
		f.SeriesID,
		f.RefDate.Format(DateLayout),
		string(f.Kind),
		string(f.Severity),
		observed,
		f.Detail,
	}
}

// FlagsToRows serializes flags to wire rows, header first.
func FlagsToRows(flags []QualityFlag) [][]string {
	rows := make([][]string, 0, len(flags)+1)
	rows = append(rows, FlagHeader())
	for _, f := range flags {
		rows = append(rows, f.Row())
	}
	return rows
}
