package detectors

// Severity is a coarse triage band for an anomaly score.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severity band lower bounds.
const (
	MediumSeverityScore = 0.6
	HighSeverityScore   = 0.8
)

// SeverityFor maps a score to its band: below 0.6 is low, [0.6, 0.8) is
// medium, 0.8 and above is high.
func SeverityFor(score float64) Severity {
	switch {
	case score >= HighSeverityScore:
		return SeverityHigh
	case score >= MediumSeverityScore:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Result represents an anomaly detection result.
type Result struct {
	// Index is the caller-supplied or positional index of the sample.
	Index int `json:"index"`
	// AnomalyScore is in (0, 1]; values near 1 were isolated quickly.
	AnomalyScore float64 `json:"anomaly_score"`
	// IsAnomaly indicates if the score reached the threshold.
	IsAnomaly bool     `json:"is_anomaly"`
	Severity  Severity `json:"severity"`
	// AveragePathLength is the mean isolation depth across all trees.
	AveragePathLength float64 `json:"average_path_length"`
}
