package ensemble

import "fmt"

// MinDataPoints is the smallest record count the ensemble accepts.
const MinDataPoints = 15

// neighborMargin is how far below the row count n_neighbors must stay.
const neighborMargin = 5

// ValidationError reports a request the pipeline refuses to run.
type ValidationError struct {
	// Param names the offending parameter.
	Param string
	// Message is the human-readable explanation returned to the caller.
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a request against the row count before any detector runs.
// Checks run in a fixed order and the first failure is returned.
func Validate(usable int, cfg Config) error {
	switch {
	case usable < MinDataPoints:
		return &ValidationError{
			Param:   "data points",
			Message: fmt.Sprintf("Must have a minimum of at least fifteen data points for anomaly detection.  You sent %d.", usable),
		}
	case !(cfg.MaxFractionAnomalies > 0 && cfg.MaxFractionAnomalies <= 1):
		return &ValidationError{
			Param:   "max_fraction_anomalies",
			Message: "Must have a valid max fraction of anomalies (max_fraction_anomalies), 0 < x <= 1.0.",
		}
	case !(cfg.SensitivityScore > 0 && cfg.SensitivityScore <= 100):
		return &ValidationError{
			Param:   "sensitivity_score",
			Message: "Must have a valid sensitivity score (sensitivity_score), 0 < x <= 100.",
		}
	case cfg.NNeighbors < 1:
		return &ValidationError{
			Param:   "n_neighbors",
			Message: fmt.Sprintf("n_neighbors must be a positive integer.  You sent %d.", cfg.NNeighbors),
		}
	case cfg.NNeighbors > usable-neighborMargin:
		return &ValidationError{
			Param: "n_neighbors",
			Message: fmt.Sprintf("You sent in %d data points, so n_neighbors should be no more than %d--that is, "+
				"n_neighbors should be at least 5 less than the number of observations.", usable, usable-neighborMargin),
		}
	}
	return nil
}
