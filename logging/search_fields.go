package logging

import (
	"time"

	"go.uber.org/zap"
)

// SearchFields describes the outcome of one placement search.
//
// Example:
//
//	logger.Debug("search done", logging.SearchFields(120, 50, 48213, 594, elapsed)...)
func SearchFields(x, y, size, evaluated int, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int("best_x", x),
		zap.Int("best_y", y),
		zap.Int("best_size", size),
		zap.Int("evaluated", evaluated),
		zap.Duration("elapsed", elapsed),
	}
}

// TrialFields describes a finished trial.
func TrialFields(id, image string, correct bool, found, truth [2]int) []zap.Field {
	return []zap.Field{
		zap.String("trial_id", id),
		zap.String("image", image),
		zap.Bool("correct", correct),
		zap.Ints("found", found[:]),
		zap.Ints("truth", truth[:]),
	}
}

// ProgressFields reports the running success ratio.
func ProgressFields(solved, total int) []zap.Field {
	pct := 0.0
	if total > 0 {
		pct = float64(solved) * 100 / float64(total)
	}
	return []zap.Field{
		zap.Int("solved", solved),
		zap.Int("total", total),
		zap.Float64("success_pct", pct),
	}
}
