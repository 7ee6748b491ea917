package graph

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSlowThreshold is used when an operation has no transaction timeout
const DefaultSlowThreshold = 5 * time.Second

// TimeoutMonitor logs store calls that fail or approach their time budget
type TimeoutMonitor struct {
	logger       logrus.FieldLogger
	warningRatio float64 // Warn when execution reaches this share of the timeout
}

// NewTimeoutMonitor creates a monitor that warns at 80% of the budget
func NewTimeoutMonitor(logger logrus.FieldLogger) *TimeoutMonitor {
	return &TimeoutMonitor{
		logger:       logger.WithField("component", "timeout_monitor"),
		warningRatio: 0.8,
	}
}

// Observe runs fn and logs according to how long it took.
// budget is the transaction timeout of the call; DefaultSlowThreshold applies when it is unset.
func (tm *TimeoutMonitor) Observe(operation string, budget time.Duration, statements int, fn func() error) error {
	if budget <= 0 {
		budget = DefaultSlowThreshold
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	fields := logrus.Fields{
		"operation":        operation,
		"statements":       statements,
		"duration_seconds": duration.Seconds(),
		"budget_seconds":   budget.Seconds(),
	}

	switch {
	case err != nil && duration >= budget:
		tm.logger.WithFields(fields).WithError(err).Error("store call timed out")
	case err != nil:
		tm.logger.WithFields(fields).WithError(err).Warn("store call failed")
	case duration >= time.Duration(float64(budget)*tm.warningRatio):
		fields["percent_used"] = duration.Seconds() / budget.Seconds() * 100
		tm.logger.WithFields(fields).Warn("store call approaching its time budget")
	default:
		tm.logger.WithFields(fields).Debug("store call completed")
	}

	return err
}
