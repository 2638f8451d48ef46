package utils

import (
	"fmt"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/apptracker/dryrun"
	"github.com/starkescrow/starkescrow/internal/apptracker/sentry"
)

const sentryFlushSeconds = 5

// NewAppTracker reports to Sentry when a DSN is configured, and only logs otherwise.
func NewAppTracker(dsn, environment string) (apptracker.AppTracker, error) {
	if dsn == "" {
		return &dryrun.DryRunTracker{}, nil
	}
	appTracker, err := sentry.NewSentryTracker(dsn, environment, sentryFlushSeconds)
	if err != nil {
		return nil, fmt.Errorf("initializing app tracker: %w", err)
	}
	return appTracker, nil
}
