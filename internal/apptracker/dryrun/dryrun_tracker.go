package dryrun

import (
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
)

// DryRunTracker logs events locally instead of shipping them. Used when no tracker DSN is configured.
type DryRunTracker struct{}

var _ apptracker.AppTracker = (*DryRunTracker)(nil)

func (d *DryRunTracker) CaptureMessage(message string) {
	log.Warnf("apptracker: %s", message)
}

func (d *DryRunTracker) CaptureException(exception error) {
	log.Errorf("apptracker: %v", exception)
}

func (d *DryRunTracker) CaptureExceptionWithTags(exception error, tags map[string]string) {
	fields := log.F{}
	for k, v := range tags {
		fields[k] = v
	}
	log.WithFields(fields).Errorf("apptracker: %v", exception)
}
