package apptracker

// AppTracker reports unexpected failures to an external error tracker.
type AppTracker interface {
	CaptureMessage(message string)
	CaptureException(exception error)
	// CaptureExceptionWithTags attaches searchable tags (action, transaction hash, ...) to the reported event.
	CaptureExceptionWithTags(exception error, tags map[string]string)
}
