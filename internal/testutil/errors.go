package testutil

import "errors"

// ErrSimulated is returned by fake sinks and stores to exercise failure paths.
var ErrSimulated = errors.New("simulated error for testing")
