package fanout

import "fmt"

// ConfigError reports an invalid controller configuration. It is returned
// synchronously from New and is fatal; there is no recovery path.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fanout: config %s: %s", e.Field, e.Reason)
}

// FetchError reports a failed locale list download. The fan-out for the
// triggering event aborts; no retry is attempted here.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fanout: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
