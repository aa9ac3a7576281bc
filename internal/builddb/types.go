package builddb

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("build database closed")

// Config configures the build database.
//
// Path is the sqlite database file. BusyTimeout guards against writer
// contention when several triggering events run fan-out concurrently;
// 0 means driver default.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// SourceStamp pins a buildset to a source snapshot.
//
// Revision may be empty, which means "whatever the branch head is when
// the build runs" (host default-revision semantics).
type SourceStamp struct {
	Branch   string
	Revision string
}

// EnqueueResult identifies the rows created by one enqueue call.
type EnqueueResult struct {
	BuildSetID      int64
	SourceStampID   int64
	BuildRequestIDs []int64
}

// BuildSetInfo is a read-side summary row for diagnostics and the CLI.
type BuildSetInfo struct {
	ID          int64
	Branch      string
	Revision    string
	Reason      string
	SubmittedAt time.Time
	Requests    int
}

// PropertyRow is one persisted buildset property.
type PropertyRow struct {
	Name      string
	ValueJSON string
	Source    string
}
