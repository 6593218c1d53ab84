// Package event converts parsed pgoutput messages into the canonical JSON
// shape handed to sinks.
package event

import (
	"time"
)

// Event is the canonical JSON representation of one parsed replication
// message, as described in spec.md §4.4.
type Event struct {
	Kind            string         `json:"kind"`
	Xid             *uint32        `json:"xid"`
	LSN             string         `json:"lsn"`
	Timestamp       string         `json:"timestamp"`
	Schema          string         `json:"schema,omitempty"`
	Table           string         `json:"table,omitempty"`
	Old             map[string]any `json:"old"`
	New             map[string]any `json:"new"`
	TruncateFlags   *int           `json:"truncate_flags"`
	CorrelationID   string         `json:"correlation_id"`
}

// pgEpoch is PostgreSQL's reference epoch for replication timestamps
// (2000-01-01 00:00:00 UTC), used to convert the microsecond offsets
// carried on Begin/Commit/StreamCommit messages.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// pgTimeToUTC converts a PostgreSQL replication-protocol timestamp
// (microseconds since pgEpoch) to a UTC time.Time.
func pgTimeToUTC(micros int64) time.Time {
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond)
}

// TimeFromPG is the exported form of pgTimeToUTC, used by callers (the
// replication session) that need to stamp an Event's Context before
// calling Format.
func TimeFromPG(micros int64) time.Time {
	return pgTimeToUTC(micros)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// unchangedTOASTSentinel marks a TOAST column whose value did not change
// and was therefore not resent by the server.
var unchangedTOASTSentinel = map[string]any{"__unchanged__": true}
