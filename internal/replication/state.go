package replication

import (
	"time"

	"github.com/wal2http/wal2http/internal/protocol"
)

// State tracks the session's view of upstream progress. Invariants (held
// after every mutation): FlushedLSN <= ReceivedLSN, AppliedLSN <= ReceivedLSN,
// and all three are monotonically non-decreasing.
type State struct {
	ReceivedLSN    protocol.LSN
	FlushedLSN     protocol.LSN
	AppliedLSN     protocol.LSN
	LastFeedbackAt time.Time

	Relations *RelationCache

	// pendingBeginLSN is the FinalLSN captured from the most recent Begin,
	// cleared when that transaction commits. AppliedLSN itself advances to
	// the end_lsn passed to CommitTransaction, not to this value.
	pendingBeginLSN protocol.LSN
}

// NewState returns a fresh session state with an empty relation cache.
func NewState() *State {
	return &State{Relations: NewRelationCache()}
}

// AdvanceReceived raises ReceivedLSN to at least lsn. Never moves backward.
func (s *State) AdvanceReceived(lsn protocol.LSN) {
	s.ReceivedLSN = protocol.Max(s.ReceivedLSN, lsn)
}

// BeginTransaction records the LSN a Begin message announced as its
// eventual commit position.
func (s *State) BeginTransaction(finalLSN protocol.LSN) {
	s.pendingBeginLSN = finalLSN
}

// CommitTransaction advances AppliedLSN (and FlushedLSN, which always
// tracks AppliedLSN since no local WAL is buffered) to endLSN. Called only
// after the sink has reported successful delivery of the Commit event.
func (s *State) CommitTransaction(endLSN protocol.LSN) {
	if endLSN > s.AppliedLSN {
		s.AppliedLSN = endLSN
	}
	s.FlushedLSN = s.AppliedLSN
	s.pendingBeginLSN = 0
}
