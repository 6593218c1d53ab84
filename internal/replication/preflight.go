package replication

import (
	"context"
	"fmt"

	"github.com/jackc/pglogrepl"
)

// preflight runs the three checks spec'd before replication may start:
// logical decoding is enabled, the slot exists (creating it if absent),
// and the publication exists. Any negative is a *PreflightError.
func (s *Session) preflight(ctx context.Context) error {
	walLevel, err := s.queryScalar(ctx, "SHOW wal_level")
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("checking wal_level: %w", err)}
	}
	if walLevel != "logical" {
		return &PreflightError{Reason: fmt.Sprintf("wal_level is %q, need logical", walLevel)}
	}

	slotExists, err := s.rowExists(ctx, fmt.Sprintf(
		"SELECT 1 FROM pg_replication_slots WHERE slot_name = '%s'", s.cfg.SlotName))
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("checking replication slot: %w", err)}
	}
	if !slotExists {
		s.logger.Info("replication slot not found, creating", "slot", s.cfg.SlotName)
		if _, err := pglogrepl.CreateReplicationSlot(
			ctx, s.conn, s.cfg.SlotName, "pgoutput", pglogrepl.CreateReplicationSlotOptions{},
		); err != nil {
			return &PreflightError{Reason: fmt.Sprintf("creating replication slot %q: %v", s.cfg.SlotName, err)}
		}
	}

	pubExists, err := s.rowExists(ctx, fmt.Sprintf(
		"SELECT 1 FROM pg_publication WHERE pubname = '%s'", s.cfg.PubName))
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("checking publication: %w", err)}
	}
	if !pubExists {
		return &PreflightError{Reason: fmt.Sprintf("publication %q does not exist", s.cfg.PubName)}
	}

	return nil
}

// queryScalar runs sql and returns the first column of the first row as a
// string. The slot/publication names that preflight interpolates into its
// queries are used exactly as configured: config parsing does not validate
// them and they are not escaped here.
func (s *Session) queryScalar(ctx context.Context, sql string) (string, error) {
	results, err := s.conn.Exec(ctx, sql).ReadAll()
	if err != nil {
		return "", err
	}
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return "", fmt.Errorf("query %q returned no rows", sql)
	}
	return string(results[0].Rows[0][0]), nil
}

func (s *Session) rowExists(ctx context.Context, sql string) (bool, error) {
	results, err := s.conn.Exec(ctx, sql).ReadAll()
	if err != nil {
		return false, err
	}
	return len(results) > 0 && len(results[0].Rows) > 0, nil
}
