// Package replication implements the logical-replication consumer: a
// state machine that opens a replication-mode connection, validates
// prerequisites, starts streaming, and runs the receive/keepalive/feedback
// loop described in the PostgreSQL logical-replication protocol, dispatching
// every decoded pgoutput message to a sink.
package replication

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/wal2http/wal2http/internal/protocol"
	"github.com/wal2http/wal2http/internal/sink"
)

// Config configures one replication session.
type Config struct {
	DatabaseURL string
	SlotName    string
	PubName     string

	// FeedbackInterval is the cadence for unsolicited standby status
	// updates; the server may additionally request one via keepalive's
	// reply_requested flag, which is honored immediately regardless of
	// this interval.
	FeedbackInterval time.Duration
}

// Session owns the replication connection exclusively (§5: single-threaded
// cooperative scheduling — one Session, one goroutine, one connection).
type Session struct {
	cfg    Config
	sink   sink.Sink
	logger *slog.Logger

	conn *pgconn.PgConn
	state *State

	correlationID string

	inStream  bool
	streamBuf map[uint32][]bufferedEvent

	// Current transaction context, set on Begin and used to stamp every
	// row event inside it (pgoutput carries no LSN/timestamp on
	// individual Insert/Update/Delete/Truncate messages).
	txnLSN       protocol.LSN
	txnTimestamp time.Time
	txnXid       uint32

	lastFeedbackAt time.Time
}

const standbyPollInterval = 1 * time.Second

// New builds a Session. The sink should already be wrapped with
// sink.WithRetry by the caller if retry is desired.
func New(cfg Config, s sink.Sink, logger *slog.Logger) *Session {
	if cfg.SlotName == "" {
		cfg.SlotName = "sub"
	}
	if cfg.PubName == "" {
		cfg.PubName = "pub"
	}
	if cfg.FeedbackInterval <= 0 {
		cfg.FeedbackInterval = 1 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:           cfg,
		sink:          s,
		logger:        logger,
		state:         NewState(),
		correlationID: uuid.Must(uuid.NewV7()).String(),
		streamBuf:     make(map[uint32][]bufferedEvent),
	}
}

// Run drives the session through its full lifecycle and blocks until ctx
// is cancelled or a fatal error occurs. Once replication has started, it
// attempts one final feedback frame before returning, per §5's cancellation
// contract; a failure to connect, pass preflight, identify the system or
// start replication returns without one.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("connecting for replication", "slot", s.cfg.SlotName, "publication", s.cfg.PubName)

	conn, err := pgconn.Connect(ctx, replicationURL(s.cfg.DatabaseURL))
	if err != nil {
		return &ConnectionError{Err: err}
	}
	s.conn = conn
	defer s.conn.Close(context.Background())

	if err := s.preflight(ctx); err != nil {
		return err
	}

	sysident, err := pglogrepl.IdentifySystem(ctx, s.conn)
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("identify system: %w", err)}
	}
	s.logger.Info("system identified", "system_id", sysident.SystemID, "timeline", sysident.Timeline, "db_name", sysident.DBName)

	if err := s.startReplication(ctx); err != nil {
		return err
	}

	loopErr := s.loop(ctx)

	if feedbackErr := s.sendFeedback(context.Background(), false); feedbackErr != nil {
		s.logger.Warn("final feedback failed", "error", feedbackErr)
	}

	return loopErr
}

func (s *Session) startReplication(ctx context.Context) error {
	pluginArgs := []string{
		"proto_version '2'",
		fmt.Sprintf("publication_names '%s'", s.cfg.PubName),
		"streaming 'on'",
	}

	err := pglogrepl.StartReplication(ctx, s.conn, s.cfg.SlotName, pglogrepl.LSN(0),
		pglogrepl.StartReplicationOptions{PluginArgs: pluginArgs})
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("start replication: %w", err)}
	}
	s.logger.Info("replication started", "slot", s.cfg.SlotName)
	return nil
}

// loop is the streaming receive/keepalive/feedback cycle, §4.3.
func (s *Session) loop(ctx context.Context) error {
	s.lastFeedbackAt = time.Now()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("replication stopped", "reason", ctx.Err())
			return nil
		default:
		}

		if time.Since(s.lastFeedbackAt) >= s.cfg.FeedbackInterval {
			if err := s.sendFeedback(ctx, false); err != nil {
				return &ConnectionError{Err: err}
			}
		}

		recvCtx, cancel := context.WithTimeout(ctx, standbyPollInterval)
		rawMsg, err := s.conn.ReceiveMessage(recvCtx)
		cancel()

		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return &ConnectionError{Err: fmt.Errorf("receive message: %w", err)}
		}

		if errMsg, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return &ConnectionError{Err: fmt.Errorf("server error: %s", errMsg.Message)}
		}

		copyData, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			s.logger.Debug("unexpected message type", "type", fmt.Sprintf("%T", rawMsg))
			continue
		}
		if len(copyData.Data) == 0 {
			continue
		}

		if err := s.handleCopyData(ctx, copyData.Data); err != nil {
			return err
		}
	}
}

func (s *Session) handleCopyData(ctx context.Context, data []byte) error {
	switch data[0] {
	case pglogrepl.PrimaryKeepaliveMessageByteID:
		return s.handleKeepalive(ctx, data[1:])
	case pglogrepl.XLogDataByteID:
		return s.handleXLogData(ctx, data[1:])
	default:
		s.logger.Debug("unknown CopyData leading byte", "byte", data[0])
		return nil
	}
}

func (s *Session) handleKeepalive(ctx context.Context, data []byte) error {
	pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(data)
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("parsing keepalive: %w", err)}
	}
	s.state.AdvanceReceived(protocol.LSN(pkm.ServerWALEnd))
	if pkm.ReplyRequested {
		return s.sendFeedback(ctx, false)
	}
	return nil
}

func (s *Session) handleXLogData(ctx context.Context, data []byte) error {
	xld, err := pglogrepl.ParseXLogData(data)
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("parsing XLogData envelope: %w", err)}
	}
	s.state.AdvanceReceived(protocol.LSN(xld.ServerWALEnd))

	msg, err := protocol.Decode(xld.WALData, s.inStream)
	if err != nil {
		return err
	}
	if msg == nil {
		s.logger.Debug("skipping unknown pgoutput message kind", "kind", xld.WALData[0])
		return nil
	}

	if err := s.dispatch(ctx, msg); err != nil {
		return err
	}

	return s.sendFeedback(ctx, false)
}

func (s *Session) sendFeedback(ctx context.Context, replyRequested bool) error {
	err := pglogrepl.SendStandbyStatusUpdate(ctx, s.conn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: pglogrepl.LSN(s.state.ReceivedLSN),
		WALFlushPosition: pglogrepl.LSN(s.state.FlushedLSN),
		WALApplyPosition: pglogrepl.LSN(s.state.AppliedLSN),
		ClientTime:       time.Now(),
		ReplyRequested:   replyRequested,
	})
	if err != nil {
		return err
	}
	s.lastFeedbackAt = time.Now()
	return nil
}

// replicationURL appends replication=database to dbURL so the connection
// accepts both ordinary SQL (used by preflight) and replication commands.
func replicationURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		if strings.Contains(dbURL, "?") {
			return dbURL + "&replication=database"
		}
		return dbURL + "?replication=database"
	}
	q := u.Query()
	q.Set("replication", "database")
	u.RawQuery = q.Encode()
	return u.String()
}
