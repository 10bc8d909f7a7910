package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the MessageStore interface.
type MySQLStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *zap.Logger
}

// NewMySQLStore opens the database and creates the emails table when it
// does not exist yet.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			msg_id VARCHAR(255),
			from_addr TEXT,
			to_addr TEXT,
			cc_addr TEXT,
			bcc_addr TEXT,
			subject TEXT,
			date VARCHAR(64),
			ts BIGINT,
			size_bytes BIGINT,
			has_attachments TINYINT,
			body MEDIUMTEXT,
			summary TEXT,
			auto_labels TEXT,
			ai_decision VARCHAR(16),
			ai_reason VARCHAR(512),
			ai_conf DOUBLE,
			fingerprint CHAR(64),
			INDEX idx_fingerprint (fingerprint),
			INDEX idx_ts (ts)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

func (s *MySQLStore) writer(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// ListUndecided returns messages lacking a decision, most recent first.
func (s *MySQLStore) ListUndecided(ctx context.Context, limit int) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(msg_id,''), COALESCE(from_addr,''), COALESCE(subject,''),
		       COALESCE(body,''), COALESCE(ts,0), COALESCE(size_bytes,0),
		       COALESCE(has_attachments,0), COALESCE(fingerprint,'')
		FROM emails
		WHERE ai_decision IS NULL OR ai_decision = ''
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query undecided messages: %w", err)
	}
	defer rows.Close()

	var msgs []*core.Message
	for rows.Next() {
		msg, err := scanMessage(rows, false)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read undecided messages: %w", err)
	}
	return msgs, nil
}

// ListDecided returns messages that already carry a decision.
func (s *MySQLStore) ListDecided(ctx context.Context) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(msg_id,''), COALESCE(from_addr,''), COALESCE(subject,''),
		       COALESCE(body,''), COALESCE(ts,0), COALESCE(size_bytes,0),
		       COALESCE(has_attachments,0), COALESCE(fingerprint,''),
		       ai_decision, COALESCE(ai_reason,''), COALESCE(ai_conf,0),
		       COALESCE(auto_labels,''), COALESCE(summary,'')
		FROM emails
		WHERE ai_decision IS NOT NULL AND ai_decision <> ''
		ORDER BY ts DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decided messages: %w", err)
	}
	defer rows.Close()

	var msgs []*core.Message
	for rows.Next() {
		msg, err := scanMessage(rows, true)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decided messages: %w", err)
	}
	return msgs, nil
}

// SetFingerprint stores a computed fingerprint for a message.
func (s *MySQLStore) SetFingerprint(ctx context.Context, id int64, fp string) error {
	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE emails SET fingerprint = ? WHERE id = ?`, fp, id); err != nil {
		return fmt.Errorf("failed to set fingerprint: %w", err)
	}
	return nil
}

// SaveClassification writes the record for a message. Labels and summary
// are merged only when the stored value is still absent.
func (s *MySQLStore) SaveClassification(ctx context.Context, id int64, rec core.ClassificationRecord) error {
	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE emails SET
			ai_decision = ?,
			ai_reason = ?,
			ai_conf = ?,
			auto_labels = COALESCE(NULLIF(auto_labels, ''), ?),
			summary = COALESCE(NULLIF(summary, ''), ?)
		WHERE id = ?
	`, string(rec.Decision), rec.Reason, rec.Confidence, joinLabels(rec.Labels), rec.Summary, id)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return nil
}

// UpdateDecision rewrites only the decision and reason of a message.
func (s *MySQLStore) UpdateDecision(ctx context.Context, id int64, decision core.Decision, reason string) error {
	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE emails SET ai_decision = ?, ai_reason = ? WHERE id = ?
	`, string(decision), reason, id); err != nil {
		return fmt.Errorf("failed to update decision: %w", err)
	}
	return nil
}

// PropagateClassification copies rec into every undecided message sharing
// the fingerprint, filling only fields that are still unset.
func (s *MySQLStore) PropagateClassification(ctx context.Context, fp string, exceptID int64, rec core.ClassificationRecord) (int64, error) {
	tx, err := s.writer(ctx)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE emails SET
			ai_decision = COALESCE(NULLIF(ai_decision, ''), ?),
			ai_reason = COALESCE(NULLIF(ai_reason, ''), ?),
			ai_conf = COALESCE(ai_conf, ?),
			auto_labels = COALESCE(NULLIF(auto_labels, ''), ?),
			summary = COALESCE(NULLIF(summary, ''), ?)
		WHERE fingerprint = ? AND id <> ?
		  AND (ai_decision IS NULL OR ai_decision = '')
	`, string(rec.Decision), rec.Reason, rec.Confidence, joinLabels(rec.Labels), rec.Summary, fp, exceptID)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate classification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during propagation", zap.Error(err))
		return 0, nil
	}
	return n, nil
}

// DecisionCounts returns the number of decided messages per decision value.
func (s *MySQLStore) DecisionCounts(ctx context.Context) (map[core.Decision]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ai_decision, COUNT(*)
		FROM emails
		WHERE ai_decision IS NOT NULL AND ai_decision <> ''
		GROUP BY ai_decision
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Decision]int64)
	for rows.Next() {
		var decision string
		var n int64
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		counts[core.Decision(decision)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decision counts: %w", err)
	}
	return counts, nil
}

// Flush commits the pending transaction, if any.
func (s *MySQLStore) Flush(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close rolls back any pending writes and closes the database.
func (s *MySQLStore) Close() error {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			s.logger.Warn("Failed to roll back pending transaction", zap.Error(err))
		}
		s.tx = nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close MySQL database: %w", err)
	}
	return nil
}
