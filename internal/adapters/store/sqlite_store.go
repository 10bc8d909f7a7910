package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the MessageStore interface,
// operating on a mail.db produced by the mailbox ingestion tooling.
type SQLiteStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *zap.Logger
}

// NewSQLiteStore opens the database and adds the classification columns
// when they are missing, so older ingestion-only databases keep working.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			msg_id TEXT,
			from_addr TEXT,
			to_addr TEXT,
			cc_addr TEXT,
			bcc_addr TEXT,
			subject TEXT,
			date TEXT,
			ts INTEGER,
			size_bytes INTEGER,
			has_attachments INTEGER,
			body TEXT,
			summary TEXT,
			auto_labels TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.ensureClassificationColumns(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_fingerprint ON emails(fingerprint)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create fingerprint index: %w", err)
	}

	return s, nil
}

// ensureClassificationColumns adds the decision columns to databases
// created before classification existed.
func (s *SQLiteStore) ensureClassificationColumns() error {
	rows, err := s.db.Query(`PRAGMA table_info(emails)`)
	if err != nil {
		return fmt.Errorf("failed to inspect emails table: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read table info: %w", err)
	}

	for name, ddl := range map[string]string{
		"ai_decision": `ALTER TABLE emails ADD COLUMN ai_decision TEXT`,
		"ai_reason":   `ALTER TABLE emails ADD COLUMN ai_reason TEXT`,
		"ai_conf":     `ALTER TABLE emails ADD COLUMN ai_conf REAL`,
		"fingerprint": `ALTER TABLE emails ADD COLUMN fingerprint TEXT`,
	} {
		if existing[name] {
			continue
		}
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", name, err)
		}
		s.logger.Debug("Added column to emails table", zap.String("column", name))
	}
	return nil
}

// writer returns the current transaction, starting one when needed.
// Writes stay pending until Flush commits them.
func (s *SQLiteStore) writer(ctx context.Context) (*sql.Tx, error) {
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
func (s *SQLiteStore) ListUndecided(ctx context.Context, limit int) ([]*core.Message, error) {
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
func (s *SQLiteStore) ListDecided(ctx context.Context) ([]*core.Message, error) {
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

func scanMessage(rows *sql.Rows, withRecord bool) (*core.Message, error) {
	msg := &core.Message{}
	var ts int64
	var attach int
	if withRecord {
		var decision, reason, labels, summary string
		var conf float64
		if err := rows.Scan(&msg.ID, &msg.MsgID, &msg.From, &msg.Subject, &msg.Body,
			&ts, &msg.SizeBytes, &attach, &msg.Fingerprint,
			&decision, &reason, &conf, &labels, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Record = core.ClassificationRecord{
			Decision:   core.Decision(decision),
			Reason:     reason,
			Confidence: conf,
			Labels:     splitLabels(labels),
			Summary:    summary,
		}
	} else {
		if err := rows.Scan(&msg.ID, &msg.MsgID, &msg.From, &msg.Subject, &msg.Body,
			&ts, &msg.SizeBytes, &attach, &msg.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
	}
	if ts > 0 {
		msg.Date = time.Unix(ts, 0).UTC()
	}
	msg.HasAttachments = attach == 1
	return msg, nil
}

// SetFingerprint stores a computed fingerprint for a message.
func (s *SQLiteStore) SetFingerprint(ctx context.Context, id int64, fp string) error {
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
func (s *SQLiteStore) SaveClassification(ctx context.Context, id int64, rec core.ClassificationRecord) error {
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
func (s *SQLiteStore) UpdateDecision(ctx context.Context, id int64, decision core.Decision, reason string) error {
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
func (s *SQLiteStore) PropagateClassification(ctx context.Context, fp string, exceptID int64, rec core.ClassificationRecord) (int64, error) {
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
func (s *SQLiteStore) DecisionCounts(ctx context.Context) (map[core.Decision]int64, error) {
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
func (s *SQLiteStore) Flush(ctx context.Context) error {
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
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			s.logger.Warn("Failed to roll back pending transaction", zap.Error(err))
		}
		s.tx = nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ", ")
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var labels []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}
