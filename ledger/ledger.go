// Package ledger is the append-only record of every counsel decision: the
// inputs that produced it, the verdict reached, and — once supplied — its
// real-world outcome. It also detects recurring behavioral patterns over
// that history and turns them into bounded calibration adjustments.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/counselengine/counsel/domain"
)

// ErrEventNotFound is returned by RecordOutcome when the referenced
// decision event does not exist in the ledger.
var ErrEventNotFound = errors.New("ledger: decision event not found")

// ErrOutcomeExists is returned when recording a second outcome against
// an event that already has one.
var ErrOutcomeExists = errors.New("ledger: outcome already recorded for this event")

// Store is the append-only ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at <baseDir>/ledger.db.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: creating data directory: %w", err)
	}
	path := filepath.Join(baseDir, "ledger.db")

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: pinging %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: creating schema: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// AppendEvent writes a new decision event. If ID is empty, one is
// generated. Events are never updated or deleted once written — the
// schema's triggers enforce this at the database level.
func (s *Store) AppendEvent(ctx context.Context, ev domain.DecisionEvent) (domain.DecisionEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	ministersJSON, err := json.Marshal(ev.MinistersCalled)
	if err != nil {
		return ev, err
	}
	illusionsJSON, err := json.Marshal(ev.IllusionsDetected)
	if err != nil {
		return ev, err
	}

	var followed interface{}
	if ev.ActionFollowedCounsel != nil {
		followed = boolToInt(*ev.ActionFollowedCounsel)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, ts, mode, domain, stakes, emotional_load, urgency,
			ministers_called, verdict, posture, illusions_detected, contradictions_found,
			sovereign_action, action_followed_counsel, override_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Timestamp.Format(time.RFC3339), string(ev.Mode), string(ev.Domain),
		ev.Stakes, ev.EmotionalLoad, ev.Urgency, string(ministersJSON),
		ev.VerdictSummary, ev.Posture, string(illusionsJSON), ev.ContradictionsFound,
		nullIfEmpty(ev.SovereignAction), followed, nullIfEmpty(ev.OverrideReason))
	if err != nil {
		return ev, fmt.Errorf("ledger: appending event: %w", err)
	}
	return ev, nil
}

// RecordOutcome appends the outcome for a previously recorded event. At
// most one outcome exists per event; a second attempt fails with
// ErrOutcomeExists rather than replacing the first.
func (s *Store) RecordOutcome(ctx context.Context, out domain.Outcome) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", out.EventID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("ledger: recording outcome for %s: %w", out.EventID, ErrEventNotFound)
	}
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM outcomes WHERE event_id = ?", out.EventID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("ledger: recording outcome for %s: %w", out.EventID, ErrOutcomeExists)
	}
	if err != sql.ErrNoRows {
		return err
	}

	if out.ResolvedAt.IsZero() {
		out.ResolvedAt = time.Now().UTC()
	}
	lessonsJSON, err := json.Marshal(out.Lessons)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (event_id, resolved_at, result, damage, benefit, lessons)
		VALUES (?, ?, ?, ?, ?, ?)
	`, out.EventID, out.ResolvedAt.Format(time.RFC3339), string(out.Result),
		out.Damage, out.Benefit, string(lessonsJSON))
	return err
}

// RecordOverride appends an override row: the sovereign acted against
// counsel. Not an error — a policy event worth remembering.
func (s *Store) RecordOverride(ctx context.Context, eventID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO overrides (event_id, reason, created_at) VALUES (?, ?, ?)",
		eventID, reason, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListEvents returns every event, oldest first, for pattern detection
// and audit review. Event rows are immutable, so an override recorded
// after the fact lives in the overrides table; it is overlaid here so
// readers see action_followed_counsel=false without the row ever having
// been rewritten.
func (s *Store) ListEvents(ctx context.Context) ([]domain.DecisionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.ts, e.mode, e.domain, e.stakes, e.emotional_load, e.urgency,
			e.ministers_called, e.verdict, e.posture, e.illusions_detected, e.contradictions_found,
			e.sovereign_action,
			CASE WHEN o.id IS NOT NULL THEN 0 ELSE e.action_followed_counsel END,
			COALESCE(e.override_reason, o.reason)
		FROM events e
		LEFT JOIN overrides o ON o.event_id = e.id
		GROUP BY e.id
		ORDER BY e.ts ASC, e.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.DecisionEvent
	for rows.Next() {
		var ev domain.DecisionEvent
		var ts, mode, dom, ministersJSON, illusionsJSON string
		var sovereignAction, overrideReason sql.NullString
		var followed sql.NullInt64
		if err := rows.Scan(&ev.ID, &ts, &mode, &dom, &ev.Stakes, &ev.EmotionalLoad,
			&ev.Urgency, &ministersJSON, &ev.VerdictSummary, &ev.Posture,
			&illusionsJSON, &ev.ContradictionsFound,
			&sovereignAction, &followed, &overrideReason); err != nil {
			return nil, err
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
		ev.Mode = domain.Mode(mode)
		ev.Domain = domain.Domain(dom)
		ev.SovereignAction = sovereignAction.String
		ev.OverrideReason = overrideReason.String
		if followed.Valid {
			b := followed.Int64 != 0
			ev.ActionFollowedCounsel = &b
		}
		_ = json.Unmarshal([]byte(ministersJSON), &ev.MinistersCalled)
		_ = json.Unmarshal([]byte(illusionsJSON), &ev.IllusionsDetected)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListOutcomes returns every recorded outcome, oldest first.
func (s *Store) ListOutcomes(ctx context.Context) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, resolved_at, result, damage, benefit, lessons
		FROM outcomes ORDER BY resolved_at ASC, event_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var resolvedAt, result, lessonsJSON string
		if err := rows.Scan(&o.EventID, &resolvedAt, &result, &o.Damage, &o.Benefit, &lessonsJSON); err != nil {
			return nil, err
		}
		o.ResolvedAt, _ = time.Parse(time.RFC3339, resolvedAt)
		o.Result = domain.OutcomeResult(result)
		_ = json.Unmarshal([]byte(lessonsJSON), &o.Lessons)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// ReplacePatterns rewrites the derived patterns table with a fresh
// detection run. Patterns are derived state — replacing them wholesale
// is the rebuild the data model promises.
func (s *Store) ReplacePatterns(ctx context.Context, patterns []domain.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM patterns"); err != nil {
		return fmt.Errorf("ledger: clearing patterns: %w", err)
	}
	for _, p := range patterns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO patterns (id, kind, description, domain, frequency, last_seen, last_outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, string(p.Kind), p.Description, nullIfEmpty(string(p.Domain)),
			p.Frequency, p.LastSeen.Format(time.RFC3339), nullIfEmpty(string(p.LastOutcome))); err != nil {
			return fmt.Errorf("ledger: inserting pattern %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// ListPatterns returns the most recently detected patterns.
func (s *Store) ListPatterns(ctx context.Context) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, description, domain, frequency, last_seen, last_outcome FROM patterns ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		var kind, lastSeen string
		var dom, lastOutcome sql.NullString
		if err := rows.Scan(&p.ID, &kind, &p.Description, &dom, &p.Frequency, &lastSeen, &lastOutcome); err != nil {
			return nil, err
		}
		p.Kind = domain.PatternKind(kind)
		p.Domain = domain.Domain(dom.String)
		p.LastOutcome = domain.OutcomeResult(lastOutcome.String)
		p.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UpsertCalibration writes one target/domain confidence weight.
func (s *Store) UpsertCalibration(ctx context.Context, c domain.Calibration) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibrations (target, domain, confidence, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(target, domain) DO UPDATE SET
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, c.Target, string(c.Domain), c.Confidence, c.UpdatedAt.Format(time.RFC3339))
	return err
}

// Confidence returns the stored confidence for a target in a domain, or
// the 0.50 starting value when none has been recorded yet.
func (s *Store) Confidence(ctx context.Context, target string, d domain.Domain) (float64, error) {
	var conf float64
	err := s.db.QueryRowContext(ctx,
		"SELECT confidence FROM calibrations WHERE target = ? AND domain = ?",
		target, string(d)).Scan(&conf)
	if err == sql.ErrNoRows {
		return startingConfidence, nil
	}
	if err != nil {
		return 0, err
	}
	return conf, nil
}

// ListCalibrations returns every stored calibration row.
func (s *Store) ListCalibrations(ctx context.Context) ([]domain.Calibration, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT target, domain, confidence, updated_at FROM calibrations ORDER BY target, domain")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Calibration
	for rows.Next() {
		var c domain.Calibration
		var dom, updatedAt string
		if err := rows.Scan(&c.Target, &dom, &c.Confidence, &updatedAt); err != nil {
			return nil, err
		}
		c.Domain = domain.Domain(dom)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadPosture returns N's stored posture, or the neutral default when
// none has been persisted yet.
func (s *Store) LoadPosture(ctx context.Context) (domain.Posture, error) {
	var p domain.Posture
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT caution, urgency_threshold, bluntness, updated_at FROM posture WHERE id = 1").
		Scan(&p.Caution, &p.UrgencyThreshold, &p.Bluntness, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.DefaultPosture(), nil
	}
	if err != nil {
		return p, err
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

// SavePosture persists N's posture after calibration.
func (s *Store) SavePosture(ctx context.Context, p domain.Posture) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posture (id, caution, urgency_threshold, bluntness, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			caution = excluded.caution,
			urgency_threshold = excluded.urgency_threshold,
			bluntness = excluded.bluntness,
			updated_at = excluded.updated_at
	`, p.Caution, p.UrgencyThreshold, p.Bluntness, p.UpdatedAt.Format(time.RFC3339))
	return err
}

// LogQuery appends a row to the query audit log. eventID may be empty
// when the invocation was not recorded to memory.
func (s *Store) LogQuery(ctx context.Context, eventID, query string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO query_log (event_id, query, created_at) VALUES (?, ?, ?)",
		nullIfEmpty(eventID), query, time.Now().UTC().Format(time.RFC3339))
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
