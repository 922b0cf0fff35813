package ledger

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    ts TEXT NOT NULL,
    mode TEXT NOT NULL,
    domain TEXT NOT NULL,
    stakes TEXT NOT NULL DEFAULT '',
    emotional_load REAL NOT NULL DEFAULT 0,
    urgency REAL NOT NULL DEFAULT 0,
    ministers_called TEXT NOT NULL DEFAULT '[]',
    verdict TEXT NOT NULL,
    posture TEXT NOT NULL DEFAULT '',
    illusions_detected TEXT NOT NULL DEFAULT '[]',
    contradictions_found INTEGER NOT NULL DEFAULT 0,
    sovereign_action TEXT,
    action_followed_counsel INTEGER,
    override_reason TEXT
);

CREATE TABLE IF NOT EXISTS outcomes (
    event_id TEXT PRIMARY KEY REFERENCES events(id),
    resolved_at TEXT NOT NULL,
    result TEXT NOT NULL,
    damage REAL NOT NULL DEFAULT 0,
    benefit REAL NOT NULL DEFAULT 0,
    lessons TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS overrides (
    id INTEGER PRIMARY KEY,
    event_id TEXT NOT NULL REFERENCES events(id),
    reason TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- patterns and calibrations are derived: they may be rebuilt from
-- events + outcomes at any time and are never authoritative.
CREATE TABLE IF NOT EXISTS patterns (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    description TEXT NOT NULL,
    domain TEXT,
    frequency INTEGER NOT NULL,
    last_seen TEXT NOT NULL,
    last_outcome TEXT
);

CREATE TABLE IF NOT EXISTS calibrations (
    target TEXT NOT NULL,
    domain TEXT NOT NULL,
    confidence REAL NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (target, domain)
);

CREATE TABLE IF NOT EXISTS posture (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    caution REAL NOT NULL,
    urgency_threshold REAL NOT NULL,
    bluntness REAL NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    event_id TEXT,
    query TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- events and outcomes are append-only: once written they cannot be
-- edited or erased, only superseded by later rows. Enforced at the
-- database level so no code path, present or future, can quietly
-- rewrite history.
CREATE TRIGGER IF NOT EXISTS events_no_update
BEFORE UPDATE ON events
BEGIN
    SELECT RAISE(ABORT, 'events is append-only: update rejected');
END;

CREATE TRIGGER IF NOT EXISTS events_no_delete
BEFORE DELETE ON events
BEGIN
    SELECT RAISE(ABORT, 'events is append-only: delete rejected');
END;

CREATE TRIGGER IF NOT EXISTS outcomes_no_update
BEFORE UPDATE ON outcomes
BEGIN
    SELECT RAISE(ABORT, 'outcomes is append-only: update rejected');
END;

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_domain ON events(domain);
CREATE INDEX IF NOT EXISTS idx_overrides_event ON overrides(event_id);
`
