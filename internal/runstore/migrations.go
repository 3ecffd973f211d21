package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    outcome TEXT NOT NULL,
    summary TEXT,
    error_msg TEXT,
    emails_scanned INTEGER DEFAULT 0,
    emails_matched INTEGER DEFAULT 0,
    tasks_extracted INTEGER DEFAULT 0,
    notifications_sent INTEGER DEFAULT 0,
    notifications_failed INTEGER DEFAULT 0,
    has_stats BOOLEAN DEFAULT FALSE,
    items TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
`
