package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL DEFAULT '',
    credit_limit         TEXT NOT NULL,
    metadata             TEXT,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS spend_records (
    id                   TEXT PRIMARY KEY,
    account_id           TEXT NOT NULL,
    date                 TEXT NOT NULL,
    amount               TEXT NOT NULL,
    category             TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    installment          INTEGER NOT NULL DEFAULT 0,
    shared               INTEGER NOT NULL DEFAULT 0,
    source_file          TEXT NOT NULL DEFAULT '',
    ingested_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS revision (
    id                   INTEGER PRIMARY KEY CHECK (id = 1),
    value                INTEGER NOT NULL
);
INSERT OR IGNORE INTO revision (id, value) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS predictions (
    account_id             TEXT NOT NULL,
    period                 TEXT NOT NULL,
    periods_ahead          INTEGER NOT NULL,
    predicted_amount       REAL NOT NULL,
    confidence             REAL NOT NULL,
    algorithm              TEXT NOT NULL,
    algorithms             TEXT,
    trend                  TEXT NOT NULL,
    expected_variation_pct REAL NOT NULL,
    factors                TEXT,
    generated_at           TEXT NOT NULL,
    PRIMARY KEY (account_id, period)
);

CREATE TABLE IF NOT EXISTS alerts (
    id                   TEXT PRIMARY KEY,
    rule_key             TEXT NOT NULL UNIQUE,
    kind                 TEXT NOT NULL,
    priority             TEXT NOT NULL,
    title                TEXT NOT NULL,
    message              TEXT NOT NULL,
    account_id           TEXT NOT NULL DEFAULT '',
    amount_involved      REAL,
    period               TEXT NOT NULL DEFAULT '',
    generated_at         TEXT NOT NULL,
    read                 INTEGER NOT NULL DEFAULT 0,
    recommended_action   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recommendations (
    id                   TEXT PRIMARY KEY,
    rule_key             TEXT NOT NULL UNIQUE,
    category             TEXT NOT NULL,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL,
    estimated_impact     REAL NOT NULL,
    difficulty           TEXT NOT NULL,
    affected_accounts    TEXT,
    generated_at         TEXT NOT NULL,
    validity_days        INTEGER NOT NULL,
    applied              INTEGER NOT NULL DEFAULT 0,
    score                REAL NOT NULL,
    steps                TEXT,
    tags                 TEXT
);

CREATE TABLE IF NOT EXISTS score_history (
    period               TEXT PRIMARY KEY,
    total                REAL NOT NULL,
    band                 TEXT NOT NULL,
    trend                TEXT NOT NULL,
    previous_total       REAL NOT NULL,
    delta                REAL NOT NULL,
    pct_change           REAL NOT NULL,
    factors              TEXT,
    tips                 TEXT,
    computed_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_account_date ON spend_records(account_id, date);
CREATE INDEX IF NOT EXISTS idx_records_source ON spend_records(source_file);
CREATE INDEX IF NOT EXISTS idx_alerts_generated ON alerts(generated_at);
`
