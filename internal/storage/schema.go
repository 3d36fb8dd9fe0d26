package storage

const schema = `
-- The 'sources' table tracks where questions come from: a local directory,
-- a git repository or the built-in deck.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);

-- The 'questions' table is the catalog. The content hash is the stable item ID.
CREATE TABLE IF NOT EXISTS questions (
    hash TEXT PRIMARY KEY,
    domain TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    options TEXT NOT NULL, -- JSON array of {id, text}
    correct_answer TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_questions_source ON questions(source_id);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- One SM-2 card per (user, question), created by the first review.
CREATE TABLE IF NOT EXISTS review_cards (
    user_id TEXT NOT NULL,
    question_hash TEXT NOT NULL,
    ease_factor REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    next_review TEXT NOT NULL, -- ISO-8601 date
    last_review DATETIME,

    PRIMARY KEY (user_id, question_hash),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY(question_hash) REFERENCES questions(hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_cards_due ON review_cards(user_id, next_review);

CREATE TABLE IF NOT EXISTS review_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    question_hash TEXT NOT NULL,
    quality INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY(question_hash) REFERENCES questions(hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_log_user ON review_log(user_id, reviewed_at);
`
