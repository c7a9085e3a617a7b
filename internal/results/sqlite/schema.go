package sqlite

const schema = `
-- Latest execution result per test case
CREATE TABLE IF NOT EXISTS execution_results (
    test_case_key TEXT PRIMARY KEY,
    overall_result TEXT NOT NULL,
    step_results TEXT NOT NULL DEFAULT '[]',
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_execution_results_overall ON execution_results(overall_result);

-- Append-only log of every recorded attempt
CREATE TABLE IF NOT EXISTS execution_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    test_case_key TEXT NOT NULL,
    overall_result TEXT NOT NULL,
    step_results TEXT NOT NULL DEFAULT '[]',
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_execution_history_key ON execution_history(test_case_key);
CREATE INDEX IF NOT EXISTS idx_execution_history_recorded_at ON execution_history(recorded_at);
`
