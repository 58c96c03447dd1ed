package mysql

const insertRunSQL = `
INSERT INTO import_runs (id, source, started_at)
VALUES (?, ?, ?)
`

const finishRunSQL = `
UPDATE import_runs
SET finished_at = ?, created = ?, updated = ?, skipped = ?
WHERE id = ?
`

// A re-recorded row keeps its first reason.
const insertSkipSQL = `
INSERT INTO import_skips (run_id, row_num, external_id, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE seen_at = CURRENT_TIMESTAMP
`

const getRunSQL = `
SELECT id, source, started_at, finished_at, created, updated, skipped
FROM import_runs
WHERE id = ?
`

const listRunsSQL = `
SELECT id, source, started_at, finished_at, created, updated, skipped
FROM import_runs
ORDER BY started_at DESC, id
LIMIT ?
`

const listSkipsSQL = `
SELECT row_num, external_id, reason
FROM import_skips
WHERE run_id = ?
ORDER BY row_num
`
