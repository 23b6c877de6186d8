package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// RunStatus represents the status of an evaluation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunKind distinguishes full pipeline runs from re-scoring runs.
type RunKind string

const (
	KindOrchestrator RunKind = "orchestrator"
	KindRecords      RunKind = "records"
)

// Run is one recorded evaluation run.
type Run struct {
	ID           string     `json:"id"`
	Kind         RunKind    `json:"kind"`
	InputsPath   string     `json:"inputs_path"`
	JudgeModel   string     `json:"judge_model"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	Total        int        `json:"total"`
	Failed       int        `json:"failed"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	Status       RunStatus  `json:"status"`
}

// ResultRow is one scored row of a recorded run.
type ResultRow struct {
	RunID    string        `json:"run_id"`
	RowIndex int           `json:"row_index"`
	Request  string        `json:"request"`
	Scores   models.Scores `json:"scores"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

const runColumns = `id, kind, inputs_path, judge_model, started_at, finished_at,
	total, failed, input_tokens, output_tokens, status`

// maxRunIDAttempts bounds the suffixes CreateRun tries for a taken ID.
const maxRunIDAttempts = 100

// CreateRun records the start of a run. Status defaults to running and
// StartedAt to now. When r.ID is already taken, as happens for two runs
// started in the same second, CreateRun stores the run as r.ID_2, r.ID_3
// and so on, and updates r.ID to the stored value.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	base := r.ID
	for attempt := 1; attempt <= maxRunIDAttempts; attempt++ {
		id := base
		if attempt > 1 {
			id = fmt.Sprintf("%s_%d", base, attempt)
		}
		res, err := db.Exec(`
			INSERT INTO runs (id, kind, inputs_path, judge_model, started_at, status)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, string(r.Kind), r.InputsPath, r.JudgeModel, formatTime(r.StartedAt), string(r.Status))
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			r.ID = id
			return nil
		}
	}
	return fmt.Errorf("create run: no free id for %s after %d attempts", base, maxRunIDAttempts)
}

// FinishRun stores a run's final counts and status. FinishedAt defaults to
// now.
func (db *DB) FinishRun(r *Run) error {
	if r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
	res, err := db.Exec(`
		UPDATE runs SET finished_at = ?, total = ?, failed = ?, input_tokens = ?, output_tokens = ?, status = ?
		WHERE id = ?
	`, formatTime(*r.FinishedAt), r.Total, r.Failed, r.InputTokens, r.OutputTokens, string(r.Status), r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", r.ID)
	}
	return nil
}

// SaveResults stores every row of a run in one transaction, replacing any
// rows previously saved at the same index.
func (db *DB) SaveResults(runID string, results []models.RowResult) error {
	return db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO results (id, run_id, row_index, request, scores_json, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, row_index) DO UPDATE SET
				request = excluded.request,
				scores_json = excluded.scores_json,
				error = excluded.error,
				duration_ms = excluded.duration_ms
		`)
		if err != nil {
			return fmt.Errorf("prepare save results: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			var scores sql.NullString
			if r.Scores != nil {
				b, err := json.Marshal(r.Scores)
				if err != nil {
					return fmt.Errorf("encode scores for row %d: %w", r.Index, err)
				}
				scores = sql.NullString{String: string(b), Valid: true}
			}
			if _, err := stmt.Exec(uuid.New().String(), runID, r.Index, r.Input.Request,
				scores, r.Err, r.Duration.Milliseconds()); err != nil {
				return fmt.Errorf("save result row %d: %w", r.Index, err)
			}
		}
		return nil
	})
}

// GetRun retrieves a run by ID. Returns nil, nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetResults returns a run's rows in row order.
func (db *DB) GetResults(runID string) ([]ResultRow, error) {
	rows, err := db.Query(`
		SELECT run_id, row_index, request, scores_json, error, duration_ms
		FROM results WHERE run_id = ? ORDER BY row_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		var scores sql.NullString
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.RowIndex, &r.Request, &scores, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if scores.Valid {
			if err := json.Unmarshal([]byte(scores.String), &r.Scores); err != nil {
				return nil, fmt.Errorf("decode scores for row %d: %w", r.RowIndex, err)
			}
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeOldRuns deletes runs started before now minus olderThan, along with
// their results. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := s.Scan(&r.ID, &r.Kind, &r.InputsPath, &r.JudgeModel, &startedAt, &finishedAt,
		&r.Total, &r.Failed, &r.InputTokens, &r.OutputTokens, &r.Status)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
