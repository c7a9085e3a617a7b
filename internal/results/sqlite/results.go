package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/damsaniajay/qaflow/internal/types"
)

// GetResult returns the stored result for a test case key,
// or (nil, nil) when no result has been recorded yet.
func (s *SQLiteStore) GetResult(ctx context.Context, key string) (*types.ExecutionResult, error) {
	var overall string
	var stepsJSON string
	var recordedAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT overall_result, step_results, recorded_at
		FROM execution_results
		WHERE test_case_key = ?
	`, key).Scan(&overall, &stepsJSON, &recordedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution result: %w", err)
	}

	steps, err := decodeSteps(key, stepsJSON)
	if err != nil {
		return nil, err
	}

	return &types.ExecutionResult{
		TestCaseKey:   key,
		Results:       steps,
		OverallResult: types.OverallResult(overall),
		RecordedAt:    recordedAt,
	}, nil
}

// PutResult stores a result, replacing any earlier result for the same
// test case key, and appends a row to the attempt history.
func (s *SQLiteStore) PutResult(ctx context.Context, result *types.ExecutionResult) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}

	stepsJSON, err := json.Marshal(result.Results)
	if err != nil {
		return fmt.Errorf("failed to encode step results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_results (test_case_key, overall_result, step_results, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(test_case_key) DO UPDATE SET
			overall_result = excluded.overall_result,
			step_results = excluded.step_results,
			recorded_at = excluded.recorded_at
	`, result.TestCaseKey, string(result.OverallResult), string(stepsJSON), result.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert execution result: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_history (test_case_key, overall_result, step_results, recorded_at)
		VALUES (?, ?, ?, ?)
	`, result.TestCaseKey, string(result.OverallResult), string(stepsJSON), result.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to append execution history: %w", err)
	}

	return tx.Commit()
}

// ListResults returns all stored results ordered by test case key.
func (s *SQLiteStore) ListResults(ctx context.Context) ([]*types.ExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT test_case_key, overall_result, step_results, recorded_at
		FROM execution_results
		ORDER BY test_case_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// History retrieves every recorded attempt for a test case, ordered
// chronologically (oldest first).
func (s *SQLiteStore) History(ctx context.Context, key string) ([]*types.ExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT test_case_key, overall_result, step_results, recorded_at
		FROM execution_history
		WHERE test_case_key = ?
		ORDER BY recorded_at ASC, id ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]*types.ExecutionResult, error) {
	var results []*types.ExecutionResult
	for rows.Next() {
		var key, overall, stepsJSON string
		var recordedAt time.Time

		if err := rows.Scan(&key, &overall, &stepsJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution result: %w", err)
		}

		steps, err := decodeSteps(key, stepsJSON)
		if err != nil {
			return nil, err
		}

		results = append(results, &types.ExecutionResult{
			TestCaseKey:   key,
			Results:       steps,
			OverallResult: types.OverallResult(overall),
			RecordedAt:    recordedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution result rows: %w", err)
	}

	return results, nil
}

func decodeSteps(key, stepsJSON string) ([]types.StepResult, error) {
	var steps []types.StepResult
	if err := json.Unmarshal([]byte(stepsJSON), &steps); err != nil {
		return nil, fmt.Errorf("failed to decode step results for %s: %w", key, err)
	}
	return steps, nil
}
