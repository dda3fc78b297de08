package queue

import (
	"database/sql"
	"errors"
	"time"
)

// storedTimeLayout is fixed width so lexical order in SQLite matches time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = "id, workflow, event_json, status, attempts, error_message, error_kind, output_json, correlation_id, created_at, updated_at, started_at, finished_at, last_heartbeat"

const stepColumns = "run_id, name, status, attempts, result_json, error_message, started_at, updated_at, completed_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		run           Run
		statusStr     string
		errorMessage  sql.NullString
		errorKind     sql.NullString
		outputJSON    sql.NullString
		correlationID sql.NullString
		createdRaw    string
		updatedRaw    string
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
		heartbeatRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Workflow,
		&run.EventJSON,
		&statusStr,
		&run.Attempts,
		&errorMessage,
		&errorKind,
		&outputJSON,
		&correlationID,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	run.Status = Status(statusStr)
	run.ErrorMessage = errorMessage.String
	run.ErrorKind = errorKind.String
	run.OutputJSON = outputJSON.String
	run.CorrelationID = correlationID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	run.StartedAt = parseNullableTime(startedRaw)
	run.FinishedAt = parseNullableTime(finishedRaw)
	run.LastHeartbeat = parseNullableTime(heartbeatRaw)
	return &run, nil
}

func scanStep(scanner rowScanner) (*Step, error) {
	var (
		step         Step
		statusStr    string
		resultJSON   sql.NullString
		errorMessage sql.NullString
		startedRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&step.RunID,
		&step.Name,
		&statusStr,
		&step.Attempts,
		&resultJSON,
		&errorMessage,
		&startedRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	step.Status = StepStatus(statusStr)
	step.ResultJSON = resultJSON.String
	step.ErrorMessage = errorMessage.String
	if started, err := parseTimeString(startedRaw); err == nil {
		step.StartedAt = started
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		step.UpdatedAt = updated
	}
	step.CompletedAt = parseNullableTime(completedRaw)
	return &step, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(storedTimeLayout)
}

func formatNow() string {
	return time.Now().UTC().Format(storedTimeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
