package main

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tipflow/internal/api"
	"tipflow/internal/queue"
)

var titleCaser = cases.Title(language.English)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusLabel(status string) string {
	return titleCaser.String(strings.TrimSpace(status))
}

func buildRunListRows(runs []api.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Workflow,
			statusLabel(run.Status),
			strconv.Itoa(run.Attempts),
			run.CreatedAt,
			truncate(run.ErrorMessage, 60),
		})
	}
	return rows
}

// buildStatusRows lists every status in lifecycle order, including zeros,
// followed by the total.
func buildStatusRows(health queue.HealthSummary) [][]string {
	counts := map[queue.Status]int{
		queue.StatusPending:   health.Pending,
		queue.StatusRunning:   health.Running,
		queue.StatusCompleted: health.Completed,
		queue.StatusFailed:    health.Failed,
	}
	rows := make([][]string, 0, len(counts)+1)
	for _, status := range queue.AllStatuses() {
		rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(counts[status])})
	}
	return append(rows, []string{"Total", strconv.Itoa(health.Total)})
}

func renderRunDetail(detail api.RunDetailResponse) string {
	run := detail.Run
	var b strings.Builder
	fields := [][]string{
		{"Run", run.ID},
		{"Workflow", run.Workflow},
		{"Status", statusLabel(run.Status)},
		{"Attempts", strconv.Itoa(run.Attempts)},
		{"Correlation", run.CorrelationID},
		{"Created", run.CreatedAt},
		{"Started", run.StartedAt},
		{"Finished", run.FinishedAt},
	}
	if run.ErrorMessage != "" {
		fields = append(fields, []string{"Error", fmt.Sprintf("%s (%s)", run.ErrorMessage, run.ErrorKind)})
	}
	if len(run.Event) > 0 {
		fields = append(fields, []string{"Event", string(run.Event)})
	}
	if len(run.Output) > 0 {
		fields = append(fields, []string{"Output", string(run.Output)})
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%-12s %s\n", field[0]+":", field[1])
	}

	if len(detail.Steps) == 0 {
		b.WriteString("\nNo steps recorded\n")
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(renderTable(
		[]string{"Step", "Status", "Attempts", "Completed", "Detail"},
		buildStepRows(detail.Steps),
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return b.String()
}

func buildStepRows(steps []api.Step) [][]string {
	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		detail := s.ErrorMessage
		if detail == "" && len(s.Result) > 0 {
			detail = string(s.Result)
		}
		rows = append(rows, []string{
			s.Name,
			statusLabel(s.Status),
			strconv.Itoa(s.Attempts),
			s.CompletedAt,
			truncate(detail, 60),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
