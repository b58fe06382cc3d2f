package repository

import (
	"strings"

	"github.com/taskmaster/agenda/internal/domain/entities"
)

// Inbound synonym tables. Rows written by older clients use Portuguese or
// hyphenated spellings; anything unrecognized falls back to the default.
var (
	taskStatusSynonyms = map[string]entities.TaskStatus{
		"pending":      entities.TaskStatusPending,
		"pendente":     entities.TaskStatusPending,
		"todo":         entities.TaskStatusPending,
		"afazer":       entities.TaskStatusPending,
		"a fazer":      entities.TaskStatusPending,
		"in_progress":  entities.TaskStatusInProgress,
		"in progress":  entities.TaskStatusInProgress,
		"in-progress":  entities.TaskStatusInProgress,
		"doing":        entities.TaskStatusInProgress,
		"andamento":    entities.TaskStatusInProgress,
		"em_andamento": entities.TaskStatusInProgress,
		"em andamento": entities.TaskStatusInProgress,
		"done":         entities.TaskStatusDone,
		"completed":    entities.TaskStatusDone,
		"concluida":    entities.TaskStatusDone,
		"concluída":    entities.TaskStatusDone,
		"concluido":    entities.TaskStatusDone,
		"concluído":    entities.TaskStatusDone,
	}

	projectTaskStateSynonyms = map[string]entities.ProjectTaskState{
		"todo":      entities.ProjectTaskTodo,
		"fazer":     entities.ProjectTaskTodo,
		"afazer":    entities.ProjectTaskTodo,
		"pending":   entities.ProjectTaskTodo,
		"paused":    entities.ProjectTaskPaused,
		"pausada":   entities.ProjectTaskPaused,
		"pausado":   entities.ProjectTaskPaused,
		"done":      entities.ProjectTaskDone,
		"completed": entities.ProjectTaskDone,
		"concluida": entities.ProjectTaskDone,
		"concluída": entities.ProjectTaskDone,
	}

	prioritySynonyms = map[string]entities.Priority{
		"urgent":  entities.PriorityUrgent,
		"urgente": entities.PriorityUrgent,
		"high":    entities.PriorityUrgent,
		"alta":    entities.PriorityUrgent,
		"normal":  entities.PriorityNormal,
		"media":   entities.PriorityNormal,
		"média":   entities.PriorityNormal,
		"low":     entities.PriorityLow,
		"baixa":   entities.PriorityLow,
	}
)

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// StatusFromRow maps a persisted status string to the canonical status.
func StatusFromRow(raw string) entities.TaskStatus {
	if s, ok := taskStatusSynonyms[normalize(raw)]; ok {
		return s
	}
	return entities.TaskStatusPending
}

// StatusToRow maps a canonical status to its persisted spelling.
func StatusToRow(s entities.TaskStatus) string {
	switch s {
	case entities.TaskStatusInProgress:
		return "in_progress"
	case entities.TaskStatusDone:
		return "done"
	default:
		return "todo"
	}
}

// ProjectTaskStateFromRow maps a persisted project task state to the canonical state.
func ProjectTaskStateFromRow(raw string) entities.ProjectTaskState {
	if s, ok := projectTaskStateSynonyms[normalize(raw)]; ok {
		return s
	}
	return entities.ProjectTaskTodo
}

// ProjectTaskStateToRow maps a canonical project task state to its persisted spelling.
func ProjectTaskStateToRow(s entities.ProjectTaskState) string {
	if s.IsValid() {
		return string(s)
	}
	return string(entities.ProjectTaskTodo)
}

// PriorityFromRow maps a persisted priority to the canonical priority.
func PriorityFromRow(raw string) entities.Priority {
	if p, ok := prioritySynonyms[normalize(raw)]; ok {
		return p
	}
	return entities.PriorityNormal
}

// PriorityToRow maps a canonical priority to its persisted spelling.
func PriorityToRow(p entities.Priority) string {
	if p.IsValid() {
		return string(p)
	}
	return string(entities.PriorityNormal)
}
