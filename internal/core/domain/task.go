package domain

import "strings"

type TaskCategory string

const (
	TaskCategoryBackend  TaskCategory = "backend"
	TaskCategoryFrontend TaskCategory = "frontend"
	TaskCategoryTesting  TaskCategory = "testing"
)

// Task is one pre-PR development item produced from a requirements document.
type Task struct {
	ID          int          `json:"id"`
	Heading     string       `json:"heading"`
	Description string       `json:"description"`
	Category    TaskCategory `json:"category"`
	Completed   bool         `json:"completed"`
}

type TaskPlan struct {
	Tasks []Task `json:"tasks"`
	Raw   string `json:"raw"`
}

func NormalizeTaskCategory(raw string) TaskCategory {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "backend", "back-end", "back end":
		return TaskCategoryBackend
	case "frontend", "front-end", "front end":
		return TaskCategoryFrontend
	case "testing", "test", "tests", "qa":
		return TaskCategoryTesting
	default:
		return TaskCategory(strings.ToLower(strings.TrimSpace(raw)))
	}
}
