package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
)

// MaxPlanInputChars caps the requirements text sent to the model. Longer
// input is rejected rather than cut, so a plan never covers half a document.
const MaxPlanInputChars = 60000

// PlanTasksUseCase sends requirements text to the text-generation model and
// parses the developer to-do list it returns.
type PlanTasksUseCase struct {
	generator ports.TextGenerator
}

func NewPlanTasksUseCase(generator ports.TextGenerator) *PlanTasksUseCase {
	return &PlanTasksUseCase{generator: generator}
}

func (uc *PlanTasksUseCase) Plan(ctx context.Context, text string) (*domain.TaskPlan, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "plan tasks", errors.New("enter text or upload a file"))
	}
	if n := utf8.RuneCountInString(input); n > MaxPlanInputChars {
		return nil, domain.WrapError(domain.ErrInvalidInput, "plan tasks",
			fmt.Errorf("requirements text has %d characters, the limit is %d", n, MaxPlanInputChars))
	}
	if uc.generator == nil {
		return nil, domain.WrapError(domain.ErrTemporary, "plan tasks", errors.New("text generator is not configured"))
	}

	raw, err := uc.generator.Generate(ctx, BuildTaskPrompt(input))
	if err != nil {
		return nil, fmt.Errorf("generate task list: %w", err)
	}

	cleaned := StripCodeFence(raw)
	tasks, err := parseTasks(cleaned)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "parse task list", fmt.Errorf("%w; raw reply: %.200q", err, cleaned))
	}

	return &domain.TaskPlan{Tasks: tasks, Raw: cleaned}, nil
}

// BuildTaskPrompt wraps a requirements document in the task-breakdown
// instruction.
func BuildTaskPrompt(requirements string) string {
	return `Analyze the product requirements document below and produce a structured to-do list for developers to finish before opening a pull request.

Guidelines:
- Cover development work and pre-PR manual testing only.
- Leave out deployment, CI/CD and post-merge work.
- Leave out unit tests; they are automated elsewhere.
- Testing items are manual checks a developer runs, not instructions for testers.
- Every task needs a heading and a description.
- Put every task in exactly one category: backend, frontend or testing.

Reply with a JSON array only. Each element has this shape:
{"id": 1, "heading": "Short task title", "description": "Brief explanation", "category": "backend", "completed": false}

Requirements document:
` + requirements
}

// StripCodeFence removes a surrounding markdown code fence such as ```json.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func parseTasks(raw string) ([]domain.Task, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, errors.New("reply does not contain a JSON array")
	}

	var tasks []domain.Task
	if err := json.Unmarshal([]byte(raw[start:end+1]), &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	out := make([]domain.Task, 0, len(tasks))
	for i, task := range tasks {
		task.Heading = strings.TrimSpace(task.Heading)
		task.Description = strings.TrimSpace(task.Description)
		if task.Heading == "" {
			continue
		}
		if task.ID <= 0 {
			task.ID = i + 1
		}
		task.Category = domain.NormalizeTaskCategory(string(task.Category))
		out = append(out, task)
	}
	return out, nil
}
