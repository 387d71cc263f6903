package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autofin/autofin/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// batchSchema validates incoming task-batch payloads before anything is
// attempted. A payload that fails here fails the whole run at setup.
const batchSchema = `{
	"type": "object",
	"required": ["tasks"],
	"properties": {
		"tasks": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "type", "title"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"title": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"project_id": {"type": "string"},
					"user_id": {"type": "string"},
					"priority": {"type": "integer"},
					"dependencies": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

type taskBatch struct {
	Tasks []models.Task `json:"tasks"`
}

// parseBatch validates the raw payload against the batch schema and decodes
// it into tasks. Tasks without a status enter the pipeline pending.
func parseBatch(payload []byte) ([]models.Task, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(batchSchema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid task batch: %s", strings.Join(details, "; "))
	}

	var batch taskBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("decode task batch: %w", err)
	}

	for i := range batch.Tasks {
		if batch.Tasks[i].Status == "" {
			batch.Tasks[i].Status = models.TaskStatusPending
		}
	}

	return batch.Tasks, nil
}

// sequenceTasks orders the batch so dependencies run before their dependents,
// higher priority first among ready tasks, original order as the final
// tie-break. Dependencies pointing outside the batch are assumed satisfied.
// A dependency cycle is a setup failure.
func sequenceTasks(tasks []models.Task) ([]models.Task, error) {
	inBatch := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		inBatch[task.ID] = true
	}

	placed := make(map[string]bool, len(tasks))
	remaining := make([]models.Task, len(tasks))
	copy(remaining, tasks)

	ordered := make([]models.Task, 0, len(tasks))

	for len(remaining) > 0 {
		// Pick the best ready task this round.
		best := -1

		for i, task := range remaining {
			ready := true

			for _, dep := range task.Dependencies {
				if inBatch[dep] && !placed[dep] {
					ready = false

					break
				}
			}

			if !ready {
				continue
			}

			if best == -1 || remaining[i].Priority > remaining[best].Priority {
				best = i
			}
		}

		if best == -1 {
			return nil, fmt.Errorf("dependency cycle among remaining %d tasks", len(remaining))
		}

		task := remaining[best]
		ordered = append(ordered, task)
		placed[task.ID] = true
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return ordered, nil
}
