package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kitchen_demo_sync/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrMissingTitle = errors.New("task title is required")

// TaskInput describes a new manual task. Team and Slot are optional; when both
// are set the task is placed through the same occupancy check as Assign.
type TaskInput struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Notes string `json:"notes"`
	Team  *int   `json:"team,omitempty"`
	Slot  string `json:"slot,omitempty"`
}

// TaskPatch edits task metadata. Placement changes go through Assign.
type TaskPatch struct {
	Title *string `json:"title,omitempty"`
	Type  *string `json:"type,omitempty"`
	Date  *string `json:"date,omitempty"`
	Time  *string `json:"time,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

func (b *Board) CreateTask(ctx context.Context, in TaskInput, by string) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ErrMissingTitle
	}

	slot := ""
	if in.Team != nil || in.Slot != "" {
		team := 0
		if in.Team != nil {
			team = *in.Team
		}
		var err error
		if slot, err = ValidatePlacement(team, in.Slot); err != nil {
			return model.Task{}, err
		}
	}

	now := b.now().UTC()
	task := model.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      strings.TrimSpace(in.Type),
		Date:      in.Date,
		Time:      in.Time,
		Status:    model.StatusPending,
		CreatedBy: by,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if task.Type == "" {
		task.Type = "general"
	}

	b.mu.Lock()
	if slot != "" {
		if occID, occKind, taken := b.occupantLocked(*in.Team, slot); taken {
			b.mu.Unlock()
			return model.Task{}, &ConflictError{Team: *in.Team, Slot: slot, OccupantID: occID, OccupantKind: occKind}
		}
		placeTask(&task, *in.Team, slot)
	}
	b.tasks = append(b.tasks, task)

	state, done := b.commit()
	defer done()

	log.Info().Str("task", task.ID).Str("title", task.Title).Str("by", by).Msg("Created task")
	b.changed(state)
	return cloneTasks([]model.Task{task})[0], nil
}

func (b *Board) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Task{}, ErrMissingTitle
	}

	b.mu.Lock()
	i := b.taskIndex(id)
	if i < 0 {
		b.mu.Unlock()
		return model.Task{}, fmt.Errorf("%w: task %s", ErrItemNotFound, id)
	}
	t := &b.tasks[i]
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Type != nil {
		t.Type = strings.TrimSpace(*patch.Type)
	}
	// Date and time follow the slot while the task is placed.
	if t.AssignedSlot == "" {
		if patch.Date != nil {
			t.Date = *patch.Date
		}
		if patch.Time != nil {
			t.Time = *patch.Time
		}
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	t.UpdatedAt = b.now().UTC()
	updated := cloneTasks([]model.Task{*t})[0]

	state, done := b.commit()
	defer done()
	b.changed(state)
	return updated, nil
}

func (b *Board) DeleteTask(ctx context.Context, id string) error {
	b.mu.Lock()
	i := b.taskIndex(id)
	if i < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: task %s", ErrItemNotFound, id)
	}
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)

	state, done := b.commit()
	defer done()

	log.Info().Str("task", id).Msg("Deleted task")
	b.changed(state)
	return nil
}
