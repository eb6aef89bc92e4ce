package model

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// ValidStatuses - канонический набор статусов
var ValidStatuses = map[Status]bool{
	StatusTodo:       true,
	StatusInProgress: true,
	StatusDone:       true,
	StatusArchived:   true,
}

type Entity struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`
	AssigneeID  *string    `json:"assignee_id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone возвращает глубокую копию - снапшоты не должны делить слайсы и указатели
func (e Entity) Clone() Entity {
	c := e
	if e.AssigneeID != nil {
		v := *e.AssigneeID
		c.AssigneeID = &v
	}
	if e.DueDate != nil {
		v := *e.DueDate
		c.DueDate = &v
	}
	if e.CompletedAt != nil {
		v := *e.CompletedAt
		c.CompletedAt = &v
	}
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return c
}
