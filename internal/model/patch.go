package model

import "time"

// Patch - явная дельта: nil-поле не трогает сущность.
// AssigneeSet отличает "снять исполнителя" (true + nil) от "не менять" (false).
type Patch struct {
	// ID задается только в create-интентах: клиент генерирует ключ сам,
	// чтобы оптимистичная запись совпала с подтвержденной
	ID          *string    `json:"id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Assignee    *string    `json:"assignee_id,omitempty"`
	AssigneeSet bool       `json:"-"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Apply сливает патч в сущность поле за полем и возвращает новый снапшот
func (p Patch) Apply(e Entity) Entity {
	out := e.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.AssigneeSet {
		if p.Assignee != nil {
			v := *p.Assignee
			out.AssigneeID = &v
		} else {
			out.AssigneeID = nil
		}
	}
	if p.ProjectID != nil {
		out.ProjectID = *p.ProjectID
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.DueDate != nil {
		v := *p.DueDate
		out.DueDate = &v
	}
	if p.CompletedAt != nil {
		v := *p.CompletedAt
		out.CompletedAt = &v
	}
	return out
}

func (p Patch) IsEmpty() bool {
	return p.ID == nil && p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && !p.AssigneeSet && p.ProjectID == nil &&
		p.Tags == nil && p.DueDate == nil && p.CompletedAt == nil
}

func StringPtr(s string) *string { return &s }
func IntPtr(i int) *int { return &i }
func StatusPtr(s Status) *Status { return &s }
func TimePtr(t time.Time) *time.Time { return &t }
func TagsPtr(tags []string) *[]string { return &tags }
