package model

import "time"

// FilterState - активные ограничения выборки.
// Пустое поле означает "без ограничения по этому измерению".
type FilterState struct {
	Search    string
	Statuses  []Status
	Assignees []string
	Projects  []string
	Tags      []string
	DueFrom   *time.Time
	DueTo     *time.Time
}

func (f FilterState) Equal(other FilterState) bool {
	if f.Search != other.Search {
		return false
	}
	if !statusSlicesEqual(f.Statuses, other.Statuses) {
		return false
	}
	if !stringSlicesEqual(f.Assignees, other.Assignees) ||
		!stringSlicesEqual(f.Projects, other.Projects) ||
		!stringSlicesEqual(f.Tags, other.Tags) {
		return false
	}
	return timePtrEqual(f.DueFrom, other.DueFrom) && timePtrEqual(f.DueTo, other.DueTo)
}

// Merge накладывает непустые поля частичного фильтра поверх текущего
func (f FilterState) Merge(partial FilterState) FilterState {
	out := f
	if partial.Search != "" {
		out.Search = partial.Search
	}
	if partial.Statuses != nil {
		out.Statuses = partial.Statuses
	}
	if partial.Assignees != nil {
		out.Assignees = partial.Assignees
	}
	if partial.Projects != nil {
		out.Projects = partial.Projects
	}
	if partial.Tags != nil {
		out.Tags = partial.Tags
	}
	if partial.DueFrom != nil {
		out.DueFrom = partial.DueFrom
	}
	if partial.DueTo != nil {
		out.DueTo = partial.DueTo
	}
	return out
}

type SortField string

const (
	SortByTitle     SortField = "title"
	SortByStatus    SortField = "status"
	SortByPriority  SortField = "priority"
	SortByDueDate   SortField = "due_date"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

type SortState struct {
	Field      SortField
	Descending bool
}

func statusSlicesEqual(a, b []Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equal(*b)
}
