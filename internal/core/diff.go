package core

import (
	"strings"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// trackedField is one task attribute subject to change tracking.
type trackedField struct {
	name   string
	render func(models.Task) string
}

// trackedFields lists the tracked attributes in the order they appear in a
// change description. Each renderer formats nil as null and string values
// quoted, so two snapshots differ on a field exactly when the renderings do.
var trackedFields = []trackedField{
	{"name", func(t models.Task) string { return quote(t.Name) }},
	{"description", func(t models.Task) string {
		if t.Description == nil {
			return "null"
		}
		return quote(*t.Description)
	}},
	{"priority", func(t models.Task) string { return enumValue(string(t.Priority)) }},
	{"status", func(t models.Task) string { return enumValue(string(t.Status)) }},
	{"dueDate", func(t models.Task) string { return dateValue(t.DueDate) }},
	{"endDate", func(t models.Task) string { return dateValue(t.EndDate) }},
}

// ComputeDiff describes how next differs from prev over the tracked fields,
// as "field: old -> new" pairs joined by ", ". It returns the empty string
// when nothing tracked changed.
func ComputeDiff(prev, next models.Task) string {
	var changes []string
	for _, f := range trackedFields {
		before, after := f.render(prev), f.render(next)
		if before == after {
			continue
		}
		changes = append(changes, f.name+": "+before+" -> "+after)
	}
	return strings.Join(changes, ", ")
}

// DiffFields returns the names of the tracked fields that differ between
// prev and next, in description order.
func DiffFields(prev, next models.Task) []string {
	var names []string
	for _, f := range trackedFields {
		if f.render(prev) != f.render(next) {
			names = append(names, f.name)
		}
	}
	return names
}

// statusChange is the description recorded for a status-only transition.
func statusChange(from, to models.TaskStatus) string {
	return "status: " + from.String() + " -> " + to.String()
}

func quote(s string) string {
	return `"` + s + `"`
}

// enumValue renders an unset enum as null.
func enumValue(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func dateValue(d *models.Date) string {
	if d == nil {
		return "null"
	}
	return d.String()
}
