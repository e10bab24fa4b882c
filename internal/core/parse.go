package core

import (
	"strings"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// ParseRole maps a role name to a Role. Matching ignores case and
// surrounding whitespace; anything else is an invalid argument.
func ParseRole(s string) (models.Role, error) {
	r := models.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", invalidArgf("unknown role %q, must be one of: ADMIN, MEMBER, OBSERVER", s)
	}
	return r, nil
}

// ParsePriority maps a priority name to a Priority.
func ParsePriority(s string) (models.Priority, error) {
	p := models.Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", invalidArgf("unknown priority %q, must be one of: LOW, MEDIUM, HIGH", s)
	}
	return p, nil
}

// ParseStatus maps a status name to a TaskStatus. Dashes are accepted in
// place of underscores so "in-progress" parses as IN_PROGRESS.
func ParseStatus(s string) (models.TaskStatus, error) {
	norm := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	st := models.TaskStatus(norm)
	if !st.Valid() {
		return "", invalidArgf("unknown status %q, must be one of: TODO, IN_PROGRESS, DONE", s)
	}
	return st, nil
}

// ParseDateField parses an optional date as supplied by a caller. The
// empty string means "clear the date" and yields a nil pointer.
func ParseDateField(s string) (*models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, invalidArgf("%s", err)
	}
	return &d, nil
}
