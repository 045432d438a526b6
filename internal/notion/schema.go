package notion

import (
	"fmt"
	"sort"

	"github.com/jomei/notionapi"

	"github.com/taskbridge/taskbridge/internal/task"
	"github.com/taskbridge/taskbridge/pkg/cerr"
)

// Schema names the database properties the sync reads and writes. Users pick
// their own property names, so the first property of each required type in
// name order is taken.
type Schema struct {
	Title  string
	Due    string
	Status string
}

// ResolveSchema inspects a database's property configuration and resolves the
// schema. A database the sync cannot work with fails with FailedPrecondition
// so onboarding can tell the user exactly what to fix.
func ResolveSchema(props notionapi.PropertyConfigs) (Schema, error) {
	// Sorted so a database with two properties of the same type binds the
	// same one every cycle.
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var s Schema
	var statusConfig *notionapi.StatusPropertyConfig
	for _, name := range names {
		prop := props[name]
		switch prop.GetType() {
		case notionapi.PropertyConfigTypeTitle:
			if s.Title == "" {
				s.Title = name
			}
		case notionapi.PropertyConfigTypeDate:
			if s.Due == "" {
				s.Due = name
			}
		case notionapi.PropertyConfigStatus:
			if s.Status == "" {
				s.Status = name
				statusConfig, _ = prop.(*notionapi.StatusPropertyConfig)
			}
		}
	}

	if s.Title == "" {
		return Schema{}, cerr.NewError(cerr.FailedPrecondition, "database has no title property", nil)
	}
	if s.Due == "" {
		return Schema{}, cerr.NewError(cerr.FailedPrecondition, "database has no date property", nil)
	}
	if s.Status == "" || statusConfig == nil {
		return Schema{}, cerr.NewError(cerr.FailedPrecondition, "database has no status property", nil)
	}

	for _, required := range []string{task.StatusOpen.NotionValue(), task.StatusDone.NotionValue()} {
		if !hasStatusOption(statusConfig, required) {
			return Schema{}, cerr.NewError(
				cerr.FailedPrecondition,
				fmt.Sprintf("status property %q is missing the %q option", s.Status, required),
				nil,
			)
		}
	}
	return s, nil
}

func hasStatusOption(c *notionapi.StatusPropertyConfig, name string) bool {
	for _, o := range c.Status.Options {
		if o.Name == name {
			return true
		}
	}
	return false
}
