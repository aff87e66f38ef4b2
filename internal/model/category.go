package model

import "strings"

const (
	CategoryPersonal = "Personal"
	CategoryOther    = "Other"
	Uncategorized    = "Uncategorized"
)

// Categories is the closed set offered when creating a task. Choosing
// CategoryOther lets the user type any name instead.
var Categories = []string{CategoryPersonal, "Work", "Shopping", "Health", "Learning", CategoryOther}

// ResolveCategory maps a picker choice plus optional custom text to the
// stored category name.
func ResolveCategory(choice, custom string) string {
	choice = strings.TrimSpace(choice)
	if strings.EqualFold(choice, CategoryOther) || strings.EqualFold(choice, "Others") {
		choice = strings.TrimSpace(custom)
	}
	for _, c := range Categories {
		if strings.EqualFold(c, choice) && c != CategoryOther {
			return c
		}
	}
	if choice == "" {
		return CategoryPersonal
	}
	return choice
}
