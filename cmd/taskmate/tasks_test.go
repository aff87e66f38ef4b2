package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"taskmate/internal/model"
)

func TestParseRange(t *testing.T) {
	t.Parallel()

	start, end, err := parseRange("2024-06-01", "2024-06-30", time.UTC)
	if err != nil {
		t.Fatalf("parseRange failed: %v", err)
	}
	if !start.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	start, end, err = parseRange("", "2024-06-30", time.UTC)
	if err != nil || !start.IsZero() || end.Month() != time.June {
		t.Errorf("open start: %v %v %v", start, end, err)
	}
	if _, _, err := parseRange("June", "", time.UTC); err == nil {
		t.Error("expected error for bad from")
	}
}

func TestPrintTasks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printTasks(&buf, nil, time.UTC)
	if strings.TrimSpace(buf.String()) != "No tasks." {
		t.Errorf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	printTasks(&buf, []model.Task{{
		ID:        "0190a1b2-0000-7000-8000-00000000abcd",
		Title:     "Buy milk",
		Priority:  model.PriorityLow,
		Completed: true,
		DueDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}}, time.UTC)
	out := buf.String()
	for _, want := range []string{"[x]", "0000abcd", "Buy milk", "low", model.Uncategorized, "2024-06-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q is missing %q", out, want)
		}
	}
}
