package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryReplacesByName(t *testing.T) {
	registry := NewRegistry()
	first := &entry{job: &stubJob{name: "a"}, spec: "0 8 * * *"}
	second := &entry{job: &stubJob{name: "b"}}
	replacement := &entry{job: &stubJob{name: "a"}, spec: "0 9 * * *"}

	if prev := registry.put(first); prev != nil {
		t.Fatalf("expected no previous entry")
	}
	registry.put(second)
	if prev := registry.put(replacement); prev != first {
		t.Fatalf("expected replaced entry to be returned")
	}

	entries := registry.list()
	if len(entries) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(entries))
	}
	if entries[0] != replacement || entries[1] != second {
		t.Fatalf("replacement should keep the original position")
	}
}

func TestRegistryRemoveAndNames(t *testing.T) {
	registry := NewRegistry()
	registry.put(&entry{job: &stubJob{name: "a"}})
	registry.put(&entry{job: &stubJob{name: "b"}})
	registry.put(&entry{job: &stubJob{name: "c"}})

	if registry.remove("b") == nil {
		t.Fatalf("expected b to be removed")
	}
	if registry.remove("b") != nil {
		t.Fatalf("second remove should be a no-op")
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Fatalf("unexpected names %v", names)
	}
	// ensure caller cannot mutate internal slice
	names[0] = "mutated"
	if registry.Names()[0] != "a" {
		t.Fatalf("internal slice leaked")
	}
}

func TestParseScheduleUsesLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	schedule, err := parseSchedule("0 8 * * *", london)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 08:00 BST is 07:00 UTC
	from := time.Date(2026, time.July, 1, 6, 0, 0, 0, time.UTC)
	next := schedule.Next(from)
	if want := time.Date(2026, time.July, 1, 7, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next.UTC())
	}

	if _, err := parseSchedule("not a spec", london); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := parseSchedule("  ", london); err == nil {
		t.Fatalf("expected empty spec error")
	}
}
