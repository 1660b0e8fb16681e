package temporal

import (
	"strings"
	"testing"
)

func TestRunMemoCarriesTaskAndStrategy(t *testing.T) {
	memo := RunMemo("summarize the meeting notes", "roundrobin")

	if memo["strategy"] != "roundrobin" {
		t.Fatalf("expected strategy in memo, got %v", memo["strategy"])
	}
	if memo["task"] != "summarize the meeting notes" {
		t.Fatalf("expected task in memo, got %v", memo["task"])
	}
}

func TestRunMemoOmitsBlankTask(t *testing.T) {
	memo := RunMemo("   ", "random")

	if _, ok := memo["task"]; ok {
		t.Fatalf("expected no task key for blank task")
	}
}

func TestRunMemoTruncatesLongTasks(t *testing.T) {
	memo := RunMemo(strings.Repeat("a", memoLimitBytes+100), "random")

	task, ok := memo["task"].(string)
	if !ok {
		t.Fatalf("expected task string, got %T", memo["task"])
	}
	if len(task) > memoLimitBytes {
		t.Fatalf("expected task length <= %d, got %d", memoLimitBytes, len(task))
	}
	if !strings.HasSuffix(task, "...") {
		t.Fatalf("expected truncation marker, got %q", task[len(task)-8:])
	}
}
