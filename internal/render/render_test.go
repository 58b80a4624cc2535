package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dailybrief/internal/core"
)

func sampleDigest() *core.Digest {
	return &core.Digest{
		ID:   "d1",
		Date: "2026-01-15",
		Groups: []core.DigestGroup{
			{
				Label:   "Databases",
				Summary: "Query planners all the way down.",
				Items: []core.DigestItem{
					{
						IsPrimary: true,
						Summary:   "The deep dive.",
						Article:   core.Article{Title: "Inside the planner", URL: "https://example.com/planner"},
					},
					{
						Article: core.Article{Title: "Planner follow-up"},
					},
				},
			},
			{
				Label: "General",
				Items: []core.DigestItem{
					{IsPrimary: true, Article: core.Article{Title: "Odds and ends"}},
				},
			},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(sampleDigest())

	if !strings.HasPrefix(out, "# Daily Digest - 2026-01-15\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(out, "\n", 2)[0])
	}
	for _, want := range []string{
		"## Databases",
		"Query planners all the way down.",
		"**[primary]** [Inside the planner](https://example.com/planner)",
		"  The deep dive.",
		"- Planner follow-up",
		"## General",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	dbIdx := strings.Index(out, "## Databases")
	genIdx := strings.Index(out, "## General")
	if dbIdx > genIdx {
		t.Error("groups rendered out of order")
	}
}

func TestRenderMarkdownEmptyDigest(t *testing.T) {
	out := RenderMarkdown(&core.Digest{Date: "2026-01-15"})
	if !strings.Contains(out, "No articles in this digest.") {
		t.Errorf("expected empty-digest message, got %q", out)
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteMarkdown(sampleDigest(), dir)
	if err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	if filepath.Base(path) != "digest_2026-01-15.md" {
		t.Errorf("unexpected file name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read rendered file: %v", err)
	}
	if !strings.Contains(string(data), "## Databases") {
		t.Error("rendered file missing group heading")
	}
}
