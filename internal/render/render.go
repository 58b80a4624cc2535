package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dailybrief/internal/core"
)

// RenderMarkdown turns a digest into a markdown document. Groups and
// items appear in their stored sort order; primary articles are marked.
func RenderMarkdown(digest *core.Digest) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Daily Digest - %s\n\n", digest.Date))

	if len(digest.Groups) == 0 {
		b.WriteString("No articles in this digest.\n")
		return b.String()
	}

	for _, group := range digest.Groups {
		b.WriteString(fmt.Sprintf("## %s\n\n", group.Label))
		if group.Summary != "" {
			b.WriteString(group.Summary + "\n\n")
		}

		for _, item := range group.Items {
			marker := "-"
			if item.IsPrimary {
				marker = "- **[primary]**"
			}

			title := item.Article.Title
			if item.Article.URL != "" {
				title = fmt.Sprintf("[%s](%s)", title, item.Article.URL)
			}
			b.WriteString(fmt.Sprintf("%s %s\n", marker, title))

			if item.Summary != "" {
				b.WriteString(fmt.Sprintf("  %s\n", item.Summary))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// WriteMarkdown renders a digest and writes it to
// <outputDir>/digest_<date>.md, returning the file path.
func WriteMarkdown(digest *core.Digest, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "digests"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, fmt.Sprintf("digest_%s.md", digest.Date))
	if err := os.WriteFile(filePath, []byte(RenderMarkdown(digest)), 0644); err != nil {
		return "", fmt.Errorf("failed to write digest file %s: %w", filePath, err)
	}

	return filePath, nil
}
