// internal/report/writer.go
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/models"
)

// Writer persists finished research reports, one JSON file plus one
// human-readable text file per query.
type Writer struct {
	dir    string
	logger logger.Logger
}

func NewWriter(dir string, log logger.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: log.With(map[string]interface{}{"component": "report"}),
	}
}

// Write renders the report to disk and returns the JSON file's path.
func (w *Writer) Write(report *models.ResearchReport) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}

	stamp := report.FinishedAt.Format("20060102-150405")
	base := fmt.Sprintf("research-%s-%s", stamp, shortID(report.Query.ID))

	jsonPath := filepath.Join(w.dir, base+".json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	textPath := filepath.Join(w.dir, base+".txt")
	if err := os.WriteFile(textPath, []byte(Render(report)), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	w.logger.Info("report written", map[string]interface{}{
		"query_id": report.Query.ID,
		"path":     jsonPath,
	})
	return jsonPath, nil
}

// Render formats a report for terminal display and the text file.
func Render(report *models.ResearchReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query: %s\n", report.Query.Text)
	fmt.Fprintf(&b, "Intent: %s\n", report.Intent)
	fmt.Fprintf(&b, "Status: %s\n", report.Status)
	fmt.Fprintf(&b, "Duration: %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Facets) > 0 {
		b.WriteString("\nFacets:\n")
		for _, f := range report.Facets {
			marker := ""
			if f.Exclude {
				marker = " (exclude)"
			}
			fmt.Fprintf(&b, "  %s=%s%s\n", f.Attribute, f.Value, marker)
		}
	}

	if len(report.Merged.Relaxations) > 0 {
		fmt.Fprintf(&b, "\nRelaxations applied: %s\n", strings.Join(report.Merged.Relaxations, ", "))
	}

	if report.Status == models.StatusNoMatches {
		b.WriteString("\nNo matches found.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nCandidates (%d):\n", len(report.Merged.IDs))
	for i, e := range report.Ranked.Entries {
		if e.Explanation != "" {
			fmt.Fprintf(&b, "  %d. %s - %s\n", i+1, e.Identifier, e.Explanation)
		} else {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, e.Identifier)
		}
	}
	if report.Ranked.Unranked {
		b.WriteString("\n(ranking unavailable, candidates shown unordered)\n")
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
