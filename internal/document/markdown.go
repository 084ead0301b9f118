package document

import (
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// RenderMarkdown returns content under an optional title and a generation
// timestamp.
func RenderMarkdown(title, content string, now time.Time) string {
	var parts []string
	if title != "" {
		parts = append(parts, "# "+title+"\n")
	}
	parts = append(parts,
		"*Generated at: "+now.Format(timestampLayout)+"*\n",
		"---\n",
		content)
	return strings.Join(parts, "\n")
}
