package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMermaid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"flowchart arrow", "graph TD\n  A-->B", true},
		{"fence marker present", "graph TD\n  A-->B\n```", false},
		{"sequence diagram", "sequenceDiagram\n  Alice->>Bob: hi", true},
		{"keyword is case-insensitive", "GANTT\n  dateFormat YYYY-MM-DD", true},
		{"keyword without structure", "graph", false},
		{"structure without keyword", "A-->B", false},
		{"leading whitespace trimmed", "\n\n  pie title Pets\n  \"Dogs\" : 386", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMermaid(tt.input))
		})
	}
}
