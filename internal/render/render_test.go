package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		notWant []string
	}{
		{name: "empty", in: ""},
		{name: "emphasis", in: "hello *world*", want: []string{"<p>hello <em>world</em></p>"}},
		{name: "strikethrough", in: "~~gone~~", want: []string{"<del>gone</del>"}},
		{name: "autolink", in: "see https://example.com", want: []string{`<a href="https://example.com">`}},
		{name: "hard wraps", in: "line one\nline two", want: []string{"<br>"}},
		{name: "raw html dropped", in: "<script>alert(1)</script>", notWant: []string{"<script>"}},
		{name: "javascript link dropped", in: "[x](javascript:alert(1))", notWant: []string{"javascript:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTML(tt.in)
			if err != nil {
				t.Fatalf("HTML: %v", err)
			}
			if tt.in == "" && got != "" {
				t.Fatalf("expected empty output, got %q", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q missing %q", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("output %q contains %q", got, w)
				}
			}
		})
	}
}
