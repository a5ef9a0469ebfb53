package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown_BlankInput(t *testing.T) {
	assert.Equal(t, "", RenderMarkdown(""))
	assert.Equal(t, "", RenderMarkdown("  \n\t"))
}

func TestRenderMarkdown_Formatting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain text", "Owned by payments", []string{"<p>Owned by payments</p>"}},
		{"bold", "**do not delete**", []string{"<strong>do not delete</strong>"}},
		{"inline code", "rotate with `az ad app credential reset`", []string{"<code>az ad app credential reset</code>"}},
		{"link", "[runbook](https://wiki.example.com/rotate)", []string{`<a href="https://wiki.example.com/rotate"`, "runbook</a>"}},
		{"strikethrough", "~~legacy~~", []string{"<del>legacy</del>"}},
		{"list", "- owner: alice\n- team: payments", []string{"<li>owner: alice</li>", "<li>team: payments</li>"}},
		{"table", "| env | owner |\n|---|---|\n| prod | alice |", []string{"<table>", "<td>prod</td>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderMarkdown(tt.input)
			for _, want := range tt.want {
				assert.Contains(t, result, want)
			}
		})
	}
}

func TestRenderMarkdown_Sanitizes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reject string
	}{
		{"script tag", `<script>alert("xss")</script>`, "<script>"},
		{"event handler", `<img src="x" onerror="alert(1)">`, "onerror"},
		{"javascript link", "[click](javascript:alert(1))", "javascript:"},
		{"iframe", `<iframe src="https://evil.example.com"></iframe>`, "<iframe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, RenderMarkdown(tt.input), tt.reject)
		})
	}
}
