package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"

	"github.com/sokinpui/gfix/internal/editor"
)

var pageTemplate = template.Must(template.New("panel").Parse(`<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; padding: 10px; }
pre { padding: 10px; border-radius: 5px; overflow-x: auto; }
</style>
</head>
<body>
{{- range .Sections}}
<h2>{{.Heading}}</h2>
{{.Body}}
{{- end}}
{{- range .Actions}}
<button onclick='send({{.Message}})'>{{.Label}}</button>
{{- end}}
{{- if .Actions}}
<script>
function send(msg) {
  if (typeof acquireVsCodeApi === "function") {
    acquireVsCodeApi().postMessage(msg);
  } else {
    window.parent.postMessage(msg, "*");
  }
}
</script>
{{- end}}
</body>
</html>
`))

type htmlSection struct {
	Heading string
	Body    template.HTML
}

type htmlAction struct {
	Label   string
	Message editor.Message
}

// HTML renders a panel as a standalone page. Preformatted sections are
// escaped verbatim; other sections go through goldmark, which drops raw HTML.
func HTML(p editor.Panel) (string, error) {
	data := struct {
		Title    string
		Sections []htmlSection
		Actions  []htmlAction
	}{Title: p.Title}

	md := goldmark.New()
	for _, s := range p.Sections {
		var body bytes.Buffer
		if s.Preformatted {
			body.WriteString("<pre>")
			body.WriteString(html.EscapeString(s.Body))
			body.WriteString("</pre>")
		} else if err := md.Convert([]byte(s.Body), &body); err != nil {
			return "", fmt.Errorf("failed to render section %q: %w", s.Heading, err)
		}
		data.Sections = append(data.Sections, htmlSection{
			Heading: s.Heading,
			Body:    template.HTML(body.String()),
		})
	}
	for _, a := range p.Actions {
		data.Actions = append(data.Actions, htmlAction{Label: a.Label, Message: a.Message})
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Markdown renders a panel as a markdown document, used for editor buffers.
func Markdown(p editor.Panel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", p.Title)
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Heading)
		if s.Preformatted {
			fence := fenceFor(s.Body)
			fmt.Fprintf(&b, "%s\n%s\n%s\n", fence, s.Body, fence)
		} else {
			b.WriteString(s.Body)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// fenceFor returns a backtick fence longer than any backtick run in body.
func fenceFor(body string) string {
	longest, run := 0, 0
	for _, r := range body {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

// Terminal renders markdown for a terminal, falling back to the input when
// rendering is unavailable.
func Terminal(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
