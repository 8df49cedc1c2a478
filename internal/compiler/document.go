package compiler

import (
	"bytes"
	"html/template"
	"strings"
)

type documentData struct {
	Title    string
	Script   string
	Style    string
	HasStyle bool
}

var shell = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en-US">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="manifest" href="/manifest.json">
{{- if .HasStyle}}
<link rel="stylesheet" href="{{.Style}}">
{{- end}}
</head>
<body>
<script type="module" src="{{.Script}}"></script>
</body>
</html>
`))

// renderDocument produces the HTML document. A project template gets the
// manifest and stylesheet links injected before </head> and the entry
// script before </body>; tags it already contains are left alone.
func renderDocument(tmpl []byte, data documentData) []byte {
	if len(tmpl) == 0 {
		var buf bytes.Buffer
		shell.Execute(&buf, data)
		return buf.Bytes()
	}

	doc := string(tmpl)

	var head strings.Builder
	if !strings.Contains(doc, `rel="manifest"`) {
		head.WriteString(`<link rel="manifest" href="/manifest.json">` + "\n")
	}
	if data.HasStyle && !strings.Contains(doc, data.Style) {
		head.WriteString(`<link rel="stylesheet" href="` + template.HTMLEscapeString(data.Style) + `">` + "\n")
	}
	doc = injectBefore(doc, "</head>", head.String())

	if !strings.Contains(doc, data.Script) {
		doc = injectBefore(doc, "</body>", `<script type="module" src="`+template.HTMLEscapeString(data.Script)+`"></script>`+"\n")
	}

	return []byte(doc)
}

// injectBefore inserts s before the last occurrence of tag, matched
// case-insensitively, or appends it when the tag is missing.
func injectBefore(doc, tag, s string) string {
	if s == "" {
		return doc
	}
	i := strings.LastIndex(strings.ToLower(doc), tag)
	if i < 0 {
		return doc + s
	}
	return doc[:i] + s + doc[i:]
}
