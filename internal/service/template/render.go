package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render substitutes {{var}} placeholders with the supplied values.
// Placeholders without a value are left verbatim so a missing CRM property
// is visible in the delivered text instead of silently vanishing.
func Render(content string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// ExtractVariables returns the distinct placeholder names in order of first
// appearance.
func ExtractVariables(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// AppendMetrics attaches formatted metric lines to the rendered text for
// actions that request computed values in the message body.
func AppendMetrics(content string, labels []string, formatted map[string]string) string {
	if len(labels) == 0 {
		return content
	}

	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n")
	for _, label := range labels {
		value, ok := formatted[label]
		if !ok {
			continue
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}
