package importer

import (
	"strings"
)

var escapeReplacer = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

// DecodeString strips the quotes of a FSH string literal and decodes its
// escapes. The text is split on escaped backslashes first, so "\\n" is a
// backslash followed by "n" rather than a backslash and a newline.
func DecodeString(raw string) string {
	s := raw
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parts := strings.Split(s, `\\`)
	for i, p := range parts {
		parts[i] = escapeReplacer.Replace(p)
	}
	return strings.Join(parts, `\`)
}

// DedentMultiline strips the triple quotes of a multiline string and
// removes the indentation common to its lines. A whitespace-only first or
// last line is dropped and other whitespace-only lines are emptied.
func DedentMultiline(raw string) string {
	s := strings.TrimPrefix(raw, `"""`)
	s = strings.TrimSuffix(s, `"""`)
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	if len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	indent := -1
	for i, line := range lines {
		if isBlank(line) {
			lines[i] = ""
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i, line := range lines {
			if line != "" {
				lines[i] = line[indent:]
			}
		}
	}
	return strings.Join(lines, "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SplitArgs splits the raw argument text of an insert rule. Commas
// separate arguments unless escaped as "\," or enclosed in "[[ ]]"; "\)"
// is a literal parenthesis. An argument written entirely as "[[text]]" is
// passed as text, verbatim.
func SplitArgs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var args []string
	var cur strings.Builder
	flush := func() {
		arg := strings.TrimSpace(cur.String())
		if strings.HasPrefix(arg, "[[") && strings.HasSuffix(arg, "]]") && len(arg) >= 4 {
			arg = arg[2 : len(arg)-2]
		}
		args = append(args, arg)
		cur.Reset()
	}
	for i := 0; i < len(raw); i++ {
		switch {
		case strings.HasPrefix(raw[i:], "[["):
			end := strings.Index(raw[i+2:], "]]")
			if end < 0 {
				cur.WriteString(raw[i:])
				i = len(raw)
				continue
			}
			cur.WriteString(raw[i : i+2+end+2])
			i += 2 + end + 1
		case raw[i] == '\\' && i+1 < len(raw) && (raw[i+1] == ',' || raw[i+1] == ')'):
			cur.WriteByte(raw[i+1])
			i++
		case raw[i] == ',':
			flush()
		default:
			cur.WriteByte(raw[i])
		}
	}
	flush()
	return args
}

// substitute replaces every {param} token of the template body with the
// matching argument. Replacement is textual and single-pass.
func substitute(tmpl string, params, args []string) string {
	pairs := make([]string, 0, 2*len(params))
	for i, p := range params {
		pairs = append(pairs, "{"+p+"}", args[i])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
