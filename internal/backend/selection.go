package backend

import (
	"fmt"
	"strings"
)

// Embed is a related table pulled into each row under its own name.
type Embed struct {
	Table   string
	Columns []string
}

// Selection is a parsed Select string.
type Selection struct {
	All     bool
	Columns []string
	Embeds  []Embed
}

// Relation describes how an embedded table joins the selected one: rows of
// the selected table carry ForeignKey pointing at the embedded table's id.
type Relation struct {
	ForeignKey string
}

// Relations lists the embeds backends must support. Every dependent table
// reaches its house through house_id.
var Relations = map[string]Relation{
	"houses": {ForeignKey: "house_id"},
}

// ParseSelection parses "*", "id, house_number" or "*, houses(house_number)".
// Only one level of embedding is supported.
func ParseSelection(s string) (Selection, error) {
	var sel Selection
	s = strings.TrimSpace(s)
	if s == "" {
		sel.All = true
		return sel, nil
	}
	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case part == "*":
			sel.All = true
		case strings.Contains(part, "("):
			open := strings.Index(part, "(")
			if !strings.HasSuffix(part, ")") {
				return Selection{}, fmt.Errorf("malformed embed %q", part)
			}
			table := strings.TrimSpace(part[:open])
			if _, ok := Relations[table]; !ok {
				return Selection{}, fmt.Errorf("unknown relation %q", table)
			}
			inner := part[open+1 : len(part)-1]
			if strings.ContainsAny(inner, "()") {
				return Selection{}, fmt.Errorf("nested embed %q not supported", part)
			}
			e := Embed{Table: table}
			for _, c := range strings.Split(inner, ",") {
				if c = strings.TrimSpace(c); c != "" {
					if !validIdent(c) && c != "*" {
						return Selection{}, fmt.Errorf("invalid column %q", c)
					}
					e.Columns = append(e.Columns, c)
				}
			}
			sel.Embeds = append(sel.Embeds, e)
		default:
			if !validIdent(part) {
				return Selection{}, fmt.Errorf("invalid column %q", part)
			}
			sel.Columns = append(sel.Columns, part)
		}
	}
	return sel, nil
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// ValidIdent reports whether s is safe to splice into SQL as an identifier.
func ValidIdent(s string) bool {
	return validIdent(s)
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
