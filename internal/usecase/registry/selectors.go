package registry

import (
	"fmt"
	"regexp"
	"strings"

	"shopping-agent/internal/domain/entity"
)

type dataAttr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawElement is one record returned by the annotation script.
type RawElement struct {
	Label       int       `json:"label"`
	Tag         string    `json:"tag"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Classes     []string  `json:"classes"`
	DataAttr    *dataAttr `json:"data_attr"`
	AriaLabel   string    `json:"aria_label"`
	InputType   string    `json:"input_type"`
	Placeholder string    `json:"placeholder"`
	Href        string    `json:"href"`
	Text        string    `json:"text"`
	NthChild    int       `json:"nth_child"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

var cssIdent = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

func (r RawElement) descriptor() entity.ElementDescriptor {
	return entity.ElementDescriptor{
		Label:       r.Label,
		Kind:        r.Tag,
		Text:        r.Text,
		AriaLabel:   r.AriaLabel,
		Placeholder: r.Placeholder,
		Href:        r.Href,
		Name:        r.Name,
		InputType:   r.InputType,
		Position:    entity.Position{X: r.X, Y: r.Y},
		Selectors:   CandidateSelectors(r),
	}
}

// CandidateSelectors returns selectors most specific first: id, name, data
// attribute, aria-label, classes, type, structural position.
func CandidateSelectors(r RawElement) []string {
	tag := r.Tag
	if tag == "" {
		tag = "*"
	}

	var out []string
	if r.ID != "" {
		if cssIdent.MatchString(r.ID) {
			out = append(out, "#"+r.ID)
		} else {
			out = append(out, fmt.Sprintf(`[id="%s"]`, quoteCSS(r.ID)))
		}
	}
	if r.Name != "" {
		out = append(out, fmt.Sprintf(`%s[name="%s"]`, tag, quoteCSS(r.Name)))
	}
	if r.DataAttr != nil && r.DataAttr.Name != "" {
		out = append(out, fmt.Sprintf(`%s[%s="%s"]`, tag, r.DataAttr.Name, quoteCSS(r.DataAttr.Value)))
	}
	if r.AriaLabel != "" {
		out = append(out, fmt.Sprintf(`%s[aria-label="%s"]`, tag, quoteCSS(r.AriaLabel)))
	}

	var classes []string
	for _, c := range r.Classes {
		if strings.HasPrefix(c, "ai-marker") || !cssIdent.MatchString(c) {
			continue
		}
		classes = append(classes, c)
	}
	if len(classes) > 0 {
		out = append(out, tag+"."+strings.Join(classes, "."))
	}

	if r.InputType != "" {
		out = append(out, fmt.Sprintf(`%s[type="%s"]`, tag, quoteCSS(r.InputType)))
	}
	if r.NthChild > 0 {
		out = append(out, fmt.Sprintf("%s:nth-child(%d)", tag, r.NthChild))
	}

	return dedupe(out)
}

// dedupe removes repeated selectors keeping the first occurrence.
func dedupe(selectors []string) []string {
	seen := make(map[string]struct{}, len(selectors))
	out := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func quoteCSS(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

// xpathFor builds a fallback XPath from the most stable attribute available.
func xpathFor(d entity.ElementDescriptor) string {
	tag := d.Kind
	if tag == "" {
		tag = "*"
	}
	switch {
	case d.Name != "" && !strings.Contains(d.Name, `"`):
		return fmt.Sprintf(`//%s[@name="%s"]`, tag, d.Name)
	case d.AriaLabel != "" && !strings.Contains(d.AriaLabel, `"`):
		return fmt.Sprintf(`//%s[@aria-label="%s"]`, tag, d.AriaLabel)
	case d.Text != "" && len(d.Text) <= 60 && !strings.Contains(d.Text, `"`):
		return fmt.Sprintf(`//%s[contains(normalize-space(.), "%s")]`, tag, strings.Join(strings.Fields(d.Text), " "))
	}
	return ""
}
