package entity

import (
	"fmt"
	"sort"
	"strings"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ElementDescriptor struct {
	Label       int      `json:"label"`
	Kind        string   `json:"kind"`
	Text        string   `json:"text,omitempty"`
	AriaLabel   string   `json:"aria_label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Href        string   `json:"href,omitempty"`
	Name        string   `json:"name,omitempty"`
	InputType   string   `json:"input_type,omitempty"`
	Purpose     string   `json:"purpose,omitempty"`
	Position    Position `json:"position"`
	Selectors   []string `json:"selectors"`
}

// DisplayText is the most human-readable text the element carries.
func (d ElementDescriptor) DisplayText() string {
	switch {
	case d.Text != "":
		return d.Text
	case d.AriaLabel != "":
		return d.AriaLabel
	case d.Placeholder != "":
		return d.Placeholder
	}
	return ""
}

func (d ElementDescriptor) String() string {
	text := d.DisplayText()
	if r := []rune(text); len(r) > 50 {
		text = string(r[:50])
	}
	return fmt.Sprintf("[%d] %s - %q", d.Label, strings.ToUpper(d.Kind), text)
}

type LabelMap map[int]ElementDescriptor

func (m LabelMap) Get(label int) (ElementDescriptor, bool) {
	d, ok := m[label]
	return d, ok
}

func (m LabelMap) Labels() []int {
	labels := make([]int, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// Dense reports whether the labels form the sequence 1..len(m).
func (m LabelMap) Dense() bool {
	for i := 1; i <= len(m); i++ {
		if _, ok := m[i]; !ok {
			return false
		}
	}
	return true
}
