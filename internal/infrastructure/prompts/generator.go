package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

const maxElementText = 60

type VisionPromptData struct {
	Goal        string
	PageContext string
	URL         string
	Elements    []string
	History     []string
}

type CheckoutPromptData struct {
	URL string
}

// ElementLine renders one label as `[n] KIND - "text"`, falling back to the
// aria label or placeholder when the element has no text.
func ElementLine(d entity.ElementDescriptor) string {
	line := fmt.Sprintf("[%d] %s", d.Label, strings.ToUpper(d.Kind))
	switch {
	case d.Text != "":
		line += fmt.Sprintf(" - %q", truncate(d.Text, maxElementText))
	case d.AriaLabel != "":
		line += fmt.Sprintf(" - (aria: %q)", truncate(d.AriaLabel, maxElementText))
	case d.Placeholder != "":
		line += fmt.Sprintf(" - (placeholder: %q)", truncate(d.Placeholder, maxElementText))
	}
	return line
}

func HistoryLine(i int, r entity.ActionRecord) string {
	line := fmt.Sprintf("  %d. %s", i, r.Action.Kind)
	if label, ok := r.Action.TargetLabel(); ok {
		line += fmt.Sprintf(" on element [%d]", label)
	}
	if r.Action.Value != "" {
		line += " with value: " + r.Action.Value
	}
	if r.Action.Kind == entity.ActionScroll && r.Action.Direction != "" {
		line += " " + r.Action.Direction
	}
	return line + " -> " + string(r.Outcome)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func NewVisionPromptData(req output.DecisionRequest) VisionPromptData {
	data := VisionPromptData{
		Goal:        req.Goal,
		PageContext: req.PageContext,
		URL:         req.URL,
	}
	for _, label := range req.Labels.Labels() {
		data.Elements = append(data.Elements, ElementLine(req.Labels[label]))
	}
	for i, rec := range req.RecentHistory {
		data.History = append(data.History, HistoryLine(i+1, rec))
	}
	return data
}

func GenerateVisionPrompt(baseTemplate string, req output.DecisionRequest) (string, error) {
	return render("vision", baseTemplate, NewVisionPromptData(req))
}

func GenerateCheckoutPrompt(baseTemplate, url string) (string, error) {
	return render("checkout", baseTemplate, CheckoutPromptData{URL: url})
}

func render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
