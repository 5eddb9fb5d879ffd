package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"shopping-agent/internal/domain/entity"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

type wireAction struct {
	Kind      string          `json:"kind"`
	Action    string          `json:"action"`
	Target    json.RawMessage `json:"target"`
	Value     json.RawMessage `json:"value"`
	Direction string          `json:"direction"`
	Reasoning string          `json:"reasoning"`
}

// ParseAction extracts an Action from raw model text. It tries the whole
// text, then a fenced json block, then the first balanced object.
func ParseAction(raw string) (entity.Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.Action{}, fmt.Errorf("%w: empty response", entity.ErrInvalidAction)
	}

	candidates := []string{raw}
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if obj := firstObject(raw); obj != "" {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		var w wireAction
		if err := json.Unmarshal([]byte(c), &w); err != nil {
			lastErr = err
			continue
		}
		return w.toAction()
	}
	return entity.Action{}, fmt.Errorf("%w: no JSON object in response: %v", entity.ErrInvalidAction, lastErr)
}

func (w wireAction) toAction() (entity.Action, error) {
	kind := w.Kind
	if kind == "" {
		kind = w.Action
	}

	target, err := parseTarget(w.Target)
	if err != nil {
		return entity.Action{}, err
	}

	return entity.Action{
		Kind:      entity.ActionKind(strings.ToLower(strings.TrimSpace(kind))),
		Target:    target,
		Value:     parseValue(w.Value),
		Direction: strings.ToLower(strings.TrimSpace(w.Direction)),
		Reasoning: strings.TrimSpace(w.Reasoning),
	}, nil
}

func parseTarget(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != float64(int(n)) {
			return nil, fmt.Errorf("%w: target %v is not an integer label", entity.ErrInvalidAction, n)
		}
		return entity.IntPtr(int(n)), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: unreadable target %s", entity.ErrInvalidAction, raw)
	}
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: target %q is not a label", entity.ErrInvalidAction, s)
	}
	return entity.IntPtr(v), nil
}

func parseValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// firstObject returns the first balanced {...} span, honouring strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Validate checks the schema and that every referenced label exists in the
// map the decision was made against.
func Validate(a entity.Action, labels entity.LabelMap) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if label, ok := a.TargetLabel(); ok && (a.Kind == entity.ActionClick || a.Kind == entity.ActionType) {
		if _, exists := labels[label]; !exists {
			return fmt.Errorf("%w: label %d is not in the current map", entity.ErrInvalidAction, label)
		}
	}
	if a.Kind == entity.ActionScroll && a.Direction != "" && a.Direction != "down" && a.Direction != "up" {
		return fmt.Errorf("%w: scroll direction %q", entity.ErrInvalidAction, a.Direction)
	}
	return nil
}

var errOracleEmpty = errors.New("oracle returned no text")
