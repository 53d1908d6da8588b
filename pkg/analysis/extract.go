package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ErrNoJSON is returned when a model reply holds no recoverable JSON object.
var ErrNoJSON = errors.New("analysis: no JSON object in model reply")

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON returns the JSON object embedded in a model reply. It tries, in
// order: fenced code blocks, the first balanced {...} object, and the whole
// trimmed text. When none of them is valid JSON the most promising candidate
// is run through a repair pass.
func ExtractJSON(text string) (string, error) {
	var candidates []string

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	if obj, ok := balancedObject(text); ok {
		candidates = append(candidates, obj)
	}

	candidates = append(candidates, strings.TrimSpace(text))

	for _, c := range candidates {
		if isObject(c) {
			return c, nil
		}
	}

	for _, c := range candidates {
		if !strings.Contains(c, "{") {
			continue
		}

		fixed, err := jsonrepair.RepairJSON(c[strings.Index(c, "{"):])
		if err == nil && isObject(fixed) {
			return fixed, nil
		}
	}

	return "", ErrNoJSON
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}

	var v map[string]any

	return json.Unmarshal([]byte(s), &v) == nil
}

// balancedObject returns the first {...} span whose braces balance, ignoring
// braces inside JSON strings.
func balancedObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false

	for i := start; i < len(text); i++ {
		ch := text[i]

		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
