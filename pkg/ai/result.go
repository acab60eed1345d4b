package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// GradeResult is the validated outcome of one grading call. Score is nil when
// the model response could not be parsed; RawResponse is retained on every
// path as the forensic trail.
type GradeResult struct {
	Score           *int   `json:"score"`
	Explanation     string `json:"explanation"`
	CoverageSummary string `json:"coverage_summary"`
	Suggestions     string `json:"suggestions"`
	RawResponse     string `json:"raw_model_response"`
}

// ExtractResult parses free-form model output into a GradeResult. It never
// fails: responses that cannot be parsed degrade into a result with no score
// and the raw text preserved as the explanation.
func ExtractResult(raw string, maxScore int) GradeResult {
	if maxScore <= 0 {
		maxScore = 10
	}

	fields, ok := salvageJSON(raw)
	if !ok {
		return GradeResult{
			Explanation: raw,
			RawResponse: raw,
		}
	}

	result := GradeResult{
		Explanation:     renderValue(fields["explanation"]),
		CoverageSummary: renderValue(fields["coverage_summary"]),
		Suggestions:     renderValue(fields["suggestions"]),
		RawResponse:     raw,
	}

	if score, ok := coerceScore(fields["score"]); ok {
		if score < 0 {
			score = 0
		}
		if score > maxScore {
			score = maxScore
		}
		result.Score = &score
	}

	return result
}

// salvageJSON runs the two-stage parse: a strict attempt when the trimmed
// text is exactly one object, then a scan between the first '{' and the last
// '}' to tolerate prose or markdown fences around the JSON.
func salvageJSON(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if fields, ok := parseObject(trimmed); ok {
			return fields, true
		}
	}

	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first == -1 || last == -1 || last <= first {
		return nil, false
	}

	return parseObject(trimmed[first : last+1])
}

func parseObject(candidate string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// coerceScore accepts the score as a JSON number or a numeric string.
func coerceScore(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(math.Round(v)), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return int(math.Round(f)), true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

// renderValue projects an arbitrary JSON value to display text. Models
// occasionally return objects or arrays where a string was requested; every
// shape must render rather than fail.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return renderMapping(v)
	case []any:
		return renderSequence(v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func renderMapping(mapping map[string]any) string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lines []string
	for _, key := range keys {
		lines = append(lines, capitalize(key)+":")
		switch items := mapping[key].(type) {
		case []any:
			for _, item := range items {
				lines = append(lines, fmt.Sprintf("  • %v", item))
			}
		default:
			lines = append(lines, fmt.Sprintf("  • %v", items))
		}
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderSequence(items []any) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("• %v", item))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
