package ai

import (
	"fmt"
	"strings"
)

// EmptyAnswerMarker replaces blank expert slots so the model always sees the
// same number of labeled reference answers.
const EmptyAnswerMarker = "[EMPTY]"

// SystemPrompt returns the static grading rubric. It is independent of any
// particular question so it can be tested on its own.
func SystemPrompt(maxScore int) string {
	if maxScore <= 0 {
		maxScore = 10
	}

	builder := strings.Builder{}
	builder.WriteString("You are an exam autograder.\n\n")
	builder.WriteString("You will be given:\n")
	builder.WriteString("- The exam question (optional).\n")
	builder.WriteString("- One student's answer (as text, or as an attached image to extract first).\n")
	builder.WriteString("- Several separate expert reference answers, weighted equally.\n\n")
	builder.WriteString("Your job:\n")
	builder.WriteString("1. Carefully compare the student's answer to ALL expert answers.\n")
	builder.WriteString("2. Check coverage of key points, examples, edge cases, formulas, definitions and steps.\n")
	builder.WriteString("3. Look for conceptual mistakes, contradictions, or missing reasoning.\n")
	fmt.Fprintf(&builder, "4. Score the answer on a scale from 0 to %d, where %d is fully correct and clear, and 0 is no correct content.\n", maxScore, maxScore)
	builder.WriteString("5. Be strict but fair. Reward correct reasoning and penalize missing critical content.\n")
	builder.WriteString("6. Justify every point deduction against the expert answers.\n\n")
	builder.WriteString("OUTPUT FORMAT (IMPORTANT):\n")
	builder.WriteString("Return ONLY valid JSON in the following shape:\n\n")
	builder.WriteString("{\n")
	fmt.Fprintf(&builder, "  \"score\": <integer 0-%d>,\n", maxScore)
	builder.WriteString("  \"explanation\": \"short explanation of the grading decision\",\n")
	builder.WriteString("  \"coverage_summary\": \"what was covered vs missing compared to the expert answers\",\n")
	fmt.Fprintf(&builder, "  \"suggestions\": \"what the student should improve to reach %d/%d\"\n", maxScore, maxScore)
	builder.WriteString("}\n\n")
	builder.WriteString("Do NOT include any text before or after the JSON. No markdown.")

	return builder.String()
}

// ComposePrompt fuses the question, the expert answer slots and the student
// submission into the per-request user prompt. Empty expert slots are kept
// with an explicit marker so positional labels stay aligned.
func ComposePrompt(question string, expertAnswers []string, studentText string) string {
	experts := make([]string, 0, len(expertAnswers))
	for i, answer := range expertAnswers {
		body := strings.TrimSpace(answer)
		if body == "" {
			body = EmptyAnswerMarker
		}
		experts = append(experts, fmt.Sprintf("EXPERT ANSWER %d:\n%s", i+1, body))
	}

	var parts []string

	if q := strings.TrimSpace(question); q != "" {
		parts = append(parts, fmt.Sprintf("QUESTION:\n%s", q))
	}

	parts = append(parts, "REFERENCE EXPERT ANSWERS:\n\n"+strings.Join(experts, "\n\n"))

	student := strings.TrimSpace(studentText)
	closing := strings.Builder{}
	closing.WriteString("STUDENT TEXT (IF ANY):\n")
	if student != "" {
		closing.WriteString(student)
		closing.WriteString("\n\nUse the student text above directly.")
	} else {
		closing.WriteString("[No direct text, extract the student's answer from the attached image.]")
	}
	closing.WriteString("\nAfter you have the final student answer, compare it with the expert answers and grade it.")
	closing.WriteString("\nRemember to output STRICTLY the JSON format requested earlier.")
	parts = append(parts, closing.String())

	return strings.Join(parts, "\n\n")
}
