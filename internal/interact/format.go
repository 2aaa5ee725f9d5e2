package interact

import "strings"

// ContinuePrompt is the resume prompt used when the operator answered
// nothing at all.
const ContinuePrompt = "Continue"

// Answer is the operator's response to a single question. FreeText wins
// over selected options when both are present.
type Answer struct {
	Header   string
	FreeText string
	Options  []string
}

// FormatAnswers turns the operator's answers into a plain-text resume
// prompt. Each answered question contributes one clause; clauses are
// joined with ". " and the prompt ends with a period. Zero answered
// questions yield the literal "Continue".
func FormatAnswers(answers []Answer) string {
	var clauses []string
	for _, a := range answers {
		switch {
		case a.FreeText != "":
			clauses = append(clauses, "For "+a.Header+": "+a.FreeText)
		case len(a.Options) > 0:
			clauses = append(clauses, "For "+a.Header+": I choose "+strings.Join(a.Options, ", "))
		}
	}

	if len(clauses) == 0 {
		return ContinuePrompt
	}
	return strings.Join(clauses, ". ") + "."
}

// FormatPlanApproval returns the resume prompt approving a plan.
func FormatPlanApproval() string {
	return "yes"
}

// FormatPlanRejection returns the resume prompt rejecting a plan, with
// the operator's feedback appended when present.
func FormatPlanRejection(feedback string) string {
	if feedback == "" {
		return "no"
	}
	return "no, " + feedback
}
