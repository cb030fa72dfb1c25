package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/myrjola/sleuth/internal/models"
)

const (
	promptFactWindow    = 10
	promptMessageWindow = 6
)

const summaryInstructions = `You turn free-form incident reports into structured, investigation-ready data.

Answer with the extract_summary_structure tool.

- List every person mentioned, named or not, with their role, relationships and emotional state.
- If nobody is named, add a descriptive placeholder such as "unknown person". The actor list is never empty.
- Name the primary conflict and any secondary tensions, including implicit ones.
- Collect timeline markers, locations, communication history and the overall atmosphere.
- Record what is unclear or missing instead of speculating.`

const goalsInstructions = `You plan investigations of interpersonal incidents.

Answer with the generate_investigation_goals tool.

- Produce between 5 and 7 goals specific to the incident.
- Each goal is a factual question (who, what, when, where, why) answerable in an interview.
- Keep every goal under 12 words.`

const factsInstructions = `You extract facts from interview answers.

Answer with the extract_facts tool.

The answer comes with reasoning explaining what choosing it reveals. Use the reasoning to interpret the answer.

- Extract concrete, atomic claims only.
- Mark hedging or evasive answers as "uncertain" and definite statements as "certain".
- Put any time reference in the timestamp field, otherwise use an empty string.
- Return an empty list when the answer contains no facts.`

const goalUpdatesInstructions = `You track the progress of an investigation.

Answer with the update_goal_progress tool.

- Raise the confidence of a goal when new facts address it.
- Confidence is an integer from 0 to 100. A goal with confidence of 80 or more is complete.
- Refer to goals by their exact description.
- Explain every change briefly.`

const turnInstructions = `You process one interview turn.

Call both the extract_facts tool and the update_goal_progress tool.

Fact extraction:
- The answer comes with reasoning explaining what choosing it reveals. Use it to interpret the answer.
- Extract concrete, atomic claims only and return an empty list when there are none.
- Mark hedging or evasive answers as "uncertain" and definite statements as "certain".

Goal tracking:
- Raise the confidence of a goal only when the extracted facts address it.
- Confidence is an integer from 0 to 100. A goal with confidence of 80 or more is complete.
- Refer to goals by their exact description.`

const extractionInstructions = `You turn free-form incident reports into structured data and plan the investigation.

Call both the extract_summary_structure tool and the generate_investigation_goals tool.

Summary:
- List every person mentioned with role, relationships and emotional state. Never return an empty actor list.
- Name the primary conflict and secondary tensions.
- Collect timeline markers, locations, communication history, atmosphere and missing information.

Goals:
- Produce between 5 and 7 factual goals specific to the incident, each under 12 words.`

const questionInstructions = `You interview someone about an incident.

Answer with the generate_question_with_answers tool.

Question:
- Target the goal with the lowest confidence.
- Never introduce people who are not in the summary or the facts.
- Build on previous answers and ask one clear question in a conversational tone.
- When a redirect is given, use it to steer the conversation back.
- When every goal is above 80 confidence, ask a closing question and set target_goal to wrap_up.

Answers:
- Offer exactly 4 plausible answers written as the respondent would say them.
- Vary their quality: detailed and vague, accurate and evasive.
- Include one answer expressing uncertainty such as "I don't know".
- Explain for each answer what choosing it would reveal.`

const driftInstructions = `You check whether an interview answer addressed the question asked.

Answer with the detect_answer_drift tool.

- Partial answers count as addressing the question. Total avoidance or rambling does not.
- When the answer drifted, suggest a redirect that refers back to the original question.`

const analysisInstructions = `You write the closing report of an incident investigation.

Answer with the generate_analysis_report tool.

- Build a chronological timeline from the facts. Leave it empty when no times are known.
- Summarize the key facts without redundancy.
- List only the gaps that could change the verdict.
- Assign primary responsibility with a percentage from 0 to 100 and explain the role of the others.
- Rate the drama from 1 (minor misunderstanding) to 10 (friendship-ending) and suggest a way to resolve it.`

func summaryPrompt(report string) string {
	var b strings.Builder
	if strings.TrimSpace(report) == "" {
		b.WriteString("The report consists of the attached images only.\n\n")
	} else {
		fmt.Fprintf(&b, "Incident report:\n\n%s\n\n", report)
	}
	b.WriteString("Extract the actors, conflicts, details and missing information.")
	return b.String()
}

func goalsPrompt(summary models.ExtractedSummary) string {
	return fmt.Sprintf("Structured incident summary:\n\n%s\n\nGenerate 5 to 7 investigation goals.", renderJSON(summary))
}

func extractionPrompt(report string) string {
	return fmt.Sprintf("Incident report:\n\n%s\n\nExtract the structured summary and generate 5 to 7 investigation goals.",
		report)
}

func factsPrompt(question string, answer models.Answer) string {
	return fmt.Sprintf("Question asked: %s\n\nSelected answer:\n%s\n\nExtract the facts in this answer.",
		question, renderJSON(answer))
}

func goalUpdatesPrompt(goals []models.Goal, facts []models.Fact) string {
	var b strings.Builder
	b.WriteString("Current investigation goals:\n")
	writeGoals(&b, goals)
	b.WriteString("\nNewly extracted facts:\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s\n", f.Claim)
	}
	b.WriteString("\nUpdate the confidence of each goal based on these facts.")
	return b.String()
}

func turnPrompt(question string, answer models.Answer, goals []models.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question asked: %s\n\nSelected answer:\n%s\n\n", question, renderJSON(answer))
	b.WriteString("Current investigation goals:\n")
	writeGoals(&b, goals)
	b.WriteString("\nExtract the facts in this answer and update the goals they address.")
	return b.String()
}

func questionPrompt(in SelectionInput) string {
	var b strings.Builder
	if in.Participant.Name != "" || in.Participant.Role != "" {
		name := in.Participant.Name
		if name == "" {
			name = "Unknown"
		}
		role := in.Participant.Role
		if role == "" {
			role = "unknown"
		}
		if description, ok := models.RoleDescription(role); ok {
			role = fmt.Sprintf("%s (%s)", role, description)
		}
		fmt.Fprintf(&b, "Interviewee: %s, %s.\n", name, role)
		b.WriteString("Ask what this person can realistically know, be gentle with participants and probing with " +
			"secondhand sources, and keep their possible bias in mind.\n\n")
	}
	if in.Summary != nil {
		fmt.Fprintf(&b, "Incident summary:\n%s\n\n", renderJSON(in.Summary))
	}

	b.WriteString("Investigation goals:\n")
	writeGoals(&b, in.Goals)

	b.WriteString("\nFacts gathered so far:\n")
	for _, f := range lastN(in.Facts, promptFactWindow) {
		fmt.Fprintf(&b, "- %s\n", f.Claim)
	}

	b.WriteString("\nRecent conversation:\n")
	for _, m := range lastN(in.Messages, promptMessageWindow) {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}

	if in.DriftRedirect != "" {
		fmt.Fprintf(&b, "\nThe previous answer went off track. Suggested redirect: %s\n", in.DriftRedirect)
	}
	b.WriteString("\nGenerate the next question with 4 candidate answers.")
	return b.String()
}

func driftPrompt(question string, answer string) string {
	return fmt.Sprintf("Question asked: %s\n\nAnswer: %s\n\nDid the answer address the question?", question, answer)
}

func analysisPrompt(s *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\n", s.IncidentName)
	fmt.Fprintf(&b, "Initial report: %s\n", s.Report)
	fmt.Fprintf(&b, "Interview turns: %d\n", s.TurnCount)
	if s.Participant.Name != "" {
		fmt.Fprintf(&b, "Interviewee: %s (%s)\n", s.Participant.Name, s.Participant.Role)
	}
	if s.ExtractedSummary != nil {
		fmt.Fprintf(&b, "\nStructured summary:\n%s\n", renderJSON(s.ExtractedSummary))
	}

	b.WriteString("\nInvestigation goals:\n")
	writeGoals(&b, s.Goals)

	b.WriteString("\nFacts:\n")
	for _, f := range s.Facts {
		fmt.Fprintf(&b, "- [%s] %s", f.Confidence, f.Claim)
		if f.Timestamp != "" {
			fmt.Fprintf(&b, " (at %s)", f.Timestamp)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nTranscript:\n")
	for _, m := range s.Messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	b.WriteString("\nWrite the closing report.")
	return b.String()
}

func writeGoals(b *strings.Builder, goals []models.Goal) {
	for _, g := range goals {
		fmt.Fprintf(b, "- %s (confidence: %d%%, status: %s)\n", g.Description, g.Confidence, g.Status)
	}
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

// renderJSON is only used for prompt text so marshalling errors of plain data types cannot occur.
func renderJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
