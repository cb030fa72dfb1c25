package interview

import (
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	toolExtractSummary   = "extract_summary_structure"
	toolGenerateGoals    = "generate_investigation_goals"
	toolExtractFacts     = "extract_facts"
	toolUpdateGoals      = "update_goal_progress"
	toolGenerateQuestion = "generate_question_with_answers"
	toolDetectDrift      = "detect_answer_drift"
	toolAnalyze          = "generate_analysis_report"
)

func str(description string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: description} //nolint:exhaustruct // scalar.
}

func stringList(description string) jsonschema.Definition {
	return jsonschema.Definition{ //nolint:exhaustruct // array of scalars.
		Type:        jsonschema.Array,
		Description: description,
		Items:       &jsonschema.Definition{Type: jsonschema.String}, //nolint:exhaustruct // scalar.
	}
}

func object(properties map[string]jsonschema.Definition, required ...string) jsonschema.Definition {
	return jsonschema.Definition{ //nolint:exhaustruct // plain object.
		Type:       jsonschema.Object,
		Properties: properties,
		Required:   required,
	}
}

func arrayOf(description string, items jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{ //nolint:exhaustruct // array of objects.
		Type:        jsonschema.Array,
		Description: description,
		Items:       &items,
	}
}

var summaryTool = ai.Tool{
	Name:        toolExtractSummary,
	Description: "Extract structured data from a free-form incident report",
	Parameters: object(map[string]jsonschema.Definition{
		"actors": arrayOf("Everyone involved. Never empty, use a descriptive placeholder when nobody is named.",
			object(map[string]jsonschema.Definition{
				"name":            str("Name or descriptive role of the person"),
				"role":            str("Role in the incident"),
				"relationships":   stringList("Relationships to other actors"),
				"emotional_state": stringList("Emotional states inferred from the report"),
			}, "name", "role", "relationships", "emotional_state")),
		"point_of_conflict": object(map[string]jsonschema.Definition{
			"primary":   str("The main issue or triggering event"),
			"secondary": stringList("Contributing issues and underlying tensions"),
		}, "primary", "secondary"),
		"general_details": object(map[string]jsonschema.Definition{
			"timeline_markers":      stringList("Time references"),
			"location_context":      stringList("Places where things happened"),
			"communication_history": stringList("What was said and how information was shared"),
			"emotional_atmosphere":  str("Overall mood and tension"),
		}, "timeline_markers", "location_context", "communication_history", "emotional_atmosphere"),
		"missing_info": stringList("Unclear or missing information worth asking about"),
	}, "actors", "point_of_conflict", "general_details", "missing_info"),
}

var goalsTool = ai.Tool{
	Name:        toolGenerateGoals,
	Description: "Generate 5 to 7 specific investigation goals for the incident",
	Parameters: object(map[string]jsonschema.Definition{
		"goals": stringList("Between 5 and 7 concise investigation goals"),
	}, "goals"),
}

var factsTool = ai.Tool{
	Name:        toolExtractFacts,
	Description: "Extract concrete facts from an interview answer",
	Parameters: object(map[string]jsonschema.Definition{
		"facts": arrayOf("Atomic facts. Empty when the answer contains none.",
			object(map[string]jsonschema.Definition{
				"topic":     str("What the fact is about"),
				"claim":     str("The atomic claim"),
				"timestamp": str("Time reference mentioned in the answer or an empty string"),
				"confidence": jsonschema.Definition{ //nolint:exhaustruct // enum.
					Type: jsonschema.String,
					Enum: []string{"certain", "uncertain"},
				},
			}, "topic", "claim", "timestamp", "confidence")),
	}, "facts"),
}

var goalUpdatesTool = ai.Tool{
	Name:        toolUpdateGoals,
	Description: "Update the confidence of investigation goals",
	Parameters: object(map[string]jsonschema.Definition{
		"goal_updates": arrayOf("One entry per goal whose confidence changed",
			object(map[string]jsonschema.Definition{
				"goal":       str("Exact description of the goal being updated"),
				"confidence": {Type: jsonschema.Integer, Description: "Confidence from 0 to 100"}, //nolint:exhaustruct // scalar.
				"status": jsonschema.Definition{ //nolint:exhaustruct // enum.
					Type: jsonschema.String,
					Enum: []string{"not_started", "in_progress", "complete"},
				},
				"reasoning": str("Why the confidence changed"),
			}, "goal", "confidence", "status", "reasoning")),
	}, "goal_updates"),
}

var questionTool = ai.Tool{
	Name:        toolGenerateQuestion,
	Description: "Generate the next interview question with four multiple choice answers",
	Parameters: object(map[string]jsonschema.Definition{
		"question":    str("The next question to ask"),
		"target_goal": str("Description of the goal the question works towards, or wrap_up to end the interview"),
		"reasoning":   str("Why this question is the best next step"),
		"answers": arrayOf("Exactly four candidate answers",
			object(map[string]jsonschema.Definition{
				"answer":    str("Answer text as the respondent would say it"),
				"reasoning": str("What choosing this answer reveals"),
			}, "answer", "reasoning")),
	}, "question", "target_goal", "reasoning", "answers"),
}

var driftTool = ai.Tool{
	Name:        toolDetectDrift,
	Description: "Determine whether the answer addressed the question",
	Parameters: object(map[string]jsonschema.Definition{
		"addressed_question":  {Type: jsonschema.Boolean}, //nolint:exhaustruct // scalar.
		"drift_reason":        str("Why the answer drifted, or an empty string"),
		"redirect_suggestion": str("How the next question can steer back, or an empty string"),
	}, "addressed_question", "drift_reason", "redirect_suggestion"),
}

var analysisTool = ai.Tool{
	Name:        toolAnalyze,
	Description: "Synthesize the interview into a final report",
	Parameters: object(map[string]jsonschema.Definition{
		"timeline": arrayOf("Events in chronological order",
			object(map[string]jsonschema.Definition{
				"time":  str("When it happened"),
				"event": str("What happened"),
			}, "time", "event")),
		"key_facts": stringList("Most important established facts"),
		"gaps":      stringList("Missing information that could change the verdict"),
		"verdict": object(map[string]jsonschema.Definition{
			"primary_responsibility":   str("Who is most at fault"),
			"percentage":               {Type: jsonschema.Integer, Description: "Responsibility from 0 to 100"}, //nolint:exhaustruct // scalar.
			"reasoning":                str("Why"),
			"contributing_factors":     str("Roles of the other parties with their percentages"),
			"drama_rating":             {Type: jsonschema.Integer, Description: "Severity from 1 to 10"}, //nolint:exhaustruct // scalar.
			"drama_rating_explanation": str("Justification of the rating and a path to resolution"),
		}, "primary_responsibility", "percentage", "reasoning", "contributing_factors", "drama_rating",
			"drama_rating_explanation"),
	}, "timeline", "key_facts", "gaps", "verdict"),
}
