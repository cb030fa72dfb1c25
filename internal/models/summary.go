package models

// Actor is a person involved in the incident.
type Actor struct {
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	Relationships  []string `json:"relationships"`
	EmotionalState []string `json:"emotional_state"`
}

// Conflict names the main issue of the incident and the tensions contributing to it.
type Conflict struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Details holds contextual details of the incident.
type Details struct {
	TimelineMarkers      []string `json:"timeline_markers"`
	LocationContext      []string `json:"location_context"`
	CommunicationHistory []string `json:"communication_history"`
	EmotionalAtmosphere  string   `json:"emotional_atmosphere"`
}

// ExtractedSummary is the structured form of the initial report. It is created once and never changed.
type ExtractedSummary struct {
	Actors      []Actor  `json:"actors"`
	Conflict    Conflict `json:"point_of_conflict"`
	Details     Details  `json:"general_details"`
	MissingInfo []string `json:"missing_info"`
}

// TimelineEvent is a single event in the reconstructed timeline.
type TimelineEvent struct {
	Time  string `json:"time"`
	Event string `json:"event"`
}

// Verdict assigns responsibility for the incident.
type Verdict struct {
	PrimaryResponsibility  string `json:"primary_responsibility"`
	Percentage             int    `json:"percentage"`
	Reasoning              string `json:"reasoning"`
	ContributingFactors    string `json:"contributing_factors"`
	DramaRating            int    `json:"drama_rating"`
	DramaRatingExplanation string `json:"drama_rating_explanation"`
}

// AnalysisReport is the closing synthesis of an investigation.
type AnalysisReport struct {
	Timeline []TimelineEvent `json:"timeline"`
	KeyFacts []string        `json:"key_facts"`
	Gaps     []string        `json:"gaps"`
	Verdict  Verdict         `json:"verdict"`
}
