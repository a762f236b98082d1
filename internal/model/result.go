package model

import "slices"

// Keyword is a keyword with a relevance weight from 1 to 10.
type Keyword struct {
	Keyword string `json:"keyword"`
	Weight  int    `json:"weight"`
}

// PersonIdentity describes the main person featured in the video.
type PersonIdentity struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

// TranscriptSegment is one time-stamped span of the audio transcript.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the time-stamped output of the transcription capability.
type Transcript struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration"`
	Segments []TranscriptSegment `json:"segments"`
}

// AnalysisResult is the structured bundle produced for a completed task.
// Collection fields are always present in JSON, empty when nothing was
// detected.
type AnalysisResult struct {
	Description              string          `json:"description"`
	Keywords                 []Keyword       `json:"keywords"`
	Topics                   []string        `json:"topics"`
	Entities                 []string        `json:"entities"`
	Actions                  []string        `json:"actions"`
	Emotions                 []string        `json:"emotions"`
	VisualElements           []string        `json:"visual_elements"`
	AudioElements            []string        `json:"audio_elements"`
	Genre                    string          `json:"genre"`
	TargetAudience           []string        `json:"target_audience"`
	DurationEstimate         string          `json:"duration_estimate"`
	QualityIndicators        []string        `json:"quality_indicators"`
	UniqueIdentifiers        []string        `json:"unique_identifiers"`
	IsFaceExist              bool            `json:"is_face_exist"`
	PersonIdentity           *PersonIdentity `json:"person_identity"`
	OtherPersonIdentity      []string        `json:"other_person_identity"`
	PsychologicalPersonality []string        `json:"psychological_personality"`
	NoOfPersonInVideo        int             `json:"no_of_person_in_video"`
	ContentWarnings          []string        `json:"content_warnings"`
	SafetyAnalysis           []string        `json:"safety_analysis"`
	IsSafe                   bool            `json:"is_safe"`
	Transcription            *Transcript     `json:"transcription"`
}

// Normalize replaces nil collections with empty ones so every documented
// field appears in the serialized bundle.
func (r *AnalysisResult) Normalize() {
	if r.Keywords == nil {
		r.Keywords = []Keyword{}
	}
	if r.Topics == nil {
		r.Topics = []string{}
	}
	if r.Entities == nil {
		r.Entities = []string{}
	}
	if r.Actions == nil {
		r.Actions = []string{}
	}
	if r.Emotions == nil {
		r.Emotions = []string{}
	}
	if r.VisualElements == nil {
		r.VisualElements = []string{}
	}
	if r.AudioElements == nil {
		r.AudioElements = []string{}
	}
	if r.TargetAudience == nil {
		r.TargetAudience = []string{}
	}
	if r.QualityIndicators == nil {
		r.QualityIndicators = []string{}
	}
	if r.UniqueIdentifiers == nil {
		r.UniqueIdentifiers = []string{}
	}
	if r.OtherPersonIdentity == nil {
		r.OtherPersonIdentity = []string{}
	}
	if r.PsychologicalPersonality == nil {
		r.PsychologicalPersonality = []string{}
	}
	if r.ContentWarnings == nil {
		r.ContentWarnings = []string{}
	}
	if r.SafetyAnalysis == nil {
		r.SafetyAnalysis = []string{}
	}
	if r.PersonIdentity == nil {
		r.PersonIdentity = &PersonIdentity{}
	}
	if r.Transcription == nil {
		r.Transcription = &Transcript{Segments: []TranscriptSegment{}}
	} else if r.Transcription.Segments == nil {
		r.Transcription.Segments = []TranscriptSegment{}
	}
}

// Clone returns a deep copy of the result bundle. slices.Clone keeps
// empty collections empty rather than nil, so a normalized bundle stays
// normalized through the copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	cp := *r
	cp.Keywords = slices.Clone(r.Keywords)
	cp.Topics = slices.Clone(r.Topics)
	cp.Entities = slices.Clone(r.Entities)
	cp.Actions = slices.Clone(r.Actions)
	cp.Emotions = slices.Clone(r.Emotions)
	cp.VisualElements = slices.Clone(r.VisualElements)
	cp.AudioElements = slices.Clone(r.AudioElements)
	cp.TargetAudience = slices.Clone(r.TargetAudience)
	cp.QualityIndicators = slices.Clone(r.QualityIndicators)
	cp.UniqueIdentifiers = slices.Clone(r.UniqueIdentifiers)
	cp.OtherPersonIdentity = slices.Clone(r.OtherPersonIdentity)
	cp.PsychologicalPersonality = slices.Clone(r.PsychologicalPersonality)
	cp.ContentWarnings = slices.Clone(r.ContentWarnings)
	cp.SafetyAnalysis = slices.Clone(r.SafetyAnalysis)
	if r.PersonIdentity != nil {
		v := *r.PersonIdentity
		cp.PersonIdentity = &v
	}
	if r.Transcription != nil {
		tr := *r.Transcription
		tr.Segments = slices.Clone(r.Transcription.Segments)
		cp.Transcription = &tr
	}
	return &cp
}
