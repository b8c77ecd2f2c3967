// Package models holds the Intake API's request/response DTOs (§4.2, §6).
package models

import "time"

// SubmissionOptions are the shared option fields carried on every intake
// request (§6: target_duration, priority, model).
type SubmissionOptions struct {
	TargetDurationMinutes int    `form:"target_duration" json:"target_duration"`
	Priority              int    `json:"priority"` // 1 highest .. 3 lowest; set from PriorityLabel via PriorityFromLabel, not bound directly
	Model                 string `form:"model" json:"model"`
}

// Clamp enforces the 1-180 minute duration clamp from §6.
func (o *SubmissionOptions) Clamp() {
	if o.TargetDurationMinutes < 1 {
		o.TargetDurationMinutes = 1
	}
	if o.TargetDurationMinutes > 180 {
		o.TargetDurationMinutes = 180
	}
	if o.Priority < 1 || o.Priority > 3 {
		o.Priority = 2
	}
}

// PriorityFromLabel maps the form-level low/medium/high label to the
// numeric 3/2/1 priority (§6).
func PriorityFromLabel(label string) int {
	switch label {
	case "high":
		return 1
	case "low":
		return 3
	default:
		return 2
	}
}

// InitialSubmissionRequest is the payload of POST /handle_initial_submission.
type InitialSubmissionRequest struct {
	TaskType              string `form:"task_type"` // from_topic | rewrite_script
	Language              string `form:"language"`
	SeedTopic             string `form:"seed_topic"`
	SourceScript          string `form:"source_script"`
	PriorityLabel         string `form:"priority"` // low | medium | high
	Model                 string `form:"model"`
	TargetDurationMinutes int    `form:"target_duration"`
}

// Suggestion is one candidate title returned from the seed-topic suggestion
// step, with its translation to the display/UI language.
type Suggestion struct {
	Original      string `json:"original"`
	TranslationVI string `json:"translation_vi"`
}

// SubmitSelectedRequest is the payload of POST /submit_selected_for_generation.
// Its option fields carry the _submit suffix (§6), distinct from
// InitialSubmissionRequest's unsuffixed ones.
type SubmitSelectedRequest struct {
	Selected              []string `form:"selected_suggestion"`
	Language              string   `form:"language_submit"`
	PriorityLabel         string   `form:"priority_submit"`
	Model                 string   `form:"model_submit"`
	TargetDurationMinutes int      `form:"target_duration_submit"`
}

// GenerationStatusResponse is the JSON body of GET /api/generation_status/<id>.
type GenerationStatusResponse struct {
	Status    string     `json:"status"`
	Error     *ErrorInfo `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ErrorInfo is the {stage, message, timestamp} tuple recorded on a Generation
// (§7 propagation policy).
type ErrorInfo struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
