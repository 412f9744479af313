package intent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/carelink-health/carelink/pkg/logging"
)

// Label selects which tool subset and persona the agent loop exposes.
type Label string

const (
	LabelAppointment Label = "APPOINTMENT"
	LabelInformation Label = "INFORMATION"
	LabelMedication  Label = "MEDICATION"
	LabelGeneral     Label = "GENERAL"
)

var validLabels = map[Label]struct{}{
	LabelAppointment: {},
	LabelInformation: {},
	LabelMedication:  {},
	LabelGeneral:     {},
}

const classifierPrompt = `Classify this patient message into ONE intent. Respond with JSON only.

Intents:
- APPOINTMENT: booking, rescheduling, or canceling a medical appointment
- INFORMATION: questions about doctors, specialties, services, symptoms, hospital logistics
- MEDICATION: questions about drugs, prescriptions, dosage, side effects
- GENERAL: greetings, small talk, anything else

Message: %s

Respond with: {"intent": "<INTENT>"}`

// completionClient is the single-shot model call the router needs.
type completionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Keyword fallback used when the model call errors or returns an
// out-of-enum label. Order matters: appointment vocabulary wins over
// information vocabulary when both appear.
var keywordRules = []struct {
	label    Label
	keywords []string
}{
	{LabelAppointment, []string{"đặt lịch", "đặt khám", "hủy lịch", "đổi lịch", "dời lịch", "lịch hẹn", "book", "appointment", "reschedule", "cancel"}},
	{LabelMedication, []string{"thuốc", "toa thuốc", "đơn thuốc", "liều", "tác dụng phụ", "medication", "drug", "prescription", "dosage"}},
	{LabelInformation, []string{"bác sĩ", "chuyên khoa", "khoa", "dịch vụ", "triệu chứng", "khám", "giá", "chi phí", "doctor", "specialty", "service", "symptom"}},
}

// Router classifies an utterance into an intent label.
type Router struct {
	client completionClient
	logger *logging.Logger
}

// NewRouter builds an intent router. A nil client disables the model path and
// relies on keyword matching alone.
func NewRouter(client completionClient, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{client: client, logger: logger}
}

// Classify labels the utterance. The model path degrades to deterministic
// keyword matching; this method never returns an error.
func (r *Router) Classify(ctx context.Context, utterance string) Label {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return LabelGeneral
	}

	if r.client != nil {
		if label, ok := r.classifyWithModel(ctx, utterance); ok {
			return label
		}
	}
	return ClassifyByKeywords(utterance)
}

func (r *Router) classifyWithModel(ctx context.Context, utterance string) (Label, bool) {
	prompt := strings.Replace(classifierPrompt, "%s", utterance, 1)

	text, err := r.client.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("intent model call failed, falling back to keywords", "error", err)
		return "", false
	}

	// The model may wrap the JSON in prose; take the outermost braces.
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	var result struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return "", false
	}

	label := Label(strings.ToUpper(strings.TrimSpace(result.Intent)))
	if _, ok := validLabels[label]; !ok {
		return "", false
	}
	return label, true
}

// ClassifyByKeywords is the deterministic fallback classifier.
func ClassifyByKeywords(utterance string) Label {
	lowered := strings.ToLower(utterance)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.label
			}
		}
	}
	return LabelGeneral
}
