package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"medix-backend/internal/vision"
)

const (
	maxCachedSessions  = 100
	historyReplayLimit = 5

	// SessionMaxAge bounds how long an idle consultation keeps its
	// in-memory context before Cleanup drops it.
	SessionMaxAge = 24 * time.Hour
)

// SymptomAnalysis is the structured reply for reconciling classifier output
// with patient reported symptoms.
type SymptomAnalysis struct {
	LikelyDiagnosis   string `json:"likely_diagnosis"`
	FollowUpQuestions string `json:"follow_up_questions"`
	Recommendations   string `json:"recommendations"`
	EmergencySigns    string `json:"emergency_signs"`
}

type EmergencyAssessment struct {
	UrgencyLevel     string `json:"urgency_level"`
	Reasoning        string `json:"reasoning"`
	ImmediateActions string `json:"immediate_actions"`
	Timeline         string `json:"timeline"`
}

// MedicalAssistant wraps an LLM with the medical prompts and conservative
// fallbacks. Every method degrades to a canned reply instead of returning an
// error so a model outage never fails the calling request.
type MedicalAssistant struct {
	llm      LLM
	sessions *SessionCache
}

func NewMedicalAssistant(llm LLM) *MedicalAssistant {
	return &MedicalAssistant{
		llm:      llm,
		sessions: NewSessionCache(maxCachedSessions),
	}
}

// CleanupSessions drops stale chat sessions and returns the number removed.
func (a *MedicalAssistant) CleanupSessions() int {
	removed := a.sessions.Cleanup(SessionMaxAge)
	if removed > 0 {
		slog.Info("cleaned up old chat sessions", "count", removed)
	}
	return removed
}

// decodeJSONReply parses a model reply that is expected to be a JSON object,
// tolerating markdown code fences and surrounding prose.
func decodeJSONReply(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return fmt.Errorf("reply contains no JSON object")
	}

	return json.Unmarshal([]byte(cleaned[start:end+1]), out)
}

func topDisease(predictions []vision.Prediction, fallback string) string {
	if len(predictions) == 0 {
		return fallback
	}
	return predictions[0].Disease
}

// AnalyzeWithSymptoms reconciles classifier predictions with the patient's
// reported symptoms.
func (a *MedicalAssistant) AnalyzeWithSymptoms(ctx context.Context, predictions []vision.Prediction, symptoms string, user UserContext) SymptomAnalysis {
	errorFallback := SymptomAnalysis{
		LikelyDiagnosis:   topDisease(predictions, "Analysis unavailable"),
		FollowUpQuestions: "Unable to generate follow-up questions at this time.",
		Recommendations:   "Please consult with a healthcare professional.",
		EmergencySigns:    "Seek immediate medical attention if you have severe symptoms.",
	}

	lines := make([]predictionLine, len(predictions))
	for i, pred := range predictions {
		lines[i] = predictionLine{
			Rank:       i + 1,
			Disease:    pred.Disease,
			Confidence: fmt.Sprintf("%.2f%%", pred.Confidence*100),
		}
	}

	prompt := new(strings.Builder)
	err := symptomAnalysisPromptTmpl.Execute(prompt, symptomAnalysisPromptFields{
		Predictions:    lines,
		Symptoms:       symptoms,
		PatientContext: user.description(),
	})
	if err != nil {
		slog.Error("error rendering symptomAnalysis template", "error", err)
		return errorFallback
	}

	reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
	if err != nil {
		slog.Error("error in symptom analysis", "error", err)
		return errorFallback
	}

	var analysis SymptomAnalysis
	if err := decodeJSONReply(reply, &analysis); err != nil {
		// The model answered in prose, keep the text as the recommendation.
		return SymptomAnalysis{
			LikelyDiagnosis:   topDisease(predictions, "Unable to determine"),
			FollowUpQuestions: "Please consult with a healthcare professional for proper evaluation.",
			Recommendations:   reply,
			EmergencySigns:    "Seek immediate medical attention if symptoms worsen rapidly.",
		}
	}

	return analysis
}

// StartChat opens a consultation and returns the assistant's first reply.
func (a *MedicalAssistant) StartChat(ctx context.Context, sessionID, message string, user UserContext) string {
	const fallback = "I'm sorry, I'm having trouble connecting right now. Please try again or consult with a healthcare professional."

	prompt := new(strings.Builder)
	err := chatOpeningPromptTmpl.Execute(prompt, chatOpeningPromptFields{
		ContextInfo: user.fullDescription(),
		Message:     message,
	})
	if err != nil {
		slog.Error("error rendering chatOpening template", "error", err)
		return fallback
	}

	reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
	if err != nil {
		slog.Error("error starting medical chat", "session_id", sessionID, "error", err)
		return fallback
	}

	session := &ChatSession{}
	session.append(Turn{Role: "user", Content: message}, Turn{Role: "assistant", Content: reply})
	a.sessions.Put(sessionID, session)

	return reply
}

// ContinueChat answers a follow-up message. A warm session replies with its
// accumulated turns; a cold one is rebuilt from the stored history.
func (a *MedicalAssistant) ContinueChat(ctx context.Context, sessionID, message string, history []Turn) string {
	const fallback = "I'm experiencing technical difficulties. Please try again or consult with a healthcare professional if you have urgent concerns."

	if session := a.sessions.Get(sessionID); session != nil {
		prompt := new(strings.Builder)
		err := chatContinuationPromptTmpl.Execute(prompt, chatContinuationPromptFields{
			Transcript: session.transcript(),
			Message:    message,
		})
		if err != nil {
			slog.Error("error rendering chatContinuation template", "error", err)
			return fallback
		}

		reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
		if err != nil {
			slog.Error("error in medical chat continuation", "session_id", sessionID, "error", err)
			return fallback
		}

		session.append(Turn{Role: "user", Content: message}, Turn{Role: "assistant", Content: reply})
		return reply
	}

	if len(history) > historyReplayLimit {
		history = history[len(history)-historyReplayLimit:]
	}

	replayed := &ChatSession{}
	replayed.append(history...)

	prompt := new(strings.Builder)
	err := chatReplayPromptTmpl.Execute(prompt, chatContinuationPromptFields{
		Transcript: replayed.transcript(),
		Message:    message,
	})
	if err != nil {
		slog.Error("error rendering chatReplay template", "error", err)
		return fallback
	}

	reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
	if err != nil {
		slog.Error("error in medical chat continuation", "session_id", sessionID, "error", err)
		return fallback
	}

	replayed.append(Turn{Role: "user", Content: message}, Turn{Role: "assistant", Content: reply})
	a.sessions.Put(sessionID, replayed)

	return reply
}

// DiseaseInformation describes a condition at the requested detail level,
// e.g. "brief" or "comprehensive".
func (a *MedicalAssistant) DiseaseInformation(ctx context.Context, disease, detailLevel string) string {
	fallback := fmt.Sprintf("I'm unable to provide detailed information about %s right now. Please consult with a healthcare professional for accurate medical information.", disease)

	prompt := new(strings.Builder)
	err := diseaseInfoPromptTmpl.Execute(prompt, diseaseInfoPromptFields{
		DetailLevel: detailLevel,
		Disease:     disease,
	})
	if err != nil {
		slog.Error("error rendering diseaseInfo template", "error", err)
		return fallback
	}

	reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
	if err != nil {
		slog.Error("error getting disease information", "disease", disease, "error", err)
		return fallback
	}

	return reply
}

// EmergencyAssessment triages symptoms. Both failure modes degrade to an
// "urgent" assessment so a model outage never downplays symptoms.
func (a *MedicalAssistant) EmergencyAssessment(ctx context.Context, symptoms string) EmergencyAssessment {
	errorFallback := EmergencyAssessment{
		UrgencyLevel:     "urgent",
		Reasoning:        "Technical error in assessment",
		ImmediateActions: "Contact healthcare provider or emergency services if you have serious concerns",
		Timeline:         "Seek medical attention if symptoms persist or worsen",
	}

	prompt := new(strings.Builder)
	err := emergencyPromptTmpl.Execute(prompt, emergencyPromptFields{Symptoms: symptoms})
	if err != nil {
		slog.Error("error rendering emergency template", "error", err)
		return errorFallback
	}

	reply, err := a.llm.Generate(ctx, basePrompt, prompt.String())
	if err != nil {
		slog.Error("error in emergency assessment", "error", err)
		return errorFallback
	}

	var assessment EmergencyAssessment
	if err := decodeJSONReply(reply, &assessment); err != nil {
		return EmergencyAssessment{
			UrgencyLevel:     "urgent",
			Reasoning:        "Unable to properly assess - recommend medical evaluation",
			ImmediateActions: "Contact healthcare provider or emergency services if concerned",
			Timeline:         "Seek medical attention promptly",
		}
	}

	return assessment
}
