package assistant

import (
	"fmt"
	"text/template"
)

const basePrompt = `You are MediX AI, a professional medical assistant integrated into a healthcare platform.
You provide helpful medical information and guidance while emphasizing the importance of professional medical consultation.

Guidelines:
1. Always provide evidence-based medical information
2. Encourage users to consult healthcare professionals for diagnosis and treatment
3. Be empathetic and understanding
4. Ask relevant follow-up questions to better understand symptoms
5. Provide helpful lifestyle and wellness advice when appropriate
6. Never provide specific drug dosages or prescriptions
7. Always mention when emergency medical attention might be needed

Remember: You are assisting, not replacing, professional medical care.`

// UserContext carries the patient details that are woven into prompts.
// Empty fields render as "N/A".
type UserContext struct {
	Age    string
	Gender string
	City   string
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

func (c UserContext) description() string {
	return fmt.Sprintf("Age: %s, Gender: %s", orNA(c.Age), orNA(c.Gender))
}

func (c UserContext) fullDescription() string {
	return fmt.Sprintf("Age: %s, Gender: %s, City: %s", orNA(c.Age), orNA(c.Gender), orNA(c.City))
}

type predictionLine struct {
	Rank       int
	Disease    string
	Confidence string
}

type symptomAnalysisPromptFields struct {
	Predictions    []predictionLine
	Symptoms       string
	PatientContext string
}

const symptomAnalysisPrompt = `Based on AI image analysis, here are the top predictions:
{{ range .Predictions }}
{{ .Rank }}. {{ .Disease }}: {{ .Confidence }} confidence{{ end }}

Patient reported symptoms: {{ .Symptoms }}
{{ if .PatientContext }}Patient context: {{ .PatientContext }}
{{ end }}
Please analyze the AI predictions along with the reported symptoms and provide:
1. The most likely diagnosis from the AI predictions based on symptoms
2. Additional questions to ask the patient to clarify the diagnosis
3. General recommendations and next steps
4. When to seek immediate medical attention

Format your response as JSON with keys: 'likely_diagnosis', 'follow_up_questions', 'recommendations', 'emergency_signs'`

var symptomAnalysisPromptTmpl = template.Must(template.New("symptomAnalysisPrompt").Parse(symptomAnalysisPrompt))

type chatOpeningPromptFields struct {
	ContextInfo string
	Message     string
}

const chatOpeningPrompt = `{{ if .ContextInfo }}Patient context: {{ .ContextInfo }}

{{ end }}The patient is starting a medical consultation. Please:
1. Greet them warmly and professionally
2. Ask relevant questions about their symptoms
3. Provide helpful medical guidance
4. Remember this conversation context for follow-up messages

Patient message: {{ .Message }}`

var chatOpeningPromptTmpl = template.Must(template.New("chatOpeningPrompt").Parse(chatOpeningPrompt))

type chatContinuationPromptFields struct {
	Transcript string
	Message    string
}

const chatContinuationPrompt = `Previous conversation:
{{ .Transcript }}
Patient's current message: {{ .Message }}

Please continue the medical consultation, referring to previous discussion points when relevant.`

var chatContinuationPromptTmpl = template.Must(template.New("chatContinuationPrompt").Parse(chatContinuationPrompt))

const chatReplayPrompt = `Previous conversation:
{{ .Transcript }}
Current message: {{ .Message }}

Please continue the medical consultation based on the conversation history above.`

var chatReplayPromptTmpl = template.Must(template.New("chatReplayPrompt").Parse(chatReplayPrompt))

type diseaseInfoPromptFields struct {
	DetailLevel string
	Disease     string
}

const diseaseInfoPrompt = `Please provide {{ .DetailLevel }} information about: {{ .Disease }}

Include:
1. Overview of the condition
2. Common symptoms
3. Potential causes
4. General prevention measures
5. When to seek medical attention
6. General treatment approaches (emphasize need for professional consultation)

Keep the language accessible but medically accurate.`

var diseaseInfoPromptTmpl = template.Must(template.New("diseaseInfoPrompt").Parse(diseaseInfoPrompt))

type emergencyPromptFields struct {
	Symptoms string
}

const emergencyPrompt = `Please assess these symptoms for emergency urgency: {{ .Symptoms }}

Provide assessment as JSON with:
- 'urgency_level': 'emergency', 'urgent', 'routine', or 'self_care'
- 'reasoning': explanation of assessment
- 'immediate_actions': what to do right now
- 'timeline': when to seek care

Be conservative - when in doubt, recommend seeking medical attention.`

var emergencyPromptTmpl = template.Must(template.New("emergencyPrompt").Parse(emergencyPrompt))
