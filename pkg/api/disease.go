package api

import (
	"time"

	"github.com/google/uuid"
)

type DetectDiseaseRequest struct {
	DiseaseType string `json:"disease_type"`
	ImageBase64 string `json:"image_base64"`
	Symptoms    string `json:"symptoms"`
}

type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

type DetectDiseaseResponse struct {
	Predictions     []Prediction `json:"predictions"`
	FinalDiagnosis  string       `json:"final_diagnosis"`
	Analysis        string       `json:"gemini_analysis"`
	Recommendations string       `json:"recommendations"`
}

type ModelInfo struct {
	Loaded       bool     `json:"loaded"`
	Architecture string   `json:"architecture"`
	NumClasses   int      `json:"num_classes"`
	Classes      []string `json:"classes"`
	Description  string   `json:"description"`
	SourceFile   string   `json:"source_file"`
}

type ModelsResponse struct {
	AvailableModels   []string             `json:"available_models"`
	ModelDescriptions map[string]string    `json:"model_descriptions"`
	ModelInfo         map[string]ModelInfo `json:"model_info"`
	TotalModels       int                  `json:"total_models"`
}

type ModelTestResult struct {
	Status        string      `json:"status"`
	Predictions   int         `json:"predictions"`
	TopPrediction *Prediction `json:"top_prediction"`
	Error         string      `json:"error"`
}

type TestModelsResponse struct {
	TotalModels   int                        `json:"total_models"`
	WorkingModels int                        `json:"working_models"`
	Results       map[string]ModelTestResult `json:"results"`
}

type ScanHistoryItem struct {
	Id               uuid.UUID `json:"id"`
	DiseaseType      string    `json:"disease_type"`
	FinalDiagnosis   string    `json:"final_diagnosis"`
	TopPrediction    string    `json:"top_prediction"`
	Confidence       float64   `json:"confidence"`
	SymptomsProvided bool      `json:"symptoms_provided"`
	CreatedAt        time.Time `json:"created_at"`
}

type ScanHistoryResponse struct {
	History []ScanHistoryItem `json:"history"`
}

// ScanResultResponse is the detail view of one stored detection. Unlike the
// history rows, symptoms_provided carries the submitted text itself.
type ScanResultResponse struct {
	Id               uuid.UUID    `json:"id"`
	DiseaseType      string       `json:"disease_type"`
	Predictions      []Prediction `json:"predictions"`
	FinalDiagnosis   string       `json:"final_diagnosis"`
	SymptomsProvided string       `json:"symptoms_provided"`
	Analysis         string       `json:"gemini_analysis"`
	CreatedAt        time.Time    `json:"created_at"`
}

type EmergencyAssessmentRequest struct {
	Symptoms string `json:"symptoms"`
}
