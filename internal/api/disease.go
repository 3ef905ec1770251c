package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"medix-backend/internal/assistant"
	"medix-backend/internal/auth"
	"medix-backend/internal/core/utils"
	"medix-backend/internal/database"
	"medix-backend/internal/events"
	"medix-backend/internal/storage"
	"medix-backend/internal/vision"
	"medix-backend/pkg/api"
)

const (
	topPredictions = 3

	scanHistoryLimit = 20

	maxTestWorkers = 3

	workingStatus = "✅ Working"
	errorStatus   = "❌ Error"
)

// Classifier is the slice of the vision registry the disease endpoints use.
type Classifier interface {
	Available() []string
	Has(modelID string) bool
	Describe() map[string]vision.ModelInfo
	Predict(modelID string, imagePayload string) ([]vision.Prediction, error)
}

type DiseaseService struct {
	db        *gorm.DB
	tokens    *auth.TokenIssuer
	registry  Classifier
	assistant *assistant.MedicalAssistant
	store     storage.Provider
	bucket    string
	publisher events.Publisher
}

func NewDiseaseService(
	db *gorm.DB,
	tokens *auth.TokenIssuer,
	registry Classifier,
	medical *assistant.MedicalAssistant,
	store storage.Provider,
	bucket string,
	publisher events.Publisher,
) *DiseaseService {
	return &DiseaseService{
		db:        db,
		tokens:    tokens,
		registry:  registry,
		assistant: medical,
		store:     store,
		bucket:    bucket,
		publisher: publisher,
	}
}

func (s *DiseaseService) AddRoutes(r chi.Router) {
	r.Route("/disease", func(r chi.Router) {
		r.Get("/models", RestHandler(s.GetModels))
		r.Get("/test-models", RestHandler(s.TestModels))

		r.Group(func(r chi.Router) {
			r.Use(s.tokens.Middleware(s.db))
			r.Post("/detect", RestHandler(s.DetectDisease))
			r.Get("/history", RestHandler(s.GetHistory))
			r.Get("/result/{result_id}", RestHandler(s.GetResult))
			r.Post("/emergency-assessment", RestHandler(s.AssessEmergency))
		})
	})
}

// GetModels lists the loaded classifiers. Descriptions cover every known
// model so clients can explain ones that failed to load.
func (s *DiseaseService) GetModels(r *http.Request) (any, error) {
	descriptions := make(map[string]string)
	for _, desc := range vision.Descriptors() {
		descriptions[desc.ID] = desc.Description
	}

	available := s.registry.Available()

	return api.ModelsResponse{
		AvailableModels:   available,
		ModelDescriptions: descriptions,
		ModelInfo:         convertModelInfo(s.registry.Describe()),
		TotalModels:       len(available),
	}, nil
}

func (s *DiseaseService) DetectDisease(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	req, err := ParseRequest[api.DetectDiseaseRequest](r)
	if err != nil {
		return nil, err
	}

	if !s.registry.Has(req.DiseaseType) {
		return nil, CodedErrorf(http.StatusBadRequest, "Model type '%s' not available. Available models: [%s]",
			req.DiseaseType, strings.Join(s.registry.Available(), ", "))
	}

	slog.Info("processing detection", "model", req.DiseaseType, "user_id", user.Id)

	predictions, err := s.registry.Predict(req.DiseaseType, req.ImageBase64)
	if err != nil {
		if errors.Is(err, vision.ErrInvalidImage) {
			return nil, CodedErrorf(http.StatusBadRequest, "%v", err)
		}
		// Inference failures degrade to a placeholder result so the scan
		// still gets recorded.
		slog.Error("prediction failed", "model", req.DiseaseType, "error", err)
		predictions = []vision.Prediction{{Disease: fmt.Sprintf("Unable to analyze %s", req.DiseaseType), Confidence: 0.0}}
	}

	if len(predictions) == 0 {
		return nil, CodedErrorf(http.StatusInternalServerError, "Failed to get predictions from AI model")
	}

	topPreds := predictions
	if len(topPreds) > topPredictions {
		topPreds = topPreds[:topPredictions]
	}

	response := api.DetectDiseaseResponse{Predictions: convertPredictions(topPreds)}

	var analysisRecord string
	if strings.TrimSpace(req.Symptoms) != "" {
		analysis := s.assistant.AnalyzeWithSymptoms(r.Context(), predictions, req.Symptoms, userContext(user))

		response.FinalDiagnosis = analysis.LikelyDiagnosis
		if response.FinalDiagnosis == "" {
			response.FinalDiagnosis = predictions[0].Disease
		}
		response.Analysis = analysis.FollowUpQuestions
		if response.Analysis == "" {
			response.Analysis = "Please consult with a healthcare professional."
		}
		response.Recommendations = analysis.Recommendations
		if response.Recommendations == "" {
			response.Recommendations = "Seek medical attention for proper diagnosis."
		}

		if blob, err := json.Marshal(analysis); err == nil {
			analysisRecord = string(blob)
		}
	} else {
		response.FinalDiagnosis = predictions[0].Disease
		response.Recommendations = s.assistant.DiseaseInformation(r.Context(), predictions[0].Disease, "brief")
	}

	s.saveScan(r.Context(), user.Id, req, topPreds, response.FinalDiagnosis, analysisRecord)

	return response, nil
}

// saveScan persists the detection and announces it. Persistence is best
// effort, the caller already has the response in hand.
func (s *DiseaseService) saveScan(ctx context.Context, userId uuid.UUID, req api.DetectDiseaseRequest, predictions []vision.Prediction, finalDiagnosis, analysis string) {
	record := database.ScanRecord{
		Id:             uuid.New(),
		UserId:         userId,
		ModelType:      req.DiseaseType,
		FinalDiagnosis: sql.NullString{String: finalDiagnosis, Valid: finalDiagnosis != ""},
		Symptoms:       sql.NullString{String: req.Symptoms, Valid: req.Symptoms != ""},
		Analysis:       sql.NullString{String: analysis, Valid: analysis != ""},
	}

	if key, err := s.storeImage(ctx, userId, record.Id, req.ImageBase64); err != nil {
		slog.Error("error storing scan image", "scan_id", record.Id, "error", err)
	} else {
		record.ImageKey = sql.NullString{String: key, Valid: true}
	}

	if err := database.SaveScanRecord(ctx, s.db, &record, predictions); err != nil {
		slog.Error("error saving scan record", "user_id", userId, "error", err)
		return
	}

	payload := events.ScanCompletedPayload{
		ScanId:    record.Id,
		UserId:    userId,
		ModelType: req.DiseaseType,
	}
	if len(predictions) > 0 {
		payload.TopDisease = predictions[0].Disease
		payload.Confidence = predictions[0].Confidence
	}
	if err := s.publisher.PublishScanCompleted(ctx, payload); err != nil {
		slog.Error("error publishing scan completed event", "scan_id", record.Id, "error", err)
	}
}

func (s *DiseaseService) storeImage(ctx context.Context, userId, scanId uuid.UUID, payload string) (string, error) {
	raw, err := vision.PayloadBytes(payload)
	if err != nil {
		return "", err
	}

	key := path.Join("scans", userId.String(), scanId.String()+".jpg")
	if err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(raw)); err != nil {
		return "", err
	}
	return key, nil
}

type modelProbe struct {
	id     string
	result api.ModelTestResult
}

// TestModels runs every loaded classifier against a plain white image to
// verify the full decode, preprocess, and inference path.
func (s *DiseaseService) TestModels(r *http.Request) (any, error) {
	payload, err := testImagePayload()
	if err != nil {
		slog.Error("error encoding test image", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to build test image")
	}

	models := s.registry.Available()

	queue := make(chan string, len(models))
	for _, id := range models {
		queue <- id
	}
	close(queue)

	completed := make(chan utils.CompletedTask[modelProbe], len(models))
	utils.RunInPool(func(modelID string) (modelProbe, error) {
		predictions, err := s.registry.Predict(modelID, payload)
		if err != nil {
			return modelProbe{id: modelID, result: api.ModelTestResult{
				Status: errorStatus,
				Error:  err.Error(),
			}}, nil
		}

		probe := modelProbe{id: modelID, result: api.ModelTestResult{
			Status:      workingStatus,
			Predictions: len(predictions),
		}}
		if len(predictions) > 0 {
			top := convertPrediction(predictions[0])
			probe.result.TopPrediction = &top
		}
		return probe, nil
	}, queue, completed, maxTestWorkers)

	results := make(map[string]api.ModelTestResult, len(models))
	working := 0
	for task := range completed {
		if task.Error != nil {
			continue
		}
		results[task.Result.id] = task.Result.result
		if task.Result.result.Status == workingStatus {
			working++
		}
	}

	return api.TestModelsResponse{
		TotalModels:   len(models),
		WorkingModels: working,
		Results:       results,
	}, nil
}

func testImagePayload() (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, vision.InputSize, vision.InputSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *DiseaseService) GetHistory(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	var records []database.ScanRecord
	err := s.db.WithContext(r.Context()).
		Where("user_id = ?", user.Id).
		Order("created_at DESC").
		Limit(scanHistoryLimit).
		Find(&records).Error
	if err != nil {
		slog.Error("error loading detection history", "user_id", user.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load detection history")
	}

	history := make([]api.ScanHistoryItem, 0, len(records))
	for _, record := range records {
		item := api.ScanHistoryItem{
			Id:               record.Id,
			DiseaseType:      record.ModelType,
			FinalDiagnosis:   record.FinalDiagnosis.String,
			SymptomsProvided: record.Symptoms.Valid,
			CreatedAt:        record.CreatedAt,
		}

		var predictions []api.Prediction
		if err := json.Unmarshal(record.Predictions, &predictions); err != nil {
			slog.Error("error decoding stored predictions", "scan_id", record.Id, "error", err)
		} else if len(predictions) > 0 {
			item.TopPrediction = predictions[0].Disease
			item.Confidence = predictions[0].Confidence
		}

		history = append(history, item)
	}

	return api.ScanHistoryResponse{History: history}, nil
}

func (s *DiseaseService) GetResult(r *http.Request) (any, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	resultId, err := URLParamUUID(r, "result_id")
	if err != nil {
		return nil, err
	}

	var record database.ScanRecord
	err = s.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", resultId, user.Id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Detection result not found")
		}
		slog.Error("error loading detection result", "scan_id", resultId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load detection result")
	}

	var predictions []api.Prediction
	if err := json.Unmarshal(record.Predictions, &predictions); err != nil {
		slog.Error("error decoding stored predictions", "scan_id", record.Id, "error", err)
	}

	return api.ScanResultResponse{
		Id:               record.Id,
		DiseaseType:      record.ModelType,
		Predictions:      predictions,
		FinalDiagnosis:   record.FinalDiagnosis.String,
		SymptomsProvided: record.Symptoms.String,
		Analysis:         record.Analysis.String,
		CreatedAt:        record.CreatedAt,
	}, nil
}

func (s *DiseaseService) AssessEmergency(r *http.Request) (any, error) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		return nil, CodedErrorf(http.StatusUnauthorized, "not authenticated")
	}

	req, err := ParseRequest[api.EmergencyAssessmentRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Symptoms == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Symptoms text is required")
	}

	return s.assistant.EmergencyAssessment(r.Context(), req.Symptoms), nil
}
