package integrationtests

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"medix-backend/internal/database"
	"medix-backend/internal/events"
	"medix-backend/internal/vision"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) (*events.RabbitMQPublisher, *events.RabbitMQReceiver) {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	publisher, err := events.NewRabbitMQPublisher(connStr)
	require.NoError(t, err, "Failed to connect publisher to RabbitMQ")
	t.Cleanup(publisher.Close)

	receiver, err := events.NewRabbitMQReceiver(connStr)
	require.NoError(t, err, "Failed to connect receiver to RabbitMQ")
	t.Cleanup(receiver.Close)

	return publisher, receiver
}

func createDB(t *testing.T, ctx context.Context) *gorm.DB {
	uri := setupPostgresContainer(t, ctx)
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

// httpRequest sends a JSON request through the router and decodes the JSON
// response into dest. A non empty token is attached as a bearer credential.
func httpRequest(api http.Handler, method, endpoint, token string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// fixedClassifier stands in for the onnx registry so the workflow test does
// not need checkpoint files or the onnxruntime shared library.
type fixedClassifier struct {
	infos map[string]vision.ModelInfo
	preds map[string][]vision.Prediction
}

func (c *fixedClassifier) Available() []string {
	models := make([]string, 0, len(c.infos))
	for id := range c.infos {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}

func (c *fixedClassifier) Has(modelID string) bool {
	_, ok := c.infos[modelID]
	return ok
}

func (c *fixedClassifier) Describe() map[string]vision.ModelInfo {
	return c.infos
}

func (c *fixedClassifier) Predict(modelID string, imagePayload string) ([]vision.Prediction, error) {
	if _, err := vision.PayloadBytes(imagePayload); err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrInvalidImage, err)
	}
	preds, ok := c.preds[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vision.ErrModelUnavailable, modelID)
	}
	return preds, nil
}

type scriptedLLM struct {
	replies []string
	calls   int
}

func (l *scriptedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if l.calls >= len(l.replies) {
		return "", fmt.Errorf("no scripted reply for call %d", l.calls+1)
	}
	reply := l.replies[l.calls]
	l.calls++
	return reply, nil
}

func scanImagePayload(t *testing.T) string {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
