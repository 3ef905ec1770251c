package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medix-backend/cmd"
	"medix-backend/internal/api"
	"medix-backend/internal/assistant"
	"medix-backend/internal/auth"
	"medix-backend/internal/database"
	"medix-backend/internal/events"
	"medix-backend/internal/meet"
	"medix-backend/internal/storage"
	"medix-backend/internal/vision"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	ort "github.com/yalue/onnxruntime_go"
	"gorm.io/gorm"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"medix.db"`
	JWTSecret   string `env:"SECRET_KEY" envDefault:"medix-secret-key-hacksagon-2024"`

	ModelDir         string `env:"MODEL_DIR" envDefault:"./models"`
	OnnxRuntimeDylib string `env:"ONNX_RUNTIME_DYLIB"`

	LLMProvider  string `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash-exp"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageRoot       string `env:"STORAGE_ROOT" envDefault:"./medix-data"`
	UploadBucket      string `env:"UPLOAD_BUCKET" envDefault:"medix-uploads"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3Region          string `env:"AWS_REGION"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	RabbitMQURL    string   `env:"RABBITMQ_URL"`
	MeetServiceURL string   `env:"MEET_SERVICE_URL"`
	CorsOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

const (
	llmTemperature = 0.7

	sessionSweepInterval = time.Hour
)

// createRegistry loads the classifiers under cfg.ModelDir. Without the ONNX
// Runtime shared library the registry stays empty and the rest of the service
// still runs, the disease endpoints just report no available models.
func createRegistry(cfg Config) *vision.Registry {
	if cfg.OnnxRuntimeDylib == "" {
		slog.Warn("ONNX_RUNTIME_DYLIB not set, disease detection models disabled")
		return vision.EmptyRegistry()
	}

	ort.SetSharedLibraryPath(cfg.OnnxRuntimeDylib)
	if err := ort.InitializeEnvironment(); err != nil {
		log.Fatalf("could not init ONNX Runtime: %v", err)
	}

	return vision.LoadRegistry(cfg.ModelDir, vision.NewOnnxRuntime())
}

func createLLM(ctx context.Context, cfg Config) (assistant.LLM, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return assistant.NewGoogleAI(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		return assistant.NewOpenAI(cfg.OpenAIModel, llmTemperature), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q, must be 'gemini' or 'openai'", cfg.LLMProvider)
	}
}

func createStorage(cfg Config) (storage.Provider, error) {
	switch cfg.StorageBackend {
	case "local":
		return storage.NewLocalProvider(cfg.StorageRoot)
	case "s3":
		return storage.NewS3Provider(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q, must be 'local' or 's3'", cfg.StorageBackend)
	}
}

// createEvents returns the event publisher and the receiver feeding the
// notifier. Without a RabbitMQ URL both sides are the same in-process queue.
func createEvents(cfg Config) (events.Publisher, events.Reciever) {
	if cfg.RabbitMQURL == "" {
		queue := events.NewInMemoryQueue()
		return queue, queue
	}

	publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	reciever, err := events.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to create RabbitMQ consumer: %v", err)
	}

	return publisher, reciever
}

func createServer(cfg Config, db *gorm.DB, registry *vision.Registry, medical *assistant.MedicalAssistant, store storage.Provider, publisher events.Publisher) *http.Server {
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)

	var meetings meet.Provisioner = meet.LocalProvisioner{}
	if cfg.MeetServiceURL != "" {
		meetings = meet.NewHTTPProvisioner(cfg.MeetServiceURL)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	api.AddHealthRoutes(r)

	r.Route("/api", func(r chi.Router) {
		api.NewAuthService(db, tokens).AddRoutes(r)
		api.NewAppointmentService(db, tokens, meetings, publisher).AddRoutes(r)
		api.NewChatService(db, tokens, medical).AddRoutes(r)
		api.NewDiseaseService(db, tokens, registry, medical, store, cfg.UploadBucket, publisher).AddRoutes(r)
		api.NewNotificationService(db, tokens).AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	log.Println("Starting MediX API Server...")

	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	registry := createRegistry(cfg)
	defer registry.Release()
	if cfg.OnnxRuntimeDylib != "" {
		defer func() {
			if err := ort.DestroyEnvironment(); err != nil {
				slog.Error("error destroying onnx env", "error", err)
			}
		}()
	}

	llm, err := createLLM(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	medical := assistant.NewMedicalAssistant(llm)

	sweeper := time.NewTicker(sessionSweepInterval)
	defer sweeper.Stop()
	go func() {
		for range sweeper.C {
			medical.CleanupSessions()
		}
	}()

	store, err := createStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	if err := store.CreateBucket(context.Background(), cfg.UploadBucket); err != nil {
		log.Fatalf("Failed to create upload bucket: %v", err)
	}

	publisher, reciever := createEvents(cfg)
	defer publisher.Close()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	notifier := events.NewNotifier(db, reciever)
	go notifier.Start()

	server := createServer(cfg, db, registry, medical, store, publisher)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down notifier")
		notifier.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
