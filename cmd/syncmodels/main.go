package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"medix-backend/cmd"
	"medix-backend/internal/storage"
	"medix-backend/internal/vision"

	"github.com/caarlos0/env/v11"
	"github.com/schollz/progressbar/v3"
)

// syncmodels downloads the classifier checkpoints from an S3 bucket into the
// local model directory so the API server can load them at startup. Only
// files the registry actually probes for are fetched, and files already on
// disk are skipped unless OVERWRITE_MODELS is set.

type Config struct {
	ModelDir          string `env:"MODEL_DIR" envDefault:"./models"`
	ModelBucket       string `env:"MODEL_BUCKET_NAME" envDefault:"medix-models"`
	ModelPrefix       string `env:"MODEL_PREFIX" envDefault:""`
	Overwrite         bool   `env:"OVERWRITE_MODELS" envDefault:"false"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3Region          string `env:"AWS_REGION"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

func wantedCheckpoints() map[string]bool {
	wanted := make(map[string]bool)
	for _, desc := range vision.Descriptors() {
		for _, filename := range desc.CheckpointFiles {
			wanted[filename] = true
		}
	}
	return wanted
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	provider, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	ctx := context.Background()

	objects, err := provider.ListObjects(ctx, cfg.ModelBucket, cfg.ModelPrefix)
	if err != nil {
		log.Fatalf("Failed to list model bucket %s: %v", cfg.ModelBucket, err)
	}

	wanted := wantedCheckpoints()

	var toFetch []storage.Object
	for _, obj := range objects {
		name := filepath.Base(obj.Name)
		if !strings.HasSuffix(name, ".onnx") || !wanted[name] {
			continue
		}

		dest := filepath.Join(cfg.ModelDir, name)
		if _, err := os.Stat(dest); err == nil && !cfg.Overwrite {
			log.Printf("skipping %s, already present", name)
			continue
		}

		toFetch = append(toFetch, obj)
	}

	if len(toFetch) == 0 {
		log.Printf("no checkpoints to download from s3://%s/%s", cfg.ModelBucket, cfg.ModelPrefix)
		return
	}

	bar := progressbar.NewOptions(len(toFetch),
		progressbar.OptionSetDescription("downloading checkpoints"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	for _, obj := range toFetch {
		name := filepath.Base(obj.Name)

		if err := provider.DownloadObject(ctx, cfg.ModelBucket, obj.Name, filepath.Join(cfg.ModelDir, name)); err != nil {
			log.Fatalf("Failed to download %s: %v", obj.Name, err)
		}

		_ = bar.Add(1)
		log.Printf("downloaded %s (%d bytes)", name, obj.Size)
	}

	log.Printf("synced %d checkpoints into %s", len(toFetch), cfg.ModelDir)
}
