package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("S3_BUCKET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPPort != "8501" {
		t.Errorf("Expected default port 8501, got %q", cfg.HTTPPort)
	}
	if cfg.ModelPath != "model/halflife.json" {
		t.Errorf("Unexpected default model path %q", cfg.ModelPath)
	}
	if cfg.S3Enabled() {
		t.Error("S3 should be disabled without a bucket")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("MODEL_PATH", "/models/forest.json")
	t.Setenv("S3_BUCKET", "studies")
	t.Setenv("S3_KEY", "key")
	t.Setenv("S3_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPPort != "9000" {
		t.Errorf("Expected port 9000, got %q", cfg.HTTPPort)
	}
	if cfg.ModelPath != "/models/forest.json" {
		t.Errorf("Expected overridden model path, got %q", cfg.ModelPath)
	}
	if !cfg.S3Enabled() {
		t.Error("S3 should be enabled with bucket and credentials")
	}
}
