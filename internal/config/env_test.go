package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Reader.ContextPagesBefore != 2 || cfg.Reader.ContextPagesAfter != 2 {
		t.Errorf("unexpected context window defaults: %+v", cfg.Reader)
	}
	if cfg.Reader.ImageDPI != 150 {
		t.Errorf("expected default DPI 150, got %d", cfg.Reader.ImageDPI)
	}
	if cfg.Reader.DefaultPage != 0 {
		t.Errorf("expected default page 0, got %d", cfg.Reader.DefaultPage)
	}
	if cfg.Retrieval.TopK != 2 {
		t.Errorf("expected default retrieval k 2, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Session.Cooldown != 3*time.Second {
		t.Errorf("expected default cooldown 3s, got %v", cfg.Session.Cooldown)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("expected default local storage, got %q", cfg.Storage.Backend)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CONTEXT_PAGES_BEFORE", "1")
	t.Setenv("CONTEXT_PAGES_AFTER", "4")
	t.Setenv("IMAGE_DPI", "300")
	t.Setenv("RETRIEVAL_K", "5")

	cfg := FromEnv()
	if cfg.Reader.ContextPagesBefore != 1 || cfg.Reader.ContextPagesAfter != 4 {
		t.Errorf("overrides not applied: %+v", cfg.Reader)
	}
	if cfg.Reader.ImageDPI != 300 {
		t.Errorf("expected DPI 300, got %d", cfg.Reader.ImageDPI)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected k 5, got %d", cfg.Retrieval.TopK)
	}
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("IMAGE_DPI", "not-a-number")
	t.Setenv("SESSION_TTL", "soon")

	cfg := FromEnv()
	if cfg.Reader.ImageDPI != 150 {
		t.Errorf("expected fallback DPI 150, got %d", cfg.Reader.ImageDPI)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("expected fallback TTL 24h, got %v", cfg.Session.TTL)
	}
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.Retrieval.OpenAIAPIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	missingKey := cfg
	missingKey.Retrieval.OpenAIAPIKey = ""
	if err := missingKey.Validate(); err == nil {
		t.Error("expected error for missing API key")
	}

	badWindow := cfg
	badWindow.Reader.ContextPagesBefore = -1
	if err := badWindow.Validate(); err == nil {
		t.Error("expected error for negative window")
	}

	s3NoBucket := cfg
	s3NoBucket.Storage.Backend = "s3"
	s3NoBucket.Storage.S3Bucket = ""
	if err := s3NoBucket.Validate(); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
}
