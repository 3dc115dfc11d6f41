package domain

import "testing"

func TestConfigBuilderKeepsDefaultsUntouched(t *testing.T) {
	cfg := NewConfigBuilder().Build()
	def := DefaultPipelineConfig()

	if cfg != def {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConfigBuilderAppliesOverrides(t *testing.T) {
	cfg := NewConfigBuilder().
		HyDE(true).
		RAGFusion(false).
		RRFK(75).
		MaxContextChunks(2).
		Build()

	if !cfg.UseHyDE {
		t.Fatal("expected hyde enabled")
	}
	if cfg.UseRAGFusion {
		t.Fatal("expected rag fusion disabled")
	}
	if cfg.RRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.RRFK)
	}
	if cfg.MaxContextChunks != 2 {
		t.Fatalf("expected max context chunks 2, got %d", cfg.MaxContextChunks)
	}
}

func TestConfigBuilderNormalizesOutOfRangeNumerics(t *testing.T) {
	cfg := NewConfigBuilder().
		RRFK(-1).
		MinRelevanceScore(1.5).
		DiversityThreshold(0).
		HyDETemperature(5).
		Build()

	def := DefaultPipelineConfig()
	if cfg.RRFK != def.RRFK {
		t.Fatalf("expected rrf k reset to %d, got %d", def.RRFK, cfg.RRFK)
	}
	if cfg.MinRelevanceScore != def.MinRelevanceScore {
		t.Fatalf("expected min relevance reset, got %v", cfg.MinRelevanceScore)
	}
	if cfg.DiversityThreshold != def.DiversityThreshold {
		t.Fatalf("expected diversity threshold reset, got %v", cfg.DiversityThreshold)
	}
	if cfg.HyDETemperature != def.HyDETemperature {
		t.Fatalf("expected hyde temperature reset, got %v", cfg.HyDETemperature)
	}
}
