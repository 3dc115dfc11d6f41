package domain

// PipelineConfig selects which transformation techniques run and tunes
// their numerics. Values are immutable once built; each request gets its
// own copy merged with defaults through ConfigBuilder.
type PipelineConfig struct {
	UseQueryEnhancement   bool `json:"use_query_enhancement"`
	UseStepBack           bool `json:"use_step_back"`
	UseDecomposition      bool `json:"use_decomposition"`
	UseMultiQuery         bool `json:"use_multi_query"`
	UseRAGFusion          bool `json:"use_rag_fusion"`
	UseHyDE               bool `json:"use_hyde"`
	UseStyleFormatting    bool `json:"use_style_formatting"`
	UseRelevanceFiltering bool `json:"use_relevance_filtering"`
	UseClaimVerification  bool `json:"use_claim_verification"`

	NumMultiQueries    int     `json:"num_multi_queries"`
	RRFK               int     `json:"rrf_k"`
	FusionQueryCount   int     `json:"fusion_query_count"`
	MaxSubQuestions    int     `json:"max_sub_questions"`
	HyDETemperature    float64 `json:"hyde_temperature"`
	MinRelevanceScore  float64 `json:"min_relevance_score"`
	MaxContextChunks   int     `json:"max_context_chunks"`
	DiversityThreshold float64 `json:"diversity_threshold"`
}

// DefaultPipelineConfig mirrors the defaults of the original profile
// assistant deployment.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		UseQueryEnhancement:   true,
		UseStepBack:           true,
		UseDecomposition:      true,
		UseMultiQuery:         true,
		UseRAGFusion:          true,
		UseHyDE:               false,
		UseStyleFormatting:    true,
		UseRelevanceFiltering: true,
		UseClaimVerification:  true,

		NumMultiQueries:    4,
		RRFK:               60,
		FusionQueryCount:   4,
		MaxSubQuestions:    3,
		HyDETemperature:    0.2,
		MinRelevanceScore:  0.55,
		MaxContextChunks:   5,
		DiversityThreshold: 0.85,
	}
}

// ConfigBuilder merges per-request overrides into the defaults. There is
// no shared mutable default value; Build always returns a fresh copy.
type ConfigBuilder struct {
	cfg PipelineConfig
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: DefaultPipelineConfig()}
}

// NewConfigBuilderFrom starts from an explicit base, typically the
// service-level defaults loaded from configuration.
func NewConfigBuilderFrom(base PipelineConfig) *ConfigBuilder {
	return &ConfigBuilder{cfg: base}
}

func (b *ConfigBuilder) QueryEnhancement(on bool) *ConfigBuilder {
	b.cfg.UseQueryEnhancement = on
	return b
}

func (b *ConfigBuilder) StepBack(on bool) *ConfigBuilder {
	b.cfg.UseStepBack = on
	return b
}

func (b *ConfigBuilder) Decomposition(on bool) *ConfigBuilder {
	b.cfg.UseDecomposition = on
	return b
}

func (b *ConfigBuilder) MultiQuery(on bool) *ConfigBuilder {
	b.cfg.UseMultiQuery = on
	return b
}

func (b *ConfigBuilder) RAGFusion(on bool) *ConfigBuilder {
	b.cfg.UseRAGFusion = on
	return b
}

func (b *ConfigBuilder) HyDE(on bool) *ConfigBuilder {
	b.cfg.UseHyDE = on
	return b
}

func (b *ConfigBuilder) StyleFormatting(on bool) *ConfigBuilder {
	b.cfg.UseStyleFormatting = on
	return b
}

func (b *ConfigBuilder) RelevanceFiltering(on bool) *ConfigBuilder {
	b.cfg.UseRelevanceFiltering = on
	return b
}

func (b *ConfigBuilder) ClaimVerification(on bool) *ConfigBuilder {
	b.cfg.UseClaimVerification = on
	return b
}

func (b *ConfigBuilder) NumMultiQueries(n int) *ConfigBuilder {
	b.cfg.NumMultiQueries = n
	return b
}

func (b *ConfigBuilder) RRFK(k int) *ConfigBuilder {
	b.cfg.RRFK = k
	return b
}

func (b *ConfigBuilder) FusionQueryCount(n int) *ConfigBuilder {
	b.cfg.FusionQueryCount = n
	return b
}

func (b *ConfigBuilder) MaxSubQuestions(n int) *ConfigBuilder {
	b.cfg.MaxSubQuestions = n
	return b
}

func (b *ConfigBuilder) HyDETemperature(t float64) *ConfigBuilder {
	b.cfg.HyDETemperature = t
	return b
}

func (b *ConfigBuilder) MinRelevanceScore(s float64) *ConfigBuilder {
	b.cfg.MinRelevanceScore = s
	return b
}

func (b *ConfigBuilder) MaxContextChunks(n int) *ConfigBuilder {
	b.cfg.MaxContextChunks = n
	return b
}

func (b *ConfigBuilder) DiversityThreshold(t float64) *ConfigBuilder {
	b.cfg.DiversityThreshold = t
	return b
}

// Build normalizes out-of-range numerics against the defaults and
// returns the immutable config value.
func (b *ConfigBuilder) Build() PipelineConfig {
	out := b.cfg
	def := DefaultPipelineConfig()

	if out.NumMultiQueries <= 0 {
		out.NumMultiQueries = def.NumMultiQueries
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	if out.FusionQueryCount <= 0 {
		out.FusionQueryCount = def.FusionQueryCount
	}
	if out.MaxSubQuestions <= 0 {
		out.MaxSubQuestions = def.MaxSubQuestions
	}
	if out.HyDETemperature < 0 || out.HyDETemperature > 2 {
		out.HyDETemperature = def.HyDETemperature
	}
	if out.MinRelevanceScore <= 0 || out.MinRelevanceScore > 1 {
		out.MinRelevanceScore = def.MinRelevanceScore
	}
	if out.MaxContextChunks <= 0 {
		out.MaxContextChunks = def.MaxContextChunks
	}
	if out.DiversityThreshold <= 0 || out.DiversityThreshold > 1 {
		out.DiversityThreshold = def.DiversityThreshold
	}
	return out
}
