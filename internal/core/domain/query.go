package domain

// Technique labels reported in RAGResult.TechniquesUsed. A label only
// ever appears when its config flag is enabled and the stage actually ran.
const (
	TechniqueQueryEnhancement   = "Query Enhancement"
	TechniqueStepBack           = "Step-Back Prompting"
	TechniqueDecomposition      = "Query Decomposition"
	TechniqueMultiQuery         = "Multi-Query"
	TechniqueRAGFusion          = "RAG-Fusion"
	TechniqueHyDE               = "HyDE"
	TechniqueRelevanceFiltering = "Relevance Filtering"
	TechniqueStyleFormatting    = "Style Formatting"
	TechniqueClaimVerification  = "Claim Verification"
)

// TransformedQuery is one retrieval variant produced by a transformation
// stage. Order preserves the position in the variant fan-out; instances
// are never mutated after creation.
type TransformedQuery struct {
	Text      string `json:"text"`
	Technique string `json:"technique"`
	Order     int    `json:"order"`
}

// Candidate is a profile chunk returned by vector search.
// Identity is the (ID, Title) pair.
type Candidate struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	VectorScore float64  `json:"vector_score"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Key returns the fusion identity of the candidate.
func (c Candidate) Key() string {
	return c.ID + "\x00" + c.Title
}

// FusedCandidate is a Candidate after rank fusion. FusionScore replaces
// the vector score for ranking purposes; VectorScore is preserved for
// threshold filtering and context-precision reporting.
type FusedCandidate struct {
	Candidate
	FusionScore float64 `json:"fusion_score"`
}

// ResultMetadata describes how a RAGResult was produced.
type ResultMetadata struct {
	OriginalQuery      string             `json:"original_query"`
	TransformedQueries []TransformedQuery `json:"transformed_queries,omitempty"`
	RetrievalScores    []float64          `json:"retrieval_scores,omitempty"`
	ProcessingTimeMs   int64              `json:"processing_time_ms"`
	ContextPrecision   float64            `json:"context_precision"`
	FaithfulnessScore  float64            `json:"faithfulness_score"`
	NumContextsUsed    int                `json:"num_contexts_used"`
}

// RAGResult is the terminal output of the query pipeline. Err is set only
// when the pipeline hit its top-level recovery boundary; the
// no-information case is a regular result with empty sources.
type RAGResult struct {
	Answer         string           `json:"answer"`
	Sources        []FusedCandidate `json:"sources"`
	TechniquesUsed []string         `json:"techniques_used"`
	Metadata       ResultMetadata   `json:"metadata"`
	Err            string           `json:"error,omitempty"`
}

// GenerationOptions tune a single completion call.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// QueryLogEntry is the persisted trace of one processed query.
type QueryLogEntry struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	Answer            string   `json:"answer"`
	TechniquesUsed    []string `json:"techniques_used"`
	FaithfulnessScore float64  `json:"faithfulness_score"`
	ContextPrecision  float64  `json:"context_precision"`
	NumContextsUsed   int      `json:"num_contexts_used"`
	ProcessingTimeMs  int64    `json:"processing_time_ms"`
}
