package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/profile-rag-service/internal/config"
	"github.com/kirillkom/profile-rag-service/internal/core/domain"
	"github.com/kirillkom/profile-rag-service/internal/core/ports"
	"github.com/kirillkom/profile-rag-service/internal/observability/metrics"
)

const serviceName = "profile-rag-api"

type Router struct {
	cfg       config.Config
	processor ports.QueryProcessor
	ingestor  ports.DocumentIngestor
	docs      ports.DocumentReader
	queryLog  ports.QueryLogStore
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	processor ports.QueryProcessor,
	ingestor ports.DocumentIngestor,
	docs ports.DocumentReader,
	queryLog ports.QueryLogStore,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		processor: processor,
		ingestor:  ingestor,
		docs:      docs,
		queryLog:  queryLog,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/profile/query", rt.queryProfile)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 50*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		r.FormValue("title"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// queryRequest carries the question plus optional per-request pipeline
// overrides. Absent fields keep the service defaults.
type queryRequest struct {
	Question string `json:"question"`

	UseQueryEnhancement   *bool `json:"use_query_enhancement,omitempty"`
	UseStepBack           *bool `json:"use_step_back,omitempty"`
	UseDecomposition      *bool `json:"use_decomposition,omitempty"`
	UseMultiQuery         *bool `json:"use_multi_query,omitempty"`
	UseRAGFusion          *bool `json:"use_rag_fusion,omitempty"`
	UseHyDE               *bool `json:"use_hyde,omitempty"`
	UseStyleFormatting    *bool `json:"use_style_formatting,omitempty"`
	UseRelevanceFiltering *bool `json:"use_relevance_filtering,omitempty"`
	UseClaimVerification  *bool `json:"use_claim_verification,omitempty"`

	NumMultiQueries    *int     `json:"num_multi_queries,omitempty"`
	RRFK               *int     `json:"rrf_k,omitempty"`
	FusionQueryCount   *int     `json:"fusion_query_count,omitempty"`
	MaxSubQuestions    *int     `json:"max_sub_questions,omitempty"`
	HyDETemperature    *float64 `json:"hyde_temperature,omitempty"`
	MinRelevanceScore  *float64 `json:"min_relevance_score,omitempty"`
	MaxContextChunks   *int     `json:"max_context_chunks,omitempty"`
	DiversityThreshold *float64 `json:"diversity_threshold,omitempty"`
}

func (rt *Router) queryProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	pipelineCfg := rt.buildPipelineConfig(req)
	result := rt.processor.ProcessQuery(r.Context(), req.Question, pipelineCfg)

	rt.recordQueryOutcome(r, req.Question, result)

	status := http.StatusOK
	if result.Err != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (rt *Router) buildPipelineConfig(req queryRequest) domain.PipelineConfig {
	b := domain.NewConfigBuilderFrom(rt.cfg.PipelineConfig())

	if req.UseQueryEnhancement != nil {
		b.QueryEnhancement(*req.UseQueryEnhancement)
	}
	if req.UseStepBack != nil {
		b.StepBack(*req.UseStepBack)
	}
	if req.UseDecomposition != nil {
		b.Decomposition(*req.UseDecomposition)
	}
	if req.UseMultiQuery != nil {
		b.MultiQuery(*req.UseMultiQuery)
	}
	if req.UseRAGFusion != nil {
		b.RAGFusion(*req.UseRAGFusion)
	}
	if req.UseHyDE != nil {
		b.HyDE(*req.UseHyDE)
	}
	if req.UseStyleFormatting != nil {
		b.StyleFormatting(*req.UseStyleFormatting)
	}
	if req.UseRelevanceFiltering != nil {
		b.RelevanceFiltering(*req.UseRelevanceFiltering)
	}
	if req.UseClaimVerification != nil {
		b.ClaimVerification(*req.UseClaimVerification)
	}

	if req.NumMultiQueries != nil {
		b.NumMultiQueries(*req.NumMultiQueries)
	}
	if req.RRFK != nil {
		b.RRFK(*req.RRFK)
	}
	if req.FusionQueryCount != nil {
		b.FusionQueryCount(*req.FusionQueryCount)
	}
	if req.MaxSubQuestions != nil {
		b.MaxSubQuestions(*req.MaxSubQuestions)
	}
	if req.HyDETemperature != nil {
		b.HyDETemperature(*req.HyDETemperature)
	}
	if req.MinRelevanceScore != nil {
		b.MinRelevanceScore(*req.MinRelevanceScore)
	}
	if req.MaxContextChunks != nil {
		b.MaxContextChunks(*req.MaxContextChunks)
	}
	if req.DiversityThreshold != nil {
		b.DiversityThreshold(*req.DiversityThreshold)
	}

	return b.Build()
}

// recordQueryOutcome persists the query trace and updates pipeline
// metrics. Both are best effort and never affect the response.
func (rt *Router) recordQueryOutcome(r *http.Request, question string, result *domain.RAGResult) {
	meta := result.Metadata

	if rt.metrics != nil {
		status := "success"
		if result.Err != "" {
			status = "error"
		}
		rt.metrics.RecordPipelineOutcome(
			serviceName,
			status,
			meta.NumContextsUsed,
			meta.FaithfulnessScore,
			meta.ContextPrecision,
			time.Duration(meta.ProcessingTimeMs)*time.Millisecond,
		)
		for _, technique := range result.TechniquesUsed {
			rt.metrics.RecordTechnique(serviceName, technique)
		}
	}

	if rt.queryLog == nil || result.Err != "" {
		return
	}
	entry := domain.QueryLogEntry{
		ID:                uuid.NewString(),
		Question:          question,
		Answer:            result.Answer,
		TechniquesUsed:    result.TechniquesUsed,
		FaithfulnessScore: meta.FaithfulnessScore,
		ContextPrecision:  meta.ContextPrecision,
		NumContextsUsed:   meta.NumContextsUsed,
		ProcessingTimeMs:  meta.ProcessingTimeMs,
	}
	if err := rt.queryLog.Insert(r.Context(), entry); err != nil {
		slog.Warn("query_log_insert_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
