package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/profile-rag-service/internal/core/domain"
)

const (
	retrievalTopK = 8

	noInformationAnswer = "I don't have any information about that in my profile."
	pipelineErrMessage  = "the query could not be processed"
)

// Orchestrator runs the full query pipeline as a config-gated sequence
// of stages. Each technique transition is a pass-through when its flag
// is off or its stage fails; the entry point never returns an error to
// the caller.
type Orchestrator struct {
	transformer *QueryTransformer
	gateway     *RetrievalGateway
	filter      *RelevanceFilter
	composer    *AnswerComposer
	verifier    *ClaimVerifier
	logger      *slog.Logger
}

func NewOrchestrator(
	transformer *QueryTransformer,
	gateway *RetrievalGateway,
	filter *RelevanceFilter,
	composer *AnswerComposer,
	verifier *ClaimVerifier,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		transformer: transformer,
		gateway:     gateway,
		filter:      filter,
		composer:    composer,
		verifier:    verifier,
		logger:      logger,
	}
}

// ProcessQuery is the sole pipeline entry point. It always returns a
// result: recoverable stage failures degrade to pass-throughs, a total
// retrieval miss yields the fixed no-information answer, and anything
// unhandled is caught at the recovery boundary and reported through
// RAGResult.Err with an empty answer and sources.
func (o *Orchestrator) ProcessQuery(ctx context.Context, question string, cfg domain.PipelineConfig) (result *domain.RAGResult) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline_panic", "panic", r, "question", question)
			result = &domain.RAGResult{
				Sources:        []domain.FusedCandidate{},
				TechniquesUsed: []string{},
				Metadata: domain.ResultMetadata{
					OriginalQuery:    question,
					ProcessingTimeMs: time.Since(started).Milliseconds(),
				},
				Err: pipelineErrMessage,
			}
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return &domain.RAGResult{
			Sources:        []domain.FusedCandidate{},
			TechniquesUsed: []string{},
			Metadata:       domain.ResultMetadata{ProcessingTimeMs: time.Since(started).Milliseconds()},
			Err:            "question must not be empty",
		}
	}

	techniques := []string{}
	working := question

	if cfg.UseQueryEnhancement {
		if enhanced, ok := o.transformer.Enhance(ctx, working); ok {
			working = enhanced
			techniques = append(techniques, domain.TechniqueQueryEnhancement)
		}
	}

	var stepBack string
	if cfg.UseStepBack {
		if broader, ok := o.transformer.StepBack(ctx, working); ok {
			stepBack = broader
			techniques = append(techniques, domain.TechniqueStepBack)
		}
	}

	variants := o.buildVariants(ctx, working, stepBack, cfg, &techniques)

	lists := o.gateway.SearchAll(ctx, variants, retrievalTopK)

	var fused []domain.FusedCandidate
	if cfg.UseRAGFusion {
		fused = fuseReciprocalRank(lists, cfg.RRFK)
		techniques = append(techniques, domain.TechniqueRAGFusion)
	} else {
		fused = uniqueUnion(lists)
	}

	if cfg.UseHyDE {
		fused = o.hydeAugment(ctx, working, fused, cfg, &techniques)
	}

	if cfg.UseRelevanceFiltering && len(fused) > 0 {
		fused = thresholdFilter(fused, cfg.MinRelevanceScore)
		fused = deduplicate(fused, cfg.DiversityThreshold)
		fused = o.filter.Rerank(ctx, question, fused, cfg.MaxContextChunks)
		techniques = append(techniques, domain.TechniqueRelevanceFiltering)
	} else if cfg.MaxContextChunks > 0 && len(fused) > cfg.MaxContextChunks {
		fused = fused[:cfg.MaxContextChunks]
	}

	meta := domain.ResultMetadata{
		OriginalQuery:      question,
		TransformedQueries: variants,
		FaithfulnessScore:  1.0,
	}

	if len(fused) == 0 {
		meta.ProcessingTimeMs = time.Since(started).Milliseconds()
		return &domain.RAGResult{
			Answer:         noInformationAnswer,
			Sources:        []domain.FusedCandidate{},
			TechniquesUsed: techniques,
			Metadata:       meta,
		}
	}

	contextBlock := BuildContext(fused, true)
	answer, err := o.composer.Compose(ctx, question, contextBlock, cfg.UseStyleFormatting)
	if err != nil {
		o.logger.Error("compose_failed", "error", err, "question", question)
		meta.ProcessingTimeMs = time.Since(started).Milliseconds()
		return &domain.RAGResult{
			Sources:        []domain.FusedCandidate{},
			TechniquesUsed: techniques,
			Metadata:       meta,
			Err:            pipelineErrMessage,
		}
	}
	if cfg.UseStyleFormatting {
		techniques = append(techniques, domain.TechniqueStyleFormatting)
	}

	if cfg.UseClaimVerification {
		answer, meta.FaithfulnessScore = o.verifier.Verify(ctx, answer, contextBlock)
		techniques = append(techniques, domain.TechniqueClaimVerification)
	}

	meta.RetrievalScores = make([]float64, len(fused))
	var precision float64
	for i, c := range fused {
		meta.RetrievalScores[i] = c.VectorScore
		precision += c.VectorScore
	}
	meta.ContextPrecision = precision / float64(len(fused))
	meta.NumContextsUsed = len(fused)
	meta.ProcessingTimeMs = time.Since(started).Milliseconds()

	return &domain.RAGResult{
		Answer:         answer,
		Sources:        fused,
		TechniquesUsed: techniques,
		Metadata:       meta,
	}
}

// buildVariants expands the working query into the retrieval fan-out.
// Complex questions decompose into sub-questions, simple ones get
// alternate phrasings, and a step-back generalization joins as one
// extra variant. The total is capped at the fusion query count.
func (o *Orchestrator) buildVariants(ctx context.Context, working, stepBack string, cfg domain.PipelineConfig, techniques *[]string) []domain.TransformedQuery {
	const originalTag = "original"
	texts := []string{working}
	tag := originalTag

	if cfg.UseDecomposition && IsComplexQuery(working) {
		if subs, ok := o.transformer.Decompose(ctx, working, cfg.MaxSubQuestions); ok && len(subs) > 1 {
			texts = subs
			tag = domain.TechniqueDecomposition
			*techniques = append(*techniques, domain.TechniqueDecomposition)
		}
	}
	if tag != domain.TechniqueDecomposition && cfg.UseMultiQuery {
		if alts, ok := o.transformer.MultiQuery(ctx, working, cfg.NumMultiQueries); ok && len(alts) > 0 {
			texts = append(texts, alts...)
			tag = domain.TechniqueMultiQuery
			*techniques = append(*techniques, domain.TechniqueMultiQuery)
		}
	}

	variants := make([]domain.TransformedQuery, 0, len(texts)+1)
	for _, text := range texts {
		technique := tag
		if text == working {
			technique = originalTag
		}
		variants = append(variants, domain.TransformedQuery{Text: text, Technique: technique, Order: len(variants)})
	}
	if stepBack != "" {
		variants = append(variants, domain.TransformedQuery{Text: stepBack, Technique: domain.TechniqueStepBack, Order: len(variants)})
	}

	if cfg.FusionQueryCount > 0 && len(variants) > cfg.FusionQueryCount {
		variants = variants[:cfg.FusionQueryCount]
	}
	return variants
}

// hydeAugment folds a hypothetical-answer retrieval pass into the fused
// set. Any failure along the way leaves the set untouched.
func (o *Orchestrator) hydeAugment(ctx context.Context, working string, fused []domain.FusedCandidate, cfg domain.PipelineConfig, techniques *[]string) []domain.FusedCandidate {
	doc, ok := o.transformer.HypotheticalDocument(ctx, working, cfg.HyDETemperature)
	if !ok {
		return fused
	}
	extra, err := o.gateway.Search(ctx, doc, retrievalTopK)
	if err != nil || len(extra) == 0 {
		if err != nil {
			o.logger.Warn("hyde_retrieval_failed", "error", err)
		}
		return fused
	}
	*techniques = append(*techniques, domain.TechniqueHyDE)
	return fuseIntoExisting(fused, extra, cfg.RRFK)
}
