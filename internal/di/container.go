package di

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"qa-orchestrator/internal/adapter/llm"
	"qa-orchestrator/internal/adapter/obslog"
	"qa-orchestrator/internal/adapter/qa_http"
	"qa-orchestrator/internal/adapter/repository"
	"qa-orchestrator/internal/domain"
	"qa-orchestrator/internal/infra/config"
	"qa-orchestrator/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	Documents domain.DocumentStore
	Sessions  domain.SessionStore

	// Usecases
	Pipeline *usecase.Pipeline
	Ingestor *usecase.Ingestor

	// Adapters exposed for handler wiring
	Logs  *obslog.Client
	Stats qa_http.StatsConfig
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Repositories
	documents := repository.NewDocumentRepository(pool)
	sessions := repository.NewSessionRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Model clients
	rps := cfg.Models.RequestsPerSecond
	burst := cfg.Models.Burst
	embedder := llm.NewOpenAIEmbedder(cfg.Models.OpenAIKey, cfg.Models.EmbeddingModel, cfg.Models.EmbeddingDimensions, rps, burst)
	auxModel := llm.NewOpenAIChat(cfg.Models.OpenAIKey, cfg.Models.AuxModel, rps, burst)
	generationModel := llm.NewAnthropicChat(cfg.Models.AnthropicKey, cfg.Models.GenerationModel, rps, burst)

	cachedEmbedder, err := usecase.NewCachedEmbedder(embedder, cfg.Cache.Size, log)
	if err != nil {
		return nil, err
	}

	// Pipeline stages
	expander := usecase.NewQueryExpander(auxModel, log)
	retriever := usecase.NewRetriever(documents, cachedEmbedder, expander, usecase.RetrievalOptions{
		TopK:                cfg.Pipeline.TopK,
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		LexicalWeight:       cfg.Pipeline.LexicalWeight,
		ExpansionEnabled:    cfg.Pipeline.ExpansionEnabled,
	}, log)
	generator := usecase.NewGenerator(generationModel, cfg.Pipeline.MaxTokens, log)
	extractor := usecase.NewClaimsExtractor(auxModel, log)
	verifier := usecase.NewVerifier(documents, cachedEmbedder, cfg.Pipeline.VerificationThreshold, log)
	accuracy := usecase.NewAccuracyChecker(generationModel, log)
	evaluator := usecase.NewDualEvaluator(auxModel, generationModel, log)

	tracer := otel.Tracer(cfg.Obs.ServiceName)
	runner := usecase.NewStageRunner(tracer, log)

	pipeline := usecase.NewPipeline(
		cachedEmbedder, retriever, generator, extractor, verifier, accuracy, evaluator,
		sessions, runner, tracer,
		usecase.PipelineOptions{
			MaxIterations:      cfg.Pipeline.MaxIterations,
			QualityThreshold:   cfg.Pipeline.QualityThreshold,
			AccuracyThreshold:  cfg.Pipeline.AccuracyThreshold,
			AgreementThreshold: cfg.Pipeline.AgreementThreshold,
			GateOnAccuracy:     cfg.Pipeline.GateOnAccuracy,
		},
		log,
	)

	// Ingestion
	ingestor := usecase.NewIngestor(domain.NewChunker(), cachedEmbedder, documents, txManager, log)

	return &ApplicationComponents{
		Documents: documents,
		Sessions:  sessions,
		Pipeline:  pipeline,
		Ingestor:  ingestor,
		Logs:      obslog.NewClient(cfg.Obs.LogsAPIURL, cfg.Obs.LogsReadToken),
		Stats: qa_http.StatsConfig{
			EmbeddingModel:      cfg.Models.EmbeddingModel,
			EmbeddingDimensions: cfg.Models.EmbeddingDimensions,
			TopK:                cfg.Pipeline.TopK,
			QualityThreshold:    cfg.Pipeline.QualityThreshold,
			MaxIterations:       cfg.Pipeline.MaxIterations,
		},
	}, nil
}
