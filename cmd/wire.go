package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"analytics-agent/internal/agentic"
	"analytics-agent/internal/analytics"
	"analytics-agent/internal/config"
	"analytics-agent/internal/embedstore"
	"analytics-agent/internal/integrations/openai"
	"analytics-agent/internal/integrations/paramstore"
	"analytics-agent/internal/intent"
	"analytics-agent/internal/metrics"
	"analytics-agent/internal/planner"
	"analytics-agent/internal/repository"
	"analytics-agent/internal/usecase"
)

// app owns every long-lived dependency of a process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	service  *usecase.AskService
	semantic *intent.SemanticMatcher

	awsCfg  *aws.Config
	closers []func(context.Context) error
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases dependencies in reverse order of construction.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *app) openAI(ctx context.Context) (*openai.Client, error) {
	c := a.cfg.OpenAI
	opts := []openai.Option{
		openai.WithChatModel(c.ChatModel),
		openai.WithEmbeddingModel(c.EmbeddingModel),
		openai.WithRequestsPerMinute(c.RequestsPerMinute),
	}
	if c.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.BaseURL))
	}
	if c.APIKey != "" {
		return openai.NewClient(nil, "", append(opts, openai.WithAPIKey(c.APIKey))...)
	}

	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("create parameter store client: %w", err)
	}
	return openai.NewClient(keys, c.ParamPrefix, opts...)
}

// semanticMatcher opens the embedding cache and builds the matcher without
// loading vectors.
func (a *app) semanticMatcher(llm *openai.Client) (*intent.SemanticMatcher, error) {
	store, err := embedstore.Open(a.cfg.Embeddings.CachePath, a.cfg.Embeddings.CacheTTL, a.logger.Named("embedstore"))
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return store.Close() })
	return intent.NewSemanticMatcher(llm, store, llm.EmbeddingModel(), a.logger.Named("semantic"))
}

func (a *app) conversationStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.Conversation.Backend {
	case config.BackendRedis:
		client, err := repository.DialRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisStore(client, a.cfg.Redis.KeyPrefix, a.cfg.Conversation.TTL)
	case config.BackendDynamoDB:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), a.cfg.DynamoDB.Table, a.cfg.Conversation.TTL)
	}
	return repository.NewMemoryStore(a.cfg.Conversation.TTL), nil
}

// newApp wires the full ask pipeline. A failed embedding load leaves the
// semantic stage empty until the matcher's own retry succeeds.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, err
	}

	llm, err := a.openAI(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}

	a.semantic, err = a.semanticMatcher(llm)
	if err != nil {
		return nil, fmt.Errorf("create semantic matcher: %w", err)
	}
	if err := a.semantic.Init(ctx); err != nil {
		logger.Warn("semantic matching disabled, embeddings reload on demand", zap.Error(err))
	}

	mongoStore, err := analytics.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err != nil {
		return nil, err
	}
	a.onClose(mongoStore.Close)

	ops, err := analytics.NewRegistry(mongoStore,
		analytics.WithLogger(logger.Named("analytics")),
		analytics.WithObserver(m),
	)
	if err != nil {
		return nil, err
	}

	extractor := intent.NewExtractor()
	detector, err := intent.NewDetector(intent.NewPatternMatcher(), a.semantic, intent.NewFollowUpResolver(extractor), logger.Named("intent"))
	if err != nil {
		return nil, err
	}

	agent, err := agentic.New(llm, ops,
		agentic.WithModel(cfg.OpenAI.ChatModel),
		agentic.WithMaxIterations(cfg.Agent.MaxIterations),
		agentic.WithLogger(logger.Named("agent")),
	)
	if err != nil {
		return nil, err
	}

	var plan usecase.Planner
	if cfg.Agent.PlannerEnabled {
		p, err := planner.New(llm, ops,
			planner.WithModel(cfg.OpenAI.ChatModel),
			planner.WithLogger(logger.Named("planner")),
		)
		if err != nil {
			return nil, err
		}
		plan = p
	}

	synth, err := usecase.NewSynthesizer(llm, cfg.OpenAI.ChatModel)
	if err != nil {
		return nil, err
	}

	store, err := a.conversationStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation store: %w", err)
	}
	a.onClose(func(context.Context) error { return store.Close() })

	a.service, err = usecase.NewAskService(usecase.Deps{
		Detector:    detector,
		Extractor:   extractor,
		Planner:     plan,
		Agent:       agent,
		Operations:  ops,
		Synthesizer: synth,
		Store:       store,
		Recorder:    m,
		Logger:      logger.Named("ask"),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
