package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/ai/gemini"
	"github.com/mkarpov-dev/jobsieve/internal/filtering"
	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/ingest"
	"github.com/mkarpov-dev/jobsieve/internal/job"
	"github.com/mkarpov-dev/jobsieve/internal/logger"
	"github.com/mkarpov-dev/jobsieve/internal/match"
	"github.com/mkarpov-dev/jobsieve/internal/pipeline"
	"github.com/mkarpov-dev/jobsieve/internal/scoring"
	"github.com/mkarpov-dev/jobsieve/internal/secrets"
	"github.com/mkarpov-dev/jobsieve/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	reasoningPreviewLen = 160
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run the matching pipeline over a file of raw postings",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("postings", "p", "", "JSON file with raw postings to match against")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before running the pipeline")

	if err := matchCmd.MarkFlagRequired("postings"); err != nil {
		log.Fatalf("marking postings flag required: %v", err)
	}
}

// runMatch is the main command for the cli.
func runMatch(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobsieve", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	profile, err := buildProfile(config.Profile)
	if err != nil {
		logger.Fatal("building candidate profile", zap.Error(err))
	}

	raws, err := loadRawPostings(cmd.Flag("postings").Value.String())
	if err != nil {
		logger.Fatal("loading raw postings", zap.Error(err))
	}

	if len(raws) == 0 {
		logger.Info("exiting", zap.String("reason", "no raw postings in input file"))
		return
	}

	logger.Info("loaded raw postings", zap.Int("count", len(raws)))

	if cmd.Flag("auto-approve").Value.String() == "false" {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Run the matching pipeline over %d postings?", len(raws)),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	p, err := buildPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building pipeline", zap.Error(err))
	}

	result, err := p.Run(ctx, profile, raws)
	if err != nil {
		if errors.Is(err, pipeline.ErrIndexUnavailable) {
			logger.Fatal("similarity index unreachable",
				zap.Error(err),
				zap.String("hint", "check index.url in the configuration file or leave it empty for the in-process index"),
			)
		}
		logger.Fatal("pipeline run failed", zap.Error(err))
	}

	report(logger, result)
}

func report(log *zap.Logger, result *pipeline.RunResult) {
	if result.Cancelled {
		log.Warn("run was cancelled, results are partial", zap.String("run_id", result.RunID.String()))
	}

	if len(result.Ranked) == 0 {
		log.Info("no postings survived the pipeline", zap.String("run_id", result.RunID.String()))
	}

	for i, m := range result.Ranked {
		log.Info("ranked match",
			zap.Int("rank", i+1),
			zap.String("posting", m.Posting.Key.String()),
			zap.String("title", m.Posting.Title),
			zap.String("organization", m.Posting.Organization),
			zap.Float64("overall", m.Score.Overall),
			zap.String("reasoning", utils.TruncateForLog(m.Score.Reasoning, reasoningPreviewLen)),
		)
	}

	pretty, _ := json.MarshalIndent(result.Summary, "", "  ")
	log.Info(fmt.Sprintf("run summary: \n%s", pretty), zap.String("run_id", result.RunID.String()))

	filename, err := dumpResult(result)
	if err != nil {
		log.Warn("dumping result to file", zap.Error(err))
		return
	}
	log.Info("dumped result to file", zap.String("filename", filename))
}

func buildProfile(cfg *ProfileConfig) (*job.CandidateProfile, error) {
	if cfg == nil {
		return nil, errors.New("profile section is required in the configuration file")
	}

	profile := cfg.CandidateProfile
	if strings.TrimSpace(profile.ResumeText) == "" && cfg.ResumeFile != "" {
		data, err := os.ReadFile(cfg.ResumeFile)
		if err != nil {
			return nil, fmt.Errorf("reading resume file: %w", err)
		}
		profile.ResumeText = string(data)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return &profile, nil
}

func loadRawPostings(path string) ([]ingest.RawPosting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings file: %w", err)
	}

	var raws []ingest.RawPosting
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing postings file: %w", err)
	}

	return raws, nil
}

func buildPipeline(ctx context.Context, config *Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	if config.AI == nil || config.AI.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		File:  config.AI.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	idx, err := buildIndex(ctx, config.Index)
	if err != nil {
		return nil, err
	}

	pcfg := config.Pipeline
	if pcfg == nil {
		pcfg = &PipelineConfig{}
	}

	embedder := client.Embedder(config.AI.Gemini.EmbedModel)
	triage := client.Model(config.AI.Gemini.TriageModel, 0)
	judge := client.Model(config.AI.Gemini.JudgeModel, 0.2)

	var rerankModel ai.RerankModel
	if config.AI.Gemini.Rerank {
		rerankModel = client.Reranker(
			config.AI.Gemini.TriageModel,
			logger.WithCommonFields(log, "gemini", config.AI.Gemini.TriageModel),
		)
	}

	deps := pipeline.Deps{
		Logger:     log,
		Normalizer: ingest.NewNormalizer(),
		Filters:    filtering.Defaults(),
		Indexer:    match.NewIndexer(embedder, idx, 0, log),
		Retriever:  match.NewRetriever(embedder, idx, pcfg.RetrieveK, log),
		Reranker:   match.NewReranker(rerankModel, pcfg.RerankN, log),
		Quick:      scoring.NewQuickScorer(triage, pcfg.QuickThreshold, logger.WithCommonFields(log, "gemini", triage.Name())),
		Judge:      scoring.NewJudgeScorer(judge, logger.WithCommonFields(log, "gemini", judge.Name())),
		Index:      idx,
	}

	cfg := pipeline.Config{
		MaxPostings: pcfg.MaxPostings,
		MaxLLMCalls: pcfg.MaxLLMCalls,
		Workers:     pcfg.Workers,
		CallTimeout: time.Duration(pcfg.CallTimeoutSeconds) * time.Second,
	}

	return pipeline.New(cfg, deps), nil
}

func buildIndex(ctx context.Context, cfg *IndexConfig) (index.VectorIndex, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return index.NewMemory(), nil
	}

	apiKey := ""
	if cfg.APIKey != "" || cfg.APIKeyFile != "" {
		key, err := secrets.Load(secrets.Source{
			Name:  "qdrant api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		apiKey = key
	}

	qdr, err := index.NewQdrant(cfg.URL, apiKey, cfg.Collection, cfg.VectorSize)
	if err != nil {
		return nil, err
	}

	if err := qdr.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}

	return qdr, nil
}

func dumpResult(result *pipeline.RunResult) (string, error) {
	file, err := os.CreateTemp("", app+"-result-*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}

	if _, err := file.Write(data); err != nil {
		return "", err
	}

	return file.Name(), nil
}
