package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"loan-rag/internal/chunker"
	"loan-rag/internal/config"
	"loan-rag/internal/customer"
	"loan-rag/internal/embedding"
	"loan-rag/internal/helper"
	"loan-rag/internal/llmservice"
	"loan-rag/internal/models"
	"loan-rag/internal/pipeline"
	"loan-rag/internal/policydocs"
	"loan-rag/internal/policyindex"
	"loan-rag/internal/records"
	"loan-rag/internal/tracker"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	customerInput := flag.String("customer", "", "Customer ID or name to evaluate")
	query := flag.String("query", "", "Policy question to answer")
	warm := flag.Bool("warm", false, "Build the policy index and exit")
	rebuild := flag.Bool("rebuild", false, "Force a policy index rebuild")
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx := context.Background()
	p, cleanup := buildPipeline(ctx, cfg)
	defer cleanup()

	switch {
	case *warm || *rebuild:
		if err := p.WarmPolicyCache(ctx, *rebuild); err != nil {
			log.Fatal().Err(err).Msg("Error warming policy cache")
		}
		log.Info().Msg("Policy index ready")
	case *customerInput != "":
		evaluateCustomer(ctx, cfg, p, *customerInput, *query)
	case *query != "":
		answerQuery(ctx, p, *query)
	default:
		log.Fatal().Msg("Provide a customer to evaluate with -customer, or a policy question with -query")
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func()) {
	var store records.Store
	cleanup := func() {}
	switch cfg.Data.Backend {
	case "postgres":
		sqldb, err := records.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		pg := records.NewPostgresStore(sqldb, cfg.Database.Debug)
		if err := pg.InitDB(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error initializing record tables")
		}
		store = pg
		cleanup = func() { pg.Close() }
	default:
		store = records.NewCSVStore(cfg.Data.Dir)
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	resolver := customer.NewResolver(store, cfg.Rules.LocalNationality)
	docs := policydocs.NewDirSource(cfg.Policies.Dir)
	cache := policyindex.NewCache(docs, embedder, chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap))
	generator := llmservice.NewClient(&cfg.LLM)

	return pipeline.New(resolver, cache, generator, cfg.Rules.LocalNationality, cfg.RAG.TopK), cleanup
}

func answerQuery(ctx context.Context, p *pipeline.Pipeline, query string) {
	decision := p.HandleRequest(ctx, query, "")
	helper.PrettyPrint(decision)
}

func evaluateCustomer(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, customerInput, query string) {
	decision := p.HandleRequest(ctx, query, customerInput)
	helper.PrettyPrint(decision)

	if decision.Kind != models.KindLoanApplication {
		return
	}

	session := tracker.NewSession(tracker.NewLedger(cfg.Data.LedgerFile))
	if _, err := session.Submit(decision, customerInput); err != nil {
		log.Fatal().Err(err).Msg("Error submitting application for review")
	}

	finalized := reviewLoop(session)
	helper.PrettyPrint(finalized)

	stats := session.Stats()
	fmt.Printf("Total: %d  Approved: %d  Rejected: %d  Approval rate: %.0f%%\n",
		stats.Total, stats.Approved, stats.Rejected, stats.ApprovalRate()*100)
}

// reviewLoop prompts the officer until a valid decision and justification
// are supplied. The officer's choice is authoritative over the AI's.
func reviewLoop(session *tracker.Session) tracker.FinalizedDecision {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Officer decision (approved/rejected): ")
		choice, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading officer decision")
		}
		fmt.Print("Justification: ")
		justification, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading justification")
		}

		finalized, err := session.Finalize(strings.TrimSpace(choice), strings.TrimSpace(justification))
		if err != nil {
			fmt.Printf("Cannot finalize: %v\n", err)
			continue
		}
		return finalized
	}
}
