package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/config"
	"github.com/workcell-labs/foundry/internal/database"
	"github.com/workcell-labs/foundry/internal/history"
	"github.com/workcell-labs/foundry/internal/observability"
	"github.com/workcell-labs/foundry/internal/planner"
	"github.com/workcell-labs/foundry/internal/policy"
	"github.com/workcell-labs/foundry/internal/tokenizer"
	"github.com/workcell-labs/foundry/internal/types"
)

var (
	decideRequestPath string
	decideAuditPath   string
)

// decideRequest is the JSON document the decide command consumes: one task
// plus its dispatch context.
type decideRequest struct {
	Domain           string                 `json:"domain"`
	JobType          string                 `json:"job_type"`
	UniverseID       string                 `json:"universe_id"`
	UniverseDefaults types.UniverseDefaults `json:"universe_defaults"`
	Task             types.TaskContext      `json:"task"`
	SystemState      types.SystemState      `json:"system_state"`
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Produce one decision bundle for a task request",
	Long: `Builds the planner input for the task described in the request file, runs
the decision engine in the configured mode, and prints the resulting
planner_input / planner_action / executed_plan bundle as JSON. Intended
for debugging a deployment's policy configuration.`,
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().StringVarP(&decideRequestPath, "request", "r", "", "Path to the decision request JSON file (required)")
	decideCmd.Flags().StringVar(&decideAuditPath, "audit", "", "Append the decision bundle to this audit file")
	_ = decideCmd.MarkFlagRequired("request")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	req, err := readDecideRequest(decideRequestPath)
	if err != nil {
		return err
	}

	catalog, err := actionspace.NewCatalog(cfg.Domains)
	if err != nil {
		return err
	}
	space, err := catalog.SpaceFor(req.Domain)
	if err != nil {
		return err
	}

	db, err := database.OpenWithConfig(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	sources := []history.Source{
		history.NewArchiveSource(database.NewArchiveDAO(db), cfg.History.ArchiveLimit),
	}
	if cfg.History.WorldRunsDir != "" {
		sources = append(sources, history.NewWorldSource(cfg.History.WorldRunsDir))
	}
	selector := history.NewSelector(logger, sources...)

	builder := planner.NewBuilder(selector, planner.WithMaxHistory(cfg.History.MaxSimilarRuns))
	input := builder.Build(cmd.Context(), req.Task, req.JobType, req.UniverseID,
		req.UniverseDefaults, space, req.SystemState, time.Now())

	engine := policy.NewEngine(policy.Config{
		Mode:                     policy.Mode(cfg.Policy.Mode),
		ConfidenceThreshold:      cfg.Policy.ConfidenceThreshold,
		PredictTimeout:           cfg.Policy.PredictTimeout,
		ModelRef:                 cfg.Policy.ModelRef,
		MaxSimilarRuns:           cfg.History.MaxSimilarRuns,
		MaxTokensPerHistoryEntry: cfg.Tokenizer.MaxTokensPerHistoryEntry,
		MaxTotalTokens:           cfg.Tokenizer.MaxTotalTokens,
	}, tokenizer.NewEncoder(encoderConfig(cfg)), nil, logger)

	decision := engine.Decide(cmd.Context(), input, space)

	if decideAuditPath != "" {
		audit, err := observability.OpenAuditFile(decideAuditPath, logger)
		if err != nil {
			return err
		}
		defer audit.Close()
		audit.Record(decision)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}

func readDecideRequest(path string) (*decideRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	var req decideRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}
	if req.Domain == "" || req.JobType == "" {
		return nil, fmt.Errorf("request must set domain and job_type")
	}
	return &req, nil
}

// encoderConfig assembles the tokenizer's closed value sets from the
// configuration: universes, job types and objectives from the tokenizer
// section, strategies from the domain specs, toolchains from routing.
func encoderConfig(cfg *config.Config) tokenizer.Config {
	strategies := map[string]struct{}{}
	for _, spec := range cfg.Domains {
		for _, s := range spec.Strategies {
			strategies[s] = struct{}{}
		}
	}
	strategyList := make([]string, 0, len(strategies))
	for s := range strategies {
		strategyList = append(strategyList, s)
	}
	sort.Strings(strategyList)

	toolchains := map[string]struct{}{}
	for _, tc := range cfg.Routing.Priority {
		toolchains[tc] = struct{}{}
	}
	for _, rule := range cfg.Routing.Rules {
		for _, tc := range rule.Toolchains {
			toolchains[tc] = struct{}{}
		}
		for _, tc := range rule.Fallbacks {
			toolchains[tc] = struct{}{}
		}
	}
	toolchainList := make([]string, 0, len(toolchains))
	for tc := range toolchains {
		toolchainList = append(toolchainList, tc)
	}
	sort.Strings(toolchainList)

	return tokenizer.Config{
		Universes:  cfg.Tokenizer.Universes,
		JobTypes:   cfg.Tokenizer.JobTypes,
		Strategies: strategyList,
		Objectives: cfg.Tokenizer.Objectives,
		Toolchains: toolchainList,
	}
}
