// Command strix runs a single security assessment scan against the task
// description given on the command line, printing a summary and exiting
// with the status code spec.md §4.10 defines: 0 clean, 2 if any finding was
// verified, non-zero on a fatal error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/strix-run/orchestrator/finding"
	"github.com/strix-run/orchestrator/scan"
)

func loadVulnTypes(path string) (*finding.VulnTypeRegistry, error) {
	return finding.LoadVulnTypeRegistry(path)
}

func main() {
	var (
		endpoint      = flag.String("llm-endpoint", os.Getenv("STRIX_LLM_ENDPOINT"), "LLM completion endpoint URL")
		apiKey        = flag.String("llm-api-key", os.Getenv("STRIX_LLM_API_KEY"), "LLM API key")
		model         = flag.String("llm-model", os.Getenv("STRIX_LLM_MODEL"), "LLM model identifier")
		vulnTypesPath = flag.String("vuln-types", "", "path to a vulnerability type registry YAML file (optional)")
		maxIterations = flag.Int("max-iterations", 300, "default iteration budget for the root and delegated agents")
	)
	flag.Parse()

	task := flag.Arg(0)
	if task == "" {
		fmt.Fprintln(os.Stderr, "usage: strix [flags] \"<task description>\"")
		os.Exit(scan.ExitFatal)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := scan.Config{
		LLMEndpoint:          *endpoint,
		LLMAPIKey:            *apiKey,
		LLMModel:             *model,
		DefaultMaxIterations: *maxIterations,
		Logger:               logger,
	}
	if *vulnTypesPath != "" {
		registry, err := loadVulnTypes(*vulnTypesPath)
		if err != nil {
			logger.Error("failed to load vulnerability type registry", "error", err)
			os.Exit(scan.ExitFatal)
		}
		cfg.VulnTypes = registry
	}

	controller := scan.NewController(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := controller.Run(ctx, task)
	logger.Info("scan finished", "summary", controller.Report().String())
	os.Exit(code)
}
