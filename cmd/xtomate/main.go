// Command xtomate is the thin CLI entrypoint over the engine: it loads a
// workflow document, runs it end to end, or just validates it
// (SPEC_FULL.md §6.1). Grounded on compozy-compozy's cmd/compozy.go
// "thin entrypoint delegating to the engine packages" shape.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vyPal/XTomate/engine/graph"
	"github.com/vyPal/XTomate/engine/runner"
	"github.com/vyPal/XTomate/engine/workflow"
	"github.com/vyPal/XTomate/pkg/config"
	"github.com/vyPal/XTomate/pkg/logger"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCmd(os.Args[2]))
	case "validate":
		os.Exit(validateCmd(os.Args[2]))
	case "create":
		os.Exit(createCmd(os.Args[2]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: xtomate run <workflow.toml> | xtomate validate <workflow.toml> | xtomate create <name>")
}

func runCmd(path string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}
	log := logger.NewLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Output:     os.Stdout,
		TimeFormat: "15:04:05",
	})

	ctx := context.Background()
	r, err := runner.Load(ctx, path, cfg, log)
	if err != nil {
		log.Error("failed to load workflow", "error", err)
		return 1
	}

	summary, err := r.RunAll(ctx)
	if err != nil {
		log.Error("workflow run failed", "error", err)
		return 1
	}
	for _, result := range summary.Results {
		log.Info("task finished",
			"task", result.Name,
			"success", result.Success,
			"attempts", result.Attempts,
			"duration", result.Duration.String(),
		)
	}
	if !summary.Success() {
		log.Error("workflow completed with failed tasks")
		return 1
	}
	log.Info("workflow completed successfully")
	return 0
}

func validateCmd(path string) int {
	w, err := workflow.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid workflow:", err)
		return 1
	}
	if _, err := graph.Plan(w); err != nil {
		fmt.Fprintln(os.Stderr, "invalid workflow:", err)
		return 1
	}
	fmt.Printf("workflow %q is valid (%d tasks)\n", w.Name, len(w.Tasks))
	return 0
}

// createWorkflowTemplate is the starter document `createCmd` writes: a
// two-task example where task2 depends on task1, the same starter shape
// the original source's "Create" CLI command built programmatically before
// serializing it (_examples/original_source/src/main.rs).
const createWorkflowTemplate = `name = %q
version = "0.1.0"

[tasks.task1]
command = "echo Hello"

[tasks.task2]
command = "echo World"
dependencies = ["task1"]
`

// createCmd scaffolds name.toml with createWorkflowTemplate. Written out
// directly rather than round-tripped through workflow.Workflow + the TOML
// encoder: Dependency only implements UnmarshalTOML (spec.md's documented
// read grammar), so encoding one back would serialize its Go struct fields
// verbatim instead of the shorthand string/table form UnmarshalTOML expects.
func createCmd(name string) int {
	path := name + ".toml"
	if err := os.WriteFile(path, []byte(fmt.Sprintf(createWorkflowTemplate, name)), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write workflow file:", err)
		return 1
	}
	fmt.Printf("created workflow %q at %s\n", name, path)
	return 0
}
