// skywatch-eval evaluates a normalized resource snapshot against a policy
// configuration document and prints the evaluation result as JSON.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/edelagziel/SkyWatch/internal/engine"
	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/policy"
	"github.com/edelagziel/SkyWatch/internal/rules"
	"github.com/edelagziel/SkyWatch/internal/schema"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("skywatch-eval", flag.ContinueOnError)
	snapshotPath := fs.String("snapshot", "", "path to snapshot JSON (normalized ResourceSnapshot)")
	policiesPath := fs.String("policies", "", "path to policies JSON (enabled rules, overrides, suppression)")
	pretty := fs.Bool("pretty", false, "pretty-print output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *snapshotPath == "" || *policiesPath == "" {
		fmt.Fprintln(os.Stderr, "both -snapshot and -policies are required")
		fs.Usage()
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	snapshotData, err := os.ReadFile(*snapshotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read snapshot: %v\n", err)
		return 1
	}
	policiesData, err := os.ReadFile(*policiesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read policies: %v\n", err)
		return 1
	}

	validator, err := schema.NewSnapshotValidator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "internal error: %v\n", err)
		return 1
	}
	if err := validator.Validate(snapshotData); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	snapshot, err := model.ParseSnapshot(snapshotData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	configs, err := model.ParseRuleConfigs(policiesData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	eng := engine.NewEngine(
		policy.NewStaticRepository(configs),
		rules.NewDefaultRegistry(),
		nil,
		logger,
	)

	result, err := eng.Evaluate(snapshot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		return 1
	}

	out, err := model.MarshalResult(result, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}
