package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/harness"
)

// ScenarioResult holds the result of a single scenario file.
type ScenarioResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioRunResult is the JSON payload of scenario.
type ScenarioRunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run cache conformance scenarios",
		Long: `Run YAML conformance scenarios and report every step whose outcome
differs from its expectation.

Each scenario runs against a fresh embedded cache in a temporary
directory. With --live the scenarios run against the configured backend
instead, writing to its table; use it to check a PostgreSQL deployment.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (backend unavailable)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, live, cmd)
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "run against the configured backend instead of a scratch cache")

	return cmd
}

func runScenarios(opts *RootOptions, files []string, live bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var sess *session
	if live {
		var err error
		sess, err = opts.openSession(cmd)
		if err != nil {
			return formatter.Fail(err)
		}
		defer sess.close()
	}

	run := ScenarioRunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res, err := runScenarioFile(opts, sess, file, cmd)
		if err != nil {
			// Only cancellation or an unusable scratch cache get here.
			return formatter.Fail(err)
		}
		run.Scenarios = append(run.Scenarios, res)
		if res.Pass {
			run.Passed++
		} else {
			run.Failed++
		}
	}

	if err := formatter.Success(scenarioText(run), run); err != nil {
		return err
	}
	if run.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", run.Failed, run.Total))
	}
	return nil
}

// runScenarioFile loads and runs one file. Load failures count as a failed
// scenario rather than aborting the run.
func runScenarioFile(opts *RootOptions, sess *session, file string, cmd *cobra.Command) (ScenarioResult, error) {
	res := ScenarioResult{File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		res.Errors = []string{err.Error()}
		return res, nil
	}
	res.Name = scenario.Name
	res.Steps = len(scenario.Steps)

	var result *harness.Result
	if sess != nil {
		result, err = harness.Run(cmd.Context(), sess.store, scenario)
	} else {
		var dir string
		dir, err = os.MkdirTemp("", "noun-cache-scenario-")
		if err != nil {
			return res, fmt.Errorf("create scratch directory: %w", err)
		}
		defer os.RemoveAll(dir)
		result, err = harness.RunEmbedded(cmd.Context(), scenario, dir, opts.Logger)
	}
	if err != nil {
		return res, err
	}

	opts.Logger.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "steps", len(result.Trace))
	res.Pass = result.Pass
	res.Errors = result.Errors
	return res, nil
}

func scenarioText(run ScenarioRunResult) string {
	var b strings.Builder
	for _, s := range run.Scenarios {
		name := s.Name
		if name == "" {
			name = s.File
		}
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s (%d steps)\n", name, s.Steps)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total", run.Passed, run.Failed, run.Total)
	return b.String()
}
