package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"storyloom/internal/artifact"
	"storyloom/internal/checkpoint"
	"storyloom/internal/config"
	"storyloom/internal/engine"
	"storyloom/internal/gen"
	"storyloom/internal/state"
	"storyloom/internal/story"
	"storyloom/internal/ux"
)

const configFile = "storyloom.yaml"

func main() {
	app := &cli.Command{
		Name:  "storyloom",
		Usage: "Resumable multi-stage story production pipeline",
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			resumeCmd(),
			statusCmd(),
			planCmd(),
			textCmd(),
			revisionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

// hintFor pairs each failure kind with a remediable next action.
func hintFor(err error) string {
	var missing *engine.MissingDependencyError
	if errors.As(err, &missing) {
		return fmt.Sprintf("generate the missing prerequisites first: %s", strings.Join(missing.Unmet, ", "))
	}
	var stageFailed *engine.StageFailedError
	if errors.As(err, &stageFailed) {
		return fmt.Sprintf("no partial artifact was written; retry is safe: storyloom run --stop-at %s", stageFailed.Stage)
	}
	var genFailed *engine.GenerationFailedError
	if errors.As(err, &genFailed) {
		return "no partial artifact was written; rerun the same command to retry"
	}
	var seq *engine.SequentialViolationError
	if errors.As(err, &seq) {
		return fmt.Sprintf("generate chapters %v first, or pass --no-sequential", seq.BlockedBy)
	}
	var gate *engine.GateBlockedError
	if errors.As(err, &gate) {
		return fmt.Sprintf("resolve the pending revision: storyloom revision fix %d && storyloom revision apply %d, or storyloom revision reject %d; or narrow the range to end at chapter %d",
			gate.Blocked, gate.Blocked, gate.Blocked, gate.Blocked)
	}
	var budget *engine.BudgetExceededError
	if errors.As(err, &budget) {
		return "the step guardrail tripped; inspect storyloom status before raising max-steps"
	}
	var invalid *story.ValidationError
	if errors.As(err, &invalid) {
		return "the generated artifact was rejected and not persisted; rerun to regenerate"
	}
	return ""
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in this or any parent directory (run 'storyloom init' first)", configFile)
		}
		dir = parent
	}
}

// buildEngine loads the config and wires the engine for a project.
func buildEngine() (*engine.Engine, *config.Config, func(), error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(filepath.Join(projectRoot, configFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	artifactsDir := cfg.ArtifactsDir
	if !filepath.IsAbs(artifactsDir) {
		artifactsDir = filepath.Join(projectRoot, artifactsDir)
	}
	store := artifact.NewStore(artifactsDir)
	if err := store.EnsureLayout(); err != nil {
		return nil, nil, nil, err
	}

	progress, err := state.LoadProgress(store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading progress: %w", err)
	}

	svc := &gen.CommandService{
		Command:       cfg.Generator.Command,
		ReviewCommand: cfg.Review.Command,
		Timeout:       time.Duration(cfg.Generator.Timeout) * time.Minute,
		ReviewTimeout: time.Duration(cfg.Review.Timeout) * time.Minute,
		Env: &gen.Environment{
			ProjectRoot:  projectRoot,
			ArtifactsDir: artifactsDir,
		},
	}

	eng, err := engine.New(store, svc, svc, progress)
	if err != nil {
		return nil, nil, nil, err
	}
	eng.BlockBelow = cfg.Review.BlockBelow
	eng.MaxSteps = cfg.MaxSteps

	cleanup := func() {}
	log, err := checkpoint.Open(filepath.Join(artifactsDir, "checkpoints.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: checkpoint log unavailable: %v\n", err)
	} else {
		eng.Log = log
		cleanup = func() { log.Close() }
	}
	return eng, cfg, cleanup, nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the pipeline to completion",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stop-at", Usage: "Stop after the named stage (world, theme, characters, outline, chapters)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, _, cleanup, err := buildEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, stop := signalContext(ctx)
			defer stop()
			return eng.Run(ctx, cmd.String("stop-at"))
		},
	}
}

func resumeCmd() *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Rebuild progress from artifacts and continue the run",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, _, cleanup, err := buildEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, stop := signalContext(ctx)
			defer stop()
			return eng.Resume(ctx)
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show pipeline status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, _, cleanup, err := buildEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			st, err := eng.Status()
			if err != nil {
				return err
			}
			var recent []checkpoint.Entry
			if eng.Log != nil {
				recent, _ = eng.Log.Recent(8)
			}
			ux.RenderStatus(st, recent)
			return nil
		},
	}
}

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "chapters", Usage: "Comma-separated chapter numbers (e.g. 2,4,7)"},
		&cli.IntFlag{Name: "from", Usage: "Range start chapter"},
		&cli.IntFlag{Name: "to", Usage: "Range end chapter"},
		&cli.BoolFlag{Name: "force", Usage: "Regenerate and overwrite existing artifacts"},
		&cli.BoolFlag{Name: "yes", Usage: "Skip the overwrite confirmation"},
	}
}

func parseScope(cmd *cli.Command) (engine.Scope, error) {
	var scope engine.Scope
	if list := cmd.String("chapters"); list != "" {
		if cmd.Int("from") > 0 || cmd.Int("to") > 0 {
			return scope, fmt.Errorf("--chapters and --from/--to are mutually exclusive")
		}
		for _, part := range strings.Split(list, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 {
				return scope, fmt.Errorf("invalid chapter number %q", part)
			}
			scope.Numbers = append(scope.Numbers, n)
		}
		return scope, nil
	}
	scope.Start = int(cmd.Int("from"))
	scope.End = int(cmd.Int("to"))
	return scope, nil
}

// confirmForce classifies a --force call as destructive: it lists the
// chapters whose artifacts would be overwritten and asks for confirmation.
func confirmForce(eng *engine.Engine, scope engine.Scope, keyFor func(int) string, yes bool) error {
	nums, err := resolveForPreview(eng, scope)
	if err != nil {
		return err
	}
	var overwrites []int
	for _, n := range nums {
		if eng.Store.Exists(keyFor(n)) {
			overwrites = append(overwrites, n)
		}
	}
	if len(overwrites) == 0 || yes {
		return nil
	}
	if !ux.Confirm("Regenerate these chapters?", overwrites) {
		return fmt.Errorf("aborted")
	}
	return nil
}

func resolveForPreview(eng *engine.Engine, scope engine.Scope) ([]int, error) {
	var outline story.Outline
	if err := eng.Store.ReadJSON(artifact.KeyOutline, &outline); err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	return scope.Resolve(&outline)
}

func printBatch(result *engine.BatchResult, words bool) {
	fmt.Printf("\n%sgenerated:%s %v\n", ux.Green, ux.Reset, result.Generated)
	fmt.Printf("%sskipped:%s   %v\n", ux.Dim, ux.Reset, result.Skipped)
	if len(result.Failed) > 0 {
		fmt.Printf("%sfailed:%s    %v\n", ux.Red, ux.Reset, result.Failed)
	}
	if words && result.TotalWords > 0 {
		fmt.Printf("total words: %d\n", result.TotalWords)
	}
}

func planCmd() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Generate chapter plans for a scope of chapters",
		Flags: scopeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, _, cleanup, err := buildEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			scope, err := parseScope(cmd)
			if err != nil {
				return err
			}
			opts := engine.DefaultOptions()
			opts.Force = cmd.Bool("force")
			if opts.Force {
				if err := confirmForce(eng, scope, artifact.PlanKey, cmd.Bool("yes")); err != nil {
					return err
				}
			}
			ctx, stop := signalContext(ctx)
			defer stop()
			result, err := eng.GeneratePlans(ctx, scope, opts)
			if result != nil {
				printBatch(result, false)
			}
			return err
		},
	}
}

func textCmd() *cli.Command {
	flags := append(scopeFlags(),
		&cli.BoolFlag{Name: "no-sequential", Usage: "Allow out-of-order text generation"})
	return &cli.Command{
		Name:  "text",
		Usage: "Generate chapter text for a scope of chapters",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, cfg, cleanup, err := buildEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			scope, err := parseScope(cmd)
			if err != nil {
				return err
			}
			opts := engine.DefaultOptions()
			opts.Force = cmd.Bool("force")
			opts.Sequential = cfg.SequentialDefault() && !cmd.Bool("no-sequential")
			if opts.Force {
				if err := confirmForce(eng, scope, artifact.TextKey, cmd.Bool("yes")); err != nil {
					return err
				}
			}
			ctx, stop := signalContext(ctx)
			defer stop()
			result, err := eng.GenerateTexts(ctx, scope, opts)
			if result != nil {
				printBatch(result, true)
				if len(result.MissingPlans) > 0 {
					fmt.Printf("%smissing plans:%s %v\n", ux.Yellow, ux.Reset, result.MissingPlans)
				}
			}
			return err
		},
	}
}

func revisionCmd() *cli.Command {
	chapterArg := func(cmd *cli.Command) (int, error) {
		arg := cmd.Args().First()
		if arg == "" {
			return 0, fmt.Errorf("chapter number argument is required")
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid chapter number %q", arg)
		}
		return n, nil
	}

	return &cli.Command{
		Name:  "revision",
		Usage: "Manage the revision gate for flagged chapters",
		Commands: []*cli.Command{
			{
				Name:      "fix",
				Usage:     "Generate candidate replacement text for a flagged chapter",
				ArgsUsage: "<chapter>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					eng, _, cleanup, err := buildEngine()
					if err != nil {
						return err
					}
					defer cleanup()
					n, err := chapterArg(cmd)
					if err != nil {
						return err
					}
					ctx, stop := signalContext(ctx)
					defer stop()
					rec, err := eng.GenerateCandidate(ctx, n)
					if err != nil {
						return err
					}
					fmt.Printf("candidate ready for chapter %d (%d words); review and apply or reject\n",
						n, rec.Candidate.TotalWords)
					return nil
				},
			},
			{
				Name:      "apply",
				Usage:     "Replace a flagged chapter's text with the candidate",
				ArgsUsage: "<chapter>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					eng, _, cleanup, err := buildEngine()
					if err != nil {
						return err
					}
					defer cleanup()
					n, err := chapterArg(cmd)
					if err != nil {
						return err
					}
					if err := eng.ApplyRevision(n); err != nil {
						return err
					}
					fmt.Printf("chapter %d revision applied; original backed up\n", n)
					return nil
				},
			},
			{
				Name:      "reject",
				Usage:     "Dismiss a flagged chapter's pending revision",
				ArgsUsage: "<chapter>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Usage: "Why the flag is dismissed"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					eng, _, cleanup, err := buildEngine()
					if err != nil {
						return err
					}
					defer cleanup()
					n, err := chapterArg(cmd)
					if err != nil {
						return err
					}
					if err := eng.RejectRevision(n, cmd.String("reason")); err != nil {
						return err
					}
					fmt.Printf("chapter %d revision rejected; content unchanged\n", n)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List revision records",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					eng, _, cleanup, err := buildEngine()
					if err != nil {
						return err
					}
					defer cleanup()
					records, err := eng.ListRevisions()
					if err != nil {
						return err
					}
					if len(records) == 0 {
						fmt.Println("no revision records")
						return nil
					}
					for _, rec := range records {
						line := fmt.Sprintf("chapter %d  %-8s  %s", rec.ChapterNumber, rec.Status, rec.TriggeredBy)
						if rec.Status == story.RevisionPending && rec.Candidate != nil {
							line += "  (candidate ready)"
						}
						if rec.Reason != "" {
							line += "  reason: " + rec.Reason
						}
						fmt.Println(line)
					}
					return nil
				},
			},
		},
	}
}
