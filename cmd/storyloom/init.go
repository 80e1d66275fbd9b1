package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"

	"storyloom/internal/artifact"
)

var configTemplate = `name: my-story

# Where pipeline artifacts live, relative to the project root.
artifacts-dir: .storyloom/artifacts

# The generation service: receives a JSON request on stdin and must print a
# JSON artifact on stdout. LOOM_KIND / LOOM_STAGE / LOOM_CHAPTER / LOOM_SCENE
# describe the request.
generator:
  command: ./scripts/generate.sh
  timeout: 10

# The consistency reviewer: receives the chapter text on stdin and must print
# a JSON report {chapter_number, issues, score, summary}.
review:
  command: ./scripts/review.sh
  timeout: 5
  block-below: 70

# Guardrail against runaway runs.
max-steps: 500

# Chapters are generated strictly in order by default.
sequential: true
`

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a starter storyloom.yaml and artifacts layout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, configFile)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists in %s", configFile, dir)
			}
			if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", configFile, err)
			}
			store := artifact.NewStore(filepath.Join(dir, ".storyloom", "artifacts"))
			if err := store.EnsureLayout(); err != nil {
				return err
			}
			fmt.Printf("created %s and .storyloom/artifacts/\n", configFile)
			fmt.Println("edit generator.command, then: storyloom run")
			return nil
		},
	}
}
