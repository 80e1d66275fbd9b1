package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"storyloom/internal/story"
)

// CommandService runs an external command for each generation or review
// request. The request is written as JSON to the command's stdin; the command
// must print the artifact as JSON on stdout and exit zero. The call blocks
// until the command returns; this is the pipeline's dominant cost.
type CommandService struct {
	Command       string
	ReviewCommand string
	Timeout       time.Duration
	ReviewTimeout time.Duration
	Env           *Environment
}

var _ Generator = (*CommandService)(nil)
var _ Reviewer = (*CommandService)(nil)

// Generate invokes the generator command and returns its stdout as the
// artifact. Non-zero exit or invalid JSON output is a failure; the caller is
// responsible for leaving the target artifact absent.
func (c *CommandService) Generate(ctx context.Context, req *Request) (json.RawMessage, error) {
	out, err := c.run(ctx, c.Command, c.Timeout, req, req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// Review invokes the reviewer command and decodes its verdict.
func (c *CommandService) Review(ctx context.Context, req *ReviewRequest) (*story.ReviewReport, error) {
	command := c.ReviewCommand
	if command == "" {
		command = c.Command
	}
	out, err := c.run(ctx, command, c.ReviewTimeout, req, nil)
	if err != nil {
		return nil, err
	}
	var report story.ReviewReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("reviewer output is not a valid report: %w", err)
	}
	if report.ChapterNumber == 0 {
		report.ChapterNumber = req.Chapter
	}
	return &report, nil
}

func (c *CommandService) run(ctx context.Context, command string, timeout time.Duration, payload any, genReq *Request) ([]byte, error) {
	if command == "" {
		return nil, errors.New("no command configured")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdin, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	expanded := ExpandVars(command, c.Env.Vars())
	cmd := exec.CommandContext(ctx, "bash", "-c", expanded)
	cmd.Dir = c.Env.ProjectRoot
	cmd.Env = BuildEnv(c.Env, genReq)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code, err := exitCode(cmd.Run())
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("command exited %d: %s", code, summaryOf(stderr.String(), 40))
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, fmt.Errorf("command output is not valid JSON: %s", summaryOf(string(out), 20))
	}
	return out, nil
}

// exitCode extracts an exit code from a command error.
// Returns (code, nil) for ExitError, (0, err) for other errors, (0, nil) for nil.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
