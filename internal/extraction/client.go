package extraction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"matport/internal/logging"
)

// outputTailLines bounds how much tool output an ExtractionFailedError
// carries.
const outputTailLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// ExtractionFailedError reports a failed tool invocation together with the
// tail of its output. ExitCode is -1 when the process never reported one.
type ExtractionFailedError struct {
	Archive  string
	ExitCode int
	Output   []string
	Err      error
}

func (e *ExtractionFailedError) Error() string {
	msg := fmt.Sprintf("extract %s: exit code %d", e.Archive, e.ExitCode)
	if len(e.Output) > 0 {
		msg += ": " + e.Output[len(e.Output)-1]
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionFailedError) Unwrap() error { return e.Err }

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "extraction")
		}
	}
}

// Client wraps unpack/repack tool interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a tool client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("extractor binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extract unpacks an archive into a fresh workspace rooted at workspaceDir.
// The tool must leave at least one definition file behind; a clean exit with
// an empty workspace still counts as a failed extraction. On failure the
// partially written workspace is removed.
func (c *Client) Extract(ctx context.Context, archivePath, workspaceDir string) (*Workspace, error) {
	workspace, err := newWorkspace(workspaceDir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := c.run(ctx, archivePath, []string{"extract", archivePath, workspace.Root()}); err != nil {
		_ = workspace.Close()
		return nil, err
	}
	files, err := workspace.Definitions()
	if err != nil {
		_ = workspace.Close()
		return nil, err
	}
	if len(files) == 0 {
		_ = workspace.Close()
		return nil, &ExtractionFailedError{
			Archive:  archivePath,
			ExitCode: 0,
			Err:      errors.New("tool produced no definition files"),
		}
	}
	c.logger.Debug("archive extracted",
		logging.String("archive", archivePath),
		logging.String("workspace", workspace.Root()),
		logging.Duration("elapsed", time.Since(start)))
	return workspace, nil
}

// Repack rebuilds an archive from a workspace of definition files.
func (c *Client) Repack(ctx context.Context, workspaceDir, archivePath string) error {
	if err := c.run(ctx, archivePath, []string{"repack", workspaceDir, archivePath}); err != nil {
		return err
	}
	c.logger.Debug("archive repacked",
		logging.String("archive", archivePath),
		logging.String("workspace", workspaceDir))
	return nil
}

func (c *Client) run(ctx context.Context, archivePath string, args []string) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var tail []string
	if err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		tail = append(tail, line)
		if len(tail) > outputTailLines {
			tail = tail[1:]
		}
	}); err != nil {
		return &ExtractionFailedError{
			Archive:  archivePath,
			ExitCode: exitCodeFrom(err),
			Output:   tail,
			Err:      err,
		}
	}
	return nil
}

func exitCodeFrom(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	forward := func(line string) {
		if onOutput != nil {
			onOutput(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
