package git

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single external command when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 60 * time.Second

// CommandRunner executes external commands in a working directory.
type CommandRunner interface {
	// Run executes the command and returns trimmed stdout.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)

	// Output executes the command and returns stdout untouched. Stdout is
	// returned even when the command exits non-zero.
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CommandError describes a failed external command.
type CommandError struct {
	Command  string
	Args     []string
	Output   string // stderr, or stdout when stderr was empty
	ExitCode int    // -1 when the process did not exit normally
	Err      error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "command failed"
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout applies when ctx has no deadline. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner with the default timeout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultTimeout}
}

// Run implements CommandRunner.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	out, err := r.Output(ctx, dir, name, args...)
	return strings.TrimSpace(string(out)), err
}

// Output implements CommandRunner.
func (r *ExecRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	cmdErr := &CommandError{
		Command:  name,
		Args:     args,
		Output:   strings.TrimSpace(stderr.String()),
		ExitCode: -1,
		Err:      err,
	}
	if cmdErr.Output == "" {
		cmdErr.Output = strings.TrimSpace(stdout.String())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	// A killed process reports "signal: killed"; surface the context error instead
	// so callers can match context.DeadlineExceeded.
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.Err = ctxErr
		cmdErr.Output = ""
	}
	return stdout.Bytes(), cmdErr
}

// MockResponse is a canned result for MockRunner.
type MockResponse struct {
	Stdout string
	Err    error
}

// MockCall records one invocation of MockRunner.
type MockCall struct {
	WorkDir string
	Command string
	Args    []string
}

// MockRunner returns canned responses keyed by command line.
// Lookup order: exact "name arg..." key, command name, "*" wildcard, DefaultResponse.
type MockRunner struct {
	mu              sync.Mutex
	Responses       map[string]MockResponse
	DefaultResponse MockResponse
	Calls           []MockCall
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// MockExpectation is returned by OnCommand to attach a response.
type MockExpectation struct {
	runner *MockRunner
	key    string
}

// OnCommand registers a response for an exact command line.
func (m *MockRunner) OnCommand(name string, args ...string) *MockExpectation {
	return &MockExpectation{runner: m, key: commandKey(name, args)}
}

// OnAnyCommand registers a response for any command.
func (m *MockRunner) OnAnyCommand() *MockExpectation {
	return &MockExpectation{runner: m, key: "*"}
}

// Return sets the response for the expectation.
func (e *MockExpectation) Return(stdout string, err error) {
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()
	e.runner.Responses[e.key] = MockResponse{Stdout: stdout, Err: err}
}

// Run implements CommandRunner.
func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	resp := m.lookup(dir, name, args)
	return resp.Stdout, resp.Err
}

// Output implements CommandRunner.
func (m *MockRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	resp := m.lookup(dir, name, args)
	return []byte(resp.Stdout), resp.Err
}

func (m *MockRunner) lookup(dir, name string, args []string) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{WorkDir: dir, Command: name, Args: args})

	if resp, ok := m.Responses[commandKey(name, args)]; ok {
		return resp
	}
	if resp, ok := m.Responses[name]; ok {
		return resp
	}
	if resp, ok := m.Responses["*"]; ok {
		return resp
	}
	return m.DefaultResponse
}

// WasCalled reports whether a call starting with name and args was recorded.
func (m *MockRunner) WasCalled(name string, args ...string) bool {
	return m.CallCount(name, args...) > 0
}

// CallCount counts recorded calls of name whose leading args match args.
func (m *MockRunner) CallCount(name string, args ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, c := range m.Calls {
		if c.Command != name || len(c.Args) < len(args) {
			continue
		}
		if argsMatch(c.Args[:len(args)], args) {
			count++
		}
	}
	return count
}

// SequentialMockRunner returns queued responses in order, regardless of the command.
type SequentialMockRunner struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []MockCall
}

// NewSequentialMockRunner creates an empty SequentialMockRunner.
func NewSequentialMockRunner() *SequentialMockRunner {
	return &SequentialMockRunner{}
}

// AddOutput queues a response.
func (s *SequentialMockRunner) AddOutput(stdout string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, MockResponse{Stdout: stdout, Err: err})
}

// AddOutputError queues a failed command with the given output.
// A nil err becomes a CommandError carrying output as its message.
func (s *SequentialMockRunner) AddOutputError(stdout, output string, err error) {
	if err == nil {
		err = &CommandError{Output: output, ExitCode: 1}
	}
	s.AddOutput(stdout, err)
}

// Run implements CommandRunner.
func (s *SequentialMockRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	resp := s.next(dir, name, args)
	return resp.Stdout, resp.Err
}

// Output implements CommandRunner.
func (s *SequentialMockRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	resp := s.next(dir, name, args)
	return []byte(resp.Stdout), resp.Err
}

// Remaining returns the number of unconsumed responses.
func (s *SequentialMockRunner) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *SequentialMockRunner) next(dir, name string, args []string) MockResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, MockCall{WorkDir: dir, Command: name, Args: args})
	if len(s.responses) == 0 {
		return MockResponse{Err: &CommandError{Command: name, Args: args, Output: "unexpected command: " + commandKey(name, args)}}
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp
}

func commandKey(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func argsMatch(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
