package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/harunnryd/renga/internal/concurrency"
	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"

	"github.com/google/shlex"
)

const maxLineBytes = 4 << 20

// conn is one newline-delimited JSON-RPC connection. Calls are single-flight:
// the transport serializes request/response pairs under one mutex, so a
// response always belongs to the request just written.
type conn struct {
	mu      sync.Mutex
	enc     *json.Encoder
	scanner *bufio.Scanner
	nextID  int64
	broken  bool
}

func newConn(w io.Writer, r io.Reader) *conn {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &conn{
		enc:     json.NewEncoder(w),
		scanner: scanner,
	}
}

func (c *conn) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return nil, fmt.Errorf("method %s: %w", method, rengaErrors.ErrProviderClosed)
	}

	c.nextID++
	id := c.nextID

	type outcome struct {
		result json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)

	concurrency.SafeGo(func() {
		result, err := c.roundTrip(id, method, params)
		done <- outcome{result: result, err: err}
	}, func(r interface{}) {
		done <- outcome{err: rengaErrors.Internal(fmt.Sprintf("transport panicked: %v", r))}
	})

	select {
	case <-ctx.Done():
		// The response for this request may still arrive and would desync
		// the stream, so the connection is unusable from here on.
		c.broken = true
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil && !isRemoteError(out.err) {
			c.broken = true
		}
		return out.result, out.err
	}
}

func (c *conn) roundTrip(id int64, method string, params interface{}) (json.RawMessage, error) {
	if err := c.enc.Encode(request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return nil, fmt.Errorf("write %s request: %v: %w", method, err, rengaErrors.ErrProviderClosed)
	}

	for {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read %s response: %v: %w", method, err, rengaErrors.ErrProviderClosed)
			}
			return nil, fmt.Errorf("server closed stdout during %s: %w", method, rengaErrors.ErrProviderClosed)
		}

		line := c.scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("decode %s response: %v: %w", method, err, rengaErrors.ErrProviderClosed)
		}

		// Notifications and stray responses are skipped; the stream carries
		// exactly one in-flight request at a time.
		if resp.ID == nil || *resp.ID != id {
			continue
		}

		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// isRemoteError reports whether the server answered with a proper JSON-RPC
// error, which leaves the stream intact.
func isRemoteError(err error) bool {
	var rpcErr *rpcError
	return errors.As(err, &rpcErr)
}

// Client owns one MCP server subprocess and its JSON-RPC connection.
type Client struct {
	name            string
	command         string
	env             map[string]string
	connectTimeout  time.Duration
	shutdownTimeout time.Duration

	cmd   *exec.Cmd
	stdin io.WriteCloser
	conn  *conn
}

func NewClient(cfg config.MCPServerConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, rengaErrors.Configuration("mcp server name is missing")
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, rengaErrors.Configuration(fmt.Sprintf("mcp server %s: command is missing", cfg.Name))
	}

	connectTimeout, err := config.DurationOrDefault(cfg.ConnectTimeout, config.DefaultMCPConnectTimeout)
	if err != nil {
		return nil, rengaErrors.Wrap(err, fmt.Sprintf("mcp server %s: invalid connect_timeout", cfg.Name))
	}
	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultMCPShutdownTimeout)
	if err != nil {
		return nil, rengaErrors.Wrap(err, fmt.Sprintf("mcp server %s: invalid shutdown_timeout", cfg.Name))
	}

	return &Client{
		name:            cfg.Name,
		command:         cfg.Command,
		env:             cfg.Env,
		connectTimeout:  connectTimeout,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Connect starts the subprocess and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	parts, err := shlex.Split(c.command)
	if err != nil || len(parts) == 0 {
		return rengaErrors.Configuration(fmt.Sprintf("mcp server %s: cannot parse command %q", c.name, c.command))
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Env = os.Environ()
	for key, value := range c.env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return rengaErrors.Wrap(err, "create stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return rengaErrors.Wrap(err, "create stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return rengaErrors.Wrap(err, "create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return rengaErrors.Wrap(err, fmt.Sprintf("start mcp server %s", c.name))
	}

	c.cmd = cmd
	c.stdin = stdin
	c.conn = newConn(stdin, stdout)

	concurrency.SafeGo(func() {
		drainStderr(c.name, stderr)
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	result, err := c.conn.call(connectCtx, methodInitialize, initializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      clientInfo{Name: "renga", Version: "1.0"},
		Capabilities:    map[string]interface{}{},
	})
	if err != nil {
		_ = c.shutdown()
		return rengaErrors.Wrap(err, fmt.Sprintf("initialize mcp server %s", c.name))
	}

	var init initializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		_ = c.shutdown()
		return rengaErrors.Wrap(err, fmt.Sprintf("decode initialize result from %s", c.name))
	}

	slog.Info("MCP server connected",
		"server", c.name,
		"remote", init.ServerInfo.Name,
		"protocol", init.ProtocolVersion)
	return nil
}

// ListTools fetches the server's advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.conn.call(ctx, methodListTools, nil)
	if err != nil {
		return nil, err
	}

	var out listToolsResult
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, rengaErrors.Wrap(err, "decode list_tools result")
	}
	return out.Tools, nil
}

// CallTool invokes one tool and returns its textual content. A result carrying
// isError reports the text as an error instead.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	result, err := c.conn.call(ctx, methodCallTool, callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}

	var out callToolResult
	if err := json.Unmarshal(result, &out); err != nil {
		return "", rengaErrors.Wrap(err, "decode call_tool result")
	}

	var parts []string
	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if out.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

// Close shuts the subprocess down: close stdin so the server can exit on its
// own, then SIGTERM, then SIGKILL after shutdown_timeout.
func (c *Client) Close() error {
	if c.cmd == nil {
		return nil
	}
	return c.shutdown()
}

func (c *Client) shutdown() error {
	c.conn.mu.Lock()
	c.conn.broken = true
	c.conn.mu.Unlock()

	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan error, 1)
	concurrency.SafeGo(func() {
		done <- c.cmd.Wait()
	}, func(interface{}) {
		done <- nil
	})

	select {
	case err := <-done:
		return waitError(err)
	case <-time.After(c.shutdownTimeout):
		slog.Warn("MCP server did not exit, killing", "server", c.name)
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		return waitError(<-done)
	}
}

// waitError drops expected exit statuses: a terminated child is a clean close.
func waitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func drainStderr(server string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 16*1024), 256*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		slog.Debug("MCP server stderr", "server", server, "line", line)
	}
}
