// Package toolhost owns the lifecycle of one logical connection to the
// external MCP tool host: open, list capabilities, call with retries, close.
package toolhost

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/normalizer"
)

type Config struct {
	Command        string            `split_words:"true" required:"true"`
	Args           []string          `split_words:"true"`
	Env            map[string]string `split_words:"true"`
	StartupTimeout time.Duration     `split_words:"true" default:"15s"`
	CallTimeout    time.Duration     `split_words:"true" default:"30s"`
	MaxRetries     int               `split_words:"true" default:"2"`
	RetryBackoff   time.Duration     `split_words:"true" default:"500ms"`
}

// rpcClient is the slice of the MCP client surface the session uses. The
// concrete mcp-go client satisfies it; tests substitute a fake.
type rpcClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Session is one open connection to the tool host. A session belongs to one
// request at a time and must be closed on every exit path of its use.
type Session struct {
	client       rpcClient
	schemas      map[string]contractx.ToolSchema
	order        []string
	callTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration

	closeOnce sync.Once
	closeErr  error
}

// OpenStdio spawns the tool host as a subprocess and opens a session over its
// stdio transport.
func OpenStdio(ctx context.Context, cfg Config) (*Session, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, fmt.Errorf("%w: tool host command is required", contractx.ErrConnection)
	}

	envs := make([]string, 0, len(cfg.Env))
	for key, val := range cfg.Env {
		envs = append(envs, fmt.Sprintf("%s=%s", key, val))
	}

	client, err := mcpclient.NewStdioMCPClient(command, envs, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: spawn tool host: %v", contractx.ErrConnection, err)
	}

	session, err := Open(ctx, client, cfg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return session, nil
}

// Open initializes the session over an already-created client and fetches the
// callable tool schemas. It fails when the host does not answer within the
// startup timeout.
func Open(ctx context.Context, client rpcClient, cfg Config) (*Session, error) {
	startupTimeout := cfg.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = 15 * time.Second
	}
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "concierge",
		Version: "0.1.0",
	}
	if _, err := client.Initialize(startCtx, initReq); err != nil {
		return nil, fmt.Errorf("%w: initialize: %v", contractx.ErrConnection, err)
	}

	listed, err := client.ListTools(startCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", contractx.ErrConnection, err)
	}

	session := &Session{
		client:       client,
		schemas:      make(map[string]contractx.ToolSchema, len(listed.Tools)),
		callTimeout:  cfg.CallTimeout,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
	}
	if session.callTimeout <= 0 {
		session.callTimeout = 30 * time.Second
	}
	if session.maxRetries < 0 {
		session.maxRetries = 0
	}
	if session.retryBackoff <= 0 {
		session.retryBackoff = 500 * time.Millisecond
	}

	for _, tool := range listed.Tools {
		schema := schemaFromTool(tool)
		session.schemas[schema.Name] = schema
		session.order = append(session.order, schema.Name)
	}

	log.Info().Int("tools", len(session.order)).Msg("tool host session opened")
	return session, nil
}

// Tools returns the fetched schemas in the order the host listed them.
func (s *Session) Tools() []contractx.ToolSchema {
	out := make([]contractx.ToolSchema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.schemas[name])
	}
	return out
}

// Call invokes one tool. An unknown name fails with ErrUnknownTool without
// contacting the host; argument-schema violations come back as an
// InvalidArgument fault the model can react to. Transport failures and
// per-call timeouts are retried with backoff, then surface as a ToolError
// carrying the last underlying error.
func (s *Session) Call(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	schema, ok := s.schemas[tool]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, tool)
	}
	if args == nil {
		args = map[string]any{}
	}
	if fault := normalizer.ValidateArgs(schema, args); fault != nil {
		return contractx.ToolResult{Tool: tool, Fault: fault}, nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Str("tool", tool).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying tool call")
			select {
			case <-ctx.Done():
				return contractx.ToolResult{}, &contractx.ToolError{Tool: tool, Kind: contractx.FaultUnknown, Err: ctx.Err()}
			case <-time.After(s.retryBackoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		res, err := s.client.CallTool(callCtx, req)
		cancel()
		if err == nil {
			return normalizer.NormalizeToolReply(tool, res), nil
		}
		lastErr = err

		// A cancelled request must not burn retries.
		if ctx.Err() != nil {
			break
		}
	}

	return contractx.ToolResult{}, &contractx.ToolError{Tool: tool, Kind: contractx.FaultUnknown, Err: lastErr}
}

// Close releases the underlying transport. Safe to call more than once and
// from deferred cleanup on any exit path.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func schemaFromTool(tool mcp.Tool) contractx.ToolSchema {
	schema := contractx.ToolSchema{
		Name:        tool.Name,
		Description: tool.Description,
		Required:    append([]string(nil), tool.InputSchema.Required...),
		Properties:  make(map[string]contractx.ParamSpec, len(tool.InputSchema.Properties)),
	}
	for name, raw := range tool.InputSchema.Properties {
		spec := contractx.ParamSpec{Type: "string"}
		if prop, ok := raw.(map[string]any); ok {
			if t, ok := prop["type"].(string); ok {
				spec.Type = t
			}
			if d, ok := prop["description"].(string); ok {
				spec.Description = d
			}
			if f, ok := prop["format"].(string); ok {
				spec.Format = f
			}
		}
		schema.Properties[name] = spec
	}
	return schema
}
