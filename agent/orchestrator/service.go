package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/history"
	"github.com/hoteldesk/concierge/agent/nodes"
	"github.com/hoteldesk/concierge/agent/prompt"
)

// ReplyUnavailable is the fixed answer for terminal failures: model outage,
// unusable output or a request deadline. The user never sees raw errors.
const ReplyUnavailable = "Üzgünüm, şu anda size yardımcı olamıyorum. Lütfen birazdan tekrar deneyin."

type Config struct {
	MaxTurns       int           `split_words:"true" default:"6"`
	TopKMemories   int           `split_words:"true" default:"5"`
	RequestTimeout time.Duration `split_words:"true" default:"90s"`
	DeviceID       string        `split_words:"true"`
}

// Service drives one compiled agent graph across sessions, loading and saving
// the transcript around every turn.
type Service struct {
	runner  compose.Runnable[nodes.Request, nodes.Response]
	history history.Store
	cfg     Config
}

// New compiles the agent graph over the given dependencies. The history store
// may be nil; every turn then starts from an empty transcript.
func New(
	ctx context.Context,
	model contractx.ChatModel,
	extractor contractx.ChatModel,
	tools contractx.ToolSession,
	memory contractx.MemoryStore,
	hist history.Store,
	cfg Config,
	opts ...nodes.Option,
) (*Service, error) {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 6
	}
	if cfg.TopKMemories <= 0 {
		cfg.TopKMemories = 5
	}

	steps := nodes.New(model, extractor, tools, memory, prompt.LoadPromptSet(),
		append([]nodes.Option{nodes.WithTopKMemories(cfg.TopKMemories)}, opts...)...)

	runner, err := compileAgentGraph(ctx, steps, cfg.MaxTurns)
	if err != nil {
		return nil, err
	}

	return &Service{runner: runner, history: hist, cfg: cfg}, nil
}

// HandleMessage runs one user turn for a session and returns the reply text.
// Invalid input surfaces as an error; infrastructure failures come back as a
// fixed fallback reply so callers always have something to show.
func (s *Service) HandleMessage(ctx context.Context, sessionID, text string) (string, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	prior := s.loadHistory(ctx, sessionID)

	out, err := s.runner.Invoke(ctx, nodes.Request{
		Utterance: text,
		History:   prior,
		DeviceID:  s.cfg.DeviceID,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, compose.ErrExceedMaxSteps) {
			log.Warn().Str("session", sessionID).Msg("request budget exceeded")
			return ReplyIncomplete, nil
		}
		if isTerminal(err) {
			log.Error().Err(err).Str("session", sessionID).Msg("turn failed, returning fallback reply")
			return ReplyUnavailable, nil
		}
		return "", err
	}

	s.saveHistory(ctx, sessionID, out.Conversation)
	return out.Reply, nil
}

// Reset drops a session's transcript.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if s.history == nil {
		return nil
	}
	return s.history.Delete(ctx, sessionID)
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) []contractx.Message {
	if s.history == nil || sessionID == "" {
		return nil
	}
	msgs, err := s.history.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, history.ErrHistoryNotFound) {
			log.Warn().Err(err).Str("session", sessionID).Msg("history load failed, starting fresh")
		}
		return nil
	}
	return msgs
}

func (s *Service) saveHistory(ctx context.Context, sessionID string, msgs []contractx.Message) {
	if s.history == nil || sessionID == "" {
		return
	}
	if err := s.history.Save(ctx, sessionID, msgs); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("history save failed")
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, contractx.ErrModelInvoke) ||
		errors.Is(err, contractx.ErrMalformedOutput) ||
		errors.Is(err, contractx.ErrConnection)
}
