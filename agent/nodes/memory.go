package nodes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

// RetrieveMemory loads the most relevant stored facts for the current
// utterance. Memory failures never fail the turn; the agent answers without
// context instead.
func (n *Nodes) RetrieveMemory(ctx context.Context, st *State) (*State, error) {
	if n.memory == nil || n.topK <= 0 {
		return st, nil
	}

	recs, err := n.memory.Search(ctx, st.Utterance, n.topK, st.DeviceID)
	if err != nil {
		log.Warn().Err(err).Msg("memory search failed, continuing without context")
		return st, nil
	}
	st.Memories = recs
	return st, nil
}

type memoryAnalysis struct {
	IsImportant     bool    `json:"is_important"`
	FormattedMemory *string `json:"formatted_memory"`
}

// ExtractMemory runs the fact-extraction prompt over the user utterance and
// stores anything important. It only runs after a final reply exists and all
// failures are swallowed: losing a memory must never lose the reply.
func (n *Nodes) ExtractMemory(ctx context.Context, st *State) (*State, error) {
	if n.extractor == nil || n.memory == nil || st.FinalReply == "" {
		return st, nil
	}

	reply, err := n.extractor.Generate(ctx, []contractx.Message{
		{Role: contractx.RoleSystem, Content: n.prompts.RenderMemoryAnalysis(st.Utterance)},
		{Role: contractx.RoleUser, Content: st.Utterance},
	})
	if err != nil {
		log.Warn().Err(err).Msg("memory analysis failed, skipping")
		return st, nil
	}

	analysis, ok := parseMemoryAnalysis(reply.Content)
	if !ok {
		log.Debug().Str("raw", reply.Content).Msg("memory analysis output not parseable, skipping")
		return st, nil
	}
	if !analysis.IsImportant || analysis.FormattedMemory == nil {
		return st, nil
	}
	fact := strings.TrimSpace(*analysis.FormattedMemory)
	if fact == "" {
		return st, nil
	}

	if _, err := n.memory.Store(ctx, fact, map[string]any{"source": "conversation"}, st.DeviceID); err != nil {
		log.Warn().Err(err).Msg("memory store failed, skipping")
	}
	return st, nil
}

// parseMemoryAnalysis is lenient about fenced or prefixed JSON; models wrap
// their output more often than not.
func parseMemoryAnalysis(raw string) (memoryAnalysis, bool) {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var analysis memoryAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return memoryAnalysis{}, false
	}
	return analysis, true
}
