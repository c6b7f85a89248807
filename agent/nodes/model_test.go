package nodes

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/prompt"
)

type scriptedModel struct {
	replies []contractx.RawReply
	calls   int
}

func (m *scriptedModel) Generate(ctx context.Context, msgs []contractx.Message) (contractx.RawReply, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.replies) {
		return contractx.RawReply{}, errors.New("no scripted reply left")
	}
	return m.replies[idx], nil
}

func newModelState(t *testing.T, utterance string) *State {
	t.Helper()
	st, err := ValidateRequest(context.Background(), Request{Utterance: utterance})
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	return st
}

func TestCallModelCountsSingleInvocation(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{replies: []contractx.RawReply{
		{Content: "Hoş geldiniz!"},
	}}
	n := New(model, nil, nil, nil, prompt.LoadPromptSet())

	st, err := n.CallModel(context.Background(), newModelState(t, "Merhaba"))
	if err != nil {
		t.Fatalf("CallModel() error = %v", err)
	}
	if st.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", st.TurnCount)
	}
}

func TestCallModelCountsRePromptAsTurn(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{replies: []contractx.RawReply{
		{Content: `{"tool": "broken json`},
		{Content: "Düzelttim, yardımcı olayım."},
	}}
	n := New(model, nil, nil, nil, prompt.LoadPromptSet())

	st, err := n.CallModel(context.Background(), newModelState(t, "Rezervasyon yap"))
	if err != nil {
		t.Fatalf("CallModel() error = %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("model called %d times, want 2", model.calls)
	}
	if st.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want one per model invocation", st.TurnCount)
	}
	if st.FinalReply != "Düzelttim, yardımcı olayım." {
		t.Fatalf("FinalReply = %q", st.FinalReply)
	}
}
