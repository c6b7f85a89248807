package normalizer

import (
	"testing"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

func TestClassifyModelOutputFinalAnswer(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{Content: "Rezervasyonunuz oluşturuldu, iyi tatiller!"})
	if out.Kind != contractx.OutputFinalAnswer {
		t.Fatalf("ClassifyModelOutput() kind = %v, want final answer", out.Kind)
	}
	if out.Text == "" {
		t.Fatal("ClassifyModelOutput() text is empty")
	}
}

func TestClassifyModelOutputStructuredCalls(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{
		ToolCalls: []contractx.ToolCall{
			{ID: "call-1", Name: "list_reservations", Arguments: `{"customer_name":"Ahmet Aslan"}`},
			{ID: "call-2", Name: "create_reservation", Arguments: `{"room_type":"Suite"}`},
		},
	})
	if out.Kind != contractx.OutputToolCalls {
		t.Fatalf("ClassifyModelOutput() kind = %v, want tool calls", out.Kind)
	}
	if len(out.Calls) != 2 {
		t.Fatalf("ClassifyModelOutput() calls = %d, want 2", len(out.Calls))
	}
	if out.Calls[0].Tool != "list_reservations" || out.Calls[0].ID != "call-1" {
		t.Fatalf("unexpected first call: %#v", out.Calls[0])
	}
	if got := out.Calls[0].Args["customer_name"]; got != "Ahmet Aslan" {
		t.Fatalf("unexpected args: %#v", out.Calls[0].Args)
	}
}

func TestClassifyModelOutputStructuredCallBadArguments(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{
		ToolCalls: []contractx.ToolCall{
			{ID: "call-1", Name: "list_reservations", Arguments: `{"customer_name":`},
		},
	})
	if out.Kind != contractx.OutputMalformed {
		t.Fatalf("ClassifyModelOutput() kind = %v, want malformed", out.Kind)
	}
}

func TestClassifyModelOutputContentEmbeddedCall(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{
		Content: "```json\n{\"tool\":\"delete_existing_reservation\",\"args\":{\"customer_name\":\"Ahmet Aslan\"}}\n```",
	})
	if out.Kind != contractx.OutputToolCalls {
		t.Fatalf("ClassifyModelOutput() kind = %v, want tool calls", out.Kind)
	}
	if len(out.Calls) != 1 || out.Calls[0].Tool != "delete_existing_reservation" {
		t.Fatalf("unexpected calls: %#v", out.Calls)
	}
}

func TestClassifyModelOutputContentCallUnparseable(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{Content: `{"tool": "create_reservation", "args": {`})
	if out.Kind != contractx.OutputMalformed {
		t.Fatalf("ClassifyModelOutput() kind = %v, want malformed", out.Kind)
	}
	if out.Raw == "" {
		t.Fatal("ClassifyModelOutput() raw content not preserved")
	}
}

func TestClassifyModelOutputEmptyReply(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{Content: "   "})
	if out.Kind != contractx.OutputMalformed {
		t.Fatalf("ClassifyModelOutput() kind = %v, want malformed", out.Kind)
	}
}

func TestClassifyModelOutputProseWithBraceIsFinal(t *testing.T) {
	t.Parallel()

	out := ClassifyModelOutput(contractx.RawReply{Content: "Oda tipleri: {Standard, Deluxe, Suite} arasından seçebilirsiniz."})
	if out.Kind != contractx.OutputFinalAnswer {
		t.Fatalf("ClassifyModelOutput() kind = %v, want final answer", out.Kind)
	}
}

func TestValidateArgsMissingRequired(t *testing.T) {
	t.Parallel()

	schema := contractx.ToolSchema{
		Name:     "create_reservation",
		Required: []string{"customer_name", "check_in_date"},
		Properties: map[string]contractx.ParamSpec{
			"customer_name": {Type: "string"},
			"check_in_date": {Type: "string", Format: "date"},
		},
	}

	fault := ValidateArgs(schema, map[string]any{"customer_name": "Aslı Demir"})
	if fault == nil {
		t.Fatal("ValidateArgs() = nil, want invalid argument fault")
	}
	if fault.Kind != contractx.FaultInvalidArgument {
		t.Fatalf("ValidateArgs() kind = %v, want invalid_argument", fault.Kind)
	}
}

func TestValidateArgsBadDate(t *testing.T) {
	t.Parallel()

	schema := contractx.ToolSchema{
		Name:     "create_reservation",
		Required: []string{"check_in_date"},
		Properties: map[string]contractx.ParamSpec{
			"check_in_date": {Type: "string", Format: "date"},
		},
	}

	for _, bad := range []string{"20 Temmuz", "2026/07/20", "2026-13-01", "yarın"} {
		if fault := ValidateArgs(schema, map[string]any{"check_in_date": bad}); fault == nil {
			t.Fatalf("ValidateArgs(%q) = nil, want invalid argument fault", bad)
		}
	}

	if fault := ValidateArgs(schema, map[string]any{"check_in_date": "2026-07-20"}); fault != nil {
		t.Fatalf("ValidateArgs() = %v, want nil", fault)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("2026-07-20")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if got.Year() != 2026 || int(got.Month()) != 7 || got.Day() != 20 {
		t.Fatalf("ParseDate() = %v", got)
	}

	if _, err := ParseDate("07-20-2026"); err == nil {
		t.Fatal("ParseDate() accepted a non-ISO date")
	}
}
