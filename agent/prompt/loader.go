package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/reservation.txt
	reservationRaw string

	//go:embed template/memory.txt
	memoryRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Reservation    string
	MemoryAnalysis string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Reservation:    strings.TrimSpace(reservationRaw),
		MemoryAnalysis: strings.TrimSpace(memoryRaw),
	}
}

// RenderReservation fills the reservation system prompt with the current date
// and the retrieved memory lines. No memories renders as an explicit marker so
// the model never sees a dangling header.
func (p PromptSet) RenderReservation(today string, memories []string) string {
	block := "(henüz kayıtlı bilgi yok)"
	if len(memories) > 0 {
		lines := make([]string, 0, len(memories))
		for _, m := range memories {
			lines = append(lines, "- "+m)
		}
		block = strings.Join(lines, "\n")
	}
	return strings.NewReplacer(
		"{{today}}", today,
		"{{memories}}", block,
	).Replace(p.Reservation)
}

// RenderMemoryAnalysis fills the fact-extraction prompt with the user message.
func (p PromptSet) RenderMemoryAnalysis(message string) string {
	return strings.ReplaceAll(p.MemoryAnalysis, "{{message}}", message)
}
