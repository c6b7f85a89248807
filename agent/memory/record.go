package memory

import "time"

// Record is one device-scoped fact. Embedding and DeviceID are fixed at
// creation; a merge rewrites Text, Metadata, Embedding and Timestamp in place
// but never the ID.
type Record struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Score is the similarity to the query that produced this record.
	// It is populated by Search/FindSimilar only and never persisted.
	Score float64 `json:"-"`
}

func cloneRecord(in Record) Record {
	out := in
	out.Embedding = append([]float32(nil), in.Embedding...)
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
