package usage

// UsageData represents the root structure stored in persistence.
type UsageData struct {
	Version   string          `json:"version"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Total       TokenCounts            `json:"total"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"` // chat, advice, transcribe, image, edit
	BySession   map[string]TokenCounts `json:"by_session"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Thinking int64 `json:"thinking,omitempty"`
	Total    int64 `json:"total"`
	Calls    int64 `json:"calls"`
}

// Add accumulates one call.
func (tc *TokenCounts) Add(input, output, thinking int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Thinking += int64(thinking)
	tc.Total += int64(input + output + thinking)
	tc.Calls++
}
