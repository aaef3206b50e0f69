package agent

import (
	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/flow"
	"github.com/hupe1980/chatflow/model"
)

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID string `json:"run_id"`

	// Text is the aggregated assistant text.
	Text string `json:"text"`

	// Messages are the messages produced by the run: the input, assistant
	// turns and tool responses. Appending them to the prior history yields the
	// conversation after the run.
	Messages []core.Message `json:"messages"`

	Turns        int              `json:"turns"`
	FinishReason string           `json:"finish_reason"`
	Usage        model.TokenUsage `json:"usage"`
}

func newRunResult(res *flow.Result) *RunResult {
	return &RunResult{
		RunID:        res.RunID,
		Text:         res.Text,
		Messages:     res.Messages,
		Turns:        res.Turns,
		FinishReason: res.FinishReason,
		Usage:        res.Usage,
	}
}

// Chunk is one streamed text fragment.
type Chunk struct {
	Text string `json:"text"`
	Turn int    `json:"turn"` // Backend round-trip the fragment belongs to, starting at 1
}
