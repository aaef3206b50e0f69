package flow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
)

// run is the per-call state of one Execute invocation.
type run struct {
	f       *Flow
	in      Input
	logger  logging.Logger
	limiter *core.TurnLimiter

	state        State
	conversation []core.Message
	produced     []core.Message
	text         strings.Builder
	usage        model.TokenUsage
	finish       string
}

// Execute runs the conversation until the backend returns a response without
// tool-call directives, the turn limit is hit, the context is cancelled or an
// error occurs.
func (f *Flow) Execute(ctx context.Context, in Input) (*Result, error) {
	if in.RunID == "" {
		in.RunID = core.NewID()
	}

	r := &run{
		f:       f,
		in:      in,
		logger:  logging.With(f.opts.Logger, "agent", f.opts.Name, "run_id", in.RunID),
		limiter: core.NewTurnLimiter(f.opts.MaxTurns),
		state:   StateSending,
	}
	r.conversation = append(core.CloneMessages(in.History), core.CloneMessages(in.Messages)...)
	r.produced = core.CloneMessages(in.Messages)

	start := time.Now()
	r.logger.Info("flow.run.start", "history", len(in.History), "input", len(in.Messages), "stream", in.Stream)

	res, err := r.loop(ctx)
	if err != nil {
		_ = r.transition(ctx, StateFailed)
		r.logger.Error("flow.run.failed", "turns", r.limiter.Count(), "error", err.Error())
		if cbErr := r.callback(ctx, &CallbackContext{Type: CallbackOnError, Err: err}); cbErr != nil {
			err = errors.Join(err, cbErr)
		}
		return nil, err
	}

	r.logger.Info("flow.run.complete", "turns", res.Turns, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.limiter.Next(); err != nil {
			return nil, err
		}
		r.logger.Debug("flow.turn.start", "turn", r.limiter.Count(), "messages", len(r.conversation))

		req := model.Request{
			Instructions: r.f.opts.Instructions,
			Messages:     r.conversation,
			Tools:        r.toolDefinitions(),
			Stream:       r.in.Stream,
		}
		if err := r.callback(ctx, &CallbackContext{Type: CallbackBeforeModel, Request: &req}); err != nil {
			return nil, err
		}

		if err := r.transition(ctx, StateAwaitingBackend); err != nil {
			return nil, err
		}
		resp, err := r.await(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := r.callback(ctx, &CallbackContext{Type: CallbackAfterModel, Request: &req, Response: &resp}); err != nil {
			return nil, err
		}

		msg := assignCallIDs(resp.Message)
		r.appendMessage(msg)
		r.text.WriteString(msg.Text())
		r.usage.Add(resp.Usage)
		r.finish = resp.FinishReason

		calls := msg.FunctionCalls()
		if len(calls) == 0 {
			if err := r.transition(ctx, StateCompleted); err != nil {
				return nil, err
			}
			return r.result(), nil
		}

		if err := r.transition(ctx, StateToolCallRequested); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.transition(ctx, StateInvokingTool); err != nil {
			return nil, err
		}

		results, err := r.f.opts.Executor.Execute(ctx, calls, r.invoke)
		if err != nil {
			return nil, err
		}
		for i, call := range calls {
			r.appendMessage(core.ToolResponse(call.ID, call.Name, results[i]))
		}

		if err := r.transition(ctx, StateSending); err != nil {
			return nil, err
		}
	}
}

// await collects the response sequence of one backend turn. Partial text is
// forwarded to OnDelta when streaming; the final response is returned once
// both channels are drained.
func (r *run) await(ctx context.Context, req model.Request) (model.Response, error) {
	provider := r.f.model.Info().Provider
	respCh, errCh := r.f.model.Generate(ctx, req)

	var (
		final    *model.Response
		streamed strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				text := resp.Message.Text()
				if text == "" {
					continue
				}
				streamed.WriteString(text)
				if err := r.deliver(text); err != nil {
					return model.Response{}, err
				}
				continue
			}
			if final == nil {
				final = &resp
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Response{}, ctxErr
			}
			return model.Response{}, model.AsBackendError(provider, err)
		}
	}

	if final == nil {
		return model.Response{}, &model.BackendError{Provider: provider, Err: model.ErrNoResponse}
	}

	text := final.Message.Text()
	if text == "" && streamed.Len() > 0 {
		parts := append([]core.Part{core.TextPart{Text: streamed.String()}}, final.Message.Parts...)
		final.Message = core.NewMessage(core.RoleAssistant, parts...)
	}
	if streamed.Len() == 0 && text != "" {
		if err := r.deliver(text); err != nil {
			return model.Response{}, err
		}
	}
	if final.Message.Role == "" {
		final.Message.Role = core.RoleAssistant
	}

	return *final, nil
}

func (r *run) deliver(text string) error {
	if !r.in.Stream || r.in.OnDelta == nil {
		return nil
	}
	return r.in.OnDelta(Delta{Turn: r.limiter.Count(), Text: text})
}

// invoke dispatches a single tool-call directive to the registry.
func (r *run) invoke(ctx context.Context, call core.FunctionCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.callback(ctx, &CallbackContext{Type: CallbackBeforeTool, Call: &call}); err != nil {
		return "", err
	}

	start := time.Now()
	out, err := r.f.opts.Tools.InvokeJSON(ctx, call.Name, call.Arguments)
	r.logger.Info(
		"flow.tool.executed",
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if cbErr := r.callback(ctx, &CallbackContext{Type: CallbackAfterTool, Call: &call, Result: out, Err: err}); cbErr != nil {
		return "", errors.Join(err, cbErr)
	}
	return out, err
}

func (r *run) transition(ctx context.Context, to State) error {
	from := r.state
	r.state = to
	r.logger.Debug("flow.state", "from", from.String(), "to", to.String())
	return r.callback(ctx, &CallbackContext{Type: CallbackOnStateChange, From: from, To: to})
}

func (r *run) callback(ctx context.Context, cbCtx *CallbackContext) error {
	cbCtx.Agent = r.f.opts.Name
	cbCtx.RunID = r.in.RunID
	cbCtx.Turn = r.limiter.Count()
	return r.f.opts.Callbacks.Execute(ctx, cbCtx)
}

func (r *run) appendMessage(msg core.Message) {
	r.conversation = append(r.conversation, msg)
	r.produced = append(r.produced, msg)
}

func (r *run) toolDefinitions() []model.ToolDefinition {
	defs := r.f.opts.Tools.Definitions()
	if len(defs) == 0 {
		return nil
	}
	out := make([]model.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = model.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return out
}

func (r *run) result() *Result {
	return &Result{
		RunID:        r.in.RunID,
		Text:         r.text.String(),
		Messages:     r.produced,
		Turns:        r.limiter.Count(),
		FinishReason: r.finish,
		Usage:        r.usage,
	}
}

// assignCallIDs gives every tool-call directive without an ID a fresh one so
// tool responses can be correlated.
func assignCallIDs(msg core.Message) core.Message {
	out := msg.Clone()
	for i, p := range out.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok || fc.FunctionCall.ID != "" {
			continue
		}
		fc.FunctionCall.ID = core.NewID()
		out.Parts[i] = fc
	}
	return out
}
