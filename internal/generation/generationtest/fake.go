// Package generationtest provides a scripted Generator for tests.
package generationtest

import (
	"context"
	"strings"
	"sync"

	"kiro-assistant/internal/generation"
	"kiro-assistant/internal/prompt"
)

// Call records one invocation.
type Call struct {
	Payload prompt.Payload
	Options generation.Options
}

// Fake returns Responses in order (the last one repeats). Stream splits a response on spaces,
// keeping the separators, so concatenated deltas equal the response.
type Fake struct {
	Responses []string
	Tokens    int
	Model     string

	// Err is returned instead of a response. With FailAfterFirstDelta, Stream emits one delta first.
	Err                 error
	FailAfterFirstDelta bool

	mu    sync.Mutex
	calls []Call
}

var _ generation.Generator = (*Fake)(nil)

func (f *Fake) Generate(ctx context.Context, payload prompt.Payload, opts generation.Options) (generation.Completion, error) {
	text, err := f.next(payload, opts)
	if err != nil {
		return generation.Completion{}, err
	}
	if err := ctx.Err(); err != nil {
		return generation.Completion{}, err
	}
	return f.completion(text), nil
}

func (f *Fake) Stream(ctx context.Context, payload prompt.Payload, opts generation.Options, onDelta func(string) error) (generation.Completion, error) {
	text, err := f.next(payload, opts)
	if err != nil {
		if f.FailAfterFirstDelta {
			if cbErr := onDelta("Hei"); cbErr != nil {
				return generation.Completion{}, cbErr
			}
		}
		return generation.Completion{}, err
	}

	for _, chunk := range Chunks(text) {
		if err := ctx.Err(); err != nil {
			return generation.Completion{}, err
		}
		if err := onDelta(chunk); err != nil {
			return generation.Completion{}, err
		}
	}
	return f.completion(text), nil
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) next(payload prompt.Payload, opts generation.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Payload: payload, Options: opts})
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	i := len(f.calls) - 1
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	}
	return f.Responses[i], nil
}

func (f *Fake) completion(text string) generation.Completion {
	model := f.Model
	if model == "" {
		model = "fake-model"
	}
	return generation.Completion{Text: text, Tokens: f.Tokens, Model: model}
}

// Chunks splits text after each space.
func Chunks(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}
