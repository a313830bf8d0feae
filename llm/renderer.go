package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/schema"
)

// AnswerRenderer turns a question and its serialized rows into prose using
// a chat model. It has no business-negative case; any failure is an adapter
// failure absorbed by the pipeline.
type AnswerRenderer struct {
	model  ChatModel
	system string
	logger *slog.Logger
}

// RendererOptions configures NewAnswerRenderer.
type RendererOptions struct {
	Model            ChatModel
	InstructionsPath string
	Logger           *slog.Logger
}

// NewAnswerRenderer reads the instruction template and returns the adapter.
func NewAnswerRenderer(opts RendererOptions) (*AnswerRenderer, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	instructions, err := readPrompt(opts.InstructionsPath)
	if err != nil {
		return nil, err
	}
	return &AnswerRenderer{
		model:  opts.Model,
		system: instructions,
		logger: opts.Logger,
	}, nil
}

func (r *AnswerRenderer) RenderAnswer(ctx context.Context, question, serializedRows string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(r.system),
		schema.UserMessage(fmt.Sprintf("question: %s\ndata:\n%s", question, serializedRows)),
	}

	response, err := r.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("model returned no message")
	}
	r.logger.Debug("answer rendered", "characters", len(response.Content))
	return response.Content, nil
}
