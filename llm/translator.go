package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/deepnoodle-ai/sqlchat"
)

// translationRules is appended to every translator instruction template. It
// establishes the empty-string contract the pipeline depends on: questions
// about unknown entities yield no query rather than a guess.
const translationRules = "Pay close attention to the database structure when generating the query. " +
	"IF the user mentions entities or tables that do not exist, return an empty string. " +
	"OTHERWISE return ONLY a single SQL query and nothing else."

// SQLTranslator turns a natural-language question into a SQL query using a
// chat model. The system prompt is assembled once at construction from the
// instruction template and the database structure description.
type SQLTranslator struct {
	model  ChatModel
	system string
	logger *slog.Logger
}

// TranslatorOptions configures NewSQLTranslator.
type TranslatorOptions struct {
	Model ChatModel

	// InstructionsPath is the translator instruction template file.
	// SchemaPath is a plain-text description of the database structure.
	InstructionsPath string
	SchemaPath       string

	Logger *slog.Logger
}

// NewSQLTranslator reads the instruction files and returns the adapter.
func NewSQLTranslator(opts TranslatorOptions) (*SQLTranslator, error) {
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
	structure, err := readPrompt(opts.SchemaPath)
	if err != nil {
		return nil, err
	}
	system := fmt.Sprintf("%s\n\nDatabase structure:\n%s\n\n%s", instructions, structure, translationRules)
	return &SQLTranslator{
		model:  opts.Model,
		system: system,
		logger: opts.Logger,
	}, nil
}

// Translate asks the model for a query. The model's text is returned
// verbatim; normalization is the pipeline's job.
func (t *SQLTranslator) Translate(ctx context.Context, req sqlchat.TranslationRequest) (string, error) {
	userID := "anonymous"
	if req.UserID != nil {
		userID = fmt.Sprintf("%d", *req.UserID)
	}
	messages := []*schema.Message{
		schema.SystemMessage(t.system),
		schema.UserMessage(fmt.Sprintf("user id: %s\nasked at: %s\nquestion: %s",
			userID, req.AskedAt.Format("2006-01-02 15:04:05 MST"), req.Question)),
	}

	response, err := t.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("model returned no message")
	}
	t.logger.Debug("query translated", "characters", len(response.Content))
	return response.Content, nil
}

// readPrompt loads an instruction template file.
func readPrompt(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("prompt path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return text, nil
}
