package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/querygate/querygate/internal/core/domain"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// promptTemplate instructs the model to emit exactly one PostgreSQL SELECT.
// The rules mirror what the gate enforces so well-behaved output passes on
// the first try; misbehaving output is the gate's problem, not ours.
const promptTemplate = `You are a SQL generator for a PostgreSQL database.

%s

Rules:
- Produce exactly ONE PostgreSQL SELECT statement answering the question.
- Use only the tables and columns listed above.
- For ENUM columns, use ONLY the exact values listed.
- Never modify data: no INSERT, UPDATE, DELETE, DDL, or procedure calls.
- No comments, no explanations, no markdown — reply with the SQL only.
- The question may be in English or Hinglish (Hindi written in Roman
  script); interpret it either way but always answer with SQL.

Question: %s

SQL:`

// Generator produces candidate SQL via an OpenAI-compatible chat model.
// Its output is untrusted input to the safety gate.
type Generator struct {
	model llms.Model
}

// NewGenerator builds a Generator for the given model name. The API key
// comes from the OPENAI_API_KEY environment variable unless token is set.
func NewGenerator(model, token string) (*Generator, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if token != "" {
		opts = append(opts, openai.WithToken(token))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &Generator{model: client}, nil
}

func (g *Generator) GenerateSQL(ctx context.Context, question, schemaContext string, _ domain.Language) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.TrimSpace(schemaContext), question)

	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return out, nil
}
