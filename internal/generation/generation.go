// Package generation turns a question and its retrieved context into a
// grounded, streamed answer. The prompt instructs the model to answer only
// from the supplied context and to reply with a fixed fallback sentence
// otherwise. The prompt and the chat model are composed as an eino chain so
// globally registered callbacks (Langfuse tracing) see every call.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docchat/internal/budget"
	"github.com/54b3r/docchat/internal/logging"
)

// DefaultFallback is the sentence returned when the context does not hold
// the answer. Override via DOCCHAT_FALLBACK.
const DefaultFallback = "Não encontrei essa informação"

// promptTemplate is the single user message sent per question. Variables are
// substituted with schema.FString; substituted values are not re-parsed, so
// braces inside documents are safe.
const promptTemplate = `Você é um assistente corporativo. Responda usando APENAS o contexto abaixo.
Se a resposta não estiver no contexto, diga "{fallback}".

CONTEXTO:
{context}

PERGUNTA DO USUÁRIO:
{question}`

// Config holds the dependencies required to construct a Generator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Model is the model id sent with every request. Empty leaves the id
	// the chat model was constructed with.
	Model string

	// Temperature is the sampling temperature sent with every request.
	Temperature float32

	// Fallback is the sentence used when the answer is not in the context.
	// Defaults to DefaultFallback if empty.
	Fallback string

	// MaxContextTokens is the estimated token budget for the whole prompt.
	// Context that does not fit is truncated. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Generator builds the grounded prompt and streams answers from the chat
// model.
type Generator struct {
	// template renders the prompt; kept to measure the fixed prompt size.
	template prompt.ChatTemplate

	// runnable is the compiled template → model chain.
	runnable compose.Runnable[map[string]any, *schema.Message]

	// opts are the per-request chat model options (model id, temperature).
	opts []compose.Option

	fallback         string
	maxContextTokens int
}

// New constructs a Generator from the provided Config.
func New(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("generation: ChatModel must not be nil")
	}

	fallback := cfg.Fallback
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(promptTemplate))
	runnable, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cfg.ChatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("generation: failed to compile chain: %w", err)
	}

	modelOpts := []model.Option{model.WithTemperature(cfg.Temperature)}
	if cfg.Model != "" {
		modelOpts = append(modelOpts, model.WithModel(cfg.Model))
	}

	return &Generator{
		template:         tpl,
		runnable:         runnable,
		opts:             []compose.Option{compose.WithChatModelOption(modelOpts...)},
		fallback:         fallback,
		maxContextTokens: maxCtx,
	}, nil
}

// Fallback returns the sentence used when no answer can be grounded.
func (g *Generator) Fallback() string {
	return g.fallback
}

// Stream starts generating an answer for question grounded on contextText.
// When contextText is blank, or nothing of it fits the token budget, the
// fallback sentence is streamed without calling the chat model. The caller
// must Close the returned Stream.
func (g *Generator) Stream(ctx context.Context, question, contextText string) (*Stream, error) {
	if strings.TrimSpace(contextText) != "" {
		var err error
		if contextText, err = g.fit(ctx, question, contextText); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(contextText) == "" {
		logging.FromContext(ctx).Debug("generation: empty context, answering with fallback")
		return newStream(schema.StreamReaderFromArray([]*schema.Message{
			schema.AssistantMessage(g.fallback, nil),
		})), nil
	}

	sr, err := g.runnable.Stream(ctx, g.variables(question, contextText), g.opts...)
	if err != nil {
		return nil, fmt.Errorf("generation: stream failed: %w", err)
	}
	return newStream(sr), nil
}

// Answer streams an answer to w fragment by fragment as it arrives and
// returns the full accumulated text. A failure mid-stream returns the text
// received so far together with the error.
func (g *Generator) Answer(ctx context.Context, question, contextText string, w io.Writer) (string, error) {
	s, err := g.Stream(ctx, question, contextText)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var answer strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return answer.String(), err
		}
		answer.WriteString(chunk)
		if _, err := io.WriteString(w, chunk); err != nil {
			return answer.String(), fmt.Errorf("generation: write error: %w", err)
		}
	}
	return answer.String(), nil
}

// variables returns the template inputs for one request.
func (g *Generator) variables(question, contextText string) map[string]any {
	return map[string]any{
		"fallback": g.fallback,
		"context":  contextText,
		"question": question,
	}
}

// fit truncates contextText so the rendered prompt stays within the token
// budget.
func (g *Generator) fit(ctx context.Context, question, contextText string) (string, error) {
	fixed, err := g.template.Format(ctx, g.variables(question, ""))
	if err != nil {
		return "", fmt.Errorf("generation: failed to render prompt: %w", err)
	}
	remaining := budget.Remaining(fixed, g.maxContextTokens)
	out, cut := budget.Truncate(contextText, remaining)
	if cut {
		logging.FromContext(ctx).Warn("budget: truncated context to fit context window",
			slog.Int("context_tokens", budget.Estimate(contextText)),
			slog.Int("remaining_tokens", remaining),
			slog.Int("max_tokens", g.maxContextTokens),
		)
	}
	return out, nil
}
