package gateway

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	errx "github.com/convoflow-poc/server/internal/core/error"
	logx "github.com/convoflow-poc/server/pkg/logger"
)

// GeminiConfig holds what is needed to build a Gemini-backed gateway.
type GeminiConfig struct {
	Client      *genai.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewClient creates the shared genai client both gateways and the embedder
// hang off.
func NewClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// Gemini implements Gateway on top of the eino Gemini chat model.
type Gemini struct {
	cm    *gemini.ChatModel
	model string
}

// NewGemini builds a Gemini gateway for one model configuration.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      cfg.Client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}
	return &Gemini{cm: cm, model: cfg.Model}, nil
}

func (g *Gemini) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	out, err := g.cm.Generate(ctx, messages)
	if err != nil {
		logx.Error().Err(err).Str("model", g.model).Msg("Generate failed")
		return nil, errx.WrapGateway(err)
	}
	return out, nil
}

func (g *Gemini) GenerateStructured(ctx context.Context, messages []*schema.Message, out any) error {
	resp, err := g.Generate(ctx, structuredMessages(messages))
	if err != nil {
		return err
	}
	if resp == nil {
		return errx.WrapGateway(fmt.Errorf("empty structured response"))
	}
	return decodeStructured(resp.Content, out)
}

var _ Gateway = (*Gemini)(nil)

// NewGeminiToolModel builds a Gemini chat model with the given tools bound at
// construction. The diagram loop drives it directly; regular gateway callers
// never see tool calls.
func NewGeminiToolModel(ctx context.Context, cfg GeminiConfig, tools []*schema.ToolInfo) (*gemini.ChatModel, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      cfg.Client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating tool model: %w", err)
	}
	if err := cm.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	return cm, nil
}
