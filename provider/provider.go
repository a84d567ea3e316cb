package provider

import (
	"context"
	"errors"
	"fmt"

	"streamedit/client/openai"
	"streamedit/engine"
	"streamedit/logger"
	"streamedit/types"
)

// Compile-time check that Provider implements engine.Provider
var _ engine.Provider = (*Provider)(nil)

// Client interface for API calls (enables mocking in tests)
type Client interface {
	StreamChat(ctx context.Context, req *openai.ChatRequest, onDelta func(string)) (*openai.StreamResult, error)
}

// Context carries data through the request pipeline
type Context struct {
	Request     *types.EditRequest
	Lines       []string // document window sent to the model
	WindowStart int      // 0-indexed first line of the window
	TotalLines  int
	Trimmed     bool
	History     []*Turn
}

// Provider implements engine.Provider with a configurable pipeline
type Provider struct {
	Name          string
	Config        *types.ProviderConfig
	Client        Client
	History       *Conversation
	Preprocessors []Preprocessor
	PromptBuilder PromptBuilder
}

// New builds the OpenAI-compatible chat provider
func New(config *types.ProviderConfig) *Provider {
	// The engine bounds each request with its own timeout
	client := openai.NewClient(config.ProviderURL, config.APIKey, 0)
	if config.CompletionPath != "" {
		client.Path = config.CompletionPath
	}
	client.Compress = config.CompressRequests

	return &Provider{
		Name:    "openai",
		Config:  config,
		Client:  client,
		History: NewConversation(config.HistoryTurns),
		Preprocessors: []Preprocessor{
			RequireInstruction(),
			TrimContent(),
			AttachHistory(),
		},
		PromptBuilder: SearchReplacePrompt(),
	}
}

// StreamEdit implements engine.Provider
func (p *Provider) StreamEdit(ctx context.Context, req *types.EditRequest, onChunk func(string)) error {
	pctx := &Context{Request: req}

	for _, pre := range p.Preprocessors {
		if err := pre(p, pctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}

	chatReq := p.PromptBuilder(p, pctx)
	p.logRequest(chatReq)

	result, err := p.Client.StreamChat(ctx, chatReq, onChunk)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	p.logResponse(result)

	if p.History != nil {
		p.History.Add(req.FilePath, req.Instruction, result.Text)
	}
	return nil
}

func (p *Provider) logRequest(req *openai.ChatRequest) {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	logger.Debug("%s provider request:\n  URL: %s%s\n  Model: %s\n  Temperature: %.2f\n  MaxTokens: %d\n  Messages: %d (%d chars)",
		p.Name,
		p.Config.ProviderURL,
		p.Config.CompletionPath,
		req.Model,
		req.Temperature,
		req.MaxTokens,
		len(req.Messages),
		chars)
}

func (p *Provider) logResponse(result *openai.StreamResult) {
	logger.Debug("%s provider response:\n  Text length: %d chars\n  FinishReason: %s\n  Text: %q",
		p.Name,
		len(result.Text),
		result.FinishReason,
		result.Text)
}
