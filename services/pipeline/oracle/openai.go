// Copyright (C) 2025 Loomworks AI (eng@loomworks.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// defaultSystemPrompt frames every call. Prompt content proper (style
// rules, domain templates) is owned by the caller and travels in the
// request body, not here.
const defaultSystemPrompt = "You are a code synthesis engine. Respond with exactly one JSON document and no surrounding prose."

// OpenAIConfig configures the OpenAI-compatible oracle client.
type OpenAIConfig struct {
	// APIKey is the credential. When empty, the OPENAI_API_KEY
	// environment variable and then APIKeyFile are consulted.
	APIKey string

	// APIKeyFile is an optional secrets-file fallback for the key.
	APIKeyFile string

	// Model is the model identifier. Default: "gpt-4o-mini".
	Model string

	// BaseURL overrides the API endpoint, which makes any
	// OpenAI-compatible local inference server usable as the oracle.
	BaseURL string

	// RequestsPerMinute bounds the call rate. Zero disables limiting.
	RequestsPerMinute int

	// SystemPrompt overrides the framing system message.
	SystemPrompt string
}

// OpenAIOracle is an Oracle backed by an OpenAI-compatible endpoint.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	system  string
	limiter *rate.Limiter
}

// NewOpenAIOracle creates an OpenAI-backed oracle.
//
// Description:
//
//	Resolves the API key from config, environment, or a secrets file, in
//	that order. Temperature is pinned low: the pipeline leans on
//	determinism wherever the oracle allows it.
//
// Inputs:
//
//	cfg - Client configuration.
//
// Outputs:
//
//	*OpenAIOracle - The ready client.
//	error - ErrNoAPIKey when no credential source yields a key.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.APIKeyFile)
		if err == nil {
			apiKey = strings.TrimSpace(string(data))
			slog.Info("Read oracle API key from secrets file", "path", cfg.APIKeyFile)
		}
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("Oracle model not set, defaulting", "model", model)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	slog.Info("Initializing oracle client", "model", model, "base_url", cfg.BaseURL)
	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		system:  system,
		limiter: limiter,
	}, nil
}

// Generate implements the Oracle interface.
func (o *OpenAIOracle) Generate(ctx context.Context, req Request) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("oracle rate limiter: %w", err)
		}
	}

	slog.Debug("Calling oracle", "request", Describe(req), "model", o.model)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		slog.Error("Oracle call failed", "request", Describe(req), "error", err)
		return "", fmt.Errorf("oracle call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Oracle returned no choices", "request", Describe(req))
		return "", ErrNoResponse
	}

	slog.Debug("Oracle responded",
		"request", Describe(req),
		"finish_reason", resp.Choices[0].FinishReason,
	)
	return resp.Choices[0].Message.Content, nil
}
