package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"support-agent/handler"
	"support-agent/internal/admission"
	"support-agent/internal/breaker"
	"support-agent/internal/config"
	"support-agent/internal/integrations/openai"
	"support-agent/internal/integrations/paramstore"
	"support-agent/internal/integrations/sunshine"
	"support-agent/internal/integrations/zendesk"
	"support-agent/internal/signature"
	"support-agent/internal/usecase"
)

type app struct {
	handler *handler.Handler
	guard   *admission.Guard
}

func build(ctx context.Context, cfg config.Config) (*app, error) {
	// ---- Secrets (Parameter Store only when a prefix is configured) ----
	var params paramstore.Getter
	if cfg.ParamPrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("create SSM client: %w", err)
		}
		params = ps
	}
	if err := cfg.LoadSecrets(ctx, params); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// ---- Shared state ----
	verifier, err := signature.New(cfg.WebhookSecret, cfg.RequireSignature)
	if err != nil {
		return nil, fmt.Errorf("create signature verifier: %w", err)
	}
	guard := admission.NewGuard(admission.Config{
		RateLimit:     cfg.RateLimit,
		RateMaxAge:    cfg.RateBucketMaxAge,
		DedupWindow:   cfg.DedupWindow,
		DedupIDTTL:    cfg.DedupIDTTL,
		SweepInterval: cfg.SweepInterval,
		SelfAuthorID:  cfg.BotAuthorID,
		Marker:        cfg.AutomationMarker,
	})
	gate := breaker.New(cfg.FailureThreshold, cfg.AutoReplyDisabled)

	// ---- Clients ----
	llmOpts := []openai.Option{}
	if cfg.OpenAIAPIKey != "" {
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.OpenAITemperature != nil {
		llmOpts = append(llmOpts, openai.WithTemperature(*cfg.OpenAITemperature))
	}
	llm, err := openai.NewClient(params, cfg.ParamPrefix, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}

	deliveryOpts := []sunshine.Option{sunshine.WithAuthMode(sunshine.AuthMode(cfg.SunshineAuth))}
	if cfg.SunshineBaseURL != "" {
		deliveryOpts = append(deliveryOpts, sunshine.WithBaseURL(cfg.SunshineBaseURL))
	}
	delivery, err := sunshine.New(sunshine.Credentials{
		AppID:  cfg.SunshineAppID,
		KeyID:  cfg.SunshineKeyID,
		Secret: cfg.SunshineSecret,
	}, deliveryOpts...)
	if err != nil {
		return nil, fmt.Errorf("create Sunshine client: %w", err)
	}

	var tickets usecase.TicketTagger
	if cfg.ZendeskEnabled() {
		zd, err := zendesk.New(zendesk.Credentials{
			Subdomain: cfg.ZendeskSubdomain,
			Email:     cfg.ZendeskEmail,
			APIToken:  cfg.ZendeskAPIToken,
		})
		if err != nil {
			return nil, fmt.Errorf("create Zendesk client: %w", err)
		}
		tickets = zd
	}

	// ---- Use cases ----
	replies, err := usecase.NewReplyService(llm, delivery, tickets, gate, usecase.ReplyConfig{
		Model:             cfg.OpenAIModel,
		CompletionTimeout: cfg.CompletionTimeout,
		DeliveryTimeout:   cfg.DeliveryTimeout,
		EscalationTag:     cfg.EscalationTag,
		Marker:            cfg.AutomationMarker,
	})
	if err != nil {
		return nil, fmt.Errorf("create reply service: %w", err)
	}
	dispatcher, err := usecase.NewDispatcher(verifier, guard, gate, nil, replies)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	h, err := handler.NewHandler(dispatcher)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	return &app{handler: h, guard: guard}, nil
}
