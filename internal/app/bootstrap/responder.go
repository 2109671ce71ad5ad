package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/apptreply/internal/config"
	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/internal/responder"
	"github.com/wolfman30/apptreply/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization, honouring static credentials
// when both keys are set.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, loaders...)
}

// BuildResponder wires the fallback responder: Bedrock first, Gemini as backup, or
// whichever one is configured. It returns a nil responder when neither is, in which
// case unstructured messages get the fixed apology. The returned closer is never nil.
func BuildResponder(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (dialogue.Responder, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var primary, backup responder.Client
	model := strings.TrimSpace(cfg.BedrockModelID)
	closer := noop

	if model != "" {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		api := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
			if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		primary = responder.NewBedrockClient(api)
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := responder.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: %w", err)
		}
		closer = gemini.Close
		if primary == nil {
			primary = gemini
		} else {
			backup = gemini
		}
	}

	if primary == nil {
		logger.Warn("no responder model configured; unstructured messages get the fixed apology")
		return nil, noop, nil
	}

	logger.Info("fallback responder configured",
		"bedrock_model", model,
		"gemini_backup", backup != nil,
	)
	client := responder.NewFallbackClient(primary, backup, logger)
	return responder.NewLLMResponder(client, model, responder.WithMaxTokens(cfg.ResponderMaxTokens)), closer, nil
}
