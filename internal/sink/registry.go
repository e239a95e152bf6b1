package sink

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/Josh5/secretpush/internal/config"
	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

// Build constructs the adapter for a declared sink spec (spec §9's
// tagged-variant-plus-registry design note). Each call loads its own
// AWS config from awsOpts; sinks do not share one.
func Build(ctx context.Context, spec config.SinkSpec, awsOpts config.AWSOptions, logger *logging.Logger) (pkgsink.Sink, error) {
	cfg, err := buildAWSConfig(ctx, awsOpts)
	if err != nil {
		return nil, err
	}

	concurrency := intOption(spec.Options["concurrency"], defaultConcurrency)
	rateLimit := floatOption(spec.Options["rate_limit_rps"], defaultRateLimit)

	switch spec.Type {
	case "ssm":
		// The "tier" option passes schema validation but is not read:
		// dispatchOne always writes Standard, or Advanced for values over
		// 4096 bytes.
		paramType := types.ParameterTypeSecureString
		if t, ok := spec.Options["type"].(string); ok && t != "" {
			paramType = types.ParameterType(t)
		}
		overwrite, _ := spec.Options["overwrite"].(bool)
		kmsKeyID, _ := spec.Options["kms_key_id"].(string)
		return &SSMSink{
			name:        spec.Name,
			client:      ssm.NewFromConfig(cfg),
			paramType:   paramType,
			kmsKeyID:    kmsKeyID,
			overwrite:   overwrite,
			concurrency: concurrency,
			rateLimit:   rateLimit,
			logger:      logger,
		}, nil
	case "secrets_manager":
		kmsKeyID, _ := spec.Options["kms_key_id"].(string)
		return &SecretsManagerSink{
			name:        spec.Name,
			client:      secretsmanager.NewFromConfig(cfg),
			kmsKeyID:    kmsKeyID,
			concurrency: concurrency,
			rateLimit:   rateLimit,
			logger:      logger,
		}, nil
	default:
		return nil, dserrors.ConfigError{Field: "sinks[].type", Value: spec.Type, Message: fmt.Sprintf("unknown sink type %q", spec.Type)}
	}
}

func intOption(v interface{}, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func floatOption(v interface{}, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}
