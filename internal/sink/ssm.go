package sink

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/Josh5/secretpush/internal/logging"
	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

const (
	ssmAdvancedTierThreshold = 4096
	ssmMaxValueBytes         = 8192
)

// ssmAPI is the subset of *ssm.Client SSMSink depends on, narrow enough
// to fake in tests.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMSink dispatches items to AWS Systems Manager Parameter Store.
type SSMSink struct {
	name        string
	client      ssmAPI
	paramType   types.ParameterType
	kmsKeyID    string
	overwrite   bool
	concurrency int
	rateLimit   float64
	logger      *logging.Logger
}

func (s *SSMSink) Name() string { return s.name }

func (s *SSMSink) Dispatch(ctx context.Context, records []pkgsink.Record, opts pkgsink.DispatchOptions) <-chan pkgsink.Event {
	return runPool(ctx, s.name, records, s.concurrency, s.rateLimit, func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error) {
		return s.dispatchOne(ctx, rec, opts)
	})
}

func (s *SSMSink) dispatchOne(ctx context.Context, rec pkgsink.Record, opts pkgsink.DispatchOptions) (pkgsink.Event, error) {
	var event pkgsink.Event

	valueLen := len(rec.Value)
	if valueLen > ssmMaxValueBytes {
		event.Outcome = pkgsink.Failed
		event.Reason = pkgsink.ReasonTooLarge
		return event, nil
	}

	existing, found, err := s.readExisting(ctx, rec.FullName)
	if err != nil {
		event.Outcome = pkgsink.Failed
		event.Reason = pkgsink.ReasonAWS
		return event, err
	}

	if found && existing == rec.Value {
		event.Outcome = pkgsink.Unchanged
		if opts.ValueSnapshots {
			event.OldValue, event.NewValue = existing, rec.Value
		}
		return event, nil
	}
	if found && !s.overwrite {
		event.Outcome = pkgsink.Failed
		event.Reason = pkgsink.ReasonExists
		return event, nil
	}

	tier := types.ParameterTierStandard
	if valueLen > ssmAdvancedTierThreshold {
		tier = types.ParameterTierAdvanced
		if s.logger != nil {
			s.logger.Warn("%s: %s promoted to Advanced tier (%d bytes)", s.name, rec.FullName, valueLen)
		}
	}

	input := &ssm.PutParameterInput{
		Name:      aws.String(rec.FullName),
		Value:     aws.String(rec.Value),
		Type:      s.paramType,
		Tier:      tier,
		Overwrite: aws.Bool(found),
	}
	if s.paramType == types.ParameterTypeSecureString && s.kmsKeyID != "" {
		input.KeyId = aws.String(s.kmsKeyID)
	}

	if _, err := s.client.PutParameter(ctx, input); err != nil {
		event.Outcome = pkgsink.Failed
		event.Reason = pkgsink.ReasonAWS
		return event, err
	}

	if found {
		event.Outcome = pkgsink.Changed
	} else {
		event.Outcome = pkgsink.Created
	}
	if opts.ValueSnapshots {
		event.OldValue, event.NewValue = existing, rec.Value
	}
	return event, nil
}

// readExisting fetches the current parameter value. A read-path
// permission error is treated as "unknown" rather than failing the
// item (spec §4.9): the caller proceeds to write as though the
// parameter did not exist.
func (s *SSMSink) readExisting(ctx context.Context, name string) (value string, found bool, err error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name), WithDecryption: aws.Bool(true)})
	if err != nil {
		if isParameterNotFound(err) || isAccessDenied(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", false, nil
	}
	return *out.Parameter.Value, true, nil
}

func isParameterNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ParameterNotFound"
	}
	return strings.Contains(err.Error(), "ParameterNotFound")
}
