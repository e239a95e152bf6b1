package sink

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/Josh5/secretpush/internal/logging"
	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

// secretsManagerAPI is the subset of *secretsmanager.Client
// SecretsManagerSink depends on, narrow enough to fake in tests.
type secretsManagerAPI interface {
	DescribeSecret(ctx context.Context, in *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecret(ctx context.Context, in *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
}

// SecretsManagerSink dispatches items to AWS Secrets Manager.
type SecretsManagerSink struct {
	name        string
	client      secretsManagerAPI
	kmsKeyID    string
	concurrency int
	rateLimit   float64
	logger      *logging.Logger
}

func (s *SecretsManagerSink) Name() string { return s.name }

func (s *SecretsManagerSink) Dispatch(ctx context.Context, records []pkgsink.Record, opts pkgsink.DispatchOptions) <-chan pkgsink.Event {
	return runPool(ctx, s.name, records, s.concurrency, s.rateLimit, func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error) {
		return s.dispatchOne(ctx, rec, opts)
	})
}

func (s *SecretsManagerSink) dispatchOne(ctx context.Context, rec pkgsink.Record, opts pkgsink.DispatchOptions) (pkgsink.Event, error) {
	var event pkgsink.Event

	descOut, descErr := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(rec.FullName)})
	found := descErr == nil
	if descErr != nil && !isSecretNotFound(descErr) && !isAccessDenied(descErr) {
		event.Outcome = pkgsink.Failed
		event.Reason = pkgsink.ReasonAWS
		return event, descErr
	}

	var existingValue string
	var existingDesc string
	if found {
		if descOut.Description != nil {
			existingDesc = *descOut.Description
		}
		getOut, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(rec.FullName)})
		if err != nil {
			if !isAccessDenied(err) {
				event.Outcome = pkgsink.Failed
				event.Reason = pkgsink.ReasonAWS
				return event, err
			}
		} else if getOut.SecretString != nil {
			existingValue = *getOut.SecretString
		}
	}

	descChanged := rec.Description != "" && existingDesc != rec.Description
	if found && existingValue == rec.Value && !descChanged {
		event.Outcome = pkgsink.Unchanged
		if opts.ValueSnapshots {
			event.OldValue, event.NewValue = existingValue, rec.Value
		}
		return event, nil
	}

	if !found {
		input := &secretsmanager.CreateSecretInput{Name: aws.String(rec.FullName), SecretString: aws.String(rec.Value)}
		if rec.Description != "" {
			input.Description = aws.String(rec.Description)
		}
		if s.kmsKeyID != "" {
			input.KmsKeyId = aws.String(s.kmsKeyID)
		}
		if _, err := s.client.CreateSecret(ctx, input); err != nil {
			event.Outcome = pkgsink.Failed
			event.Reason = pkgsink.ReasonAWS
			return event, err
		}
		event.Outcome = pkgsink.Created
		if opts.ValueSnapshots {
			event.NewValue = rec.Value
		}
		return event, nil
	}

	// A kms_key_id or a description change requires UpdateSecret:
	// PutSecretValue only ever touches SecretString. Pure value
	// rotation with no key configured stays on PutSecretValue.
	if s.kmsKeyID != "" || descChanged {
		input := &secretsmanager.UpdateSecretInput{SecretId: aws.String(rec.FullName), SecretString: aws.String(rec.Value)}
		if rec.Description != "" {
			input.Description = aws.String(rec.Description)
		}
		if s.kmsKeyID != "" {
			input.KmsKeyId = aws.String(s.kmsKeyID)
		}
		if _, err := s.client.UpdateSecret(ctx, input); err != nil {
			event.Outcome = pkgsink.Failed
			event.Reason = pkgsink.ReasonAWS
			return event, err
		}
	} else {
		if _, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{SecretId: aws.String(rec.FullName), SecretString: aws.String(rec.Value)}); err != nil {
			event.Outcome = pkgsink.Failed
			event.Reason = pkgsink.ReasonAWS
			return event, err
		}
	}

	event.Outcome = pkgsink.Changed
	if opts.ValueSnapshots {
		event.OldValue, event.NewValue = existingValue, rec.Value
	}
	return event, nil
}

func isSecretNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceNotFoundException"
	}
	return strings.Contains(err.Error(), "ResourceNotFoundException")
}
