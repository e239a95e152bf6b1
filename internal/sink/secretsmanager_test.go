package sink

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

type fakeSecretsManager struct {
	describeFn func(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error)
	getFn      func(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	createFn   func(ctx context.Context, in *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error)
	putFn      func(ctx context.Context, in *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error)
	updateFn   func(ctx context.Context, in *secretsmanager.UpdateSecretInput) (*secretsmanager.UpdateSecretOutput, error)
}

func (f *fakeSecretsManager) DescribeSecret(ctx context.Context, in *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	return f.describeFn(ctx, in)
}
func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.getFn(ctx, in)
}
func (f *fakeSecretsManager) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	return f.createFn(ctx, in)
}
func (f *fakeSecretsManager) PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	return f.putFn(ctx, in)
}
func (f *fakeSecretsManager) UpdateSecret(ctx context.Context, in *secretsmanager.UpdateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error) {
	return f.updateFn(ctx, in)
}

func secretNotFoundErr() error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}
}

func TestSecretsManagerCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	var created bool
	client := &fakeSecretsManager{
		describeFn: func(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
			return nil, secretNotFoundErr()
		},
		createFn: func(ctx context.Context, in *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error) {
			created = true
			return &secretsmanager.CreateSecretOutput{}, nil
		},
	}
	s := &SecretsManagerSink{name: "sm", client: client, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "x", Value: "v"}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.True(t, created)
	assert.Equal(t, pkgsink.Created, ev.Outcome)
}

func TestSecretsManagerUnchangedWhenSameValueAndDescription(t *testing.T) {
	t.Parallel()

	client := &fakeSecretsManager{
		describeFn: func(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
			return &secretsmanager.DescribeSecretOutput{Description: aws.String("d")}, nil
		},
		getFn: func(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("v")}, nil
		},
	}
	s := &SecretsManagerSink{name: "sm", client: client, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "x", Value: "v", Description: "d"}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.Equal(t, pkgsink.Unchanged, ev.Outcome)
}

func TestSecretsManagerUsesPutSecretValueForPureRotation(t *testing.T) {
	t.Parallel()

	var putCalled, updateCalled bool
	client := &fakeSecretsManager{
		describeFn: func(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
			return &secretsmanager.DescribeSecretOutput{}, nil
		},
		getFn: func(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("old")}, nil
		},
		putFn: func(ctx context.Context, in *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error) {
			putCalled = true
			return &secretsmanager.PutSecretValueOutput{}, nil
		},
		updateFn: func(ctx context.Context, in *secretsmanager.UpdateSecretInput) (*secretsmanager.UpdateSecretOutput, error) {
			updateCalled = true
			return &secretsmanager.UpdateSecretOutput{}, nil
		},
	}
	s := &SecretsManagerSink{name: "sm", client: client, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "x", Value: "new"}}, pkgsink.DispatchOptions{})
	ev := <-events
	require.Equal(t, pkgsink.Changed, ev.Outcome)
	assert.True(t, putCalled)
	assert.False(t, updateCalled)
}

func TestSecretsManagerUsesUpdateSecretWhenKMSKeyConfigured(t *testing.T) {
	t.Parallel()

	var putCalled, updateCalled bool
	client := &fakeSecretsManager{
		describeFn: func(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
			return &secretsmanager.DescribeSecretOutput{}, nil
		},
		getFn: func(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("old")}, nil
		},
		putFn: func(ctx context.Context, in *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error) {
			putCalled = true
			return &secretsmanager.PutSecretValueOutput{}, nil
		},
		updateFn: func(ctx context.Context, in *secretsmanager.UpdateSecretInput) (*secretsmanager.UpdateSecretOutput, error) {
			updateCalled = true
			assert.Equal(t, "arn:aws:kms:key", *in.KmsKeyId)
			return &secretsmanager.UpdateSecretOutput{}, nil
		},
	}
	s := &SecretsManagerSink{name: "sm", client: client, kmsKeyID: "arn:aws:kms:key", concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "x", Value: "new"}}, pkgsink.DispatchOptions{})
	ev := <-events
	require.Equal(t, pkgsink.Changed, ev.Outcome)
	assert.True(t, updateCalled)
	assert.False(t, putCalled)
}
