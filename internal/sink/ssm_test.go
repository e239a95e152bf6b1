package sink

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

type fakeSSM struct {
	getFn func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
	putFn func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error)
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return f.getFn(ctx, in)
}

func (f *fakeSSM) PutParameter(ctx context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	return f.putFn(ctx, in)
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: "ParameterNotFound", Message: "not found"}
}

func TestSSMDispatchCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	var putCalled bool
	client := &fakeSSM{
		getFn: func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return nil, notFoundErr()
		},
		putFn: func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			putCalled = true
			assert.False(t, *in.Overwrite)
			return &ssm.PutParameterOutput{Version: 1}, nil
		},
	}
	s := &SSMSink{name: "ssm", client: client, paramType: types.ParameterTypeSecureString, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "/x", Value: "v"}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.True(t, putCalled)
	assert.Equal(t, pkgsink.Created, ev.Outcome)
}

func TestSSMDispatchUnchangedWhenSameValue(t *testing.T) {
	t.Parallel()

	client := &fakeSSM{
		getFn: func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("v")}}, nil
		},
		putFn: func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			t.Fatal("PutParameter should not be called for unchanged value")
			return nil, nil
		},
	}
	s := &SSMSink{name: "ssm", client: client, paramType: types.ParameterTypeSecureString, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "/x", Value: "v"}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.Equal(t, pkgsink.Unchanged, ev.Outcome)
}

func TestSSMDispatchFailsWithoutOverwrite(t *testing.T) {
	t.Parallel()

	client := &fakeSSM{
		getFn: func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("old")}}, nil
		},
		putFn: func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			t.Fatal("PutParameter should not be called when overwrite is false")
			return nil, nil
		},
	}
	s := &SSMSink{name: "ssm", client: client, paramType: types.ParameterTypeSecureString, overwrite: false, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "/x", Value: "new"}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.Equal(t, pkgsink.Failed, ev.Outcome)
	assert.Equal(t, pkgsink.ReasonExists, ev.Reason)
}

func TestSSMDispatchPromotesTierOverThreshold(t *testing.T) {
	t.Parallel()

	bigValue := make([]byte, ssmAdvancedTierThreshold+1)
	for i := range bigValue {
		bigValue[i] = 'a'
	}

	var sawTier types.ParameterTier
	client := &fakeSSM{
		getFn: func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return nil, notFoundErr()
		},
		putFn: func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			sawTier = in.Tier
			return &ssm.PutParameterOutput{Version: 1}, nil
		},
	}
	s := &SSMSink{name: "ssm", client: client, paramType: types.ParameterTypeSecureString, concurrency: 2, rateLimit: 1000}

	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "/x", Value: string(bigValue)}}, pkgsink.DispatchOptions{})
	ev := <-events
	require.Equal(t, pkgsink.Created, ev.Outcome)
	assert.Equal(t, types.ParameterTierAdvanced, sawTier)
}

func TestSSMDispatchOversizeFailsWithoutWrite(t *testing.T) {
	t.Parallel()

	client := &fakeSSM{
		getFn: func(ctx context.Context, in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			t.Fatal("GetParameter should not be called for an oversize value")
			return nil, nil
		},
		putFn: func(ctx context.Context, in *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			t.Fatal("PutParameter should not be called for an oversize value")
			return nil, nil
		},
	}
	s := &SSMSink{name: "ssm", client: client, paramType: types.ParameterTypeSecureString, concurrency: 2, rateLimit: 1000}

	bigValue := make([]byte, ssmMaxValueBytes+1)
	events := s.Dispatch(context.Background(), []pkgsink.Record{{FullName: "/x", Value: string(bigValue)}}, pkgsink.DispatchOptions{})
	ev := <-events
	assert.Equal(t, pkgsink.Failed, ev.Outcome)
	assert.Equal(t, pkgsink.ReasonTooLarge, ev.Reason)
}
