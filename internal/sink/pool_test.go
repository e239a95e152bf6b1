package sink

import (
	"context"
	"sync/atomic"
	"testing"

	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

func TestRunPoolRetriesThrottlingThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts int32
	write := func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return pkgsink.Event{}, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
		}
		return pkgsink.Event{Outcome: pkgsink.Created}, nil
	}

	events := runPool(context.Background(), "sink", []pkgsink.Record{{FullName: "x"}}, 1, 1000, write)
	ev := <-events
	assert.Equal(t, pkgsink.Created, ev.Outcome)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRunPoolDoesNotRetryNonThrottlingError(t *testing.T) {
	t.Parallel()

	var attempts int32
	write := func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error) {
		atomic.AddInt32(&attempts, 1)
		return pkgsink.Event{Outcome: pkgsink.Failed, Reason: pkgsink.ReasonAWS}, &smithy.GenericAPIError{Code: "ValidationException"}
	}

	events := runPool(context.Background(), "sink", []pkgsink.Record{{FullName: "x"}}, 1, 1000, write)
	ev := <-events
	assert.Equal(t, pkgsink.Failed, ev.Outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRunPoolEmitsOneEventPerRecord(t *testing.T) {
	t.Parallel()

	write := func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error) {
		return pkgsink.Event{Outcome: pkgsink.Created}, nil
	}

	records := make([]pkgsink.Record, 10)
	for i := range records {
		records[i] = pkgsink.Record{FullName: "x"}
	}
	events := runPool(context.Background(), "sink", records, 3, 1000, write)

	count := 0
	for range events {
		count++
	}
	assert.Equal(t, 10, count)
}

func TestIsThrottlingRecognizesKnownCodes(t *testing.T) {
	t.Parallel()

	require.True(t, isThrottling(&smithy.GenericAPIError{Code: "ThrottlingException"}))
	require.True(t, isThrottling(&smithy.GenericAPIError{Code: "TooManyRequestsException"}))
	require.False(t, isThrottling(&smithy.GenericAPIError{Code: "ValidationException"}))
}
