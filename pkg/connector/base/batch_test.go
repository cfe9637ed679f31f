package base

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

type fakeBatcher struct {
	batches    [][]*models.Entity
	failures   []error
	committed  bool
	rolledBack error
	commitErr  error
}

func (f *fakeBatcher) WriteBatch(_ context.Context, batch []*models.Entity) error {
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeBatcher) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeBatcher) Rollback(cause error) {
	f.rolledBack = cause
}

func record(i int) *models.Entity {
	e := models.NewEntity(1)
	e.Set("i", i)
	return e
}

func TestBatchSink_Batches(t *testing.T) {
	target := &fakeBatcher{}
	sink := NewBatchSink("test", target, 2, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Write(ctx, record(i)))
	}
	assert.Len(t, target.batches, 2)
	require.NoError(t, sink.Close(ctx))

	require.Len(t, target.batches, 3)
	assert.Len(t, target.batches[2], 1)
	assert.True(t, target.committed)
	assert.EqualValues(t, 5, sink.Written())
	require.NoError(t, sink.Close(ctx))
}

func TestBatchSink_RejectsUnkeyedValues(t *testing.T) {
	sink := NewBatchSink("test", &fakeBatcher{}, 2, nil, nil)
	err := sink.Write(context.Background(), "text")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
}

func TestBatchSink_RetriesConnectionErrors(t *testing.T) {
	target := &fakeBatcher{failures: []error{
		errors.New(errors.ErrorTypeConnection, "reset"),
	}}
	sink := NewBatchSink("test", target, 1, NewRetryPolicy(3, time.Millisecond), nil)

	require.NoError(t, sink.Write(context.Background(), record(1)))
	assert.Len(t, target.batches, 1)
}

func TestBatchSink_DoesNotRetryOtherErrors(t *testing.T) {
	cause := fmt.Errorf("constraint violated")
	target := &fakeBatcher{failures: []error{cause}}
	sink := NewBatchSink("test", target, 1, NewRetryPolicy(3, time.Millisecond), nil)

	err := sink.Write(context.Background(), record(1))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, target.batches)
}

func TestBatchSink_FailedFinalFlushRollsBack(t *testing.T) {
	cause := fmt.Errorf("boom")
	target := &fakeBatcher{failures: []error{cause}}
	sink := NewBatchSink("test", target, 10, nil, nil)

	require.NoError(t, sink.Write(context.Background(), record(1)))
	err := sink.Close(context.Background())
	require.Error(t, err)
	assert.False(t, target.committed)
	assert.Equal(t, err, target.rolledBack)
}

func TestBatchSink_CommitError(t *testing.T) {
	target := &fakeBatcher{commitErr: fmt.Errorf("commit")}
	err := NewBatchSink("test", target, 10, nil, nil).Close(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
}

func TestBatchSink_Abort(t *testing.T) {
	target := &fakeBatcher{}
	sink := NewBatchSink("test", target, 10, nil, nil)
	require.NoError(t, sink.Write(context.Background(), record(1)))

	cause := fmt.Errorf("upstream failed")
	sink.Abort(cause)
	assert.Equal(t, cause, target.rolledBack)
	assert.Empty(t, target.batches)

	require.NoError(t, sink.Close(context.Background()))
	assert.False(t, target.committed)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := NewRetryPolicy(3, time.Hour).Execute(ctx, func() error {
		calls++
		return errors.New(errors.ErrorTypeTimeout, "slow")
	}, errors.IsRetryable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := NewRetryPolicy(3, time.Millisecond).Execute(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrorTypeTimeout, "slow")
	}, errors.IsRetryable)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}
