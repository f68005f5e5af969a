package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ewarisk/internal/circuitbreaker"
	"github.com/mbd888/ewarisk/internal/contract"
)

type flaky struct {
	*Artifact
	err   error
	calls int
}

func (f *flaky) PredictProbability(ctx context.Context, fv contract.FeatureVector) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.Artifact.PredictProbability(ctx, fv)
}

func TestGuarded_PassesThrough(t *testing.T) {
	m, err := Default(contract.WithdrawalV1)
	require.NoError(t, err)
	g := NewGuarded(m, circuitbreaker.New(2, time.Minute))

	assert.Equal(t, m.Name(), g.Name())
	assert.Equal(t, m.ContractVersion(), g.ContractVersion())
	assert.Equal(t, m.FeatureNames(), g.FeatureNames())

	want, err := m.PredictProbability(context.Background(), v1Vector(t, nil))
	require.NoError(t, err)
	got, err := g.PredictProbability(context.Background(), v1Vector(t, nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	m, err := Default(contract.WithdrawalV1)
	require.NoError(t, err)
	inner := &flaky{Artifact: m, err: errors.New("model server down")}
	g := NewGuarded(inner, circuitbreaker.New(2, time.Minute))
	fv := v1Vector(t, nil)

	for i := 0; i < 2; i++ {
		_, err := g.PredictProbability(context.Background(), fv)
		assert.EqualError(t, err, "model server down")
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	_, err = g.PredictProbability(context.Background(), fv)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestGuarded_CancellationDoesNotTrip(t *testing.T) {
	m, err := Default(contract.WithdrawalV1)
	require.NoError(t, err)
	g := NewGuarded(m, circuitbreaker.New(1, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.PredictProbability(ctx, v1Vector(t, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
}
