package settlement

import (
	"context"
	"fmt"
	"testing"

	"creatorhub-settlement/services/policy"

	"github.com/stretchr/testify/require"
)

func TestEvaluateNotYetBelowThreshold(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	var last *Submission
	for i := 1; i <= 3; i++ {
		last = seedSubmission(t, db, fmt.Sprintf("sub-%d", i), "camp-1", "creator-1", approvedDaysAgo(10-i))
	}

	e := NewEvaluator(db)
	dec, err := e.Evaluate(ctx, *last, policy.Policy{RequiredUnits: 4})
	require.NoError(t, err)
	require.Equal(t, NotYet, dec.Kind)
	require.Empty(t, dec.Batch)
}

func TestEvaluateSettleNowAtThreshold(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	var first *Submission
	for i := 1; i <= 4; i++ {
		s := seedSubmission(t, db, fmt.Sprintf("sub-%d", i), "camp-1", "creator-1", approvedDaysAgo(10-i))
		if first == nil {
			first = s
		}
	}

	e := NewEvaluator(db)
	dec, err := e.Evaluate(ctx, *first, policy.Policy{RequiredUnits: 4})
	require.NoError(t, err)
	require.Equal(t, SettleNow, dec.Kind)
	require.Len(t, dec.Batch, 4)
}

func TestEvaluateSeenPairShortCircuits(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	a := seedSubmission(t, db, "sub-1", "camp-1", "creator-1", approvedDaysAgo(9))
	b := seedSubmission(t, db, "sub-2", "camp-1", "creator-1", approvedDaysAgo(8))

	e := NewEvaluator(db)
	pol := policy.Policy{RequiredUnits: 2}

	dec, err := e.Evaluate(ctx, *a, pol)
	require.NoError(t, err)
	require.Equal(t, SettleNow, dec.Kind)

	dec, err = e.Evaluate(ctx, *b, pol)
	require.NoError(t, err)
	require.Equal(t, AlreadyHandled, dec.Kind)
}

func TestEvaluateBatchHoldsOnlyUnsettledUnits(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	seedSettledSubmission(t, db, "sub-1", "camp-1", "creator-1", approvedDaysAgo(20))
	seedSettledSubmission(t, db, "sub-2", "camp-1", "creator-1", approvedDaysAgo(18))
	seedSubmission(t, db, "sub-3", "camp-1", "creator-1", approvedDaysAgo(9))
	fresh := seedSubmission(t, db, "sub-4", "camp-1", "creator-1", approvedDaysAgo(8))

	e := NewEvaluator(db)
	dec, err := e.Evaluate(ctx, *fresh, policy.Policy{RequiredUnits: 4})
	require.NoError(t, err)
	require.Equal(t, SettleNow, dec.Kind)
	require.Len(t, dec.Batch, 2)
	for _, sub := range dec.Batch {
		require.Nil(t, sub.SettledAt)
	}
}

func TestEvaluateAlreadyHandledWhenFullySettled(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	seedSettledSubmission(t, db, "sub-1", "camp-1", "creator-1", approvedDaysAgo(20))
	settled := seedSettledSubmission(t, db, "sub-2", "camp-1", "creator-1", approvedDaysAgo(18))

	e := NewEvaluator(db)
	dec, err := e.Evaluate(ctx, *settled, policy.Policy{RequiredUnits: 2})
	require.NoError(t, err)
	require.Equal(t, AlreadyHandled, dec.Kind)
}

func TestEvaluateDistinctPairsTrackedSeparately(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	a := seedSubmission(t, db, "sub-1", "camp-1", "creator-1", approvedDaysAgo(9))
	b := seedSubmission(t, db, "sub-2", "camp-2", "creator-1", approvedDaysAgo(9))

	e := NewEvaluator(db)
	pol := policy.Policy{RequiredUnits: 1}

	dec, err := e.Evaluate(ctx, *a, pol)
	require.NoError(t, err)
	require.Equal(t, SettleNow, dec.Kind)

	dec, err = e.Evaluate(ctx, *b, pol)
	require.NoError(t, err)
	require.Equal(t, SettleNow, dec.Kind)
}
