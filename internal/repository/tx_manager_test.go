package repository

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/model"
	"marketplace/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTxRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		assert.True(t, InTx(txCtx))
		require.NoError(t, GetDB(txCtx, db).Create(&model.Salt{Name: "Rolled back"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, db.Model(&model.Salt{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRunInTxJoinsOuterTransaction(t *testing.T) {
	db := testutil.NewTestDB(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	err := tm.RunInTx(ctx, func(outer context.Context) error {
		return tm.RunInTx(outer, func(inner context.Context) error {
			assert.Same(t, outer, inner)
			return GetDB(inner, db).Create(&model.Salt{Name: "Joined"}).Error
		})
	})
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Model(&model.Salt{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestWithoutTx(t *testing.T) {
	ctx := context.Background()
	assert.False(t, InTx(ctx))
	assert.Equal(t, ctx, WithoutTx(ctx))

	db := testutil.NewTestDB(t)
	tm := NewTransactionManager(db)
	require.NoError(t, tm.RunInTx(ctx, func(txCtx context.Context) error {
		assert.False(t, InTx(WithoutTx(txCtx)))
		return nil
	}))
}
