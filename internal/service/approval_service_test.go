package service

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func historyActions(req *model.ApprovalRequest) []string {
	out := make([]string, 0, len(req.History))
	for _, h := range req.History {
		out = append(out, h.Action)
	}
	return out
}

func TestApprovalRoundTripUpdatesBrand(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 5, "Old Name")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:   model.RequestTypeUpdate,
		EntityType:    "brand",
		EntityID:      uintPtr(5),
		ProposedData:  model.JSONB{"name": "New Name", "is_active": "false"},
		RequestReason: "rebrand",
		RequestedBy:   f.vendor.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, req.Status)
	assert.False(t, req.IsApplied)
	assert.Equal(t, "Old Name", req.CurrentData["name"])
	assert.Equal(t, "update brand #5: is_active, name", req.ChangeSummary)

	// nothing reaches the entity table while pending
	assert.Equal(t, "Old Name", f.brand(t, 5).Name)

	reviewed, err := f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewApprove, Remarks: "ok"})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, reviewed.Status)
	assert.True(t, reviewed.IsApplied)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, f.manager.ID, *reviewed.ReviewedBy)
	assert.Equal(t, []string{model.HistorySubmitted, model.HistoryApproved, model.HistoryApplied}, historyActions(reviewed))

	b := f.brand(t, 5)
	assert.Equal(t, "New Name", b.Name)
	assert.Equal(t, "new-name", b.Slug)
	assert.False(t, b.IsActive)

	var audits int64
	require.NoError(t, f.db.Model(&model.AuditLog{}).
		Where("table_name = ? AND record_id = ? AND action = ?", "brands", "5", model.AuditActionUpdate).
		Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestApprovalNotifiesReviewersAndRequester(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 1, "Acme")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(1),
		ProposedData: model.JSONB{"description": "pharma"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	for _, u := range []model.User{f.admin, f.manager} {
		n, err := f.notifications.UnreadCount(f.ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, u.Username)
		assert.Equal(t, 1, f.pusher.count(u.ID), u.Username)
	}
	n, err := f.notifications.UnreadCount(f.ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewReject, Remarks: "no"})
	require.NoError(t, err)

	items, total, err := f.notifications.List(f.ctx, f.vendor.ID, true, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, model.NotificationRejected, items[0].Type)
	assert.Equal(t, req.ID, items[0].ApprovalRequestID)
	assert.Equal(t, 1, f.pusher.count(f.vendor.ID))
}

func TestApprovalCreateIsAppliedOnce(t *testing.T) {
	f := newFixture(t)

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeCreate,
		EntityType:   "brand",
		ProposedData: model.JSONB{"name": "Fresh Brand"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, req.EntityID)
	assert.Zero(t, f.count(t, &model.Brand{}))

	reviewed, err := f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewApprove})
	require.NoError(t, err)
	require.True(t, reviewed.IsApplied)
	require.NotNil(t, reviewed.EntityID)
	assert.Equal(t, int64(1), f.count(t, &model.Brand{}))

	_, err = f.approvals.Apply(f.ctx, req.ID, f.manager.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyApplied)
	assert.Equal(t, int64(1), f.count(t, &model.Brand{}))

	b := f.brand(t, *reviewed.EntityID)
	assert.Equal(t, "fresh-brand", b.Slug)
	assert.True(t, b.IsActive)
}

func TestApplyRequiresApprovedRequest(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 3, "Steady")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(3),
		ProposedData: model.JSONB{"name": "Changed"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	_, err = f.approvals.Apply(f.ctx, req.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
	assert.Equal(t, "Steady", f.brand(t, 3).Name)

	got, err := f.approvals.Get(f.ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, got.IsApplied)
}

func TestRejectLeavesEntityUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 8, "Keep Me")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType: model.RequestTypeDelete,
		EntityType:  "brand",
		EntityID:    uintPtr(8),
		RequestedBy: f.vendor.ID,
	})
	require.NoError(t, err)

	reviewed, err := f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{
		Action:    ReviewReject,
		FinalData: model.JSONB{"name": "ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, reviewed.Status)
	assert.False(t, reviewed.IsApplied)
	assert.Equal(t, "ignored", reviewed.FinalData["name"])
	assert.Equal(t, []string{model.HistorySubmitted, model.HistoryModified, model.HistoryRejected}, historyActions(reviewed))

	assert.Equal(t, "Keep Me", f.brand(t, 8).Name)

	_, err = f.approvals.Apply(f.ctx, req.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestReviewerFinalDataWins(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 2, "Draft")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(2),
		ProposedData: model.JSONB{"name": "Proposed"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	reviewed, err := f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{
		Action:    ReviewApprove,
		FinalData: model.JSONB{"name": "Reviewed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Reviewed", reviewed.FinalData["name"])
	assert.Equal(t, "Proposed", reviewed.ProposedData["name"])
	assert.Equal(t,
		[]string{model.HistorySubmitted, model.HistoryModified, model.HistoryApproved, model.HistoryApplied},
		historyActions(reviewed))

	modified := reviewed.History[1].DataSnapshot
	assert.Contains(t, modified, "original")
	assert.Contains(t, modified, "final")

	assert.Equal(t, "Reviewed", f.brand(t, 2).Name)
}

func TestReviewOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 4, "Once")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(4),
		ProposedData: model.JSONB{"description": "x"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	_, err = f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewApprove})
	require.NoError(t, err)

	_, err = f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewReject})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.approvals.Review(f.ctx, 999, f.manager.ID, ReviewInput{Action: ReviewApprove})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCancelByRequesterOnly(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 6, "Cancellable")

	req, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(6),
		ProposedData: model.JSONB{"name": "Never"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	_, err = f.approvals.Cancel(f.ctx, req.ID, f.manager.ID, "not mine")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	cancelled, err := f.approvals.Cancel(f.ctx, req.ID, f.vendor.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)

	_, err = f.approvals.Cancel(f.ctx, req.ID, f.vendor.ID, "again")
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = f.approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewApprove})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	assert.Equal(t, "Cancellable", f.brand(t, 6).Name)
}

func TestCreateApprovalValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   CreateApprovalInput
		want error
	}{
		{"unknown entity", CreateApprovalInput{RequestType: model.RequestTypeCreate, EntityType: "widget", ProposedData: model.JSONB{"name": "x"}}, apperror.ErrValidation},
		{"unknown request type", CreateApprovalInput{RequestType: "merge", EntityType: "brand"}, apperror.ErrValidation},
		{"create without name", CreateApprovalInput{RequestType: model.RequestTypeCreate, EntityType: "brand", ProposedData: model.JSONB{"description": "x"}}, apperror.ErrValidation},
		{"update without id", CreateApprovalInput{RequestType: model.RequestTypeUpdate, EntityType: "brand", ProposedData: model.JSONB{"name": "x"}}, apperror.ErrValidation},
		{"update of missing row", CreateApprovalInput{RequestType: model.RequestTypeUpdate, EntityType: "brand", EntityID: uintPtr(42), ProposedData: model.JSONB{"name": "x"}}, apperror.ErrNotFound},
		{"delete without id", CreateApprovalInput{RequestType: model.RequestTypeDelete, EntityType: "salt"}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.RequestedBy = f.vendor.ID
			_, err := f.approvals.Create(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.approvals.PendingCount(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListApprovalsFilters(t *testing.T) {
	f := newFixture(t)
	f.seedBrand(t, 1, "One")

	_, err := f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType: model.RequestTypeCreate, EntityType: "brand",
		ProposedData: model.JSONB{"name": "Two"}, RequestedBy: f.vendor.ID,
	})
	require.NoError(t, err)
	_, err = f.approvals.Create(f.ctx, CreateApprovalInput{
		RequestType: model.RequestTypeDelete, EntityType: "brand",
		EntityID: uintPtr(1), RequestedBy: f.manager.ID,
	})
	require.NoError(t, err)

	all, total, err := f.approvals.List(f.ctx, repository.ApprovalFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	mine, total, err := f.approvals.List(f.ctx, repository.ApprovalFilter{RequestedBy: &f.vendor.ID, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.RequestTypeCreate, mine[0].RequestType)

	_, total, err = f.approvals.List(f.ctx, repository.ApprovalFilter{RequestType: model.RequestTypeDelete, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	n, err := f.approvals.PendingCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

type failingReviewerNotifier struct {
	NotificationService
}

func (failingReviewerNotifier) NotifyReviewers(context.Context, *model.ApprovalRequest) ([]model.ApprovalNotification, error) {
	return nil, errors.New("notification insert failed")
}

func TestAutoApplyFailureKeepsDecision(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	approvals := NewApprovalService(repository.NewTransactionManager(f.db), repository.NewApprovalRepository(f.db),
		f.registry, f.notifications, f.audit, "", zap.New(core))
	f.seedBrand(t, 5, "Vanishing")

	req, err := approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeUpdate,
		EntityType:   "brand",
		EntityID:     uintPtr(5),
		ProposedData: model.JSONB{"name": "Renamed"},
		RequestedBy:  f.vendor.ID,
	})
	require.NoError(t, err)

	// the target disappears between submission and review
	require.NoError(t, f.db.Delete(&model.Brand{}, 5).Error)

	reviewed, err := approvals.Review(f.ctx, req.ID, f.manager.ID, ReviewInput{Action: ReviewApprove})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, reviewed.Status)
	assert.False(t, reviewed.IsApplied)
	assert.Equal(t, []string{model.HistorySubmitted, model.HistoryApproved}, historyActions(reviewed))
	require.Equal(t, 1, logs.FilterMessage("auto-apply after approval failed").Len())

	_, err = approvals.Apply(f.ctx, req.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.db.Unscoped().Model(&model.Brand{}).Where("id = ?", 5).Update("deleted_at", nil).Error)

	applied, err := approvals.Apply(f.ctx, req.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", applied["name"])
	assert.Equal(t, "Renamed", f.brand(t, 5).Name)

	got, err := approvals.Get(f.ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, got.IsApplied)
	assert.Equal(t, []string{model.HistorySubmitted, model.HistoryApproved, model.HistoryApplied}, historyActions(got))
}

func TestCreateApprovalIsAtomicWithNotifications(t *testing.T) {
	f := newFixture(t)
	approvals := NewApprovalService(repository.NewTransactionManager(f.db), repository.NewApprovalRepository(f.db),
		f.registry, failingReviewerNotifier{f.notifications}, f.audit, "", zap.NewNop())

	_, err := approvals.Create(f.ctx, CreateApprovalInput{
		RequestType:  model.RequestTypeCreate,
		EntityType:   "brand",
		ProposedData: model.JSONB{"name": "Never Filed"},
		RequestedBy:  f.vendor.ID,
	})
	require.Error(t, err)

	assert.Zero(t, f.count(t, &model.ApprovalRequest{}))
	assert.Zero(t, f.count(t, &model.ApprovalHistory{}))
	assert.Zero(t, f.count(t, &model.ApprovalNotification{}))
	assert.Zero(t, f.pusher.count(f.manager.ID))
}
