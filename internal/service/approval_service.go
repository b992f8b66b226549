package service

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateApprovalInput struct {
	RequestType   string      `json:"request_type" binding:"required,oneof=create update delete"`
	EntityType    string      `json:"entity_type" binding:"required"`
	EntityID      *uint       `json:"entity_id"`
	CurrentData   model.JSONB `json:"-"`
	ProposedData  model.JSONB `json:"proposed_data"`
	RequestReason string      `json:"request_reason"`
	RequestedBy   uuid.UUID   `json:"-"`
}

type ReviewInput struct {
	Action    string      `json:"action" binding:"required,oneof=approve reject"`
	Remarks   string      `json:"remarks"`
	FinalData model.JSONB `json:"final_data"`
}

type CancelInput struct {
	Reason string `json:"reason"`
}

const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// --- Interface ---

type ApprovalService interface {
	RequiresApproval(actor model.Actor) bool
	Create(ctx context.Context, in CreateApprovalInput) (*model.ApprovalRequest, error)
	Review(ctx context.Context, id uint, reviewerID uuid.UUID, in ReviewInput) (*model.ApprovalRequest, error)
	Apply(ctx context.Context, id uint, appliedBy uuid.UUID) (model.JSONB, error)
	Cancel(ctx context.Context, id uint, cancelledBy uuid.UUID, reason string) (*model.ApprovalRequest, error)

	Get(ctx context.Context, id uint) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter repository.ApprovalFilter) ([]model.ApprovalRequest, int64, error)
	PendingCount(ctx context.Context) (int64, error)
}

type approvalService struct {
	tx               repository.TransactionManager
	repo             repository.ApprovalRepository
	registry         *repository.EntityRegistry
	notifications    NotificationService
	audit            Recorder
	bypassPermission string
	log              *zap.Logger
}

func NewApprovalService(
	tx repository.TransactionManager,
	repo repository.ApprovalRepository,
	registry *repository.EntityRegistry,
	notifications NotificationService,
	audit Recorder,
	bypassPermission string,
	log *zap.Logger,
) ApprovalService {
	if bypassPermission == "" {
		bypassPermission = model.PermApprovalsBypass
	}
	return &approvalService{
		tx:               tx,
		repo:             repo,
		registry:         registry,
		notifications:    notifications,
		audit:            audit,
		bypassPermission: bypassPermission,
		log:              log,
	}
}

// --- Implementation ---

func (s *approvalService) RequiresApproval(actor model.Actor) bool {
	return !actor.HasPermission(s.bypassPermission)
}

func (s *approvalService) Create(ctx context.Context, in CreateApprovalInput) (*model.ApprovalRequest, error) {
	if err := validateRequestType(in.RequestType); err != nil {
		return nil, err
	}
	entityType, err := repository.ParseEntityType(in.EntityType)
	if err != nil {
		return nil, err
	}
	store, err := s.registry.Store(entityType)
	if err != nil {
		return nil, err
	}

	switch in.RequestType {
	case model.RequestTypeCreate:
		if err := requireName(in.ProposedData); err != nil {
			return nil, err
		}
	case model.RequestTypeUpdate:
		if in.EntityID == nil {
			return nil, apperror.Validation("entity_id is required for %s requests", in.RequestType)
		}
		if len(in.ProposedData) == 0 {
			return nil, apperror.Validation("proposed_data is required for update requests")
		}
	case model.RequestTypeDelete:
		if in.EntityID == nil {
			return nil, apperror.Validation("entity_id is required for %s requests", in.RequestType)
		}
	}

	proposed := in.ProposedData.Clone()
	if proposed == nil {
		proposed = model.JSONB{}
	}

	var current model.JSONB
	entityID := in.EntityID
	if in.RequestType == model.RequestTypeCreate {
		entityID = nil
	} else if current = in.CurrentData; current == nil {
		current, err = store.FindByID(ctx, *entityID)
		if err != nil {
			return nil, notFoundOr(err, "%s %d not found", entityType, *entityID)
		}
	}

	req := &model.ApprovalRequest{
		RequestType:   in.RequestType,
		EntityType:    string(entityType),
		EntityID:      entityID,
		CurrentData:   current,
		ProposedData:  proposed,
		ChangeSummary: changeSummary(in.RequestType, string(entityType), entityID, current, proposed),
		RequestReason: in.RequestReason,
		Status:        model.ApprovalPending,
		IsApplied:     false,
		RequestedBy:   in.RequestedBy,
	}

	var sent []model.ApprovalNotification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create approval request: %w", err)
		}
		if err := s.repo.CreateHistory(txCtx, &model.ApprovalHistory{
			ApprovalRequestID: req.ID,
			Action:            model.HistorySubmitted,
			ToStatus:          model.ApprovalPending,
			DataSnapshot:      proposed,
			Remarks:           in.RequestReason,
			ActorID:           in.RequestedBy,
		}); err != nil {
			return fmt.Errorf("failed to write approval history: %w", err)
		}
		var nerr error
		sent, nerr = s.notifications.NotifyReviewers(txCtx, req)
		return nerr
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Push(sent)
	s.recordRequest(ctx, req, model.AuditActionCreate, nil, in.RequestedBy)
	return req, nil
}

func (s *approvalService) Review(ctx context.Context, id uint, reviewerID uuid.UUID, in ReviewInput) (*model.ApprovalRequest, error) {
	if in.Action != ReviewApprove && in.Action != ReviewReject {
		return nil, apperror.Validation("action must be %q or %q", ReviewApprove, ReviewReject)
	}

	var req *model.ApprovalRequest
	var before model.JSONB
	var sent []model.ApprovalNotification
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "approval request %d not found", id)
		}
		if req.Status != model.ApprovalPending {
			return apperror.InvalidState("approval request %d is already %s", id, req.Status)
		}
		before = requestSnapshot(req)

		final := req.ProposedData
		// a reviewer edit is kept for the record on reject as well
		if in.FinalData != nil && !reflect.DeepEqual(in.FinalData, req.ProposedData) {
			if err := s.repo.CreateHistory(txCtx, &model.ApprovalHistory{
				ApprovalRequestID: req.ID,
				Action:            model.HistoryModified,
				FromStatus:        model.ApprovalPending,
				ToStatus:          model.ApprovalPending,
				DataSnapshot: model.JSONB{
					"original": map[string]interface{}(req.ProposedData),
					"final":    map[string]interface{}(in.FinalData),
				},
				Remarks: "final data modified by reviewer",
				ActorID: reviewerID,
			}); err != nil {
				return fmt.Errorf("failed to write approval history: %w", err)
			}
			final = in.FinalData.Clone()
		}

		now := time.Now()
		action := model.HistoryApproved
		req.Status = model.ApprovalApproved
		req.FinalData = final
		if in.Action == ReviewReject {
			action = model.HistoryRejected
			req.Status = model.ApprovalRejected
		}
		req.ReviewedBy = &reviewerID
		req.ReviewedAt = &now
		req.ReviewerRemarks = in.Remarks

		if err := s.repo.Update(txCtx, req); err != nil {
			return fmt.Errorf("failed to update approval request: %w", err)
		}
		if err := s.repo.CreateHistory(txCtx, &model.ApprovalHistory{
			ApprovalRequestID: req.ID,
			Action:            action,
			FromStatus:        model.ApprovalPending,
			ToStatus:          req.Status,
			DataSnapshot:      final,
			Remarks:           in.Remarks,
			ActorID:           reviewerID,
		}); err != nil {
			return fmt.Errorf("failed to write approval history: %w", err)
		}

		sent, err = s.notifications.NotifyRequester(txCtx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Push(sent)
	s.recordRequest(ctx, req, model.AuditActionUpdate, before, reviewerID)

	if req.Status == model.ApprovalApproved {
		if _, err := s.Apply(ctx, req.ID, reviewerID); err != nil {
			// the decision stands; is_applied stays false until a manual apply
			s.log.Error("auto-apply after approval failed",
				zap.Uint("approval_request_id", req.ID),
				zap.String("entity_type", req.EntityType),
				zap.String("request_type", req.RequestType),
				zap.Error(err),
			)
		}
	}

	return s.Get(ctx, req.ID)
}

func (s *approvalService) Apply(ctx context.Context, id uint, appliedBy uuid.UUID) (model.JSONB, error) {
	ctx, span := tracer.Start(ctx, "approval.apply")
	defer span.End()
	span.SetAttributes(attribute.Int64("approval.id", int64(id)))

	var (
		req     *model.ApprovalRequest
		change  entityChange
		reqPrev model.JSONB
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "approval request %d not found", id)
		}
		if req.Status != model.ApprovalApproved {
			return apperror.InvalidState("approval request %d is %s, only approved requests can be applied", id, req.Status)
		}
		if req.IsApplied {
			return apperror.AlreadyApplied("approval request %d has already been applied", id)
		}
		reqPrev = requestSnapshot(req)

		entityType, err := repository.ParseEntityType(req.EntityType)
		if err != nil {
			return err
		}
		store, err := s.registry.Store(entityType)
		if err != nil {
			return err
		}

		payload := req.FinalData
		if payload == nil {
			payload = req.ProposedData
		}
		change, err = applyEntityChange(txCtx, store, req.RequestType, req.EntityID, payload)
		if err != nil {
			return err
		}

		now := time.Now()
		if req.RequestType == model.RequestTypeCreate {
			newID := change.ID
			req.EntityID = &newID
		}
		req.IsApplied = true
		req.AppliedAt = &now
		req.AppliedBy = &appliedBy
		if err := s.repo.Update(txCtx, req); err != nil {
			return fmt.Errorf("failed to mark approval request applied: %w", err)
		}

		return s.repo.CreateHistory(txCtx, &model.ApprovalHistory{
			ApprovalRequestID: req.ID,
			Action:            model.HistoryApplied,
			FromStatus:        model.ApprovalApproved,
			ToStatus:          model.ApprovalApproved,
			DataSnapshot:      change.After,
			ActorID:           appliedBy,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Table:     change.Table,
		RecordID:  fmt.Sprint(change.ID),
		Action:    auditAction(req.RequestType),
		OldValues: change.Before,
		NewValues: change.After,
		ActorID:   &appliedBy,
	})
	s.recordRequest(ctx, req, model.AuditActionUpdate, reqPrev, appliedBy)

	return change.After, nil
}

func (s *approvalService) Cancel(ctx context.Context, id uint, cancelledBy uuid.UUID, reason string) (*model.ApprovalRequest, error) {
	var req *model.ApprovalRequest
	var before model.JSONB
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "approval request %d not found", id)
		}
		if req.Status != model.ApprovalPending {
			return apperror.InvalidState("approval request %d is already %s", id, req.Status)
		}
		if req.RequestedBy != cancelledBy {
			return apperror.Forbidden("only the requester can cancel approval request %d", id)
		}
		before = requestSnapshot(req)

		req.Status = model.ApprovalCancelled
		req.CancelReason = reason
		if err := s.repo.Update(txCtx, req); err != nil {
			return fmt.Errorf("failed to cancel approval request: %w", err)
		}
		return s.repo.CreateHistory(txCtx, &model.ApprovalHistory{
			ApprovalRequestID: req.ID,
			Action:            model.HistoryCancelled,
			FromStatus:        model.ApprovalPending,
			ToStatus:          model.ApprovalCancelled,
			Remarks:           reason,
			ActorID:           cancelledBy,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordRequest(ctx, req, model.AuditActionUpdate, before, cancelledBy)
	return req, nil
}

func (s *approvalService) Get(ctx context.Context, id uint) (*model.ApprovalRequest, error) {
	req, err := s.repo.FindWithHistory(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "approval request %d not found", id)
	}
	return req, nil
}

func (s *approvalService) List(ctx context.Context, filter repository.ApprovalFilter) ([]model.ApprovalRequest, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval requests: %w", err)
	}
	return items, total, nil
}

func (s *approvalService) PendingCount(ctx context.Context) (int64, error) {
	return s.repo.CountByStatus(ctx, model.ApprovalPending)
}

func (s *approvalService) recordRequest(ctx context.Context, req *model.ApprovalRequest, action string, before model.JSONB, actor uuid.UUID) {
	s.audit.Record(ctx, AuditEvent{
		Table:     "approval_requests",
		RecordID:  fmt.Sprint(req.ID),
		Action:    action,
		OldValues: before,
		NewValues: requestSnapshot(req),
		ActorID:   &actor,
	})
}

// --- Helpers ---

// entityChange is the outcome of one create/update/delete on the entity store.
type entityChange struct {
	Table  string
	ID     uint
	Before model.JSONB
	After  model.JSONB
}

// applyEntityChange normalizes payload and runs it against store. It is
// shared by approval apply and the direct catalog path so both write rows
// the same way.
func applyEntityChange(ctx context.Context, store repository.EntityStore, requestType string, entityID *uint, payload model.JSONB) (entityChange, error) {
	change := entityChange{Table: store.Table()}
	entityType := store.Type()

	switch requestType {
	case model.RequestTypeCreate:
		data, err := normalizePayload(ctx, store, requestType, 0, payload)
		if err != nil {
			return change, err
		}
		if err := requireName(data); err != nil {
			return change, err
		}
		after, newID, err := store.Create(ctx, data)
		if err != nil {
			return change, fmt.Errorf("failed to create %s: %w", entityType, err)
		}
		change.ID, change.After = newID, after

	case model.RequestTypeUpdate:
		if entityID == nil {
			return change, apperror.Validation("entity_id is required for update")
		}
		before, err := store.FindByID(ctx, *entityID)
		if err != nil {
			return change, notFoundOr(err, "%s %d not found", entityType, *entityID)
		}
		data, err := normalizePayload(ctx, store, requestType, *entityID, payload)
		if err != nil {
			return change, err
		}
		after, err := store.Update(ctx, *entityID, data)
		if err != nil {
			return change, notFoundOr(err, "%s %d not found", entityType, *entityID)
		}
		change.ID, change.Before, change.After = *entityID, before, after

	case model.RequestTypeDelete:
		if entityID == nil {
			return change, apperror.Validation("entity_id is required for delete")
		}
		before, err := store.FindByID(ctx, *entityID)
		if err != nil {
			return change, notFoundOr(err, "%s %d not found", entityType, *entityID)
		}
		if err := store.Delete(ctx, *entityID); err != nil {
			return change, notFoundOr(err, "%s %d not found", entityType, *entityID)
		}
		change.ID, change.Before = *entityID, before

	default:
		return change, apperror.Validation("unknown request type %q", requestType)
	}

	return change, nil
}

func validateRequestType(t string) error {
	switch t {
	case model.RequestTypeCreate, model.RequestTypeUpdate, model.RequestTypeDelete:
		return nil
	}
	return apperror.Validation("unknown request type %q", t)
}

func requireName(data model.JSONB) error {
	name, _ := data["name"].(string)
	if strings.TrimSpace(name) == "" {
		return apperror.Validation("name is required")
	}
	return nil
}

func auditAction(requestType string) string {
	switch requestType {
	case model.RequestTypeCreate:
		return model.AuditActionCreate
	case model.RequestTypeDelete:
		return model.AuditActionDelete
	default:
		return model.AuditActionUpdate
	}
}

// changeSummary reads like "update brand #5: is_active, name".
func changeSummary(requestType, entityType string, entityID *uint, current, proposed model.JSONB) string {
	switch requestType {
	case model.RequestTypeCreate:
		if name, _ := proposed["name"].(string); name != "" {
			return fmt.Sprintf("create %s %q", entityType, name)
		}
		return "create " + entityType
	case model.RequestTypeDelete:
		if entityID != nil {
			return fmt.Sprintf("delete %s #%d", entityType, *entityID)
		}
		return "delete " + entityType
	}

	changed := make([]string, 0, len(proposed))
	for key, value := range proposed {
		if old, ok := current[key]; ok && reflect.DeepEqual(old, value) {
			continue
		}
		changed = append(changed, key)
	}
	sort.Strings(changed)

	head := "update " + entityType
	if entityID != nil {
		head = fmt.Sprintf("update %s #%d", entityType, *entityID)
	}
	if len(changed) == 0 {
		return head + ": no changes"
	}
	return head + ": " + strings.Join(changed, ", ")
}

func requestSnapshot(req *model.ApprovalRequest) model.JSONB {
	snap := model.JSONB{
		"status":     req.Status,
		"is_applied": req.IsApplied,
	}
	if req.EntityID != nil {
		snap["entity_id"] = *req.EntityID
	}
	if req.ReviewedBy != nil {
		snap["reviewed_by"] = req.ReviewedBy.String()
	}
	if req.AppliedBy != nil {
		snap["applied_by"] = req.AppliedBy.String()
	}
	return snap
}
