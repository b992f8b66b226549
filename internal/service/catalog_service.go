package service

import (
	"context"
	"fmt"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type MutateCatalogInput struct {
	RequestType string      `json:"-"`
	EntityType  string      `json:"-"`
	EntityID    *uint       `json:"-"`
	Data        model.JSONB `json:"data"`
	Reason      string      `json:"reason"`
}

// MutationResult is either the changed entity (Applied) or the approval
// request that now carries the change.
type MutationResult struct {
	Applied         bool                   `json:"applied"`
	Entity          model.JSONB            `json:"entity,omitempty"`
	ApprovalRequest *model.ApprovalRequest `json:"approval_request,omitempty"`
}

// CatalogService is the approval gate in front of master data writes.
type CatalogService interface {
	Mutate(ctx context.Context, actor model.Actor, in MutateCatalogInput) (*MutationResult, error)
	Get(ctx context.Context, entityType string, id uint) (model.JSONB, error)
	List(ctx context.Context, entityType, search string, page, limit int) ([]model.JSONB, int64, error)
	EntityTypes() []repository.EntityType
}

type catalogService struct {
	tx        repository.TransactionManager
	registry  *repository.EntityRegistry
	approvals ApprovalService
	audit     Recorder
}

func NewCatalogService(
	tx repository.TransactionManager,
	registry *repository.EntityRegistry,
	approvals ApprovalService,
	audit Recorder,
) CatalogService {
	return &catalogService{tx: tx, registry: registry, approvals: approvals, audit: audit}
}

// Mutate writes straight to the entity store when the actor may bypass
// review and files an approval request otherwise.
func (s *catalogService) Mutate(ctx context.Context, actor model.Actor, in MutateCatalogInput) (*MutationResult, error) {
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
	if in.RequestType != model.RequestTypeCreate && in.EntityID == nil {
		return nil, apperror.Validation("entity id is required for %s", in.RequestType)
	}

	if s.approvals.RequiresApproval(actor) {
		var entityID *uint
		var current model.JSONB
		if in.RequestType != model.RequestTypeCreate {
			entityID = in.EntityID
			current, err = store.FindByID(ctx, *entityID)
			if err != nil {
				return nil, notFoundOr(err, "%s %d not found", entityType, *entityID)
			}
		}

		req, err := s.approvals.Create(ctx, CreateApprovalInput{
			RequestType:   in.RequestType,
			EntityType:    string(entityType),
			EntityID:      entityID,
			CurrentData:   current,
			ProposedData:  in.Data,
			RequestReason: in.Reason,
			RequestedBy:   actor.ID,
		})
		if err != nil {
			return nil, err
		}
		return &MutationResult{Applied: false, ApprovalRequest: req}, nil
	}

	var change entityChange
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		change, err = applyEntityChange(txCtx, store, in.RequestType, in.EntityID, in.Data)
		return err
	})
	if err != nil {
		return nil, err
	}

	actorID := actor.ID
	s.audit.Record(ctx, AuditEvent{
		Table:     change.Table,
		RecordID:  fmt.Sprint(change.ID),
		Action:    auditAction(in.RequestType),
		OldValues: change.Before,
		NewValues: change.After,
		ActorID:   &actorID,
	})

	return &MutationResult{Applied: true, Entity: change.After}, nil
}

func (s *catalogService) Get(ctx context.Context, entityType string, id uint) (model.JSONB, error) {
	t, err := repository.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	store, err := s.registry.Store(t)
	if err != nil {
		return nil, err
	}
	entity, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "%s %d not found", t, id)
	}
	return entity, nil
}

func (s *catalogService) List(ctx context.Context, entityType, search string, page, limit int) ([]model.JSONB, int64, error) {
	t, err := repository.ParseEntityType(entityType)
	if err != nil {
		return nil, 0, err
	}
	store, err := s.registry.Store(t)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	items, total, err := store.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s list: %w", t, err)
	}
	return items, total, nil
}

func (s *catalogService) EntityTypes() []repository.EntityType {
	return s.registry.Types()
}
