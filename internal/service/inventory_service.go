package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultLowStockThreshold = 10

// DTOs
type AddInventoryInput struct {
	ProductID         uint   `json:"product_id" binding:"required" validate:"required"`
	TotalStock        int    `json:"total_stock" validate:"min=0"`
	OnlineStock       int    `json:"online_stock" validate:"min=0"`
	OfflineStock      int    `json:"offline_stock" validate:"min=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,min=0"`
	Notes             string `json:"notes"`
}

type RestockInput struct {
	Quantity          int    `json:"quantity" validate:"gt=0"`
	StockType         string `json:"stock_type" validate:"omitempty,oneof=total online offline"`
	OnlineStock       *int   `json:"online_stock" validate:"omitempty,min=0"`
	OfflineStock      *int   `json:"offline_stock" validate:"omitempty,min=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,min=0"`
	Notes             string `json:"notes"`
}

type AdjustAllocationInput struct {
	OnlineStock  int    `json:"online_stock" validate:"min=0"`
	OfflineStock int    `json:"offline_stock" validate:"min=0"`
	Notes        string `json:"notes"`
}

type InventoryService interface {
	Add(ctx context.Context, actor model.Actor, vendorID uuid.UUID, in AddInventoryInput) (*model.VendorInventory, error)
	Restock(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, in RestockInput) (*model.VendorInventory, error)
	AdjustAllocation(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, in AdjustAllocationInput) (*model.VendorInventory, error)
	Remove(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint) error

	Get(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint) (*model.VendorInventory, error)
	List(ctx context.Context, actor model.Actor, vendorID uuid.UUID, lowStockOnly bool, page, limit int) ([]model.VendorInventory, int64, error)
	Logs(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, page, limit int) ([]model.InventoryLog, int64, error)

	LowStock(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorInventory, error)
	Aggregated(ctx context.Context) ([]model.ProductStockAggregate, error)
	VendorSummary(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorStockSummary, error)
}

type inventoryService struct {
	tx       repository.TransactionManager
	repo     repository.InventoryRepository
	products repository.EntityStore
	cache    *cache.Cache
	audit    Recorder
	validate *validator.Validate
	cfg      config.InventoryConfig
	log      *zap.Logger
}

func NewInventoryService(
	tx repository.TransactionManager,
	repo repository.InventoryRepository,
	registry *repository.EntityRegistry,
	c *cache.Cache,
	audit Recorder,
	cfg config.InventoryConfig,
	log *zap.Logger,
) (InventoryService, error) {
	products, err := registry.Store(repository.EntityProduct)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultOnlineRatio <= 0 || cfg.DefaultOnlineRatio > 1 {
		cfg.DefaultOnlineRatio = 0.6
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &inventoryService{
		tx:       tx,
		repo:     repo,
		products: products,
		cache:    c,
		audit:    audit,
		validate: validator.New(),
		cfg:      cfg,
		log:      log,
	}, nil
}

func (s *inventoryService) Add(ctx context.Context, actor model.Actor, vendorID uuid.UUID, in AddInventoryInput) (*model.VendorInventory, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := authorizeVendor(actor, vendorID); err != nil {
		return nil, err
	}
	if in.TotalStock != in.OnlineStock+in.OfflineStock {
		return nil, apperror.Validation("total_stock (%d) must equal online_stock (%d) + offline_stock (%d)", in.TotalStock, in.OnlineStock, in.OfflineStock)
	}
	if _, err := s.products.FindByID(ctx, in.ProductID); err != nil {
		return nil, notFoundOr(err, "product %d not found", in.ProductID)
	}

	// no row exists yet to lock, so (vendor, product) is serialized in redis
	release, err := s.cache.Lock(ctx, fmt.Sprintf("lock:inventory:%s:%d", vendorID, in.ProductID), 10*time.Second, 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	threshold := defaultLowStockThreshold
	if in.LowStockThreshold != nil {
		threshold = *in.LowStockThreshold
	}
	inv := &model.VendorInventory{
		VendorID:          vendorID,
		ProductID:         in.ProductID,
		TotalStock:        in.TotalStock,
		OnlineStock:       in.OnlineStock,
		OfflineStock:      in.OfflineStock,
		LowStockThreshold: threshold,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActive(txCtx, vendorID, in.ProductID)
		if err == nil && existing != nil {
			return apperror.Conflict("product %d is already in this vendor's inventory", in.ProductID)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.repo.Create(txCtx, inv); err != nil {
			return fmt.Errorf("failed to create inventory: %w", err)
		}
		return s.writeLog(txCtx, inv, model.TxTypeRestock, in.TotalStock, model.StockSnapshot{}, actor.ID, in.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, inv, model.AuditActionCreate, nil, actor.ID)
	return inv, nil
}

func (s *inventoryService) Restock(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, in RestockInput) (*model.VendorInventory, error) {
	ctx, span := tracer.Start(ctx, "inventory.restock")
	defer span.End()
	span.SetAttributes(attribute.Int64("inventory.id", int64(id)), attribute.Int("inventory.quantity", in.Quantity))

	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := authorizeVendor(actor, vendorID); err != nil {
		return nil, err
	}
	if in.StockType == "" {
		in.StockType = model.StockTypeTotal
	}

	var inv *model.VendorInventory
	var prev model.StockSnapshot
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.repo.FindByIDForUpdate(txCtx, id, vendorID)
		if err != nil {
			return notFoundOr(err, "inventory %d not found", id)
		}
		prev = inv.Snapshot()

		next, err := allocateRestock(prev, RestockAllocation{
			Quantity:     in.Quantity,
			StockType:    in.StockType,
			OnlineStock:  in.OnlineStock,
			OfflineStock: in.OfflineStock,
		}, s.cfg.DefaultOnlineRatio)
		if err != nil {
			return err
		}

		inv.TotalStock, inv.OnlineStock, inv.OfflineStock = next.Total, next.Online, next.Offline
		if in.LowStockThreshold != nil {
			inv.LowStockThreshold = *in.LowStockThreshold
		}
		if err := s.repo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update inventory: %w", err)
		}
		return s.writeLog(txCtx, inv, model.TxTypeRestock, in.Quantity, prev, actor.ID, in.Notes)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.afterMutation(ctx, inv, model.AuditActionUpdate, stockValues(prev), actor.ID)
	return inv, nil
}

func (s *inventoryService) AdjustAllocation(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, in AdjustAllocationInput) (*model.VendorInventory, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := authorizeVendor(actor, vendorID); err != nil {
		return nil, err
	}

	var inv *model.VendorInventory
	var prev model.StockSnapshot
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.repo.FindByIDForUpdate(txCtx, id, vendorID)
		if err != nil {
			return notFoundOr(err, "inventory %d not found", id)
		}
		prev = inv.Snapshot()

		next := model.StockSnapshot{Total: prev.Total, Online: in.OnlineStock, Offline: in.OfflineStock}
		if err := checkStock(next); err != nil {
			return err
		}

		inv.OnlineStock, inv.OfflineStock = next.Online, next.Offline
		if err := s.repo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update inventory: %w", err)
		}
		return s.writeLog(txCtx, inv, model.TxTypeAllocationChange, 0, prev, actor.ID, in.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, inv, model.AuditActionUpdate, stockValues(prev), actor.ID)
	return inv, nil
}

func (s *inventoryService) Remove(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint) error {
	if err := authorizeVendor(actor, vendorID); err != nil {
		return err
	}

	var inv *model.VendorInventory
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.repo.FindByIDForUpdate(txCtx, id, vendorID)
		if err != nil {
			return notFoundOr(err, "inventory %d not found", id)
		}
		if inv.TotalStock > 0 {
			return apperror.Validation("inventory %d still holds %d units; adjust stock to 0 first", id, inv.TotalStock)
		}
		return s.repo.SoftDelete(txCtx, inv)
	})
	if err != nil {
		return err
	}

	s.invalidateViews(ctx)
	actorID := actor.ID
	s.audit.Record(ctx, AuditEvent{
		Table:     "vendor_inventory",
		RecordID:  fmt.Sprint(inv.ID),
		Action:    model.AuditActionDelete,
		OldValues: stockValues(inv.Snapshot()),
		ActorID:   &actorID,
	})
	return nil
}

func (s *inventoryService) Get(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint) (*model.VendorInventory, error) {
	if err := authorizeVendor(actor, vendorID); err != nil {
		return nil, err
	}
	inv, err := s.repo.FindByID(ctx, id, vendorID)
	if err != nil {
		return nil, notFoundOr(err, "inventory %d not found", id)
	}
	return inv, nil
}

func (s *inventoryService) List(ctx context.Context, actor model.Actor, vendorID uuid.UUID, lowStockOnly bool, page, limit int) ([]model.VendorInventory, int64, error) {
	if err := authorizeVendor(actor, vendorID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByVendor(ctx, vendorID, lowStockOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	return items, total, nil
}

func (s *inventoryService) Logs(ctx context.Context, actor model.Actor, vendorID uuid.UUID, id uint, page, limit int) ([]model.InventoryLog, int64, error) {
	if _, err := s.Get(ctx, actor, vendorID, id); err != nil {
		return nil, 0, err
	}
	logs, total, err := s.repo.ListLogs(ctx, id, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch inventory logs: %w", err)
	}
	return logs, total, nil
}

func (s *inventoryService) LowStock(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorInventory, error) {
	var items []model.VendorInventory
	err := s.cached(ctx, "low_stock", vendorID, &items, func() error {
		var err error
		items, err = s.repo.LowStock(ctx, vendorID)
		return err
	})
	return items, err
}

func (s *inventoryService) Aggregated(ctx context.Context) ([]model.ProductStockAggregate, error) {
	var rows []model.ProductStockAggregate
	err := s.cached(ctx, "aggregated", nil, &rows, func() error {
		var err error
		rows, err = s.repo.AggregateByProduct(ctx)
		return err
	})
	return rows, err
}

func (s *inventoryService) VendorSummary(ctx context.Context, vendorID *uuid.UUID) ([]model.VendorStockSummary, error) {
	var rows []model.VendorStockSummary
	err := s.cached(ctx, "summary", vendorID, &rows, func() error {
		var err error
		rows, err = s.repo.SummaryByVendor(ctx, vendorID)
		return err
	})
	return rows, err
}

// --- Helpers ---

const (
	viewKeyPrefix     = "inventory:views:"
	viewGenerationKey = "inventory:views:generation"
)

// viewKey is namespaced by the view generation so entries written from a
// load that raced a ledger commit land under a generation nobody reads.
func viewKey(generation int64, view string, vendorID *uuid.UUID) string {
	scope := "all"
	if vendorID != nil {
		scope = vendorID.String()
	}
	return fmt.Sprintf("%s%d:%s:%s", viewKeyPrefix, generation, view, scope)
}

// cached serves dest from redis when present, otherwise runs load and stores
// its result. Redis failures only cost a cache miss.
func (s *inventoryService) cached(ctx context.Context, view string, vendorID *uuid.UUID, dest interface{}, load func() error) error {
	// the generation must be read before load touches the database
	generation, err := s.cache.Counter(ctx, viewGenerationKey)
	if err != nil {
		s.log.Warn("inventory cache generation read failed", zap.Error(err))
		return s.load(view, load)
	}
	key := viewKey(generation, view, vendorID)

	found, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.log.Warn("inventory cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return nil
	}
	if err := s.load(view, load); err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, dest, s.cfg.CacheTTL); err != nil {
		s.log.Warn("inventory cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *inventoryService) load(view string, load func() error) error {
	if err := load(); err != nil {
		return fmt.Errorf("failed to load %s: %w", view, err)
	}
	return nil
}

// invalidateViews moves readers to a new generation and drops the old one.
func (s *inventoryService) invalidateViews(ctx context.Context) {
	generation, err := s.cache.Incr(ctx, viewGenerationKey)
	if err != nil {
		s.log.Warn("inventory cache invalidation failed", zap.Error(err))
		return
	}
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.DeletePrefix(ctx, fmt.Sprintf("%s%d:", viewKeyPrefix, generation-1)); err != nil {
		s.log.Warn("inventory cache cleanup failed", zap.Int64("generation", generation-1), zap.Error(err))
	}
}

func (s *inventoryService) afterMutation(ctx context.Context, inv *model.VendorInventory, action string, before model.JSONB, actorID uuid.UUID) {
	s.invalidateViews(ctx)
	s.audit.Record(ctx, AuditEvent{
		Table:     "vendor_inventory",
		RecordID:  fmt.Sprint(inv.ID),
		Action:    action,
		OldValues: before,
		NewValues: stockValues(inv.Snapshot()),
		ActorID:   &actorID,
	})
}

func (s *inventoryService) writeLog(ctx context.Context, inv *model.VendorInventory, txType string, change int, prev model.StockSnapshot, actorID uuid.UUID, notes string) error {
	performedBy := actorID
	entry := &model.InventoryLog{
		VendorInventoryID: inv.ID,
		VendorID:          inv.VendorID,
		ProductID:         inv.ProductID,
		TransactionType:   txType,
		QuantityChange:    change,
		PreviousTotal:     prev.Total,
		NewTotal:          inv.TotalStock,
		PreviousOnline:    prev.Online,
		NewOnline:         inv.OnlineStock,
		PreviousOffline:   prev.Offline,
		NewOffline:        inv.OfflineStock,
		Notes:             notes,
		PerformedBy:       &performedBy,
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to write inventory log: %w", err)
	}
	return nil
}

func (s *inventoryService) check(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(apperror.KindValidation, err, "invalid input")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return apperror.Validation("invalid input: %s", strings.Join(fields, "; "))
}

// authorizeVendor keeps vendor actors on their own inventory.
func authorizeVendor(actor model.Actor, vendorID uuid.UUID) error {
	if actor.IsVendor() && actor.ID != vendorID {
		return apperror.Forbidden("vendors can only manage their own inventory")
	}
	return nil
}

func stockValues(s model.StockSnapshot) model.JSONB {
	return model.JSONB{
		"total_stock":   s.Total,
		"online_stock":  s.Online,
		"offline_stock": s.Offline,
	}
}
