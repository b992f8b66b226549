package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"marketplace/internal/apperror"
	"marketplace/internal/model"
	"marketplace/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EntityType names one kind of master data that can be changed through an
// approval request.
type EntityType string

const (
	EntityManufacturer EntityType = "manufacturer"
	EntityBrand        EntityType = "brand"
	EntityCategory     EntityType = "category"
	EntityProductName  EntityType = "product_name"
	EntitySalt         EntityType = "salt"
	EntityDosage       EntityType = "dosage"
	EntityUnitType     EntityType = "unit_type"
	EntityAttribute    EntityType = "attribute"
	EntityGST          EntityType = "gst"
	EntitySupplier     EntityType = "supplier"
	EntityProduct      EntityType = "product"
)

// ParseEntityType rejects anything outside the registry.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(s); t {
	case EntityManufacturer, EntityBrand, EntityCategory, EntityProductName, EntitySalt,
		EntityDosage, EntityUnitType, EntityAttribute, EntityGST, EntitySupplier, EntityProduct:
		return t, nil
	}
	return "", apperror.Validation("unknown entity type %q", s)
}

// HasSlug reports whether rows of this kind carry a slug derived from name.
func (t EntityType) HasSlug() bool {
	switch t {
	case EntityManufacturer, EntityBrand, EntityCategory, EntityProduct:
		return true
	}
	return false
}

// EntityStore is transactional CRUD over one master data table. Rows travel
// as JSON objects so approval payloads can be applied without knowing the
// concrete type.
type EntityStore interface {
	Type() EntityType
	// Table is the database table backing the store.
	Table() string
	Create(ctx context.Context, data model.JSONB) (model.JSONB, uint, error)
	FindByID(ctx context.Context, id uint) (model.JSONB, error)
	Update(ctx context.Context, id uint, data model.JSONB) (model.JSONB, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, search string, page, limit int) ([]model.JSONB, int64, error)
	// SlugExists includes soft-deleted rows since the unique index does.
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
}

// EntityRegistry maps every EntityType to its store.
type EntityRegistry struct {
	stores map[EntityType]EntityStore
}

func NewEntityRegistry(db *gorm.DB) *EntityRegistry {
	r := &EntityRegistry{stores: make(map[EntityType]EntityStore)}
	register(r, newEntityStore[model.Manufacturer](db, EntityManufacturer))
	register(r, newEntityStore[model.Brand](db, EntityBrand))
	register(r, newEntityStore[model.Category](db, EntityCategory))
	register(r, newEntityStore[model.ProductName](db, EntityProductName))
	register(r, newEntityStore[model.Salt](db, EntitySalt))
	register(r, newEntityStore[model.Dosage](db, EntityDosage))
	register(r, newEntityStore[model.UnitType](db, EntityUnitType))
	register(r, newEntityStore[model.Attribute](db, EntityAttribute))
	register(r, newEntityStore[model.GST](db, EntityGST))
	register(r, newEntityStore[model.Supplier](db, EntitySupplier))
	register(r, newEntityStore[model.Product](db, EntityProduct))
	return r
}

func register(r *EntityRegistry, s EntityStore) {
	r.stores[s.Type()] = s
}

func (r *EntityRegistry) Store(t EntityType) (EntityStore, error) {
	s, ok := r.stores[t]
	if !ok {
		return nil, apperror.Validation("unknown entity type %q", t)
	}
	return s, nil
}

func (r *EntityRegistry) Types() []EntityType {
	types := make([]EntityType, 0, len(r.stores))
	for t := range r.stores {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// columns that callers may never write
var protectedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
}

type gormEntityStore[T any, P interface {
	*T
	model.Entity
}] struct {
	db         *gorm.DB
	entityType EntityType
}

func newEntityStore[T any, P interface {
	*T
	model.Entity
}](db *gorm.DB, t EntityType) *gormEntityStore[T, P] {
	return &gormEntityStore[T, P]{db: db, entityType: t}
}

func (s *gormEntityStore[T, P]) Type() EntityType {
	return s.entityType
}

func (s *gormEntityStore[T, P]) Table() string {
	sch, err := s.parseSchema()
	if err != nil {
		return string(s.entityType)
	}
	return sch.Table
}

func (s *gormEntityStore[T, P]) parseSchema() (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parse %s schema: %w", s.entityType, err)
	}
	return stmt.Schema, nil
}

func (s *gormEntityStore[T, P]) Create(ctx context.Context, data model.JSONB) (model.JSONB, uint, error) {
	payload := withoutProtected(data)
	if _, ok := payload["is_active"]; !ok {
		payload["is_active"] = true
	}

	var entity T
	if err := decode(payload, &entity); err != nil {
		return nil, 0, apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("invalid %s payload", s.entityType))
	}
	if err := GetDB(ctx, s.db).Create(&entity).Error; err != nil {
		return nil, 0, err
	}

	snapshot, err := encode(&entity)
	if err != nil {
		return nil, 0, err
	}
	return snapshot, P(&entity).GetID(), nil
}

func (s *gormEntityStore[T, P]) FindByID(ctx context.Context, id uint) (model.JSONB, error) {
	var entity T
	if err := GetDB(ctx, s.db).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return encode(&entity)
}

func (s *gormEntityStore[T, P]) Update(ctx context.Context, id uint, data model.JSONB) (model.JSONB, error) {
	db := GetDB(ctx, s.db)

	var entity T
	if err := db.First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}

	updates, err := s.columnValues(ctx, withoutProtected(data))
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := db.Model(&entity).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	var fresh T
	if err := db.First(&fresh, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return encode(&fresh)
}

// columnValues converts JSON keys into typed column values by decoding the
// payload into T and reading each addressed field back out.
func (s *gormEntityStore[T, P]) columnValues(ctx context.Context, data model.JSONB) (map[string]interface{}, error) {
	sch, err := s.parseSchema()
	if err != nil {
		return nil, err
	}

	var patch T
	if err := decode(data, &patch); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("invalid %s payload", s.entityType))
	}
	rv := reflect.ValueOf(&patch).Elem()

	updates := make(map[string]interface{}, len(data))
	for key := range data {
		field := sch.LookUpField(key)
		if field == nil || field.DBName == "" || field.PrimaryKey || protectedColumns[field.DBName] {
			continue
		}
		value, _ := field.ValueOf(ctx, rv)
		updates[field.DBName] = value
	}
	return updates, nil
}

func (s *gormEntityStore[T, P]) Delete(ctx context.Context, id uint) error {
	db := GetDB(ctx, s.db)
	var entity T
	if err := db.First(&entity, "id = ?", id).Error; err != nil {
		return err
	}
	return db.Delete(&entity).Error
}

func (s *gormEntityStore[T, P]) List(ctx context.Context, search string, page, limit int) ([]model.JSONB, int64, error) {
	var rows []T
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if search != "" {
			db = db.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
		}
		return db
	}

	db := GetDB(ctx, s.db)
	if err := db.Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(scope).Order("id asc").Scopes(pagination.Scope(page, limit)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]model.JSONB, 0, len(rows))
	for i := range rows {
		snap, err := encode(&rows[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, snap)
	}
	return out, total, nil
}

func (s *gormEntityStore[T, P]) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	query := GetDB(ctx, s.db).Unscoped().Model(new(T)).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func withoutProtected(data model.JSONB) model.JSONB {
	out := make(model.JSONB, len(data))
	for k, v := range data {
		if !protectedColumns[k] {
			out[k] = v
		}
	}
	return out
}

func decode(data model.JSONB, dst interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func encode(src interface{}) (model.JSONB, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var out model.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
