package service

import (
	"context"
	"sync"
	"testing"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPusher struct {
	mu   sync.Mutex
	sent map[uuid.UUID]int
}

func (p *recordingPusher) SendToUser(userID uuid.UUID, _ []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[uuid.UUID]int)
	}
	p.sent[userID]++
}

func (p *recordingPusher) count(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[userID]
}

type fixture struct {
	ctx           context.Context
	db            *gorm.DB
	registry      *repository.EntityRegistry
	roles         RoleService
	audit         AuditService
	notifications NotificationService
	approvals     ApprovalService
	catalog       CatalogService
	inventory     InventoryService
	pusher        *recordingPusher

	admin   model.User
	manager model.User
	vendor  model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	log := zap.NewNop()

	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	registry := repository.NewEntityRegistry(db)
	pusher := &recordingPusher{}

	roles := NewRoleService(repository.NewRoleRepository(db), tx)
	require.NoError(t, roles.SeedDefaultRolesAndPermissions(ctx))

	audit := NewAuditService(repository.NewAuditRepository(db), log)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), userRepo, pusher, "", log)
	approvals := NewApprovalService(tx, repository.NewApprovalRepository(db), registry, notifications, audit, "", log)
	catalog := NewCatalogService(tx, registry, approvals, audit)
	inventory, err := NewInventoryService(tx, repository.NewInventoryRepository(db), registry,
		cache.New(ctx, config.RedisConfig{Enabled: false}, log), audit, config.InventoryConfig{}, log)
	require.NoError(t, err)

	f := &fixture{
		ctx:           ctx,
		db:            db,
		registry:      registry,
		roles:         roles,
		audit:         audit,
		notifications: notifications,
		approvals:     approvals,
		catalog:       catalog,
		inventory:     inventory,
		pusher:        pusher,
	}
	f.admin = f.createUser(t, "admin", model.RoleAdmin, model.UserTypeAdmin)
	f.manager = f.createUser(t, "manager", model.RoleManager, model.UserTypeStaff)
	f.vendor = f.createUser(t, "vendor", model.RoleVendor, model.UserTypeVendor)
	return f
}

func (f *fixture) createUser(t *testing.T, name, role, userType string) model.User {
	t.Helper()
	u := model.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     role,
		UserType: userType,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) actor(t *testing.T, u model.User) model.Actor {
	t.Helper()
	perms, err := f.roles.GetPermissionsByRoleName(f.ctx, u.Role)
	require.NoError(t, err)
	return model.Actor{ID: u.ID, UserType: u.UserType, Role: u.Role, Permissions: perms}
}

func (f *fixture) seedBrand(t *testing.T, id uint, name string) {
	t.Helper()
	b := model.Brand{Base: model.Base{ID: id}, Name: name, Slug: slugify(name), IsActive: true}
	require.NoError(t, f.db.Create(&b).Error)
}

func (f *fixture) brand(t *testing.T, id uint) model.Brand {
	t.Helper()
	var b model.Brand
	require.NoError(t, f.db.First(&b, id).Error)
	return b
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) seedProduct(t *testing.T, name string) uint {
	t.Helper()
	p := model.Product{Name: name, Slug: slugify(name), IsActive: true}
	require.NoError(t, f.db.Create(&p).Error)
	return p.ID
}

func uintPtr(v uint) *uint { return &v }
