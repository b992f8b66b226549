package service

import (
	"testing"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogFilters(t *testing.T) {
	f := newFixture(t)
	actorID := f.admin.ID

	f.audit.Record(f.ctx, AuditEvent{Table: "brands", RecordID: "1", Action: model.AuditActionCreate, NewValues: model.JSONB{"name": "a"}, ActorID: &actorID})
	f.audit.Record(f.ctx, AuditEvent{Table: "brands", RecordID: "1", Action: model.AuditActionUpdate, ActorID: &actorID})
	f.audit.Record(f.ctx, AuditEvent{Table: "salts", RecordID: "2", Action: model.AuditActionCreate})

	logs, total, err := f.audit.GetAuditLogs(f.ctx, repository.AuditFilter{Table: "brands", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	logs, total, err = f.audit.GetAuditLogs(f.ctx, repository.AuditFilter{Action: model.AuditActionCreate, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, l := range logs {
		if l.Table == "salts" {
			assert.Equal(t, "System", l.Username)
			assert.Empty(t, l.UserID)
		} else {
			assert.Equal(t, "admin", l.Username)
		}
	}
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	audit := NewAuditService(repository.NewAuditRepository(f.db), zap.New(core))

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		audit.Record(f.ctx, AuditEvent{Table: "brands", RecordID: "1", Action: model.AuditActionDelete})
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to write audit log", logs.All()[0].Message)
}
