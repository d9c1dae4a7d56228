package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"meap/internal/models"
)

func TestAuditRecordAndList(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	entity := createTestEntity(t, db, user)
	svc := NewAuditServiceWithDB(db)

	ip := "203.0.113.7"
	err := svc.Record(&AuditRecord{
		EntityID:    entity.ID,
		UserID:      &user.ID,
		Action:      models.AuditActionSuspended,
		Description: "测试暂停",
		Changes:     datatypes.JSONMap{"reason": "fraud_review"},
		IPAddress:   ip,
		UserAgent:   "test-agent/1.0",
	})
	require.NoError(t, err)

	logs, total, err := svc.ListByEntity(entity.ID, models.AuditActionSuspended, nil, nil, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)

	log := logs[0]
	assert.Equal(t, models.AuditActionSuspended, log.Action)
	assert.Equal(t, "fraud_review", log.Changes["reason"])
	require.NotNil(t, log.IPAddress)
	assert.Equal(t, ip, *log.IPAddress)
	require.NotNil(t, log.UserID)
	assert.Equal(t, user.ID, *log.UserID)
	// 操作人信息被预加载
	assert.Equal(t, user.Username, log.User.Username)
}

func TestAuditListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	entity := createTestEntity(t, db, user)
	svc := NewAuditServiceWithDB(db)

	for _, action := range []string{models.AuditActionActivated, models.AuditActionDeactivated} {
		require.NoError(t, svc.Record(&AuditRecord{
			EntityID: entity.ID,
			Action:   action,
		}))
		time.Sleep(10 * time.Millisecond)
	}

	logs, _, err := svc.ListByEntity(entity.ID, "", nil, nil, 1, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(logs), 2)
	for i := 1; i < len(logs); i++ {
		assert.False(t, logs[i].CreatedAt.After(logs[i-1].CreatedAt))
	}
}

func TestAuditListTimeRangeFilter(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	entity := createTestEntity(t, db, user)
	svc := NewAuditServiceWithDB(db)

	require.NoError(t, svc.Record(&AuditRecord{
		EntityID: entity.ID,
		Action:   models.AuditActionActivated,
	}))

	// 未来区间查不到任何记录
	from := time.Now().Add(time.Hour)
	to := time.Now().Add(2 * time.Hour)
	logs, total, err := svc.ListByEntity(entity.ID, "", &from, &to, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, logs)
}
