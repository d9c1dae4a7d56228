package schema

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 需要真实PostgreSQL，通过MEAP_TEST_DSN提供，未设置则跳过
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("MEAP_TEST_DSN")
	if dsn == "" {
		t.Skip("未设置MEAP_TEST_DSN，跳过数据库测试")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func testSchemaName() string {
	return fmt.Sprintf("entity_test_%s", uuid.New().String()[:8])
}

func TestManagerCreateAndExists(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)
	name := testSchemaName()
	defer m.Drop(name, true)

	exists, err := m.Exists(name)
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := m.Create(name)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err = m.Exists(name)
	require.NoError(t, err)
	assert.True(t, exists)

	// 重复创建幂等，返回未新建
	created, err = m.Create(name)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestManagerCreateRejectsInvalidName(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)

	_, err := m.Create("1bad")
	assert.Error(t, err)

	_, err = m.Create("public")
	assert.Error(t, err)
}

func TestManagerDrop(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)
	name := testSchemaName()

	_, err := m.Create(name)
	require.NoError(t, err)

	require.NoError(t, m.Drop(name, false))

	exists, err := m.Exists(name)
	require.NoError(t, err)
	assert.False(t, exists)

	// 再删不存在的schema是no-op
	require.NoError(t, m.Drop(name, false))
}

func TestManagerList(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)
	name := testSchemaName()
	defer m.Drop(name, true)

	_, err := m.Create(name)
	require.NoError(t, err)

	schemas, err := m.List()
	require.NoError(t, err)
	assert.Contains(t, schemas, name)
	assert.NotContains(t, schemas, "pg_catalog")
	assert.NotContains(t, schemas, "information_schema")
}

func TestManagerClone(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)
	source := testSchemaName()
	target := testSchemaName()
	defer m.Drop(source, true)
	defer m.Drop(target, true)

	_, err := m.Create(source)
	require.NoError(t, err)

	// 在源schema里建一张带数据的表
	require.NoError(t, db.Exec(fmt.Sprintf(
		`CREATE TABLE %q.accounts (id serial PRIMARY KEY, code text NOT NULL)`, source)).Error)
	require.NoError(t, db.Exec(fmt.Sprintf(
		`INSERT INTO %q.accounts (code) VALUES ('1000'), ('2000')`, source)).Error)

	require.NoError(t, m.Clone(source, target))

	var count int64
	require.NoError(t, db.Raw(fmt.Sprintf(
		`SELECT COUNT(*) FROM %q.accounts`, target)).Scan(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestManagerWithSchema(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db)
	name := testSchemaName()
	defer m.Drop(name, true)

	_, err := m.Create(name)
	require.NoError(t, err)

	err = m.WithSchema(name, func(tx *gorm.DB) error {
		var current string
		if err := tx.Raw(`SELECT current_schema()`).Scan(&current).Error; err != nil {
			return err
		}
		assert.Equal(t, name, current)
		return nil
	})
	require.NoError(t, err)
}
