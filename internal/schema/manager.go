package schema

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"meap/pkg/logger"
)

// Manager 管理实体的PostgreSQL schema
// 只认schema名，不感知实体；所有操作都是阻塞的数据库IO
type Manager struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewManager 创建schema管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:  db,
		log: logger.GetLogger(),
	}
}

// Create 创建schema（幂等）
// 返回是否真正新建；已存在时返回false且不报错
func (m *Manager) Create(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	exists, err := m.Exists(name)
	if err != nil {
		return false, err
	}
	if exists {
		m.log.Warnf("schema %s 已存在，跳过创建", name)
		return false, nil
	}

	if err := m.db.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, name)).Error; err != nil {
		m.log.Errorf("创建schema %s 失败: %v", name, err)
		return false, err
	}

	m.log.Infof("已创建schema: %s", name)
	return true, nil
}

// Drop 删除schema；目标不存在时为no-op
func (m *Manager) Drop(name string, cascade bool) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	clause := "RESTRICT"
	if cascade {
		clause = "CASCADE"
	}

	if err := m.db.Exec(fmt.Sprintf(`DROP SCHEMA IF EXISTS %q %s`, name, clause)).Error; err != nil {
		m.log.Errorf("删除schema %s 失败: %v", name, err)
		return err
	}

	m.log.Infof("已删除schema: %s", name)
	return nil
}

// Exists 检查schema是否存在
func (m *Manager) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	var count int64
	err := m.db.Raw(
		"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?",
		name,
	).Scan(&count).Error
	if err != nil {
		m.log.Errorf("检查schema %s 失败: %v", name, err)
		return false, err
	}

	return count > 0, nil
}

// List 列出全部schema（排除系统保留schema），按名称排序
func (m *Manager) List() ([]string, error) {
	var names []string
	err := m.db.Raw(
		`SELECT schema_name
		 FROM information_schema.schemata
		 WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		   AND schema_name NOT LIKE 'pg\_%'
		 ORDER BY schema_name`,
	).Scan(&names).Error
	if err != nil {
		m.log.Errorf("列出schema失败: %v", err)
		return nil, err
	}
	return names, nil
}

// Clone 克隆schema：结构（含约束和索引）与数据一起复制
// 整体在一个事务内，任一步失败则全部回滚，不会留下半成品
func (m *Manager) Clone(source, target string) error {
	if err := ValidateName(source); err != nil {
		return err
	}
	if err := ValidateName(target); err != nil {
		return err
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, target)).Error; err != nil {
			return err
		}

		var tables []string
		if err := tx.Raw(
			"SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND table_type = 'BASE TABLE'",
			source,
		).Scan(&tables).Error; err != nil {
			return err
		}

		for _, table := range tables {
			if err := tx.Exec(fmt.Sprintf(
				`CREATE TABLE %q.%q (LIKE %q.%q INCLUDING ALL)`,
				target, table, source, table,
			)).Error; err != nil {
				return err
			}

			if err := tx.Exec(fmt.Sprintf(
				`INSERT INTO %q.%q SELECT * FROM %q.%q`,
				target, table, source, table,
			)).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		m.log.Errorf("克隆schema %s -> %s 失败: %v", source, target, err)
		return err
	}

	m.log.Infof("已克隆schema: %s -> %s", source, target)
	return nil
}

// CurrentSchema 读取当前连接生效的schema
func (m *Manager) CurrentSchema(db *gorm.DB) (string, error) {
	var current string
	if err := db.Raw("SELECT current_schema()").Scan(&current).Error; err != nil {
		return "", err
	}
	return current, nil
}

// WithSchema 在指定schema上执行fn
// search_path是连接级状态：这里把回调钉在同一条连接上，退出时恢复，
// 并发请求不会看到彼此切换的schema
func (m *Manager) WithSchema(name string, fn func(tx *gorm.DB) error) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	return m.db.Connection(func(conn *gorm.DB) error {
		previous, err := m.CurrentSchema(conn)
		if err != nil {
			return err
		}

		if err := conn.Exec(fmt.Sprintf(`SET search_path TO %q, public`, name)).Error; err != nil {
			return err
		}
		defer func() {
			if previous != "" {
				if err := conn.Exec(fmt.Sprintf(`SET search_path TO %q, public`, previous)).Error; err != nil {
					m.log.Errorf("恢复search_path到 %s 失败: %v", previous, err)
				}
			}
		}()

		return fn(conn)
	})
}
