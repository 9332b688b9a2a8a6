package repository

import (
	"fmt"
	"strings"

	"cockpit_go/internal/model"

	"gorm.io/gorm"
)

// InventoryRepository 定义库存（保存的过滤条件集合）的持久化操作接口。
// 可见性规则贯穿所有查询：global 库存对所有人可见，
// private 库存只对创建者可见。
type InventoryRepository interface {
	Create(inv *model.Inventory) error
	FindByID(id uint) (*model.Inventory, error)

	// FindOwnedByName 按名称查找某个创建者自己的库存。
	// activeOnly 为 true 时只匹配未软删的记录（重名检查用）。
	FindOwnedByName(name, createdBy string, activeOnly bool) (*model.Inventory, error)

	// ListAccessible 返回用户可见的库存：global 的全部加上自己的 private。
	// scope 非空时额外按范围过滤。
	ListAccessible(username string, activeOnly bool, scope string) ([]model.Inventory, error)

	// Update 更新库存的业务字段（name, description, conditions,
	// template_category, template_name, scope）。
	Update(inv *model.Inventory) error

	// SetActive 切换软删除标记。
	SetActive(id uint, active bool) error

	// Delete 硬删除，从数据库中移除记录。
	Delete(id uint) error

	// Search 在可见库存的 name/description 上做子串搜索。
	Search(query, username string, activeOnly bool) ([]model.Inventory, error)

	CountActive() (int64, error)
	CountTotal() (int64, error)
}

// inventoryRepository 是 InventoryRepository 接口的 GORM 实现。
type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(inv *model.Inventory) error {
	if inv == nil {
		return fmt.Errorf("inventory is nil")
	}
	if inv.Name == "" {
		return fmt.Errorf("inventory name is required")
	}
	return r.db.Create(inv).Error
}

func (r *inventoryRepository) FindByID(id uint) (*model.Inventory, error) {
	if id == 0 {
		return nil, fmt.Errorf("inventory id is required")
	}

	var inv model.Inventory
	if err := r.db.First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepository) FindOwnedByName(name, createdBy string, activeOnly bool) (*model.Inventory, error) {
	if name == "" {
		return nil, fmt.Errorf("inventory name is required")
	}

	tx := r.db.Where("name = ? AND created_by = ?", name, createdBy)
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}

	var inv model.Inventory
	if err := tx.First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// accessibleScope 拼出可见性条件：global 全量 + 本人的 private。
func accessibleScope(tx *gorm.DB, username string) *gorm.DB {
	return tx.Where("scope = ? OR (scope = ? AND created_by = ?)",
		model.ScopeGlobal, model.ScopePrivate, username)
}

func (r *inventoryRepository) ListAccessible(username string, activeOnly bool, scope string) ([]model.Inventory, error) {
	tx := accessibleScope(r.db.Order("name ASC"), username)
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if scope != "" {
		tx = tx.Where("scope = ?", scope)
	}

	var invs []model.Inventory
	if err := tx.Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

// Update 更新库存业务字段。
// 使用 Select 限定更新列，避免零值覆盖 created_by/is_active。
// 如果 ID 不存在，返回 gorm.ErrRecordNotFound。
func (r *inventoryRepository) Update(inv *model.Inventory) error {
	if inv == nil {
		return fmt.Errorf("inventory is nil")
	}
	if inv.ID == 0 {
		return fmt.Errorf("inventory id is required")
	}

	tx := r.db.Model(&model.Inventory{}).
		Where("id = ?", inv.ID).
		Select("name", "description", "conditions", "template_category", "template_name", "scope").
		Updates(inv)

	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) SetActive(id uint, active bool) error {
	if id == 0 {
		return fmt.Errorf("inventory id is required")
	}

	tx := r.db.Model(&model.Inventory{}).
		Where("id = ?", id).
		Update("is_active", active)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) Delete(id uint) error {
	if id == 0 {
		return fmt.Errorf("inventory id is required")
	}

	res := r.db.Where("id = ?", id).Delete(&model.Inventory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) Search(query, username string, activeOnly bool) ([]model.Inventory, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	tx := accessibleScope(r.db.Order("name ASC"), username).
		Where("(name LIKE ? OR description LIKE ?)", pattern, pattern)
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}

	var invs []model.Inventory
	if err := tx.Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *inventoryRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&model.Inventory{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

func (r *inventoryRepository) CountTotal() (int64, error) {
	var count int64
	err := r.db.Model(&model.Inventory{}).Count(&count).Error
	return count, err
}
