package service

import (
	"encoding/json"
	"errors"
	"strings"

	"cockpit_go/internal/model"
	"cockpit_go/internal/repository"
	"cockpit_go/pkg/log"

	"gorm.io/gorm"
)

// 库存域哨兵错误
var (
	// ErrInventoryNotFound 库存不存在（或对当前用户不可见）
	ErrInventoryNotFound = errors.New("inventory not found")
	// ErrInventoryAlreadyExists 同名激活库存已存在（同一创建者下）
	ErrInventoryAlreadyExists = errors.New("inventory already exists")
	// ErrInventoryNotOwned private 库存只能由创建者修改或删除
	ErrInventoryNotOwned = errors.New("inventory does not belong to user")
)

// CreateInventoryInput 是创建库存的入参。
type CreateInventoryInput struct {
	Name             string
	Description      string
	Conditions       []model.LogicalCondition
	TemplateCategory string
	TemplateName     string
	Scope            string
}

// UpdateInventoryInput 是更新库存的入参。
// 指针字段区分"没传"和"显式传值"，没传的字段保持原值。
type UpdateInventoryInput struct {
	Name             *string
	Description      *string
	Conditions       *[]model.LogicalCondition
	TemplateCategory *string
	TemplateName     *string
	Scope            *string
}

// InventoryHealth 是库存存储健康检查结果。
type InventoryHealth struct {
	Status            string `json:"status"`
	StorageType       string `json:"storage_type"`
	ActiveInventories int64  `json:"active_inventories"`
	TotalInventories  int64  `json:"total_inventories"`
}

// InventoryService 封装保存库存（命名过滤条件集合）的领域逻辑。
// 关键规则：
// 1. 名称在同一创建者的激活库存里唯一。
// 2. global 库存所有人可见，private 只有创建者可见。
// 3. 修改和删除 private 库存必须是创建者本人。
// 4. 删除默认软删除（is_active 置 false），hard 为 true 才真删。
// 5. 条件里的运算符必须对其字段合法，入库前统一校验。
type InventoryService interface {
	Create(input CreateInventoryInput, username string) (*model.InventoryDetail, error)
	Get(id uint, username string) (*model.InventoryDetail, error)
	GetByName(name, username string) (*model.InventoryDetail, error)
	List(username string, activeOnly bool, scope string) ([]model.InventoryDetail, error)
	Update(id uint, input UpdateInventoryInput, username string) (*model.InventoryDetail, error)
	Delete(id uint, username string, hard bool) error
	Search(query, username string, activeOnly bool) ([]model.InventoryDetail, error)
	Health() InventoryHealth
}

type inventoryService struct {
	invRepo repository.InventoryRepository
}

func NewInventoryService(invRepo repository.InventoryRepository) InventoryService {
	return &inventoryService{invRepo: invRepo}
}

// validateConditions 校验条件列表：字段必填、运算符对字段合法。
func validateConditions(conds []model.LogicalCondition) error {
	if len(conds) == 0 {
		return ErrInvalidInput
	}
	for _, cond := range conds {
		if strings.TrimSpace(cond.Field) == "" {
			return ErrInvalidInput
		}
		if !model.OperatorAllowed(cond.Field, cond.Operator) {
			return ErrInvalidInput
		}
	}
	return nil
}

// normalizeScope 校验并规范可见范围，空值默认 global。
func normalizeScope(scope string) (string, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	switch scope {
	case "":
		return model.ScopeGlobal, nil
	case model.ScopeGlobal, model.ScopePrivate:
		return scope, nil
	default:
		return "", ErrInvalidInput
	}
}

func (s *inventoryService) Create(input CreateInventoryInput, username string) (*model.InventoryDetail, error) {
	if s.invRepo == nil {
		return nil, ErrInternal
	}

	name := strings.TrimSpace(input.Name)
	username = strings.TrimSpace(username)
	if name == "" || username == "" {
		return nil, ErrInvalidInput
	}
	if err := validateConditions(input.Conditions); err != nil {
		return nil, err
	}
	scope, err := normalizeScope(input.Scope)
	if err != nil {
		return nil, err
	}

	// 重名检查：同一创建者的激活库存里名称唯一，
	// 提前查询避免数据库唯一键错误直接外泄。
	_, err = s.invRepo.FindOwnedByName(name, username, true)
	if err == nil {
		return nil, ErrInventoryAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("Create: failed to check inventory name %q: %v", name, err)
		return nil, ErrInternal
	}

	payload, err := json.Marshal(input.Conditions)
	if err != nil {
		log.Errorf("Create: failed to marshal conditions: %v", err)
		return nil, ErrInternal
	}

	inv := &model.Inventory{
		Name:             name,
		Description:      input.Description,
		Conditions:       string(payload),
		TemplateCategory: input.TemplateCategory,
		TemplateName:     input.TemplateName,
		Scope:            scope,
		CreatedBy:        username,
		IsActive:         true,
	}
	if err := s.invRepo.Create(inv); err != nil {
		log.Errorf("Create: failed to create inventory %q: %v", name, err)
		return nil, ErrInternal
	}

	log.Infof("Inventory %q created with ID %d by %s", name, inv.ID, username)
	return s.toDetail(inv), nil
}

// visibleTo 判断库存对用户是否可见（global 或本人的 private）。
func visibleTo(inv *model.Inventory, username string) bool {
	return inv.Scope == model.ScopeGlobal || inv.CreatedBy == username
}

func (s *inventoryService) Get(id uint, username string) (*model.InventoryDetail, error) {
	inv, err := s.findVisible(id, username)
	if err != nil {
		return nil, err
	}
	return s.toDetail(inv), nil
}

// findVisible 取库存并做可见性检查，不可见的 private 按不存在处理。
func (s *inventoryService) findVisible(id uint, username string) (*model.Inventory, error) {
	if s.invRepo == nil {
		return nil, ErrInternal
	}
	if id == 0 {
		return nil, ErrInvalidInput
	}

	inv, err := s.invRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInventoryNotFound
		}
		log.Errorf("findVisible: failed to load inventory %d: %v", id, err)
		return nil, ErrInternal
	}
	if !visibleTo(inv, username) {
		return nil, ErrInventoryNotFound
	}
	return inv, nil
}

func (s *inventoryService) GetByName(name, username string) (*model.InventoryDetail, error) {
	if s.invRepo == nil {
		return nil, ErrInternal
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	inv, err := s.invRepo.FindOwnedByName(name, username, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInventoryNotFound
		}
		log.Errorf("GetByName: failed to load inventory %q: %v", name, err)
		return nil, ErrInternal
	}
	return s.toDetail(inv), nil
}

func (s *inventoryService) List(username string, activeOnly bool, scope string) ([]model.InventoryDetail, error) {
	if s.invRepo == nil {
		return nil, ErrInternal
	}
	if scope != "" {
		normalized, err := normalizeScope(scope)
		if err != nil {
			return nil, err
		}
		scope = normalized
	}

	invs, err := s.invRepo.ListAccessible(username, activeOnly, scope)
	if err != nil {
		log.Errorf("List: failed to list inventories for %q: %v", username, err)
		return nil, ErrInternal
	}

	details := make([]model.InventoryDetail, 0, len(invs))
	for i := range invs {
		details = append(details, *s.toDetail(&invs[i]))
	}
	return details, nil
}

func (s *inventoryService) Update(id uint, input UpdateInventoryInput, username string) (*model.InventoryDetail, error) {
	inv, err := s.findVisible(id, username)
	if err != nil {
		return nil, err
	}
	// private 库存只有创建者能改
	if inv.Scope == model.ScopePrivate && inv.CreatedBy != username {
		return nil, ErrInventoryNotOwned
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		inv.Name = name
	}
	if input.Description != nil {
		inv.Description = *input.Description
	}
	if input.Conditions != nil {
		if err := validateConditions(*input.Conditions); err != nil {
			return nil, err
		}
		payload, err := json.Marshal(*input.Conditions)
		if err != nil {
			log.Errorf("Update: failed to marshal conditions: %v", err)
			return nil, ErrInternal
		}
		inv.Conditions = string(payload)
	}
	if input.TemplateCategory != nil {
		inv.TemplateCategory = *input.TemplateCategory
	}
	if input.TemplateName != nil {
		inv.TemplateName = *input.TemplateName
	}
	if input.Scope != nil {
		scope, err := normalizeScope(*input.Scope)
		if err != nil {
			return nil, err
		}
		inv.Scope = scope
	}

	if err := s.invRepo.Update(inv); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInventoryNotFound
		}
		log.Errorf("Update: failed to update inventory %d: %v", id, err)
		return nil, ErrInternal
	}

	log.Infof("Inventory %d updated by %s", id, username)
	return s.toDetail(inv), nil
}

func (s *inventoryService) Delete(id uint, username string, hard bool) error {
	inv, err := s.findVisible(id, username)
	if err != nil {
		return err
	}
	if inv.Scope == model.ScopePrivate && inv.CreatedBy != username {
		return ErrInventoryNotOwned
	}

	if hard {
		err = s.invRepo.Delete(id)
	} else {
		err = s.invRepo.SetActive(id, false)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInventoryNotFound
		}
		log.Errorf("Delete: failed to delete inventory %d: %v", id, err)
		return ErrInternal
	}

	if hard {
		log.Infof("Inventory %d deleted by %s", id, username)
	} else {
		log.Infof("Inventory %d deactivated by %s", id, username)
	}
	return nil
}

func (s *inventoryService) Search(query, username string, activeOnly bool) ([]model.InventoryDetail, error) {
	if s.invRepo == nil {
		return nil, ErrInternal
	}

	invs, err := s.invRepo.Search(query, username, activeOnly)
	if err != nil {
		log.Errorf("Search: failed to search inventories: %v", err)
		return nil, ErrInternal
	}

	details := make([]model.InventoryDetail, 0, len(invs))
	for i := range invs {
		details = append(details, *s.toDetail(&invs[i]))
	}
	return details, nil
}

func (s *inventoryService) Health() InventoryHealth {
	if s.invRepo == nil {
		return InventoryHealth{Status: "unhealthy", StorageType: "database"}
	}

	active, err := s.invRepo.CountActive()
	if err != nil {
		log.Errorf("Health: failed to count active inventories: %v", err)
		return InventoryHealth{Status: "unhealthy", StorageType: "database"}
	}
	total, err := s.invRepo.CountTotal()
	if err != nil {
		log.Errorf("Health: failed to count inventories: %v", err)
		return InventoryHealth{Status: "unhealthy", StorageType: "database"}
	}

	return InventoryHealth{
		Status:            "healthy",
		StorageType:       "database",
		ActiveInventories: active,
		TotalInventories:  total,
	}
}

// toDetail 把数据库模型转成响应视图，conditions 从 JSON 文本解析回结构。
// 解析失败按空条件处理（记日志），不让一条脏数据拖垮整个列表。
func (s *inventoryService) toDetail(inv *model.Inventory) *model.InventoryDetail {
	detail := &model.InventoryDetail{
		ID:               inv.ID,
		Name:             inv.Name,
		Description:      inv.Description,
		Conditions:       []model.LogicalCondition{},
		TemplateCategory: inv.TemplateCategory,
		TemplateName:     inv.TemplateName,
		Scope:            inv.Scope,
		CreatedBy:        inv.CreatedBy,
		IsActive:         inv.IsActive,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
	if inv.Conditions != "" {
		if err := json.Unmarshal([]byte(inv.Conditions), &detail.Conditions); err != nil {
			log.Errorf("toDetail: failed to parse conditions for inventory %d: %v", inv.ID, err)
			detail.Conditions = []model.LogicalCondition{}
		}
	}
	return detail
}
