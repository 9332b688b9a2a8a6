package model

import "time"

// 库存（保存的过滤器集合）的可见范围。
const (
	// ScopeGlobal 全局可见，任何登录用户都能读取和使用。
	ScopeGlobal = "global"
	// ScopePrivate 仅创建者可见、可改、可删。
	ScopePrivate = "private"
)

// Inventory 对应数据库中 inventories 表，表示一份命名的设备过滤条件集合。
// conditions 列存放 LogicalCondition 数组的 JSON 文本，读取时再反序列化。
// 删除默认是软删除（is_active 置 false），保留历史记录。
type Inventory struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Description      string    `gorm:"type:varchar(512)" json:"description"`
	Conditions       string    `gorm:"type:text;not null" json:"-"`
	TemplateCategory string    `gorm:"type:varchar(100)" json:"template_category"`
	TemplateName     string    `gorm:"type:varchar(255)" json:"template_name"`
	Scope            string    `gorm:"type:enum('global','private');default:'global'" json:"scope"`
	CreatedBy        string    `gorm:"type:varchar(255);not null;index" json:"created_by"`
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (Inventory) TableName() string {
	return "inventories"
}

// InventoryDetail 是对外响应用的库存视图。
// 与 Inventory（数据库模型）的区别：conditions 已从 JSON 文本解析为结构化数组。
type InventoryDetail struct {
	ID               uint               `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Conditions       []LogicalCondition `json:"conditions"`
	TemplateCategory string             `json:"template_category"`
	TemplateName     string             `json:"template_name"`
	Scope            string             `json:"scope"`
	CreatedBy        string             `json:"created_by"`
	IsActive         bool               `json:"is_active"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
