package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 逻辑组合方式。Logic 描述一个条件/条件组与同级元素如何组合，
// InternalLogic 描述一个容器内部的子元素之间如何组合。
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
	// LogicNot 表示排除语义：命中该组的设备会从总结果中剔除，
	// 它不是组内部的组合规则。
	LogicNot = "NOT"
)

// 条件运算符。具体某个字段允许哪些运算符见 AllowedOperators。
const (
	OperatorEquals    = "equals"
	OperatorContains  = "contains"
	OperatorNotEquals = "not_equals"
)

// 节点类型标签，用于多态反序列化时区分条件和条件组。
const (
	ItemTypeCondition = "condition"
	ItemTypeGroup     = "group"
	ItemTypeRoot      = "root"
)

// LogicalCondition 是扁平形式的过滤条件（保存到库里、发给后端的形态）。
// Logic 描述该条件与"前面累计结果"的组合方式，第一个条件的 Logic 被忽略。
type LogicalCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Logic    string `json:"logic"`
}

// OperationCondition 是 LogicalOperation 里的单个条件，不再携带 logic。
type OperationCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// LogicalOperation 是后端设备查询接口消费的操作单元。
// 同一个操作内的 conditions 按 OperationType 组合；
// NestedOperations 只有树形产生器会填充，扁平产生器恒为空。
type LogicalOperation struct {
	OperationType    string               `json:"operation_type"`
	Conditions       []OperationCondition `json:"conditions"`
	NestedOperations []LogicalOperation   `json:"nested_operations"`
}

// TreeItem 是条件树节点的多态接口，实现只有两种：
// *ConditionItem（叶子）和 *ConditionGroup（内部节点）。
type TreeItem interface {
	ItemID() string
	isTreeItem()
}

// ConditionItem 是条件树的叶子节点。
type ConditionItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	// Logic 描述该条件与同级元素的组合方式。
	Logic string `json:"logic"`
}

func (c *ConditionItem) ItemID() string { return c.ID }
func (c *ConditionItem) isTreeItem()    {}

// ConditionGroup 是条件树的内部节点，可以无限嵌套。
// 空 items 合法（界面显示为空组），各处遍历都必须能处理。
type ConditionGroup struct {
	ID string `json:"id"`
	// Type 恒为 "group"，反序列化靠它分辨节点种类。
	Type string `json:"type"`
	// Logic 是该组与同级元素的组合方式（AND/OR/NOT）。
	Logic string `json:"logic"`
	// InternalLogic 是组内子元素之间的组合方式（AND/OR）。
	InternalLogic string     `json:"internalLogic"`
	Items         []TreeItem `json:"items"`
}

func (g *ConditionGroup) ItemID() string { return g.ID }
func (g *ConditionGroup) isTreeItem()    {}

// ConditionTree 是条件树的根。树只通过追加/删除操作演化，
// 不存在引用赋值，因此结构上不可能成环。
type ConditionTree struct {
	Type          string     `json:"type"`
	InternalLogic string     `json:"internalLogic"`
	Items         []TreeItem `json:"items"`
}

// NewConditionTree 创建一棵空树，默认顶层 AND 组合。
func NewConditionTree() *ConditionTree {
	return &ConditionTree{
		Type:          ItemTypeRoot,
		InternalLogic: LogicAnd,
		Items:         []TreeItem{},
	}
}

// itemProbe 只解出 type 标签，决定具体类型后再完整反序列化。
type itemProbe struct {
	Type string `json:"type"`
}

// unmarshalItems 把原始 JSON 数组还原成多态节点列表。
// 没有 type 或 type 不是 "group" 的元素一律按条件处理，
// 容忍旧数据缺失标签。
func unmarshalItems(raws []json.RawMessage) ([]TreeItem, error) {
	items := make([]TreeItem, 0, len(raws))
	for i, raw := range raws {
		var probe itemProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if probe.Type == ItemTypeGroup {
			var group ConditionGroup
			if err := json.Unmarshal(raw, &group); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, &group)
			continue
		}
		var cond ConditionItem
		if err := json.Unmarshal(raw, &cond); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if cond.Type == "" {
			cond.Type = ItemTypeCondition
		}
		items = append(items, &cond)
	}
	return items, nil
}

// UnmarshalJSON 实现条件组的多态反序列化。
func (g *ConditionGroup) UnmarshalJSON(data []byte) error {
	type groupAlias struct {
		ID            string            `json:"id"`
		Type          string            `json:"type"`
		Logic         string            `json:"logic"`
		InternalLogic string            `json:"internalLogic"`
		Items         []json.RawMessage `json:"items"`
	}
	var alias groupAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	items, err := unmarshalItems(alias.Items)
	if err != nil {
		return err
	}
	g.ID = alias.ID
	g.Type = ItemTypeGroup
	g.Logic = alias.Logic
	g.InternalLogic = alias.InternalLogic
	g.Items = items
	return nil
}

// UnmarshalJSON 实现根节点的多态反序列化。
func (t *ConditionTree) UnmarshalJSON(data []byte) error {
	type treeAlias struct {
		Type          string            `json:"type"`
		InternalLogic string            `json:"internalLogic"`
		Items         []json.RawMessage `json:"items"`
	}
	var alias treeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	items, err := unmarshalItems(alias.Items)
	if err != nil {
		return err
	}
	t.Type = ItemTypeRoot
	t.InternalLogic = alias.InternalLogic
	if t.InternalLogic == "" {
		t.InternalLogic = LogicAnd
	}
	t.Items = items
	return nil
}

// equalsOnlyFields 只允许 equals 的字段。
// 这些字段的值来自下拉选择（引用外部对象），子串匹配没有意义。
var equalsOnlyFields = map[string]struct{}{
	"role":         {},
	"device_type":  {},
	"manufacturer": {},
	"platform":     {},
	"has_primary":  {},
	"status":       {},
	"site":         {},
}

// equalsNotEqualsFields 允许 equals / not_equals 的字段。
var equalsNotEqualsFields = map[string]struct{}{
	"location": {},
	"tag":      {},
}

// CustomFieldPrefix 是 Nautobot 自定义字段在过滤器里的字段名前缀。
const CustomFieldPrefix = "cf_"

// AllowedOperators 返回某字段合法的运算符列表，首个元素即默认运算符。
// 规则（与前端过滤器构建器保持一致）：
// 1. 引用型字段只允许 equals。
// 2. location/tag 额外允许 not_equals。
// 3. name 和自定义字段（cf_ 前缀）允许 equals/contains。
// 4. 其余字段默认 equals/contains。
func AllowedOperators(field string) []string {
	if _, ok := equalsOnlyFields[field]; ok {
		return []string{OperatorEquals}
	}
	if _, ok := equalsNotEqualsFields[field]; ok {
		return []string{OperatorEquals, OperatorNotEquals}
	}
	if field == "name" || strings.HasPrefix(field, CustomFieldPrefix) {
		return []string{OperatorEquals, OperatorContains}
	}
	return []string{OperatorEquals, OperatorContains}
}

// OperatorAllowed 判断运算符对字段是否合法。
func OperatorAllowed(field, operator string) bool {
	for _, op := range AllowedOperators(field) {
		if op == operator {
			return true
		}
	}
	return false
}

// NormalizeOperator 在字段变化后校正运算符：
// 不合法的运算符重置为该字段的默认运算符，合法的保持不变。
func NormalizeOperator(field, operator string) string {
	if OperatorAllowed(field, operator) {
		return operator
	}
	return AllowedOperators(field)[0]
}

// NormalizeLogic 把任意大小写的 logic 值规范成 AND/OR/NOT，
// 无法识别时回落到 AND。
func NormalizeLogic(logic string) string {
	switch strings.ToUpper(strings.TrimSpace(logic)) {
	case LogicOr:
		return LogicOr
	case LogicNot:
		return LogicNot
	default:
		return LogicAnd
	}
}
