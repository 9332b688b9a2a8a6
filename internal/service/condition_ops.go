package service

import (
	"cockpit_go/internal/model"

	"github.com/google/uuid"
)

// 本文件是条件树的纯内存操作：查找、追加、删除、扁平化、重建。
// 所有函数都不做 I/O，也不会失败——非法输入一律降级为安全的默认行为
// （找不到目标组回落到根、删除不存在的 id 是 no-op）。

// findGroup 在树里递归查找指定 id 的条件组，找不到返回 nil。
func findGroup(items []model.TreeItem, id string) *model.ConditionGroup {
	for _, item := range items {
		group, ok := item.(*model.ConditionGroup)
		if !ok {
			continue
		}
		if group.ID == id {
			return group
		}
		if found := findGroup(group.Items, id); found != nil {
			return found
		}
	}
	return nil
}

// appendItem 把节点追加到目标组，目标组不存在（或 id 为空）时追加到根。
func appendItem(tree *model.ConditionTree, targetGroupID string, item model.TreeItem) {
	if targetGroupID != "" {
		if group := findGroup(tree.Items, targetGroupID); group != nil {
			group.Items = append(group.Items, item)
			return
		}
	}
	tree.Items = append(tree.Items, item)
}

// removeItem 递归删除指定 id 的节点（条件或整个子树）。
// 返回是否真的删掉了东西；删除不存在的 id 不是错误。
func removeItem(tree *model.ConditionTree, id string) bool {
	items, removed := removeFromItems(tree.Items, id)
	tree.Items = items
	return removed
}

func removeFromItems(items []model.TreeItem, id string) ([]model.TreeItem, bool) {
	for i, item := range items {
		if item.ItemID() == id {
			return append(items[:i:i], items[i+1:]...), true
		}
		if group, ok := item.(*model.ConditionGroup); ok {
			if children, removed := removeFromItems(group.Items, id); removed {
				group.Items = children
				return items, true
			}
		}
	}
	return items, false
}

// BuildOperationsFromConditions 把扁平条件列表转换成后端操作列表。
// 关键规则（与既有消费端保持兼容，见 DESIGN.md）：
//  1. 第一个条件无视自己的 logic，固定作为 AND 组的种子。
//  2. 后续条件按 logic 分桶：AND 进主合取组，OR 进析取组，NOT 各自独立。
//  3. 存在 OR 条件时只发一个 OR 操作，其 conditions 是
//     全部 AND 条件在前、全部 OR 条件在后的拼接（OR 吸收 AND 集合）。
//  4. 否则发一个包含全部 AND 条件的 AND 操作。
//  5. 每个 NOT 条件单独成为一个 NOT 操作。
//  6. 该路径下 nested_operations 恒为空，真正的递归嵌套走树形产生器。
//
// 单条件输入恒产出恰好一个 AND 操作。
func BuildOperationsFromConditions(conds []model.LogicalCondition) []model.LogicalOperation {
	ops := []model.LogicalOperation{}
	if len(conds) == 0 {
		return ops
	}

	var andConds, orConds, notConds []model.OperationCondition
	for i, cond := range conds {
		oc := model.OperationCondition{Field: cond.Field, Operator: cond.Operator, Value: cond.Value}
		if i == 0 {
			andConds = append(andConds, oc)
			continue
		}
		switch model.NormalizeLogic(cond.Logic) {
		case model.LogicOr:
			orConds = append(orConds, oc)
		case model.LogicNot:
			notConds = append(notConds, oc)
		default:
			andConds = append(andConds, oc)
		}
	}

	if len(orConds) > 0 {
		merged := make([]model.OperationCondition, 0, len(andConds)+len(orConds))
		merged = append(merged, andConds...)
		merged = append(merged, orConds...)
		ops = append(ops, model.LogicalOperation{
			OperationType:    model.LogicOr,
			Conditions:       merged,
			NestedOperations: []model.LogicalOperation{},
		})
	} else if len(andConds) > 0 {
		ops = append(ops, model.LogicalOperation{
			OperationType:    model.LogicAnd,
			Conditions:       andConds,
			NestedOperations: []model.LogicalOperation{},
		})
	}

	for _, nc := range notConds {
		ops = append(ops, model.LogicalOperation{
			OperationType:    model.LogicNot,
			Conditions:       []model.OperationCondition{nc},
			NestedOperations: []model.LogicalOperation{},
		})
	}
	return ops
}

// BuildOperationsFromTree 把嵌套条件树转换成后端操作列表。
// 根上的叶子条件合成一个操作（类型取根的 internalLogic），
// 每个顶层条件组各自转成一个操作，子组递归落到 nested_operations。
func BuildOperationsFromTree(tree *model.ConditionTree) []model.LogicalOperation {
	ops := []model.LogicalOperation{}
	if tree == nil {
		return ops
	}

	rootConds, groups := splitItems(tree.Items)
	if len(rootConds) > 0 {
		opType := model.NormalizeLogic(tree.InternalLogic)
		if opType == model.LogicNot {
			opType = model.LogicAnd
		}
		ops = append(ops, model.LogicalOperation{
			OperationType:    opType,
			Conditions:       rootConds,
			NestedOperations: []model.LogicalOperation{},
		})
	}
	for _, group := range groups {
		ops = append(ops, groupToOperation(group))
	}
	return ops
}

// groupToOperation 把一个条件组转成操作：
// 组的同级逻辑是 NOT 时操作类型为 NOT（排除语义），
// 否则取组内部的组合逻辑；空组产出空条件的合法操作。
func groupToOperation(group *model.ConditionGroup) model.LogicalOperation {
	opType := model.NormalizeLogic(group.InternalLogic)
	if opType == model.LogicNot {
		opType = model.LogicAnd
	}
	if model.NormalizeLogic(group.Logic) == model.LogicNot {
		opType = model.LogicNot
	}

	conds, subGroups := splitItems(group.Items)
	nested := make([]model.LogicalOperation, 0, len(subGroups))
	for _, sub := range subGroups {
		nested = append(nested, groupToOperation(sub))
	}
	return model.LogicalOperation{
		OperationType:    opType,
		Conditions:       conds,
		NestedOperations: nested,
	}
}

// splitItems 把混合节点列表拆成叶子条件和子组两部分，保持原有顺序。
func splitItems(items []model.TreeItem) ([]model.OperationCondition, []*model.ConditionGroup) {
	conds := []model.OperationCondition{}
	groups := []*model.ConditionGroup{}
	for _, item := range items {
		switch v := item.(type) {
		case *model.ConditionItem:
			conds = append(conds, model.OperationCondition{Field: v.Field, Operator: v.Operator, Value: v.Value})
		case *model.ConditionGroup:
			groups = append(groups, v)
		}
	}
	return conds, groups
}

// ExpandConditions 把保存的扁平条件重建为一棵新树（加载库存时用）。
// 往返保证的是语义等价而不是结构一致：
// NOT 条件回来时变成只含一个条件的 NOT 组，其余条件平铺在根上。
func ExpandConditions(conds []model.LogicalCondition) *model.ConditionTree {
	tree := model.NewConditionTree()
	for i, cond := range conds {
		logic := model.NormalizeLogic(cond.Logic)
		if i == 0 {
			logic = model.LogicAnd
		}

		item := &model.ConditionItem{
			ID:       uuid.NewString(),
			Type:     model.ItemTypeCondition,
			Field:    cond.Field,
			Operator: model.NormalizeOperator(cond.Field, cond.Operator),
			Value:    cond.Value,
			Logic:    logic,
		}

		if logic == model.LogicNot {
			item.Logic = model.LogicAnd
			tree.Items = append(tree.Items, &model.ConditionGroup{
				ID:            uuid.NewString(),
				Type:          model.ItemTypeGroup,
				Logic:         model.LogicNot,
				InternalLogic: model.LogicAnd,
				Items:         []model.TreeItem{item},
			})
			continue
		}
		tree.Items = append(tree.Items, item)
	}
	return tree
}

// CollectConditions 把树压回扁平条件列表（保存库存时用）。
// 叶子条件保留自己的 logic；NOT 组里的条件统一带上 NOT。
// 深层嵌套在扁平形式下无法完整表达，只保证与 ExpandConditions 往返等价。
func CollectConditions(tree *model.ConditionTree) []model.LogicalCondition {
	conds := []model.LogicalCondition{}
	if tree == nil {
		return conds
	}
	collectFromItems(tree.Items, "", &conds)
	return conds
}

func collectFromItems(items []model.TreeItem, forcedLogic string, conds *[]model.LogicalCondition) {
	for _, item := range items {
		switch v := item.(type) {
		case *model.ConditionItem:
			logic := model.NormalizeLogic(v.Logic)
			if forcedLogic != "" {
				logic = forcedLogic
			}
			*conds = append(*conds, model.LogicalCondition{
				Field:    v.Field,
				Operator: v.Operator,
				Value:    v.Value,
				Logic:    logic,
			})
		case *model.ConditionGroup:
			childForced := forcedLogic
			if model.NormalizeLogic(v.Logic) == model.LogicNot {
				childForced = model.LogicNot
			}
			collectFromItems(v.Items, childForced, conds)
		}
	}
}
