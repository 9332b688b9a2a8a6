package service

import (
	"context"
	"sort"
	"strings"

	"cockpit_go/internal/model"
	"cockpit_go/pkg/log"
	"cockpit_go/pkg/nautobot"
)

// FieldOption / OperatorOption 是过滤器构建器的下拉选项。
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldOptions 是构建器可用的字段、运算符和逻辑组合选项。
type FieldOptions struct {
	Fields            []FieldOption `json:"fields"`
	Operators         []FieldOption `json:"operators"`
	LogicalOperations []FieldOption `json:"logical_operations"`
}

// PreviewService 执行操作列表并返回命中设备（库存预览）。
// 执行模型（与既有后端语义一致）：
//  1. 操作内每个条件各查一次设备，得到若干 id 集合。
//  2. 集合按操作类型组合：AND 交集，OR 并集，NOT 并集（先并出要排除的全集）。
//  3. 操作之间从左到右折叠：第一个非 NOT 操作作为种子，
//     后续非 NOT 操作求交集，NOT 操作做差集。
type PreviewService interface {
	// Preview 返回命中设备（按名称排序）和已执行的操作数。
	Preview(ctx context.Context, ops []model.LogicalOperation) ([]model.Device, int, error)

	// FieldOptions 返回构建器的字段/运算符/逻辑选项。
	FieldOptions() FieldOptions
}

type previewService struct {
	client nautobot.Client
}

func NewPreviewService(client nautobot.Client) PreviewService {
	return &previewService{client: client}
}

func (s *previewService) Preview(ctx context.Context, ops []model.LogicalOperation) ([]model.Device, int, error) {
	if s.client == nil {
		return nil, 0, ErrInternal
	}
	if len(ops) == 0 {
		return []model.Device{}, 0, nil
	}

	byID := make(map[string]model.Device)
	var result map[string]struct{}
	seeded := false
	executed := 0

	for _, op := range ops {
		opIDs, err := s.executeOperation(ctx, op, byID, &executed)
		if err != nil {
			return nil, 0, err
		}

		isNot := strings.EqualFold(op.OperationType, model.LogicNot)
		if !seeded {
			// 种子之前的 NOT 没有可排除的基底，对空集做差仍是空集，直接跳过。
			if isNot {
				continue
			}
			result = opIDs
			seeded = true
			continue
		}
		if isNot {
			result = differenceSet(result, opIDs)
		} else {
			result = intersectSets([]map[string]struct{}{result, opIDs})
		}
	}
	if !seeded {
		result = map[string]struct{}{}
	}

	devices := make([]model.Device, 0, len(result))
	for id := range result {
		devices = append(devices, byID[id])
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, executed, nil
}

// executeOperation 执行单个操作：条件集合 + 嵌套操作集合按操作类型组合。
func (s *previewService) executeOperation(ctx context.Context, op model.LogicalOperation, byID map[string]model.Device, executed *int) (map[string]struct{}, error) {
	*executed++

	sets := make([]map[string]struct{}, 0, len(op.Conditions)+len(op.NestedOperations))
	for _, cond := range op.Conditions {
		ids, err := s.executeCondition(ctx, cond, byID)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ids)
	}
	for _, nested := range op.NestedOperations {
		ids, err := s.executeOperation(ctx, nested, byID, executed)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ids)
	}

	switch strings.ToUpper(op.OperationType) {
	case model.LogicAnd:
		return intersectSets(sets), nil
	case model.LogicOr:
		return unionSets(sets), nil
	case model.LogicNot:
		// NOT 操作先并出全部命中，由上层做差集
		return unionSets(sets), nil
	default:
		log.Warnf("Preview: unknown operation type %q", op.OperationType)
		return map[string]struct{}{}, nil
	}
}

// executeCondition 执行单个条件查询，返回命中设备的 id 集合。
// not_equals 用差集表达：全量设备减去 equals 命中的设备。
func (s *previewService) executeCondition(ctx context.Context, cond model.OperationCondition, byID map[string]model.Device) (map[string]struct{}, error) {
	if cond.Operator == model.OperatorNotEquals {
		all, err := s.client.ListDevices(ctx)
		if err != nil {
			log.Errorf("Preview: failed to list devices: %v", err)
			return nil, ErrUpstreamUnavailable
		}
		matched, err := s.client.QueryDevices(ctx, cond.Field, model.OperatorEquals, cond.Value)
		if err != nil {
			log.Errorf("Preview: device query failed for field %q: %v", cond.Field, err)
			return nil, ErrUpstreamUnavailable
		}
		return differenceSet(indexDevices(all, byID), indexDevices(matched, byID)), nil
	}

	devices, err := s.client.QueryDevices(ctx, cond.Field, cond.Operator, cond.Value)
	if err != nil {
		log.Errorf("Preview: device query failed for field %q: %v", cond.Field, err)
		return nil, ErrUpstreamUnavailable
	}
	return indexDevices(devices, byID), nil
}

// indexDevices 把设备并入 id 索引并返回它们的 id 集合。
func indexDevices(devices []model.Device, byID map[string]model.Device) map[string]struct{} {
	ids := make(map[string]struct{}, len(devices))
	for _, dev := range devices {
		ids[dev.ID] = struct{}{}
		byID[dev.ID] = dev
	}
	return ids
}

func intersectSets(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	result := sets[0]
	for _, s := range sets[1:] {
		next := make(map[string]struct{})
		for id := range result {
			if _, ok := s[id]; ok {
				next[id] = struct{}{}
			}
		}
		result = next
	}
	return result
}

func unionSets(sets []map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{})
	for _, s := range sets {
		for id := range s {
			result[id] = struct{}{}
		}
	}
	return result
}

func differenceSet(base, remove map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{}, len(base))
	for id := range base {
		if _, ok := remove[id]; !ok {
			result[id] = struct{}{}
		}
	}
	return result
}

// FieldOptions 返回构建器下拉选项，内容与设备过滤能力保持一致。
func (s *previewService) FieldOptions() FieldOptions {
	return FieldOptions{
		Fields: []FieldOption{
			{Value: "name", Label: "Device Name"},
			{Value: "location", Label: "Location"},
			{Value: "role", Label: "Role"},
			{Value: "status", Label: "Status"},
			{Value: "tag", Label: "Tag"},
			{Value: "device_type", Label: "Device Type"},
			{Value: "manufacturer", Label: "Manufacturer"},
			{Value: "platform", Label: "Platform"},
			{Value: "has_primary", Label: "Has Primary"},
			{Value: "custom_fields", Label: "Custom Fields..."},
		},
		Operators: []FieldOption{
			{Value: model.OperatorEquals, Label: "Equals"},
			{Value: model.OperatorNotEquals, Label: "Not Equals"},
			{Value: model.OperatorContains, Label: "Contains"},
		},
		LogicalOperations: []FieldOption{
			{Value: model.LogicAnd, Label: "AND"},
			{Value: model.LogicOr, Label: "OR"},
			{Value: model.LogicNot, Label: "NOT"},
		},
	}
}
