package model

import "time"

// FilterSession 是一次过滤器构建会话的服务端状态。
// 会话存放在 Redis 中（JSON 序列化），带 TTL，过期即废弃。
// 树和插入目标都只在构建期间有意义，保存库存时只落扁平条件。
type FilterSession struct {
	ID   string         `json:"id"`
	Tree *ConditionTree `json:"tree"`

	// TargetGroupID 是后续 AddCondition/AddGroup 的插入目标组 id。
	// 空串表示根。目标组被删除时必须回落到根，绝不保留悬挂引用。
	TargetGroupID string `json:"targetGroupId,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
