package model

// LocationPathSeparator 是层级路径的连接符，根在前、自身名称在最后。
const LocationPathSeparator = " → "

// LocationRef 是对另一个位置的引用（只携带 id）。
type LocationRef struct {
	ID string `json:"id"`
}

// Location 对应 Nautobot 返回的位置记录。
// 多个根节点合法（森林结构），Parent 为 nil 表示根。
type Location struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Parent *LocationRef `json:"parent,omitempty"`

	// HierarchicalPath 是派生字段：从最上层祖先到自身名称的面包屑路径。
	// 每次源数据刷新后重新计算，绝不回写上游。
	HierarchicalPath string `json:"hierarchicalPath,omitempty"`

	// PathTruncated 标记父链断裂或成环导致的路径截断。
	// 截断只影响展示，不视为错误。
	PathTruncated bool `json:"pathTruncated,omitempty"`
}
