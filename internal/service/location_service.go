package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"cockpit_go/internal/model"
	"cockpit_go/pkg/log"
	"cockpit_go/pkg/nautobot"

	"github.com/go-redis/redis/v8"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// locationCacheKey 是解析后位置层级在 Redis 中的缓存 key。
const locationCacheKey = "location_hierarchy"

// LocationService 封装位置层级领域逻辑：
// 从 Nautobot 拉取位置列表，计算层级路径，按路径排序，结果缓存在 Redis。
type LocationService interface {
	// GetHierarchy 返回带层级路径、已排序的位置列表。
	// refresh 为 true 时绕过缓存强制重新拉取。
	GetHierarchy(ctx context.Context, refresh bool) ([]model.Location, error)
}

type locationService struct {
	client   nautobot.Client
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewLocationService 创建位置服务。rdb 允许为 nil（不启用缓存）。
func NewLocationService(client nautobot.Client, rdb *redis.Client, cacheTTL time.Duration) LocationService {
	return &locationService{client: client, rdb: rdb, cacheTTL: cacheTTL}
}

func (s *locationService) GetHierarchy(ctx context.Context, refresh bool) ([]model.Location, error) {
	if s.client == nil {
		return nil, ErrInternal
	}

	if !refresh && s.rdb != nil {
		payload, err := s.rdb.Get(ctx, locationCacheKey).Bytes()
		if err == nil {
			cached, cacheErr := decodeCachedLocations(payload)
			if cacheErr == nil {
				return cached, nil
			}
			// 缓存内容损坏时忽略缓存，走正常拉取路径重建。
			log.Warnf("GetHierarchy: failed to unmarshal cached locations: %v", cacheErr)
		}
	}

	locations, err := s.client.GetLocations(ctx)
	if err != nil {
		log.Errorf("GetHierarchy: failed to fetch locations from nautobot: %v", err)
		return nil, ErrUpstreamUnavailable
	}

	resolved := BuildLocationHierarchy(locations)

	if s.rdb != nil {
		if payload, err := json.Marshal(resolved); err == nil {
			if err := s.rdb.Set(ctx, locationCacheKey, payload, s.cacheTTL).Err(); err != nil {
				// 缓存写失败只降级为无缓存，不影响本次响应。
				log.Warnf("GetHierarchy: failed to cache locations: %v", err)
			}
		}
	}
	return resolved, nil
}

// decodeCachedLocations 解析缓存的层级 JSON，内容损坏时返回解码错误。
func decodeCachedLocations(payload []byte) ([]model.Location, error) {
	var cached []model.Location
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, err
	}
	return cached, nil
}

// BuildLocationHierarchy 为每个位置计算层级路径并按路径排序。
// 关键规则：
// 1. 路径从最上层祖先到自身名称，用 " → " 连接，自身名称在最后。
// 2. 父引用断裂（id 查不到）时停止回溯，保留已解析的部分路径。
// 3. 父链成环（含自引用）时立即停止，绝不允许无限循环。
// 4. 截断的两种情况都置 PathTruncated，调用方可据此提示。
// 5. 排序用 locale 感知比较，同路径时保持输入顺序（稳定排序）。
// 输入切片不会被修改，返回的是副本。
func BuildLocationHierarchy(locations []model.Location) []model.Location {
	resolved := make([]model.Location, len(locations))
	copy(resolved, locations)

	byID := make(map[string]*model.Location, len(resolved))
	for i := range resolved {
		byID[resolved[i].ID] = &resolved[i]
	}

	for i := range resolved {
		path, truncated := buildLocationPath(&resolved[i], byID)
		resolved[i].HierarchicalPath = path
		resolved[i].PathTruncated = truncated
	}

	coll := collate.New(language.Und)
	sort.SliceStable(resolved, func(i, j int) bool {
		return coll.CompareString(resolved[i].HierarchicalPath, resolved[j].HierarchicalPath) < 0
	})
	return resolved
}

// buildLocationPath 沿父链向上回溯，拼出单个位置的层级路径。
// 用 visited 集合做环检测：每跳先查重，见过的 id 立即终止。
func buildLocationPath(loc *model.Location, byID map[string]*model.Location) (string, bool) {
	names := []string{loc.Name}
	visited := map[string]struct{}{loc.ID: {}}
	truncated := false

	current := loc
	for current.Parent != nil && current.Parent.ID != "" {
		parent, ok := byID[current.Parent.ID]
		if !ok {
			// 父引用断裂：保留部分路径
			truncated = true
			break
		}
		if _, seen := visited[parent.ID]; seen {
			// 成环（自引用时第一跳就命中）
			truncated = true
			break
		}
		visited[parent.ID] = struct{}{}
		names = append([]string{parent.Name}, names...)
		current = parent
	}
	return strings.Join(names, model.LocationPathSeparator), truncated
}
