package service

import (
	"context"
	"errors"
	"time"

	"cockpit_go/internal/model"
	"cockpit_go/internal/repository"
	"cockpit_go/pkg/log"

	"github.com/google/uuid"
)

var (
	// ErrFilterSessionNotFound 会话不存在或已过期
	ErrFilterSessionNotFound = errors.New("filter session not found")
)

// FilterService 封装过滤器构建会话的领域逻辑。
// 一个会话持有一棵条件树和当前插入目标，所有修改都是纯内存树编辑，
// 改完整体写回会话仓库。树编辑本身不会失败：
// 非法目标回落到根，删除不存在的 id 是 no-op。
type FilterService interface {
	CreateSession(ctx context.Context, username string) (*model.FilterSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.FilterSession, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// AddCondition 向目标组（为空时用会话记录的目标，仍为空则根）追加条件。
	// 运算符对字段不合法时重置为该字段的默认运算符。
	AddCondition(ctx context.Context, sessionID, targetGroupID, field, operator, value, logic string) (*model.FilterSession, error)

	// AddGroup 追加一个空条件组。negate 为 true 时组的同级逻辑强制为 NOT。
	AddGroup(ctx context.Context, sessionID, targetGroupID, logic string, negate bool) (*model.FilterSession, error)

	// ToggleGroupLogic 在 AND/OR 之间切换组内部组合逻辑。
	// 不影响组与同级的组合方式；组不存在时是 no-op。
	ToggleGroupLogic(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error)

	// RemoveItem 删除条件或整个条件组（含全部后代）。
	// 被删的组如果是当前插入目标，目标回落到根。
	RemoveItem(ctx context.Context, sessionID, itemID string) (*model.FilterSession, error)

	// SelectTargetGroup 设置后续插入的目标组；groupID 为空表示根。
	// 指向不存在的组时回落到根，绝不保留悬挂引用。
	SelectTargetGroup(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error)

	// Flatten 把会话的树转换成后端操作列表（树形产生器）。
	Flatten(ctx context.Context, sessionID string) ([]model.LogicalOperation, error)

	// LoadConditions 用保存的扁平条件重建会话的树（加载库存）。
	LoadConditions(ctx context.Context, sessionID string, conds []model.LogicalCondition) (*model.FilterSession, error)
}

type filterService struct {
	sessionRepo repository.SessionRepository
}

func NewFilterService(sessionRepo repository.SessionRepository) FilterService {
	return &filterService{sessionRepo: sessionRepo}
}

func (s *filterService) CreateSession(ctx context.Context, username string) (*model.FilterSession, error) {
	if s.sessionRepo == nil {
		return nil, ErrInternal
	}

	now := time.Now()
	session := &model.FilterSession{
		ID:        uuid.NewString(),
		Tree:      model.NewConditionTree(),
		CreatedBy: username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		log.Errorf("CreateSession: failed to save session: %v", err)
		return nil, ErrInternal
	}
	return session, nil
}

func (s *filterService) GetSession(ctx context.Context, sessionID string) (*model.FilterSession, error) {
	if s.sessionRepo == nil {
		return nil, ErrInternal
	}
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrFilterSessionNotFound
		}
		log.Errorf("GetSession: failed to load session %q: %v", sessionID, err)
		return nil, ErrInternal
	}
	// 防御旧数据：树缺失时给一棵空树，后续编辑不至于崩。
	if session.Tree == nil {
		session.Tree = model.NewConditionTree()
	}
	return session, nil
}

func (s *filterService) DeleteSession(ctx context.Context, sessionID string) error {
	if s.sessionRepo == nil {
		return ErrInternal
	}
	if sessionID == "" {
		return ErrInvalidInput
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		log.Errorf("DeleteSession: failed to delete session %q: %v", sessionID, err)
		return ErrInternal
	}
	return nil
}

// mutate 统一会话修改的读-改-写流程。
func (s *filterService) mutate(ctx context.Context, sessionID string, fn func(session *model.FilterSession)) (*model.FilterSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	fn(session)

	session.UpdatedAt = time.Now()
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		log.Errorf("mutate: failed to save session %q: %v", sessionID, err)
		return nil, ErrInternal
	}
	return session, nil
}

func (s *filterService) AddCondition(ctx context.Context, sessionID, targetGroupID, field, operator, value, logic string) (*model.FilterSession, error) {
	if field == "" {
		return nil, ErrInvalidInput
	}

	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		if targetGroupID == "" {
			targetGroupID = session.TargetGroupID
		}
		item := &model.ConditionItem{
			ID:       uuid.NewString(),
			Type:     model.ItemTypeCondition,
			Field:    field,
			Operator: model.NormalizeOperator(field, operator),
			Value:    value,
			Logic:    model.NormalizeLogic(logic),
		}
		appendItem(session.Tree, targetGroupID, item)
	})
}

func (s *filterService) AddGroup(ctx context.Context, sessionID, targetGroupID, logic string, negate bool) (*model.FilterSession, error) {
	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		if targetGroupID == "" {
			targetGroupID = session.TargetGroupID
		}
		groupLogic := model.NormalizeLogic(logic)
		if negate {
			groupLogic = model.LogicNot
		}
		group := &model.ConditionGroup{
			ID:            uuid.NewString(),
			Type:          model.ItemTypeGroup,
			Logic:         groupLogic,
			InternalLogic: model.LogicAnd,
			Items:         []model.TreeItem{},
		}
		appendItem(session.Tree, targetGroupID, group)
	})
}

func (s *filterService) ToggleGroupLogic(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error) {
	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		group := findGroup(session.Tree.Items, groupID)
		if group == nil {
			return
		}
		if model.NormalizeLogic(group.InternalLogic) == model.LogicAnd {
			group.InternalLogic = model.LogicOr
		} else {
			group.InternalLogic = model.LogicAnd
		}
	})
}

func (s *filterService) RemoveItem(ctx context.Context, sessionID, itemID string) (*model.FilterSession, error) {
	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		removeItem(session.Tree, itemID)
		// 目标组（或其祖先）被删时回落到根
		if session.TargetGroupID != "" && findGroup(session.Tree.Items, session.TargetGroupID) == nil {
			session.TargetGroupID = ""
		}
	})
}

func (s *filterService) SelectTargetGroup(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error) {
	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		if groupID == "" || findGroup(session.Tree.Items, groupID) == nil {
			session.TargetGroupID = ""
			return
		}
		session.TargetGroupID = groupID
	})
}

func (s *filterService) Flatten(ctx context.Context, sessionID string) ([]model.LogicalOperation, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return BuildOperationsFromTree(session.Tree), nil
}

func (s *filterService) LoadConditions(ctx context.Context, sessionID string, conds []model.LogicalCondition) (*model.FilterSession, error) {
	return s.mutate(ctx, sessionID, func(session *model.FilterSession) {
		session.Tree = ExpandConditions(conds)
		session.TargetGroupID = ""
	})
}
