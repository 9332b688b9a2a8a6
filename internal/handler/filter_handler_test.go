package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"cockpit_go/internal/model"
	"cockpit_go/internal/service"

	"github.com/gin-gonic/gin"
)

type fakeFilterService struct {
	createSessionFn     func(ctx context.Context, username string) (*model.FilterSession, error)
	getSessionFn        func(ctx context.Context, sessionID string) (*model.FilterSession, error)
	deleteSessionFn     func(ctx context.Context, sessionID string) error
	addConditionFn      func(ctx context.Context, sessionID, targetGroupID, field, operator, value, logic string) (*model.FilterSession, error)
	addGroupFn          func(ctx context.Context, sessionID, targetGroupID, logic string, negate bool) (*model.FilterSession, error)
	toggleGroupLogicFn  func(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error)
	removeItemFn        func(ctx context.Context, sessionID, itemID string) (*model.FilterSession, error)
	selectTargetGroupFn func(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error)
	flattenFn           func(ctx context.Context, sessionID string) ([]model.LogicalOperation, error)
	loadConditionsFn    func(ctx context.Context, sessionID string, conds []model.LogicalCondition) (*model.FilterSession, error)
}

func emptySession() *model.FilterSession {
	return &model.FilterSession{ID: "s1", Tree: model.NewConditionTree(), CreatedBy: "alice"}
}

func (f *fakeFilterService) CreateSession(ctx context.Context, username string) (*model.FilterSession, error) {
	if f.createSessionFn != nil {
		return f.createSessionFn(ctx, username)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) GetSession(ctx context.Context, sessionID string) (*model.FilterSession, error) {
	if f.getSessionFn != nil {
		return f.getSessionFn(ctx, sessionID)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) DeleteSession(ctx context.Context, sessionID string) error {
	if f.deleteSessionFn != nil {
		return f.deleteSessionFn(ctx, sessionID)
	}
	return nil
}
func (f *fakeFilterService) AddCondition(ctx context.Context, sessionID, targetGroupID, field, operator, value, logic string) (*model.FilterSession, error) {
	if f.addConditionFn != nil {
		return f.addConditionFn(ctx, sessionID, targetGroupID, field, operator, value, logic)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) AddGroup(ctx context.Context, sessionID, targetGroupID, logic string, negate bool) (*model.FilterSession, error) {
	if f.addGroupFn != nil {
		return f.addGroupFn(ctx, sessionID, targetGroupID, logic, negate)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) ToggleGroupLogic(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error) {
	if f.toggleGroupLogicFn != nil {
		return f.toggleGroupLogicFn(ctx, sessionID, groupID)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) RemoveItem(ctx context.Context, sessionID, itemID string) (*model.FilterSession, error) {
	if f.removeItemFn != nil {
		return f.removeItemFn(ctx, sessionID, itemID)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) SelectTargetGroup(ctx context.Context, sessionID, groupID string) (*model.FilterSession, error) {
	if f.selectTargetGroupFn != nil {
		return f.selectTargetGroupFn(ctx, sessionID, groupID)
	}
	return emptySession(), nil
}
func (f *fakeFilterService) Flatten(ctx context.Context, sessionID string) ([]model.LogicalOperation, error) {
	if f.flattenFn != nil {
		return f.flattenFn(ctx, sessionID)
	}
	return []model.LogicalOperation{}, nil
}
func (f *fakeFilterService) LoadConditions(ctx context.Context, sessionID string, conds []model.LogicalCondition) (*model.FilterSession, error) {
	if f.loadConditionsFn != nil {
		return f.loadConditionsFn(ctx, sessionID, conds)
	}
	return emptySession(), nil
}

func newFilterRouter(filterSvc service.FilterService, invSvc service.InventoryService) *gin.Engine {
	h := NewFilterHandler(filterSvc, invSvc)
	r := gin.New()
	r.Use(withUser(&model.User{ID: 1, Username: "alice", Role: "USER"}))
	r.POST("/filter-sessions", h.CreateSession)
	r.GET("/filter-sessions/:id", h.GetSession)
	r.DELETE("/filter-sessions/:id", h.DeleteSession)
	r.POST("/filter-sessions/:id/conditions", h.AddCondition)
	r.POST("/filter-sessions/:id/groups", h.AddGroup)
	r.POST("/filter-sessions/:id/groups/:groupId/toggle-logic", h.ToggleGroupLogic)
	r.DELETE("/filter-sessions/:id/items/:itemId", h.RemoveItem)
	r.PUT("/filter-sessions/:id/target", h.SelectTarget)
	r.GET("/filter-sessions/:id/operations", h.Flatten)
	r.POST("/filter-sessions/:id/load-inventory", h.LoadInventory)
	return r
}

func TestFilterCreateSession(t *testing.T) {
	svc := &fakeFilterService{
		createSessionFn: func(ctx context.Context, username string) (*model.FilterSession, error) {
			if username != "alice" {
				t.Fatalf("unexpected username: %q", username)
			}
			return emptySession(), nil
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	w := doReq(r, http.MethodPost, "/filter-sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expect 201, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterGetSession_NotFound(t *testing.T) {
	svc := &fakeFilterService{
		getSessionFn: func(ctx context.Context, sessionID string) (*model.FilterSession, error) {
			return nil, service.ErrFilterSessionNotFound
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	w := doReq(r, http.MethodGet, "/filter-sessions/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterAddCondition(t *testing.T) {
	svc := &fakeFilterService{
		addConditionFn: func(ctx context.Context, sessionID, targetGroupID, field, operator, value, logic string) (*model.FilterSession, error) {
			if sessionID != "s1" || targetGroupID != "g1" || field != "role" {
				t.Fatalf("unexpected args: session=%q target=%q field=%q", sessionID, targetGroupID, field)
			}
			return emptySession(), nil
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	body := `{"target_group_id":"g1","field":"role","operator":"equals","value":"switch","logic":"AND"}`
	w := doReq(r, http.MethodPost, "/filter-sessions/s1/conditions", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterAddCondition_MissingField(t *testing.T) {
	r := newFilterRouter(&fakeFilterService{}, &fakeInventoryService{})

	w := doReq(r, http.MethodPost, "/filter-sessions/s1/conditions", `{"operator":"equals"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterAddGroup_Negate(t *testing.T) {
	svc := &fakeFilterService{
		addGroupFn: func(ctx context.Context, sessionID, targetGroupID, logic string, negate bool) (*model.FilterSession, error) {
			if !negate {
				t.Fatal("expected negate=true")
			}
			return emptySession(), nil
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	w := doReq(r, http.MethodPost, "/filter-sessions/s1/groups", `{"logic":"AND","negate":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterRemoveItem(t *testing.T) {
	svc := &fakeFilterService{
		removeItemFn: func(ctx context.Context, sessionID, itemID string) (*model.FilterSession, error) {
			if itemID != "c1" {
				t.Fatalf("unexpected item id: %q", itemID)
			}
			return emptySession(), nil
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	w := doReq(r, http.MethodDelete, "/filter-sessions/s1/items/c1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterFlatten(t *testing.T) {
	svc := &fakeFilterService{
		flattenFn: func(ctx context.Context, sessionID string) ([]model.LogicalOperation, error) {
			return []model.LogicalOperation{
				{OperationType: "AND", Conditions: []model.OperationCondition{}, NestedOperations: []model.LogicalOperation{}},
			}, nil
		},
	}
	r := newFilterRouter(svc, &fakeInventoryService{})

	w := doReq(r, http.MethodGet, "/filter-sessions/s1/operations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Operations []model.LogicalOperation `json:"operations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data.Operations) != 1 {
		t.Fatalf("unexpected operations: %+v", resp.Data.Operations)
	}
}

func TestFilterLoadInventory(t *testing.T) {
	invSvc := &fakeInventoryService{
		getFn: func(id uint, username string) (*model.InventoryDetail, error) {
			if id != 7 || username != "alice" {
				t.Fatalf("unexpected args: id=%d username=%q", id, username)
			}
			return &model.InventoryDetail{
				ID: 7,
				Conditions: []model.LogicalCondition{
					{Field: "role", Operator: "equals", Value: "switch", Logic: "AND"},
				},
			}, nil
		},
	}
	filterSvc := &fakeFilterService{
		loadConditionsFn: func(ctx context.Context, sessionID string, conds []model.LogicalCondition) (*model.FilterSession, error) {
			if len(conds) != 1 {
				t.Fatalf("unexpected conditions: %+v", conds)
			}
			return emptySession(), nil
		},
	}
	r := newFilterRouter(filterSvc, invSvc)

	w := doReq(r, http.MethodPost, "/filter-sessions/s1/load-inventory", `{"inventory_id":7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestFilterLoadInventory_InvisibleInventory(t *testing.T) {
	invSvc := &fakeInventoryService{
		getFn: func(id uint, username string) (*model.InventoryDetail, error) {
			return nil, service.ErrInventoryNotFound
		},
	}
	r := newFilterRouter(&fakeFilterService{}, invSvc)

	w := doReq(r, http.MethodPost, "/filter-sessions/s1/load-inventory", `{"inventory_id":7}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d, body=%s", w.Code, w.Body.String())
	}
}
