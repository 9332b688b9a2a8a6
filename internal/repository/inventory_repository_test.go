package repository

import (
	"errors"
	"testing"
	"time"

	"cockpit_go/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/gorm"
)

func newMockInventoryRepo(t *testing.T) (InventoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mock := newMockDB(t)
	return NewInventoryRepository(gdb), mock
}

func inventoryRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "conditions", "template_category",
		"template_name", "scope", "created_by", "is_active", "created_at", "updated_at",
	}).AddRow(1, "core-switches", "core network switches",
		`[{"field":"role","operator":"equals","value":"switch","logic":"AND"}]`,
		"", "", "global", "alice", true, now, now)
}

func TestInventoryRepository_Create(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	inv := &model.Inventory{
		Name:       "core-switches",
		Conditions: `[{"field":"role","operator":"equals","value":"switch","logic":"AND"}]`,
		Scope:      model.ScopeGlobal,
		CreatedBy:  "alice",
		IsActive:   true,
	}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `inventories`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(inv); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_Create_Invalid(t *testing.T) {
	repo, _ := newMockInventoryRepo(t)

	if err := repo.Create(nil); err == nil {
		t.Fatal("expected error for nil inventory, got nil")
	}
	if err := repo.Create(&model.Inventory{}); err == nil {
		t.Fatal("expected error for empty name, got nil")
	}
}

func TestInventoryRepository_FindByID(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectQuery("SELECT .* FROM `inventories` WHERE .*id.* = \\? ORDER BY .* LIMIT \\?").
		WithArgs(uint(1), 1).
		WillReturnRows(inventoryRows())

	inv, err := repo.FindByID(1)
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if inv == nil || inv.Name != "core-switches" {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_FindByID_NotFound(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectQuery("SELECT .* FROM `inventories` WHERE .*id.* = \\? ORDER BY .* LIMIT \\?").
		WithArgs(uint(42), 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByID(42)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestInventoryRepository_FindOwnedByName(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectQuery("SELECT .* FROM `inventories` WHERE \\(name = \\? AND created_by = \\?\\) AND is_active = \\? ORDER BY .* LIMIT \\?").
		WithArgs("core-switches", "alice", true, 1).
		WillReturnRows(inventoryRows())

	inv, err := repo.FindOwnedByName("core-switches", "alice", true)
	if err != nil {
		t.Fatalf("FindOwnedByName() error: %v", err)
	}
	if inv == nil || inv.CreatedBy != "alice" {
		t.Fatalf("unexpected inventory: %+v", inv)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_ListAccessible(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	// 可见性条件：global 全量 + 本人的 private
	mock.ExpectQuery("SELECT .* FROM `inventories` WHERE \\(scope = \\? OR \\(scope = \\? AND created_by = \\?\\)\\) AND is_active = \\? ORDER BY name ASC").
		WithArgs(model.ScopeGlobal, model.ScopePrivate, "alice", true).
		WillReturnRows(inventoryRows())

	invs, err := repo.ListAccessible("alice", true, "")
	if err != nil {
		t.Fatalf("ListAccessible() error: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 inventory, got %d", len(invs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_Update_RowsAffectedZero(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	inv := &model.Inventory{ID: 99, Name: "renamed"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `inventories` SET .* WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Update(inv)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestInventoryRepository_SetActive(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `inventories` SET .*is_active.* WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SetActive(1, false); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_Delete(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `inventories` WHERE id = \\?").
		WithArgs(uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Delete(1); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `inventories` WHERE id = \\?").
		WithArgs(uint(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(42)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestInventoryRepository_Search(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectQuery("SELECT .* FROM `inventories` WHERE \\(scope = \\? OR \\(scope = \\? AND created_by = \\?\\)\\) AND \\(\\(name LIKE \\? OR description LIKE \\?\\)\\) AND is_active = \\? ORDER BY name ASC").
		WithArgs(model.ScopeGlobal, model.ScopePrivate, "alice", "%core%", "%core%", true).
		WillReturnRows(inventoryRows())

	invs, err := repo.Search("core", "alice", true)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 inventory, got %d", len(invs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInventoryRepository_CountActive(t *testing.T) {
	repo, mock := newMockInventoryRepo(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `inventories` WHERE is_active = \\?").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))

	count, err := repo.CountActive()
	if err != nil {
		t.Fatalf("CountActive() error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count=3, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
