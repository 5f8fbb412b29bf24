package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/testutil"
	"gorm.io/gorm"
)

func newTestOrderRepo(t *testing.T) (*OrderRepository, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewOrderRepository(db), db
}

// allocate 模拟订单创建事务：临时号落库→分配正式号→回写
func allocate(t *testing.T, repo *OrderRepository, db *gorm.DB, userID uint) (string, error) {
	t.Helper()
	var orderNo string
	err := db.Transaction(func(tx *gorm.DB) error {
		order := &entity.Order{
			OrderNo:         repo.TempOrderNo(),
			Warehouse:       "仓库A",
			Goods:           "货品",
			DeliveryAddress: "地址",
			Status:          entity.OrderStatusActive,
			UserID:          userID,
			BusinessType:    entity.BusinessTypeOil,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		no, err := repo.NextOrderNo(context.Background(), tx)
		if err != nil {
			return err
		}
		if err := tx.Model(order).Update("order_no", no).Error; err != nil {
			return err
		}
		orderNo = no
		return nil
	})
	return orderNo, err
}

func TestNextOrderNoFormat(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	no, err := allocate(t, repo, db, user.ID)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	if no != "RX250315001" {
		t.Errorf("expected RX250315001, got %s", no)
	}
	if len(no) != 11 {
		t.Errorf("expected 11 characters, got %d", len(no))
	}
}

func TestNextOrderNoMonotonic(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	for i := 1; i <= 3; i++ {
		no, err := allocate(t, repo, db, user.ID)
		if err != nil {
			t.Fatalf("allocate %d failed: %v", i, err)
		}
		expected := fmt.Sprintf("RX250315%03d", i)
		if no != expected {
			t.Errorf("expected %s, got %s", expected, no)
		}
	}
}

func TestNextOrderNoSkipsMalformedNumbers(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	// 同前缀但不合规的订单号不参与流水号推进
	testutil.SeedTestOrder(t, db, user.ID, "RX250315ABC", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.SeedTestOrder(t, db, user.ID, "RX250315005", entity.BusinessTypeOil, entity.OrderStatusActive)

	no, err := allocate(t, repo, db, user.ID)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if no != "RX250315006" {
		t.Errorf("expected RX250315006, got %s", no)
	}
}

func TestNextOrderNoDailyLimit(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	testutil.SeedTestOrder(t, db, user.ID, "RX250315999", entity.BusinessTypeOil, entity.OrderStatusActive)

	_, err := allocate(t, repo, db, user.ID)
	if err != ErrDailyOrderLimit {
		t.Errorf("expected ErrDailyOrderLimit, got %v", err)
	}
}

func TestNextOrderNoAdvancesPastExisting(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	var slept []time.Duration
	repo.sleep = func(d time.Duration) { slept = append(slept, d) }

	testutil.SeedTestOrder(t, db, user.ID, "RX250315001", entity.BusinessTypeOil, entity.OrderStatusActive)

	no, err := allocate(t, repo, db, user.ID)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if no != "RX250315002" {
		t.Errorf("expected RX250315002, got %s", no)
	}
	// 扫描已看到既有行时直接推进流水号，不应进入退避
	if len(slept) != 0 {
		t.Errorf("expected no backoff, slept %v", slept)
	}
}

func TestNextOrderNoConcurrentUniqueness(t *testing.T) {
	repo, db := newTestOrderRepo(t)
	user := testutil.SeedTestUser(t, db, "buyer1", entity.RoleUser, entity.BusinessTypeOil)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	const workers = 20
	results := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = allocate(t, repo, db, user.ID)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if seen[results[i]] {
			t.Fatalf("duplicate order number allocated: %s", results[i])
		}
		seen[results[i]] = true
		if !strings.HasPrefix(results[i], "RX250315") {
			t.Errorf("unexpected order number format: %s", results[i])
		}
	}
	if len(seen) != workers {
		t.Errorf("expected %d unique order numbers, got %d", workers, len(seen))
	}
}

func TestTempOrderNoFormat(t *testing.T) {
	repo, _ := newTestOrderRepo(t)

	fixed := time.Date(2025, 3, 15, 10, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }

	no := repo.TempOrderNo()
	if !strings.HasPrefix(no, "TEMP250315") {
		t.Errorf("expected TEMP250315 prefix, got %s", no)
	}
	if len(no) != 13 {
		t.Errorf("expected 13 characters, got %d", len(no))
	}
}

func TestParseOrderNoSeq(t *testing.T) {
	cases := []struct {
		no     string
		seq    int
		valid  bool
	}{
		{"RX250315001", 1, true},
		{"RX250315999", 999, true},
		{"RX250315ABC", 0, false},
		{"RX2503150001", 0, false},
		{"RX250315", 0, false},
		{"XX250315001", 0, false},
	}

	for _, tc := range cases {
		seq, ok := parseOrderNoSeq(tc.no, "RX250315")
		if ok != tc.valid || seq != tc.seq {
			t.Errorf("parseOrderNoSeq(%q) = (%d, %v), want (%d, %v)", tc.no, seq, ok, tc.seq, tc.valid)
		}
	}
}
