package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/testutil"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func todayPrefix() string {
	return "RX" + time.Now().Format("060102")
}

func TestCreateOrderAllocatesSequentialNumbers(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	supplier := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, "")
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	body := map[string]interface{}{
		"warehouse":        "华东一仓",
		"goods":            "柴油 0#",
		"delivery_address": "上海市浦东新区",
		"supplier_ids":     []uint{supplier.ID},
	}

	for i := 1; i <= 2; i++ {
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/orders", body, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}

		resp := testutil.ParseResponse(w)
		data := resp["data"].(map[string]interface{})
		order := data["order"].(map[string]interface{})
		expected := fmt.Sprintf("%s%03d", todayPrefix(), i)
		if order["order_no"] != expected {
			t.Errorf("expected order_no %s, got %v", expected, order["order_no"])
		}
	}
}

func TestCreateOrderNotifiesSuppliers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := setupEnv(t, "http://portal.example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	supplier := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, srv.URL)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/orders", map[string]interface{}{
		"warehouse":        "华东一仓",
		"goods":            "柴油 0#",
		"delivery_address": "上海市浦东新区",
		"supplier_ids":     []uint{supplier.ID},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 webhook call, got %d", calls.Load())
	}

	resp := testutil.ParseResponse(w)
	notify := resp["data"].(map[string]interface{})["notify"].(map[string]interface{})
	if notify["notified"].(float64) != 1 {
		t.Errorf("expected notified=1, got %v", notify["notified"])
	}

	// 通知成功后标记notified
	var link entity.OrderSupplier
	if err := env.DB.Where("supplier_id = ?", supplier.ID).First(&link).Error; err != nil {
		t.Fatalf("order_suppliers link missing: %v", err)
	}
	if !link.Notified {
		t.Error("expected supplier marked as notified")
	}
}

func TestCreateOrderRejectsForeignSuppliers(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	buyer := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	other := testutil.SeedTestUser(t, env.DB, "buyer2", entity.RoleUser, entity.BusinessTypeOil)
	foreign := testutil.SeedTestSupplier(t, env.DB, other.ID, "别人的供应商", entity.BusinessTypeOil, "")
	token := testutil.GenerateTestToken(buyer.ID, buyer.Username, buyer.Role, buyer.BusinessType)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/orders", map[string]interface{}{
		"warehouse":        "仓库",
		"goods":            "货品",
		"delivery_address": "地址",
		"supplier_ids":     []uint{foreign.ID},
	}, token)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSelectSupplierCompletesOrder(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	supplier := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, "")
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.InviteSupplier(t, env.DB, order.ID, supplier.ID)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	quote := &entity.Quote{
		OrderID:    order.ID,
		SupplierID: supplier.ID,
		Price:      decimal.RequireFromString("1234.50"),
	}
	if err := env.DB.Create(quote).Error; err != nil {
		t.Fatalf("seed quote failed: %v", err)
	}

	path := fmt.Sprintf("/api/v1/orders/%d/select", order.ID)
	w := testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{
		"supplier_id": supplier.ID,
		"price":       "1234.50",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated entity.Order
	env.DB.First(&updated, order.ID)
	if updated.Status != entity.OrderStatusCompleted {
		t.Errorf("expected status completed, got %s", updated.Status)
	}
	if updated.SelectedSupplierID == nil || *updated.SelectedSupplierID != supplier.ID {
		t.Error("expected selected supplier recorded")
	}
	if updated.SelectedPrice == nil || !updated.SelectedPrice.Equal(decimal.RequireFromString("1234.50")) {
		t.Error("expected selected price recorded")
	}
}

func TestSelectSupplierRejectsPriceMismatch(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	supplier := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, "")
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.InviteSupplier(t, env.DB, order.ID, supplier.ID)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	quote := &entity.Quote{
		OrderID:    order.ID,
		SupplierID: supplier.ID,
		Price:      decimal.RequireFromString("1000.00"),
	}
	if err := env.DB.Create(quote).Error; err != nil {
		t.Fatalf("seed quote failed: %v", err)
	}

	path := fmt.Sprintf("/api/v1/orders/%d/select", order.ID)
	w := testutil.DoRequest(env.Router, "POST", path, map[string]interface{}{
		"supplier_id": supplier.ID,
		"price":       "999.00",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on price mismatch, got %d: %s", w.Code, w.Body.String())
	}

	var updated entity.Order
	env.DB.First(&updated, order.ID)
	if updated.Status != entity.OrderStatusActive {
		t.Errorf("expected order to stay active, got %s", updated.Status)
	}
}

func TestCancelOrderOnlyWhenActive(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	path := fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID)
	w := testutil.DoRequest(env.Router, "POST", path, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 已取消的订单不能再次取消
	w = testutil.DoRequest(env.Router, "POST", path, nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on double cancel, got %d", w.Code)
	}
}

func TestOrderListScopedByBusinessType(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	oilUser := testutil.SeedTestUser(t, env.DB, "oil_buyer", entity.RoleUser, entity.BusinessTypeOil)
	fmUser := testutil.SeedTestUser(t, env.DB, "fm_buyer", entity.RoleUser, entity.BusinessTypeFastMoving)
	admin := testutil.SeedTestUser(t, env.DB, "admin", entity.RoleAdmin, entity.BusinessTypeOil)

	testutil.SeedTestOrder(t, env.DB, oilUser.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.SeedTestOrder(t, env.DB, fmUser.ID, "RX250101002", entity.BusinessTypeFastMoving, entity.OrderStatusActive)

	countOrders := func(token string) int {
		w := testutil.DoRequest(env.Router, "GET", "/api/v1/orders", nil, token)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		resp := testutil.ParseResponse(w)
		items := resp["data"].(map[string]interface{})["items"].([]interface{})
		return len(items)
	}

	oilToken := testutil.GenerateTestToken(oilUser.ID, oilUser.Username, oilUser.Role, oilUser.BusinessType)
	if n := countOrders(oilToken); n != 1 {
		t.Errorf("oil user should see 1 order, got %d", n)
	}

	fmToken := testutil.GenerateTestToken(fmUser.ID, fmUser.Username, fmUser.Role, fmUser.BusinessType)
	if n := countOrders(fmToken); n != 1 {
		t.Errorf("fast_moving user should see 1 order, got %d", n)
	}

	adminToken := testutil.GenerateTestToken(admin.ID, admin.Username, admin.Role, admin.BusinessType)
	if n := countOrders(adminToken); n != 2 {
		t.Errorf("admin should see all orders, got %d", n)
	}
}

func TestOrderQuotesComparison(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	s1 := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, "")
	s2 := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商B", entity.BusinessTypeOil, "")
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.InviteSupplier(t, env.DB, order.ID, s1.ID)
	testutil.InviteSupplier(t, env.DB, order.ID, s2.ID)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	for _, q := range []entity.Quote{
		{OrderID: order.ID, SupplierID: s1.ID, Price: decimal.RequireFromString("1000.00")},
		{OrderID: order.ID, SupplierID: s2.ID, Price: decimal.RequireFromString("1500.00")},
	} {
		if err := env.DB.Create(&q).Error; err != nil {
			t.Fatalf("seed quote failed: %v", err)
		}
	}

	path := fmt.Sprintf("/api/v1/orders/%d/quotes", order.ID)
	w := testutil.DoRequest(env.Router, "GET", path, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	quotes := data["quotes"].([]interface{})
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	// 按价格升序
	first := quotes[0].(map[string]interface{})
	if first["price"].(float64) != 1000 {
		t.Errorf("expected lowest quote first, got %v", first["price"])
	}

	stats := data["stats"].(map[string]interface{})
	if stats["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", stats["count"])
	}
	if stats["min_price"].(float64) != 1000 {
		t.Errorf("unexpected min_price %v", stats["min_price"])
	}
	if stats["max_price"].(float64) != 1500 {
		t.Errorf("unexpected max_price %v", stats["max_price"])
	}
	if stats["range"].(float64) != 500 {
		t.Errorf("unexpected range %v", stats["range"])
	}
}

func TestUpdateOrderOnlyWhenActive(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	path := fmt.Sprintf("/api/v1/orders/%d", order.ID)
	body := map[string]interface{}{
		"warehouse":        "华东二仓",
		"goods":            "汽油 92#",
		"delivery_address": "杭州市余杭区",
	}
	w := testutil.DoRequest(env.Router, "PUT", path, body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated entity.Order
	env.DB.First(&updated, order.ID)
	if updated.Warehouse != "华东二仓" || updated.Goods != "汽油 92#" {
		t.Errorf("order not updated: %+v", updated)
	}

	// 已取消的订单不允许编辑
	env.DB.Model(&updated).Update("status", entity.OrderStatusCancelled)
	w = testutil.DoRequest(env.Router, "PUT", path, body, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-active order, got %d", w.Code)
	}
}

func TestExportOrderQuotesAsXlsx(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	supplier := testutil.SeedTestSupplier(t, env.DB, user.ID, "供应商A", entity.BusinessTypeOil, "")
	order := testutil.SeedTestOrder(t, env.DB, user.ID, "RX250101001", entity.BusinessTypeOil, entity.OrderStatusActive)
	testutil.InviteSupplier(t, env.DB, order.ID, supplier.ID)
	quote := &entity.Quote{
		OrderID:      order.ID,
		SupplierID:   supplier.ID,
		Price:        decimal.RequireFromString("1234.50"),
		DeliveryTime: "3天内",
	}
	if err := env.DB.Create(quote).Error; err != nil {
		t.Fatalf("seed quote failed: %v", err)
	}

	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)
	path := fmt.Sprintf("/api/v1/orders/%d/quotes/export", order.ID)
	w := testutil.DoRequest(env.Router, "GET", path, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "quotes_RX250101001_") {
		t.Errorf("unexpected content disposition: %s", cd)
	}

	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("response is not a valid xlsx: %v", err)
	}
	defer f.Close()

	sheet := "报价明细"
	header, _ := f.GetCellValue(sheet, "A1")
	if header != "供应商" {
		t.Errorf("expected header 供应商, got %q", header)
	}
	name, _ := f.GetCellValue(sheet, "A2")
	if name != "供应商A" {
		t.Errorf("expected supplier name in first data row, got %q", name)
	}
	price, _ := f.GetCellValue(sheet, "B2")
	if price != "1234.5" {
		t.Errorf("expected price 1234.5, got %q", price)
	}
}
