package handler

import (
	"net/http"
	"testing"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/testutil"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupEnv(t, "http://example.com")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/auth/register", map[string]interface{}{
		"username":      "newbuyer",
		"password":      "secret123",
		"business_type": entity.BusinessTypeOil,
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// 密码不落明文
	var user entity.User
	env.DB.Where("username = ?", "newbuyer").First(&user)
	if user.Password == "secret123" {
		t.Error("password stored in plaintext")
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/auth/login", map[string]interface{}{
		"username": "newbuyer",
		"password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected token in login response")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := setupEnv(t, "http://example.com")

	testutil.DoRequest(env.Router, "POST", "/api/v1/auth/register", map[string]interface{}{
		"username":      "buyer1",
		"password":      "secret123",
		"business_type": entity.BusinessTypeOil,
	}, "")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/auth/login", map[string]interface{}{
		"username": "buyer1",
		"password": "wrongpass",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	env := setupEnv(t, "http://example.com")

	body := map[string]interface{}{
		"username":      "buyer1",
		"password":      "secret123",
		"business_type": entity.BusinessTypeOil,
	}
	testutil.DoRequest(env.Router, "POST", "/api/v1/auth/register", body, "")
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/auth/register", body, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRegisterRejectsInvalidBusinessType(t *testing.T) {
	env := setupEnv(t, "http://example.com")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/auth/register", map[string]interface{}{
		"username":      "buyer1",
		"password":      "secret123",
		"business_type": "unknown",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMeReturnsClaims(t *testing.T) {
	env := setupEnv(t, "http://example.com")
	user := testutil.SeedTestUser(t, env.DB, "buyer1", entity.RoleUser, entity.BusinessTypeOil)
	token := testutil.GenerateTestToken(user.ID, user.Username, user.Role, user.BusinessType)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/auth/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["username"] != "buyer1" {
		t.Errorf("expected username buyer1, got %v", data["username"])
	}
	if data["business_type"] != entity.BusinessTypeOil {
		t.Errorf("expected business type oil, got %v", data["business_type"])
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	env := setupEnv(t, "http://example.com")

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/orders", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
