package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"callbackcloser/internal/auth"

	"github.com/gin-gonic/gin"
)

func rbacTestRouter(userID, businessID, role string, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, businessID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireBusiness(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	r := rbacTestRouter("u", "b", RoleAdmin, RoleOwner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_StaffDeniedForOwnerOnly(t *testing.T) {
	r := rbacTestRouter("u", "b", RoleStaff, RoleOwner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_BusinessRequired(t *testing.T) {
	r := rbacTestRouter("u", "", RoleOwner, RoleOwner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
