package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callbackcloser/internal/auth"
	"callbackcloser/internal/business"
	"callbackcloser/internal/conversation"
	"callbackcloser/internal/ledger"
	"callbackcloser/internal/rbac"
	"callbackcloser/internal/reporting"
	"callbackcloser/internal/usage"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	businesses *business.MemoryRepo
	repo       *ledger.MemoryRepo
	router     *gin.Engine
}

func newAPIFixture(t *testing.T, businessID, role string) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	businesses := business.NewMemoryRepo()
	businesses.Put(business.Business{
		ID:                 businessID,
		Name:               "Apex Plumbing",
		OwnerUserID:        "user-1",
		ForwardingNumber:   "+15550001111",
		MissedCallSeconds:  20,
		ServiceLabel1:      "Plumbing repair",
		ServiceLabel2:      "Water heater",
		ServiceLabel3:      "Drain cleaning",
		Timezone:           "America/New_York",
		SubscriptionStatus: business.SubscriptionActive,
		StripePriceID:      "price_starter",
	})

	repo := ledger.NewMemoryRepo()
	usageSvc := usage.NewService(repo, usage.TierPrices{StarterPriceID: "price_starter", ProPriceID: "price_pro"}, "America/New_York")

	h := Handlers{
		Businesses: businesses,
		Ledger:     repo,
		Usage:      usageSvc,
		Reports:    reporting.NewService(repo),
	}

	r := gin.New()
	v1 := r.Group("/v1", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-1", businessID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	registerProtected(v1, h)

	return apiFixture{businesses: businesses, repo: repo, router: r}
}

// registerProtected mirrors the production route layout for the protected group.
func registerProtected(v1 *gin.RouterGroup, h Handlers) {
	leads := v1.Group("/leads", RequireBusinessAndAnyRole(rbac.RoleOwner, rbac.RoleStaff)...)
	{
		leads.GET("", h.ListLeads)
		leads.GET("/:lead_id", h.GetLead)
		leads.PATCH("/:lead_id/status", h.UpdateLeadStatus)
	}
	v1.GET("/usage", append(RequireBusinessAndAnyRole(rbac.RoleOwner, rbac.RoleStaff), h.GetUsage)...)

	reports := v1.Group("/reports", RequireBusinessAndAnyRole(rbac.RoleOwner)...)
	{
		reports.GET("/calls", h.CallsSummary)
		reports.GET("/leads", h.LeadFunnel)
	}

	settings := v1.Group("/settings", RequireBusinessAndAnyRole(rbac.RoleOwner)...)
	{
		settings.GET("", h.GetSettings)
		settings.PUT("", h.UpdateSettings)
	}
}

func (f apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func seedLead(f apiFixture, id, businessID string, status ledger.LeadStatus) ledger.Lead {
	l := ledger.Lead{
		ID:                    id,
		BusinessID:            businessID,
		CallID:                "call-" + id,
		CallerPhone:           "+15551230000",
		CallerPhoneNormalized: "+15551230000",
		SmsState:              conversation.StateAwaitingService,
		Status:                status,
		CreatedAt:             time.Now().UTC(),
	}
	f.repo.Leads[id] = l
	return l
}

func TestListLeads_ScopedToBusiness(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleOwner)
	seedLead(f, "l1", "biz-1", ledger.LeadNew)
	seedLead(f, "l2", "biz-2", ledger.LeadNew)

	w := f.do(t, http.MethodGet, "/v1/leads", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Leads []ledger.Lead `json:"leads"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Leads) != 1 || resp.Leads[0].ID != "l1" {
		t.Fatalf("unexpected leads: %+v", resp.Leads)
	}
}

func TestGetLead_CrossTenantReadsAsNotFound(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleOwner)
	seedLead(f, "l2", "biz-2", ledger.LeadNew)

	w := f.do(t, http.MethodGet, "/v1/leads/l2", nil)
	if w.Code != 404 {
		t.Fatalf("expected 404 for cross-tenant lead, got %d", w.Code)
	}
}

func TestUpdateLeadStatus(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleOwner)
	seedLead(f, "l1", "biz-1", ledger.LeadNew)

	w := f.do(t, http.MethodPatch, "/v1/leads/l1/status", gin.H{"status": "CONTACTED"})
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := f.repo.Leads["l1"].Status; got != ledger.LeadContacted {
		t.Fatalf("status = %q, want CONTACTED", got)
	}

	w = f.do(t, http.MethodPatch, "/v1/leads/l1/status", gin.H{"status": "BOGUS"})
	if w.Code != 400 {
		t.Fatalf("expected 400 for invalid status, got %d", w.Code)
	}
}

func TestGetUsage_ReportsStarterMeter(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleOwner)

	w := f.do(t, http.MethodGet, "/v1/usage", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var u usage.ConversationUsage
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Tier != usage.TierStarter || u.Limit != 200 || u.Used != 0 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestReports_RequireOwnerRole(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleStaff)

	w := f.do(t, http.MethodGet, "/v1/reports/calls", nil)
	if w.Code != 403 {
		t.Fatalf("expected 403 for staff on reports, got %d", w.Code)
	}
}

func TestUpdateSettings_ValidatesAndPersists(t *testing.T) {
	f := newAPIFixture(t, "biz-1", rbac.RoleOwner)

	body := gin.H{
		"name":                "Apex Plumbing Co",
		"forwarding_number":   "+15550002222",
		"missed_call_seconds": 25,
		"service_label_1":     "Plumbing repair",
		"service_label_2":     "Water heater",
		"service_label_3":     "Drain cleaning",
		"record_calls":        true,
		"timezone":            "America/Chicago",
	}
	w := f.do(t, http.MethodPut, "/v1/settings", body)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	b, err := f.businesses.GetByID(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if b.Name != "Apex Plumbing Co" || b.ForwardingNumber != "+15550002222" || !b.RecordCalls {
		t.Fatalf("settings not persisted: %+v", b)
	}

	body["missed_call_seconds"] = 2
	w = f.do(t, http.MethodPut, "/v1/settings", body)
	if w.Code != 400 {
		t.Fatalf("expected 400 for out-of-range timeout, got %d", w.Code)
	}
}
