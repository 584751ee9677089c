package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callbackcloser/internal/auth"
	"callbackcloser/internal/business"
	"callbackcloser/internal/ledger"
	"callbackcloser/internal/rbac"
	"callbackcloser/internal/reporting"
	"callbackcloser/internal/usage"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Businesses business.Repository
	Ledger     ledger.Repository
	Usage      *usage.Service
	Reports    *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID     string `json:"user_id"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.BusinessID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, business_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.BusinessID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Leads ---

func (h Handlers) ListLeads(c *gin.Context) {
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}

	f := ledger.LeadFilter{}
	if s := c.Query("status"); s != "" {
		st := ledger.LeadStatus(s)
		if !ledger.ValidLeadStatus(st) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		f.Status = st
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}

	leads, err := h.Ledger.ListLeads(c.Request.Context(), businessID, f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

func (h Handlers) GetLead(c *gin.Context) {
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}

	lead, ok := h.leadForBusiness(c, businessID)
	if !ok {
		return
	}

	msgs, err := h.Ledger.ListMessagesForLead(c.Request.Context(), lead.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "message listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead, "messages": msgs})
}

type updateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateLeadStatus(c *gin.Context) {
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}

	lead, ok := h.leadForBusiness(c, businessID)
	if !ok {
		return
	}

	var req updateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	st := ledger.LeadStatus(req.Status)
	if !ledger.ValidLeadStatus(st) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	updated, err := h.Ledger.UpdateLead(c.Request.Context(), lead.ID, ledger.LeadPatch{
		Status: ledger.Set(st),
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": updated})
}

// leadForBusiness loads the :lead_id lead and enforces tenant ownership.
// Cross-tenant IDs read as 404, not 403, to avoid leaking existence.
func (h Handlers) leadForBusiness(c *gin.Context, businessID string) (ledger.Lead, bool) {
	leadID := c.Param("lead_id")
	if leadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
		return ledger.Lead{}, false
	}
	lead, err := h.Ledger.GetLeadByID(c.Request.Context(), leadID)
	if errors.Is(err, ledger.ErrNotFound) || (err == nil && lead.BusinessID != businessID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return ledger.Lead{}, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead lookup failed"})
		return ledger.Lead{}, false
	}
	return lead, true
}

// --- Usage ---

func (h Handlers) GetUsage(c *gin.Context) {
	if h.Usage == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage not configured"})
		return
	}
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}
	b, err := h.Businesses.GetByID(c.Request.Context(), businessID)
	if errors.Is(err, business.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "business not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "business lookup failed"})
		return
	}
	u, err := h.Usage.ForBusiness(c.Request.Context(), b)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- Reports ---

func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		BusinessID: businessID,
		Range:      rng,
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) LeadFunnel(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}

	out, err := h.Reports.LeadFunnel(c.Request.Context(), reporting.LeadFunnelRequest{
		BusinessID: businessID,
		Range:      rng,
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseRange reads from/to query params (RFC 3339); default is the last 30 days.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return reporting.TimeRange{}, false
		}
		rng.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return reporting.TimeRange{}, false
		}
		rng.To = t
	}
	return rng, true
}

// --- Settings ---

func (h Handlers) GetSettings(c *gin.Context) {
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}
	b, err := h.Businesses.GetByID(c.Request.Context(), businessID)
	if errors.Is(err, business.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "business not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "business lookup failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

type updateSettingsRequest struct {
	Name              string `json:"name"`
	ForwardingNumber  string `json:"forwarding_number"`
	NotifyPhone       string `json:"notify_phone"`
	MissedCallSeconds int    `json:"missed_call_seconds"`
	ServiceLabel1     string `json:"service_label_1"`
	ServiceLabel2     string `json:"service_label_2"`
	ServiceLabel3     string `json:"service_label_3"`
	RecordCalls       bool   `json:"record_calls"`
	Timezone          string `json:"timezone"`
}

// UpdateSettings replaces the owner-editable settings.
// RBAC: owner only (enforced in routing).
func (h Handlers) UpdateSettings(c *gin.Context) {
	businessID, ok := requireBusinessID(c)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s := business.Settings{
		Name:              req.Name,
		ForwardingNumber:  req.ForwardingNumber,
		NotifyPhone:       req.NotifyPhone,
		MissedCallSeconds: req.MissedCallSeconds,
		ServiceLabel1:     req.ServiceLabel1,
		ServiceLabel2:     req.ServiceLabel2,
		ServiceLabel3:     req.ServiceLabel3,
		RecordCalls:       req.RecordCalls,
		Timezone:          req.Timezone,
	}
	if err := s.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.Businesses.UpdateSettings(c.Request.Context(), businessID, s)
	if errors.Is(err, business.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "business not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings update failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- helpers ---

func requireBusinessID(c *gin.Context) (string, bool) {
	businessID, err := auth.BusinessID(c.Request.Context())
	if err != nil || businessID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "business_id required"})
		return "", false
	}
	return businessID, true
}

// Convenience middleware bundles.

func RequireBusinessAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireBusiness(), rbac.RequireAnyRole(roles...)}
}
