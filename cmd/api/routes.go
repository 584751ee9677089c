package main

import (
	"callbackcloser/internal/auth"
	"callbackcloser/internal/httpapi"
	"callbackcloser/internal/rbac"
	"callbackcloser/internal/webhooks"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, wh webhooks.Handlers, api httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public; each handler runs its own webhook auth).
	r.POST("/webhooks/twilio/voice", wh.HandleVoice)
	r.POST("/webhooks/twilio/status", wh.HandleDialStatus)
	r.POST("/webhooks/twilio/sms", wh.HandleInboundSMS)

	// Token issuance (public; credential validation is out of band).
	r.POST("/v1/auth/login", api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			bid, _ := auth.BusinessID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "business_id": bid, "role": role})
		})

		// LEAD routes
		leads := v1.Group("/leads")
		leads.Use(httpapi.RequireBusinessAndAnyRole(rbac.RoleOwner, rbac.RoleStaff)...)
		{
			leads.GET("", api.ListLeads)
			leads.GET("/:lead_id", api.GetLead)
			leads.PATCH("/:lead_id/status", api.UpdateLeadStatus)
		}

		// USAGE routes
		v1.GET("/usage", append(httpapi.RequireBusinessAndAnyRole(rbac.RoleOwner, rbac.RoleStaff), api.GetUsage)...)

		// REPORT routes (owner only)
		reports := v1.Group("/reports")
		reports.Use(httpapi.RequireBusinessAndAnyRole(rbac.RoleOwner)...)
		{
			reports.GET("/calls", api.CallsSummary)
			reports.GET("/leads", api.LeadFunnel)
		}

		// SETTINGS routes (owner only)
		settings := v1.Group("/settings")
		settings.Use(httpapi.RequireBusinessAndAnyRole(rbac.RoleOwner)...)
		{
			settings.GET("", api.GetSettings)
			settings.PUT("", api.UpdateSettings)
		}
	}
}
