package router

import (
	"github.com/enterprisecrm/backend/internal/domain/identity"
	"github.com/enterprisecrm/backend/internal/interfaces/http/handler"
	"github.com/enterprisecrm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the API handlers mounted by RegisterAPI
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Customers     *handler.CustomerHandler
	Products      *handler.ProductHandler
	Leads         *handler.LeadHandler
	Opportunities *handler.OpportunityHandler
	Tasks         *handler.TaskHandler
	Test          *handler.TestHandler
}

// Guards are the access controls applied to the route groups
type Guards struct {
	// Authenticate validates the bearer token. Required.
	Authenticate gin.HandlerFunc
	// AuthRateLimit throttles login, register and refresh. Optional.
	AuthRateLimit gin.HandlerFunc
	// Idempotency replays retried POSTs on the resource groups. Optional.
	Idempotency gin.HandlerFunc
}

// resource returns the middleware shared by the CRM resource groups
func (g Guards) resource() []gin.HandlerFunc {
	if g.Idempotency == nil {
		return []gin.HandlerFunc{g.Authenticate}
	}
	return []gin.HandlerFunc{g.Authenticate, g.Idempotency}
}

// RegisterAPI registers every API group on r
func RegisterAPI(r *Router, h Handlers, g Guards) {
	r.Register(
		authRoutes(h.Auth, g),
		userRoutes(h.Users, g.Authenticate),
		customerRoutes(h.Customers, g.resource()),
		productRoutes(h.Products, g.resource()),
		leadRoutes(h.Leads, g.resource()),
		opportunityRoutes(h.Opportunities, g.resource()),
		taskRoutes(h.Tasks, g.resource()),
		testRoutes(h.Test, g.Authenticate),
	)
}

func authRoutes(h *handler.AuthHandler, g Guards) *DomainGroup {
	routes := NewDomainGroup("auth", "/auth")

	public := routes.Group("auth-public", "")
	if g.AuthRateLimit != nil {
		public.Use(g.AuthRateLimit)
	}
	public.POST("/register", h.Register).
		POST("/login", h.Login).
		POST("/refresh", h.Refresh)

	routes.Group("auth-session", "").
		Use(g.Authenticate).
		POST("/logout", h.Logout).
		GET("/me", h.Me).
		PUT("/password", h.ChangePassword)
	return routes
}

func userRoutes(h *handler.UserHandler, authenticate gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("users", "/users").
		Use(authenticate, middleware.RequireRole(string(identity.RoleAdmin))).
		GET("", h.List).
		GET("/:id", h.GetByID).
		PUT("/:id/role", h.ChangeRole).
		POST("/:id/activate", h.Activate).
		POST("/:id/deactivate", h.Deactivate).
		POST("/:id/unlock", h.Unlock).
		DELETE("/:id", h.Delete)
}

func customerRoutes(h *handler.CustomerHandler, guards []gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("customers", "/customers").
		Use(guards...).
		GET("", h.List).
		POST("", h.Create).
		GET("/code/:code", h.GetByCode).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		POST("/:id/activate", h.Activate).
		POST("/:id/deactivate", h.Deactivate).
		DELETE("/:id", h.Delete)
}

func productRoutes(h *handler.ProductHandler, guards []gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("products", "/products").
		Use(guards...).
		GET("", h.List).
		POST("", h.Create).
		GET("/sku/:sku", h.GetBySKU).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		PUT("/:id/price", h.ChangePrice).
		POST("/:id/activate", h.Activate).
		POST("/:id/deactivate", h.Deactivate).
		DELETE("/:id", h.Delete)
}

func leadRoutes(h *handler.LeadHandler, guards []gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("leads", "/leads").
		Use(guards...).
		GET("", h.List).
		POST("", h.Create).
		POST("/import", h.Import).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		POST("/:id/contact", h.Contact).
		POST("/:id/qualify", h.Qualify).
		POST("/:id/disqualify", h.Disqualify).
		POST("/:id/rescore", h.Rescore).
		POST("/:id/convert", h.Convert).
		DELETE("/:id", h.Delete)
}

func opportunityRoutes(h *handler.OpportunityHandler, guards []gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("opportunities", "/opportunities").
		Use(guards...).
		GET("", h.List).
		POST("", h.Create).
		GET("/pipeline", h.Pipeline).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		PUT("/:id/stage", h.ChangeStage).
		POST("/:id/win", h.Win).
		POST("/:id/lose", h.Lose).
		POST("/:id/reopen", h.Reopen).
		DELETE("/:id", h.Delete)
}

func taskRoutes(h *handler.TaskHandler, guards []gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("tasks", "/tasks").
		Use(guards...).
		GET("", h.List).
		POST("", h.Create).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		POST("/:id/start", h.Start).
		POST("/:id/complete", h.Complete).
		POST("/:id/cancel", h.Cancel).
		POST("/:id/reopen", h.Reopen).
		DELETE("/:id", h.Delete)
}

func testRoutes(h *handler.TestHandler, authenticate gin.HandlerFunc) *DomainGroup {
	routes := NewDomainGroup("test", "/test")
	routes.GET("", h.Public)
	routes.Group("test-secure", "").
		Use(authenticate).
		GET("/secure", h.Secure).
		GET("/admin", middleware.RequireRole(string(identity.RoleAdmin)), h.Admin)
	return routes
}
