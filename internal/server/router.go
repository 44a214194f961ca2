package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/handler"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/middleware"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/service"
)

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	schemaHandler := handler.NewSchemaHandler(service.NewSchemaService(s.Registry))
	instanceHandler := handler.NewInstanceHandler(service.NewInstanceService(s.Store))
	linkHandler := handler.NewLinkHandler(service.NewLinkService(s.Store))
	actionHandler := handler.NewActionHandler(
		service.NewActionService(s.Executor),
		service.NewFunctionService(s.Evaluator),
		s.Auth,
	)
	authHandler := handler.NewAuthHandler(s.Auth)

	router := gin.New()
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.Logger(s.logger))
	router.Use(middleware.CORS(s.cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics(s.Metrics))

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(s.Auth))
	{
		schemaAPI := api.Group("/schema")
		{
			schemaAPI.GET("", schemaHandler.GetSchema)
			schemaAPI.GET("/object-types", schemaHandler.ListObjectTypes)
			schemaAPI.GET("/object-types/:name", schemaHandler.GetObjectType)
			schemaAPI.GET("/object-types/:name/outgoing-links", schemaHandler.GetOutgoingLinks)
			schemaAPI.GET("/object-types/:name/incoming-links", schemaHandler.GetIncomingLinks)
			schemaAPI.GET("/link-types", schemaHandler.ListLinkTypes)
			schemaAPI.GET("/link-types/:name", schemaHandler.GetLinkType)
			schemaAPI.GET("/actions", schemaHandler.ListActions)
			schemaAPI.GET("/actions/:name", schemaHandler.GetAction)
			schemaAPI.GET("/functions", schemaHandler.ListFunctions)
			schemaAPI.GET("/functions/:name", schemaHandler.GetFunction)
			schemaAPI.GET("/domains", schemaHandler.ListDomains)
		}

		objectsAPI := api.Group("/objects")
		{
			objectsAPI.GET("/:object_type", instanceHandler.ListInstances)
			objectsAPI.GET("/:object_type/:id", instanceHandler.GetInstance)
			objectsAPI.GET("/:object_type/:id/links/:link_type", linkHandler.GetConnectedInstances)
		}

		api.POST("/actions/:name", actionHandler.ExecuteAction)
		api.POST("/functions/:name", actionHandler.EvaluateFunction)
		api.GET("/audit", middleware.RequireRole(permission.RoleAdmin), actionHandler.ListAudit)

		authAPI := api.Group("/auth")
		{
			authAPI.POST("/login", authHandler.Login)
			authAPI.POST("/logout", middleware.RequireAuth(), authHandler.Logout)
			authAPI.GET("/me", middleware.RequireAuth(), authHandler.Me)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"namespace": s.Registry.Namespace(),
		})
	})
	router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	router.NoRoute(func(c *gin.Context) {
		handler.Error(c, http.StatusNotFound, "not found")
	})
	return router
}
