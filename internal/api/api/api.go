package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"fieldtrack/cmd/middleware"
	"fieldtrack/internal/service"
)

type Routers struct {
	Service   service.Service
	JWTSecret string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")
	apiGroup.Use(middleware.Auth(r.JWTSecret))

	apiGroup.POST("/submissions", r.Service.CreateSubmission)
	apiGroup.GET("/submissions", r.Service.ListSubmissions)
	apiGroup.GET("/submissions/:id", r.Service.GetSubmission)
	apiGroup.PUT("/submissions/:id", r.Service.UpdateSubmission)
	apiGroup.POST("/submissions/:id/resubmit", r.Service.ResubmitSubmission)

	apiGroup.POST("/submissions/:id/participants", r.Service.AddParticipant)
	apiGroup.GET("/submissions/:id/participants", r.Service.ListParticipants)
	apiGroup.DELETE("/submissions/:id/participants/:pid", r.Service.RemoveParticipant)

	apiGroup.POST("/submissions/:id/photos", r.Service.UploadPhoto)

	reviewGroup := apiGroup.Group("")
	reviewGroup.Use(middleware.RequireRoles(middleware.RoleProjectAdmin, middleware.RoleAdmin))
	reviewGroup.POST("/submissions/:id/approve", r.Service.ApproveSubmission)
	reviewGroup.POST("/submissions/:id/reject", r.Service.RejectSubmission)

	return app
}
