package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	QA        *QAHandler
	RateLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.QA.Healthz)
	api.GET("/stats/", deps.QA.Stats)

	limited := api.Group("")
	if deps.RateLimit != nil {
		limited.Use(deps.RateLimit)
	}
	limited.POST("/uploadfile/", deps.QA.Upload)
	limited.POST("/qa/", deps.QA.QA)
}
