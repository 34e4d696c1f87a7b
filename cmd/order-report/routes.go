package main

import (
	"errors"
	"net/http"

	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up the reporting routes on the Gin router.
func registerRoutes(router *gin.Engine, reports *services.ReportService) {
	router.GET("/sessions/:sessionId/demand", handleDemand(reports))
	router.GET("/sessions/:sessionId/orders", handleOrders(reports))
}

func handleDemand(reports *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reports.DemandReport(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func handleOrders(reports *services.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reports.OrderReport(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
