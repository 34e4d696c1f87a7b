package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all gateway routes on the Gin router.
func registerRoutes(router *gin.Engine, capture *services.CaptureService) {
	router.POST("/sessions", handleCreateSession(capture))
	router.GET("/sessions", handleListSessions(capture))
	router.GET("/sessions/:sessionId", handleSessionDetail(capture))
	router.POST("/sessions/:sessionId/advance", handleAdvanceSession(capture))

	router.POST("/sessions/:sessionId/groups", handleCreateGroup(capture))
	router.POST("/sessions/:sessionId/groups/:groupId/uploads", handleGroupUpload(capture))
	router.POST("/sessions/:sessionId/groups/:groupId/failed", handleGroupFailed(capture))
	router.DELETE("/sessions/:sessionId/groups/:groupId/images/:imageId", handleDeleteImage(capture))
	router.POST("/sessions/:sessionId/groups/:groupId/reorder", handleReorderImages(capture))

	router.POST("/sessions/:sessionId/stations", handleCreateStation(capture))
	router.POST("/sessions/:sessionId/stations/:stationId/uploads", handleStationUpload(capture))
	router.POST("/sessions/:sessionId/stations/:stationId/failed", handleStationFailed(capture))
}

func handleCreateSession(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := capture.CreateSession(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.CreateSessionResponse{
			SessionID: session.ID,
			Status:    session.Status,
		})
	}
}

func handleListSessions(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			limit = 50
		}
		sessions, err := capture.ListSessions(c.Request.Context(), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func handleSessionDetail(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := capture.GetSessionDetail(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleAdvanceSession(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AdvanceSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		session, err := capture.AdvanceSession(c.Request.Context(), c.Param("sessionId"), req.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func handleCreateGroup(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		resp, err := capture.CreatePendingGroup(c.Request.Context(), c.Param("sessionId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func handleGroupUpload(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RecordUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		resp, err := capture.RecordGroupUpload(c.Request.Context(), c.Param("sessionId"), c.Param("groupId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleGroupFailed(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MarkFailedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		group, err := capture.MarkGroupUploadFailed(c.Request.Context(), c.Param("sessionId"), c.Param("groupId"), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func handleDeleteImage(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := capture.DeleteImage(c.Request.Context(), c.Param("sessionId"), c.Param("groupId"), c.Param("imageId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleReorderImages(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ReorderImagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		if err := capture.ReorderImages(c.Request.Context(), c.Param("sessionId"), c.Param("groupId"), req.ImageIDs); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleCreateStation(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateStationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		resp, err := capture.CreatePendingStation(c.Request.Context(), c.Param("sessionId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func handleStationUpload(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RecordUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		resp, err := capture.RecordStationSlotUpload(c.Request.Context(), c.Param("sessionId"), c.Param("stationId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleStationFailed(capture *services.CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MarkFailedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse JSON"})
			return
		}
		station, err := capture.MarkStationUploadFailed(c.Request.Context(), c.Param("sessionId"), c.Param("stationId"), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, station)
	}
}

// writeError maps service errors onto HTTP status codes. Validation
// mistakes are the caller's fault, unknown entities are 404s, illegal
// status transitions are conflicts, everything else is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
