package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/s0up4200/qbitrace/qbittorrent"
	"github.com/s0up4200/qbitrace/race"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	router.POST("/race/:hash", s.startRace)
	router.POST("/post-race/:hash", s.postRace)
	router.POST("/pause", s.pause)
	router.POST("/pause/:event_id", s.pause)
	router.POST("/unpause", s.unpause)
	router.POST("/unpause/:event_id", s.unpause)
	router.POST("/cancel/:task_id", s.cancelTask)
	router.DELETE("/cancel/:task_id", s.cancelTask)
	router.GET("/tasks", s.listTasks)
	router.GET("/db", s.listLedger)
	router.DELETE("/db", s.clearLedger)
	router.DELETE("/db/:event_id", s.deleteLedgerEvent)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// startRace launches a race as a background task and returns its id.
func (s *Server) startRace(c *gin.Context) {
	hash := c.Param("hash")
	taskID := s.tasks.Start(fmt.Sprintf("race %s", hash), func(ctx context.Context) error {
		return s.orchestrator.Race(ctx, hash)
	})
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"task_id": taskID,
	})
}

func (s *Server) postRace(c *gin.Context) {
	hash := c.Param("hash")
	if err := s.orchestrator.PostRace(c.Request.Context(), hash); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "post race ran successfully",
	})
}

func (s *Server) pause(c *gin.Context) {
	eventID := c.Param("event_id")
	if eventID == "" {
		eventID = "pause"
	}
	if err := s.orchestrator.Pause(c.Request.Context(), eventID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "torrents paused successfully",
	})
}

func (s *Server) unpause(c *gin.Context) {
	eventID := c.Param("event_id")
	if eventID == "" {
		eventID = "pause"
	}
	if err := s.orchestrator.Unpause(c.Request.Context(), eventID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "torrents unpaused successfully",
	})
}

func (s *Server) cancelTask(c *gin.Context) {
	taskID := c.Param("task_id")
	s.logger.Info().Str("task_id", taskID).Msg("Requesting to cancel task")
	if !s.tasks.Cancel(taskID) {
		s.logger.Error().Str("task_id", taskID).Msg("No task found with id, so nothing to cancel")
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"reason": fmt.Sprintf("no task found with id %s", taskID),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "task successfully cancelled",
	})
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.tasks.Running())
}

func (s *Server) listLedger(c *gin.Context) {
	events, err := s.ledger.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) clearLedger(c *gin.Context) {
	if err := s.ledger.Clear(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "database cleared",
	})
}

func (s *Server) deleteLedgerEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	deleted, err := s.ledger.Delete(c.Request.Context(), eventID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("%d events deleted", deleted),
	})
}

// respondError maps missing torrents and events to 404, ineligible or
// failed races to 409, and everything else to 500.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, qbittorrent.ErrTorrentNotFound),
		errors.Is(err, race.ErrEventNotFound):
		status = http.StatusNotFound
	case errors.Is(err, race.ErrNotEligible),
		errors.Is(err, race.ErrNoWorkingTracker):
		status = http.StatusConflict
	default:
		s.logger.Error().Err(err).Msg("Request failed")
	}
	c.JSON(status, gin.H{
		"status": "error",
		"reason": err.Error(),
	})
}
