package api

import (
	"errors"
	"net/http"
	"strconv"

	"RepoChat/backend/go/internal/ingest_service/service"
	"RepoChat/backend/go/internal/ingest_service/store"
	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// maxListLimit caps the limit query parameter of the list endpoint.
const maxListLimit = 100

// API provides handlers for the ingestion service.
type API struct {
	service  *service.IngestService
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.IngestService, log *logger.Logger) *API {
	return &API{
		service: svc,
		logger:  log,
		upgrader: websocket.Upgrader{
			// 处理界面与服务不同源。
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type submitRequest struct {
	RepoURL string `json:"repoUrl" binding:"required"`
	Branch  string `json:"branch"`
	Token   string `json:"token"`
}

// SubmitIngestionHandler handles the submission of a new ingestion run.
func (a *API) SubmitIngestionHandler(c *gin.Context) {
	var payload submitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(err).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	run, err := a.service.Submit(c.Request.Context(), service.SubmitRequest{
		RepoURL: payload.RepoURL,
		Branch:  payload.Branch,
		Token:   payload.Token,
	})
	if err != nil {
		var ce *ingesterr.ConfigError
		if errors.As(err, &ce) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ce.Error()})
			return
		}
		// The service layer already logged the detailed error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit ingestion run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": run.ID})
}

// GetIngestionHandler handles requests to get a single run by its ID.
func (a *API) GetIngestionHandler(c *gin.Context) {
	run, err := a.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ingestion run not found"})
			return
		}
		a.logger.WithError(err).WithField("run_id", c.Param("id")).Error("Failed to get run from store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ingestion run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListIngestionsHandler handles requests to list the most recent runs.
func (a *API) ListIngestionsHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultListLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	runs, err := a.service.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ingestion runs"})
		return
	}

	c.JSON(http.StatusOK, runs)
}

// HealthHandler reports that the process is serving.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// WatchIngestionHandler upgrades to a WebSocket and streams the run's progress
// events until it reaches a terminal status.
func (a *API) WatchIngestionHandler(c *gin.Context) {
	runID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := a.service.Get(ctx, runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ingestion run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ingestion run"})
		return
	}

	// Subscribe before re-reading the record so no event falls in between.
	events, cancel := a.service.Subscribe(runID)
	defer cancel()
	run, err := a.service.Get(ctx, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ingestion run"})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	log := a.logger.WithField("run_id", runID)
	log.Info("WebSocket watcher connected")

	// The read side only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	last := run.Snapshot()
	if err := conn.WriteJSON(last); err != nil {
		return
	}
	if !run.Status.Terminal() {
		for ev := range events {
			last = ev
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Warn("Failed to write progress event")
				return
			}
		}
		// The terminal event may have been dropped for a slow watcher.
		if !last.Status.Terminal() {
			if final, err := a.service.Get(ctx, runID); err == nil && final.Status.Terminal() {
				last = final.Snapshot()
				_ = conn.WriteJSON(last)
			}
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(last.Status)))
	log.Info("WebSocket watcher closed")
}

