package backend

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds a gin engine serving the crush API from store
func NewRouter(store *Store, release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if !release {
		router.Use(gin.Logger())
	}
	SetupRoutes(router, store)
	return router
}

// SetupRoutes registers the crush API on router
func SetupRoutes(router *gin.Engine, store *Store) {
	// Permissive CORS for browser clients during development
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &handlers{store: store}

	api := router.Group("/api")
	{
		api.GET("/", h.root)
		api.GET("/objects", h.objects)
		api.GET("/objects/:id", h.object)
		api.GET("/modes", h.modes)

		session := api.Group("/session")
		{
			session.POST("/start", h.startSession)
			session.POST("/:id/crush", h.crush)
			session.GET("/:id/stats", h.stats)
			session.POST("/:id/end", h.endSession)
		}
	}
}

type handlers struct {
	store *Store
}

type startRequest struct {
	Mode string `json:"mode"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type crushRequest struct {
	ObjectID string   `json:"object_id" binding:"required"`
	Force    *float64 `json:"force"`
	Position position `json:"position"`
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Crush Simulator API", "status": "running"})
}

func (h *handlers) objects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"objects": h.store.Objects()})
}

func (h *handlers) object(c *gin.Context) {
	obj, ok := h.store.Object(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Object not found"})
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (h *handlers) modes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modes": h.store.Modes()})
}

func (h *handlers) startSession(c *gin.Context) {
	var req startRequest
	// Missing body starts an interactive session
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
			return
		}
	}

	id, err := h.store.Start(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	log.Printf("[backend] session %s started (mode=%s)", id, req.Mode)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "message": "Session started successfully"})
}

func (h *handlers) crush(c *gin.Context) {
	var req crushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	force := 1.0
	if req.Force != nil {
		force = *req.Force
	}

	obj, err := h.store.Crush(c.Param("id"), req.ObjectID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object":              obj,
		"success":             true,
		"satisfaction_gained": obj.SatisfactionScore,
		"particles":           obj.Particles,
		"sound":               obj.Sound,
		"vibration":           obj.VibrationPattern,
		"animation_duration":  obj.CrushTime,
		"force_applied":       force,
	})
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) endSession(c *gin.Context) {
	stats, err := h.store.End(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("[backend] session %s ended (crushed=%d)", c.Param("id"), stats.TotalCrushed)
	c.JSON(http.StatusOK, gin.H{"message": "Session ended successfully", "stats": stats})
}

// writeError maps store errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrObjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrSessionEnded):
		status = http.StatusConflict
	case errors.Is(err, ErrUnknownMode):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}
