package handlers

import (
	"log"
	"net/http"
	"time"

	"attendance-tracker-go/attendance"
	"attendance-tracker-go/db"
	"attendance-tracker-go/models"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const (
	adminHeader = "X-Admin-ID"
	adminKey    = "adminID"
)

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Store      *db.Store
	Reconciler *attendance.Reconciler
	Redis      *redis.Client // nil when no Redis is configured
	Now        func() time.Time
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store *db.Store, reconciler *attendance.Reconciler, rdb *redis.Client) *APIHandler {
	return &APIHandler{
		Store:      store,
		Reconciler: reconciler,
		Redis:      rdb,
		Now:        time.Now,
	}
}

// RequireAdmin rejects requests that the upstream auth layer did not stamp
// with an admin identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(adminHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Set(adminKey, models.ID(id))
		c.Next()
	}
}

func adminID(c *gin.Context) models.ID {
	if v, ok := c.Get(adminKey); ok {
		if id, ok := v.(models.ID); ok {
			return id
		}
	}
	return ""
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func (h *APIHandler) today() string {
	return h.Now().Format(attendance.DateLayout)
}

// --- Student Handlers ---

// GetStudents handles GET /api/students
func (h *APIHandler) GetStudents(c *gin.Context) {
	batch := c.Query("batch")
	course := c.Query("course")

	students, err := h.Store.ActiveStudents(c.Request.Context(), batch, course)
	if err != nil {
		log.Printf("Error in GetStudents handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve students")
		return
	}
	attendance.SortRoster(students)

	c.JSON(http.StatusOK, gin.H{"success": true, "students": students})
}

// GetStudentStats handles GET /api/students/stats
func (h *APIHandler) GetStudentStats(c *gin.Context) {
	students, err := h.Store.ActiveStudents(c.Request.Context(), "", "")
	if err != nil {
		log.Printf("Error in GetStudentStats handler: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve student statistics")
		return
	}
	d := attendance.Distribute(students)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"batches":       d.Batches,
		"courses":       d.Courses,
		"byBatch":       d.ByBatch,
		"byCourse":      d.ByCourse,
		"totalStudents": d.TotalStudents,
	})
}

// GetStudentOverview handles GET /api/students/stats/overview
func (h *APIHandler) GetStudentOverview(c *gin.Context) {
	students, err := h.Store.ActiveStudents(c.Request.Context(), "", "")
	if err != nil {
		log.Printf("Error in GetStudentOverview handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"total": 0, "byBatch": []models.BatchCount{}})
		return
	}
	d := attendance.Distribute(students)

	c.JSON(http.StatusOK, gin.H{"total": d.TotalStudents, "byBatch": d.ByBatch})
}

// --- Ping Handler ---

// Ping handles GET /api/ping
func (h *APIHandler) Ping(c *gin.Context) {
	state := "disabled"
	if h.Redis != nil {
		state = "ok"
		if err := h.Redis.Ping(c.Request.Context()).Err(); err != nil {
			log.Printf("Redis ping failed: %v", err)
			state = "unreachable"
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!", "redis": state})
}
