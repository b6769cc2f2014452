package handlers

import "github.com/gin-gonic/gin"

// NewRouter mounts every API route on a new gin engine.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api")
	api.GET("/ping", h.Ping)

	secured := api.Group("", RequireAdmin())
	{
		// Student routes
		secured.GET("/students", h.GetStudents)
		secured.GET("/students/stats", h.GetStudentStats)
		secured.GET("/students/stats/overview", h.GetStudentOverview)

		// Attendance routes
		secured.GET("/attendance/by-date", h.GetAttendanceByDate)
		secured.POST("/attendance/mark", h.MarkAttendance)
		secured.POST("/attendance/import", h.ImportAttendance)
		secured.GET("/attendance/stats/overview", h.GetAttendanceOverview)
		secured.DELETE("/attendance/:attendanceId", h.DeleteAttendance)

		// Report routes
		secured.GET("/reports/summary", h.GetSummary)
		secured.GET("/reports/daily/:date", h.GetDailyReport)
		secured.GET("/reports/monthly/:year/:month", h.GetMonthlyReport)
		secured.GET("/reports/student/:studentId", h.GetStudentReport)
		secured.GET("/reports/trends", h.GetTrends)
		secured.GET("/reports/export/daily/:date", h.ExportDailyReport)
		secured.GET("/reports/export/monthly/:year/:month", h.ExportMonthlyReport)
	}

	return router
}
