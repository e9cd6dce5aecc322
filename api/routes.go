package api

import (
	"github.com/labstack/echo/v4"
)

func RegisterHandlers(e *echo.Echo, h *Handler) {
	v1 := e.Group("/v1")

	v1.GET("/patients", h.ListPatients)
	v1.POST("/patients", h.RegisterPatient)
	v1.GET("/patients/:patientId", h.GetPatient)
	v1.POST("/patients/:patientId/events", h.IngestEvents)
	v1.GET("/patients/:patientId/timeline", h.GetTimeline)
	v1.GET("/patients/:patientId/dashboard", h.GetDashboard)
	v1.GET("/patients/:patientId/periods", h.GetPeriods)
	v1.POST("/device-updates", h.IngestDeviceUpdate)

	v1.GET("/caregivers/:caregiverId/dashboard", h.GetCaregiverDashboard)
	v1.GET("/caregivers/:caregiverId/patients", h.ListCaregiverPatients)
	v1.GET("/caregivers/:caregiverId/report", h.GetCaregiverReport)
	v1.GET("/caregivers/:caregiverId/alerts", h.ListCaregiverAlerts)
}
