package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/identity"
	"github.com/medihelp/carewire/internal/mutate"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.POST("/session", handleSession(opts))
	api.GET("/session", handleCurrentSession(opts))

	api.GET("/overview/:patientID", handleOverview(opts))
	api.GET("/patients/:id/detail", handleDetail(opts))
	api.GET("/doctors/:id/roster", handleRoster(opts))
	api.GET("/stats", handleStats(opts))

	api.POST("/chat", handleSendMessage(opts))
	api.GET("/chat/:a/:b/stream", handleChatStream(opts))

	api.POST("/triage", handleCompleteTriage(opts))
	api.PATCH("/triage/:id/notes", handleSaveNote(opts))

	api.POST("/prescriptions", handleCreatePrescription(opts))

	api.POST("/appointments", handleScheduleAppointment(opts))
	api.PATCH("/appointments/:id/status", handleAppointmentStatus(opts))
}

// handleSession applies an auth transition (sign-in carries a user ID,
// sign-out an empty one) and returns the resolved snapshot. A profile
// not provisioned yet is reported as pending, not as an error.
func handleSession(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		snap := opts.Identity.Apply(c.Request.Context(), identity.AuthEvent{UserID: req.UserID})
		c.JSON(http.StatusOK, renderSnapshot(snap))
	}
}

func handleCurrentSession(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, renderSnapshot(opts.Identity.Current()))
	}
}

func handleOverview(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := opts.Aggregator.FetchAll(c.Request.Context(),
			aggregate.PatientOverview(c.Param("patientID")))
		c.JSON(http.StatusOK, renderResult(res))
	}
}

func handleDetail(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		doctorID := c.Query("doctor")
		if doctorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "doctor query parameter is required"})
			return
		}
		res := opts.Aggregator.FetchAll(c.Request.Context(),
			aggregate.PatientDetail(doctorID, c.Param("id")))
		c.JSON(http.StatusOK, renderResult(res))
	}
}

func handleRoster(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := opts.Aggregator.FetchAll(c.Request.Context(),
			aggregate.DoctorRoster(c.Param("id")))
		c.JSON(http.StatusOK, renderResult(res))
	}
}

func handleStats(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := opts.Aggregator.CountAll(c.Request.Context(), aggregate.AdminStats())
		c.JSON(http.StatusOK, renderCounts(counts))
	}
}

func handleSendMessage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg, err := opts.Gateway.SendMessage(c.Request.Context(), req.SenderID, req.ReceiverID, req.Text)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleCompleteTriage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeTriageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := opts.Gateway.CompleteTriage(c.Request.Context(), req.PatientID, req.Summary, req.ChatHistory)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func handleSaveNote(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req saveNoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := opts.Gateway.SaveNote(c.Request.Context(), c.Param("id"), req.Notes)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func handleCreatePrescription(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPrescriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := opts.Gateway.CreatePrescription(c.Request.Context(),
			req.PatientID, req.DoctorID, req.Medication, req.Dosage, req.Instructions)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleScheduleAppointment(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scheduleAppointmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		appt, err := opts.Gateway.ScheduleAppointment(c.Request.Context(),
			req.PatientID, req.DoctorID, req.ScheduledAt, req.Reason)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, appt)
	}
}

func handleAppointmentStatus(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appointmentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		appt, err := opts.Gateway.SetAppointmentStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			writeMutationError(c, err)
			return
		}
		c.JSON(http.StatusOK, appt)
	}
}

// writeMutationError maps gateway errors to HTTP statuses. Validation
// failures are the caller's fault; everything else is a server problem.
func writeMutationError(c *gin.Context, err error) {
	var verr *mutate.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
