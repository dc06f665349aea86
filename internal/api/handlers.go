package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heart-intake-server/internal/domain"
	"github.com/heart-intake-server/internal/service"
)

// PatientWorkflows is what the HTTP surface needs from the service layer.
type PatientWorkflows interface {
	Create(ctx context.Context, submission *domain.PatientSubmission) (*domain.PatientRecord, error)
	Get(ctx context.Context, name string) (*domain.PatientRecord, error)
	List(ctx context.Context) ([]*domain.PatientRecord, error)
	Delete(ctx context.Context, name string) (string, error)
	Ping(ctx context.Context) error
	ModelName() string
}

var _ PatientWorkflows = (*service.PatientService)(nil)

// handleHealth reports liveness, store reachability and the loaded model.
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.configManager.GetConfig().MCP.ServerVersion,
		"model":     s.patients.ModelName(),
		"database":  "ok",
	}

	if err := s.patients.Ping(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Health check could not reach the patient store")
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
	}

	c.JSON(status, body)
}

// handleListPatients returns every stored patient.
func (s *Server) handleListPatients(c *gin.Context) {
	records, err := s.patients.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresentPatients(records))
}

// handleCreatePatient accepts a JSON or form submission.
func (s *Server) handleCreatePatient(c *gin.Context) {
	if err := emptyFormField(c); err != nil {
		writeError(c, err)
		return
	}

	var submission domain.PatientSubmission
	if err := c.ShouldBind(&submission); err != nil {
		s.logger.WithError(err).Debug("Could not bind patient submission")
		writeError(c, bindingError(err))
		return
	}

	record, err := s.patients.Create(c.Request.Context(), &submission)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresentPatient(record))
}

// handleGetPatient looks a patient up by the name query parameter.
func (s *Server) handleGetPatient(c *gin.Context) {
	record, err := s.patients.Get(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresentPatient(record))
}

// handleDeletePatient removes a patient by the name query parameter.
func (s *Server) handleDeletePatient(c *gin.Context) {
	name := c.Query("name")
	message, err := s.patients.Delete(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeletedView{Message: message, Name: name})
}
