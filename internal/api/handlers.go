package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/export"
	"github.com/cvd-risk-mcp-server/internal/middleware"
	"github.com/cvd-risk-mcp-server/internal/service"
)

const (
	defaultAuditLimit  = 50
	maxAuditLimit      = 500
	healthCheckTimeout = 2 * time.Second
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// emrStatus reports the outcome of an EMR publish attempt.
type emrStatus struct {
	Published  bool   `json:"published"`
	ResourceID string `json:"resource_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// assessmentResponse is an assessment plus the optional EMR outcome.
type assessmentResponse struct {
	*domain.Assessment
	EMR *emrStatus `json:"emr,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
	})
}

func (s *Server) handleFramingham(c *gin.Context) {
	s.assess(c, s.calculator.AssessFramingham)
}

func (s *Server) handleQRISK3(c *gin.Context) {
	s.assess(c, s.calculator.AssessQRISK3)
}

func (s *Server) handleAssess(c *gin.Context) {
	publish, _ := strconv.ParseBool(c.Query("publish"))
	patientRef := strings.TrimSpace(c.Query("patient_ref"))

	if publish {
		if s.publisher == nil {
			s.respondCode(c, http.StatusServiceUnavailable, domain.ErrExternalAPI,
				fmt.Errorf("EMR publishing is not enabled"))
			return
		}
		if patientRef == "" {
			s.respondError(c, domain.NewValidationError("patient_ref", "patient_ref is required when publish=true", ""))
			return
		}
	}

	var req domain.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	assessment, err := s.calculator.AssessBoth(ctx, req.ToProfile())
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := assessmentResponse{Assessment: assessment}
	if publish {
		resp.EMR = s.publish(ctx, c.GetString(middleware.CorrelationIDKey), patientRef, assessment)
	}
	c.JSON(http.StatusOK, resp)
}

// publish sends the assessment to the EMR. A failed publish does not fail the request;
// the outcome is reported alongside the assessment.
func (s *Server) publish(ctx context.Context, requestID, patientRef string, a *domain.Assessment) *emrStatus {
	resourceID, err := s.publisher.Publish(ctx, patientRef, a)
	if err != nil {
		return &emrStatus{Error: err.Error()}
	}

	if s.assessments != nil {
		if err := s.assessments.AttachEMRReference(ctx, a.ID, patientRef, resourceID); err != nil {
			s.logger.WithFields(logrus.Fields{
				"correlation_id": requestID,
				"assessment_id":  a.ID,
				"resource_id":    resourceID,
				"error":          err.Error(),
			}).Warn("Failed to link assessment to EMR resource")
		}
	}
	return &emrStatus{Published: true, ResourceID: resourceID}
}

func (s *Server) assess(c *gin.Context, run func(context.Context, *domain.PatientProfile) (*domain.Assessment, error)) {
	var req domain.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, err)
		return
	}

	assessment, err := run(c.Request.Context(), req.ToProfile())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var in domain.RecommendationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, err)
		return
	}

	set, err := s.calculator.Recommend(c.Request.Context(), service.BuildRecommendationRequest(in))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *Server) handleCompare(c *gin.Context) {
	var in domain.CompareInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.calculator.Compare(c.Request.Context(), in.First, in.Second)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleConvert(c *gin.Context) {
	var in domain.ConversionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := service.ConvertUnits(in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListAudit(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultAuditLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	records, err := s.auditStore.List(ctx, limit, offset)
	if err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}
	total, err := s.auditStore.Count(ctx)
	if err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleExportAuditJSON(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.auditStore.ExportJSON(c.Request.Context(), &buf); err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}
	c.Header("Content-Disposition", attachment("json"))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func (s *Server) handleExportAuditXLSX(c *gin.Context) {
	ctx := c.Request.Context()
	total, err := s.auditStore.Count(ctx)
	if err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}
	records, err := s.auditStore.List(ctx, int(total), 0)
	if err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAuditXLSX(&buf, records); err != nil {
		s.respondCode(c, http.StatusInternalServerError, domain.ErrInternalServer, err)
		return
	}
	c.Header("Content-Disposition", attachment("xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// handleImportAudit loads a JSON export produced by /audit/export.json. Records whose
// assessment is already present are skipped.
func (s *Server) handleImportAudit(c *gin.Context) {
	imported, skipped, err := s.auditStore.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidExport) {
			s.respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err)
			return
		}
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"imported":       imported,
		"skipped":        skipped,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	}).Info("Audit records imported")

	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}

func (s *Server) handleDeleteAudit(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, domain.NewValidationError("id", "must be a positive integer", raw))
		return
	}

	if err := s.auditStore.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, err)
			return
		}
		s.respondCode(c, http.StatusInternalServerError, domain.ErrDatabaseError, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"audit_id":       id,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	}).Info("Audit record deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	assessment, err := s.assessments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(key, "must be an integer", raw)
	}
	return v, nil
}

func attachment(ext string) string {
	return fmt.Sprintf(`attachment; filename="cvd-risk-audit-%s.%s"`, time.Now().UTC().Format("20060102"), ext)
}
