package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/internal/service"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
	"github.com/jc96818/sayitschedule-sub004/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
}

type scheduleRepairer interface {
	Repair(ctx context.Context, req dto.RepairRequest) (*dto.RepairScheduleResponse, error)
}

type scheduleLifecycle interface {
	Get(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Publish(ctx context.Context, id string) (*models.Schedule, error)
	CreateDraftCopy(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Export(ctx context.Context, id, format string) ([]byte, string, error)
	ListVersions(ctx context.Context, orgID, weekStart string) ([]models.Schedule, error)
}

// ScheduleHandler exposes schedule generation, repair and lifecycle endpoints.
type ScheduleHandler struct {
	generator scheduleGenerator
	repairer  scheduleRepairer
	schedules scheduleLifecycle
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(generator *service.ScheduleGeneratorService, repairer *service.ScheduleRepairService, schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{generator: generator, repairer: repairer, schedules: schedules}
}

// Generate godoc
// @Summary Generate a draft schedule for one week
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate payload"
// @Success 201 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if req.OrgID == "" {
		if claims := claimsFromContext(c); claims != nil {
			req.OrgID = claims.OrgID
		}
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Repair godoc
// @Summary Run bounded repair passes on a draft schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.RepairRequest false "Optional violations and search space"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/repair [post]
func (h *ScheduleHandler) Repair(c *gin.Context) {
	var req dto.RepairRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid repair payload"))
			return
		}
	}
	req.ScheduleID = c.Param("id")
	result, err := h.repairer.Repair(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Fetch a schedule with its sessions
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	detail, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List schedule versions for an org week
// @Tags Schedules
// @Produce json
// @Param orgId query string true "Organization ID"
// @Param weekStart query string true "Week start (Monday)"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var query dto.ScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule query"))
		return
	}
	if query.OrgID == "" {
		if claims := claimsFromContext(c); claims != nil {
			query.OrgID = claims.OrgID
		}
	}
	schedules, err := h.schedules.ListVersions(c.Request.Context(), query.OrgID, query.WeekStart)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Publish godoc
// @Summary Publish a draft schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/publish [post]
func (h *ScheduleHandler) Publish(c *gin.Context) {
	schedule, err := h.schedules.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Copy godoc
// @Summary Clone a schedule into a fresh draft
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 201 {object} response.Envelope
// @Router /schedules/{id}/copy [post]
func (h *ScheduleHandler) Copy(c *gin.Context) {
	detail, err := h.schedules.CreateDraftCopy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Export godoc
// @Summary Export a schedule as csv or pdf
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Schedule ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /schedules/{id}/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	id := c.Param("id")
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.schedules.Export(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("schedule-%s.%s", id, format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
