package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jc96818/sayitschedule-sub004/internal/dto"
	"github.com/jc96818/sayitschedule-sub004/internal/models"
	"github.com/jc96818/sayitschedule-sub004/internal/service"
	appErrors "github.com/jc96818/sayitschedule-sub004/pkg/errors"
	"github.com/jc96818/sayitschedule-sub004/pkg/response"
)

type holdManager interface {
	CreateHold(ctx context.Context, req dto.CreateHoldRequest) (*models.AppointmentHold, error)
	GetHold(ctx context.Context, id string) (*models.AppointmentHold, error)
	ExtendHold(ctx context.Context, id string, req dto.ExtendHoldRequest) (*models.AppointmentHold, error)
	ReleaseHold(ctx context.Context, id string) error
	CleanupExpiredHolds(ctx context.Context) (int64, error)
}

// HoldHandler exposes appointment hold endpoints.
type HoldHandler struct {
	service holdManager
}

// NewHoldHandler constructs the handler.
func NewHoldHandler(svc *service.HoldService) *HoldHandler {
	return &HoldHandler{service: svc}
}

// Create godoc
// @Summary Place a short-lived hold on a slot
// @Tags Holds
// @Accept json
// @Produce json
// @Param payload body dto.CreateHoldRequest true "Hold payload"
// @Success 201 {object} response.Envelope
// @Router /holds [post]
func (h *HoldHandler) Create(c *gin.Context) {
	var req dto.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hold payload"))
		return
	}
	if req.OrgID == "" {
		if claims := claimsFromContext(c); claims != nil {
			req.OrgID = claims.OrgID
		}
	}
	hold, err := h.service.CreateHold(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, hold)
}

// Get godoc
// @Summary Fetch a live hold
// @Tags Holds
// @Produce json
// @Param id path string true "Hold ID"
// @Success 200 {object} response.Envelope
// @Router /holds/{id} [get]
func (h *HoldHandler) Get(c *gin.Context) {
	hold, err := h.service.GetHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hold, nil)
}

// Extend godoc
// @Summary Extend a live hold's expiry
// @Tags Holds
// @Accept json
// @Produce json
// @Param id path string true "Hold ID"
// @Param payload body dto.ExtendHoldRequest true "Extension payload"
// @Success 200 {object} response.Envelope
// @Router /holds/{id}/extend [post]
func (h *HoldHandler) Extend(c *gin.Context) {
	var req dto.ExtendHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid extension payload"))
		return
	}
	hold, err := h.service.ExtendHold(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hold, nil)
}

// Release godoc
// @Summary Release a hold before it expires
// @Tags Holds
// @Param id path string true "Hold ID"
// @Success 204
// @Router /holds/{id} [delete]
func (h *HoldHandler) Release(c *gin.Context) {
	if err := h.service.ReleaseHold(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cleanup godoc
// @Summary Sweep expired hold rows
// @Tags Holds
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /holds/cleanup [post]
func (h *HoldHandler) Cleanup(c *gin.Context) {
	swept, err := h.service.CleanupExpiredHolds(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"swept": swept}, nil)
}
