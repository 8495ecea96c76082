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

type bookingCoordinator interface {
	BookFromHold(ctx context.Context, req dto.BookFromHoldRequest) (*models.Session, error)
	BookDirect(ctx context.Context, req dto.BookDirectRequest) (*models.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, req dto.UpdateSessionStatusRequest) (*models.Session, error)
}

// BookingHandler exposes booking and session lifecycle endpoints.
type BookingHandler struct {
	service bookingCoordinator
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// BookFromHold godoc
// @Summary Convert a live hold into a booked session
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BookFromHoldRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings/from-hold [post]
func (h *BookingHandler) BookFromHold(c *gin.Context) {
	var req dto.BookFromHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if req.BookedByContactID == nil {
		if claims := claimsFromContext(c); claims != nil {
			req.BookedByContactID = &claims.UserID
		}
	}
	session, err := h.service.BookFromHold(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// BookDirect godoc
// @Summary Book a slot without a hold
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BookDirectRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings/direct [post]
func (h *BookingHandler) BookDirect(c *gin.Context) {
	var req dto.BookDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		if req.OrgID == "" {
			req.OrgID = claims.OrgID
		}
		if req.BookedByContactID == nil {
			req.BookedByContactID = &claims.UserID
		}
	}
	session, err := h.service.BookDirect(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// UpdateSessionStatus godoc
// @Summary Transition a session through its lifecycle
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/status [patch]
func (h *BookingHandler) UpdateSessionStatus(c *gin.Context) {
	var req dto.UpdateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	session, err := h.service.UpdateSessionStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
