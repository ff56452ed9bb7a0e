package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/service"
)

// TicketHandler exposes the hold and confirm flow to customers.  No
// authentication is involved: the hold id together with the email given
// at hold time is the customer's credential.
type TicketHandler struct {
	Tickets *service.TicketService
	Log     *slog.Logger
}

// NewTicketHandler constructs a TicketHandler.  The service must be non-nil.
func NewTicketHandler(tickets *service.TicketService, log *slog.Logger) *TicketHandler {
	if tickets == nil {
		panic("nil ticket service passed to NewTicketHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &TicketHandler{Tickets: tickets, Log: log}
}

// ----- DTOs -----

type holdReq struct {
	NumSeats int    `json:"num_seats"`
	Email    string `json:"email"`
}

type confirmReq struct {
	Email string `json:"email"`
}

type confirmResp struct {
	HoldID            int    `json:"hold_id"`
	ConfirmationToken string `json:"confirmation_token"`
}

type venueResp struct {
	Rows      []int    `json:"rows"`
	Capacity  int      `json:"capacity"`
	MaxHoldMs int64    `json:"max_hold_ms"`
	RowLabels []string `json:"row_labels"`
}

// Available handles GET /v1/seats/available.
func (h *TicketHandler) Available(c echo.Context) error {
	n, err := h.Tickets.NumSeatsAvailable(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": n})
}

// Hold handles POST /v1/holds.  On success it returns 201 with the hold
// id, its expiry in epoch milliseconds and the assigned seats.
func (h *TicketHandler) Hold(c echo.Context) error {
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	hold, err := h.Tickets.FindAndHoldSeats(c.Request().Context(), req.NumSeats, req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, hold)
}

// Confirm handles POST /v1/holds/:id/confirm.
func (h *TicketHandler) Confirm(c echo.Context) error {
	holdID, err := strconv.Atoi(c.Param("id"))
	if err != nil || holdID < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	tok, err := h.Tickets.ReserveSeats(c.Request().Context(), holdID, req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, confirmResp{HoldID: holdID, ConfirmationToken: tok})
}

// Venue handles GET /v1/venue.  The description only changes on restart,
// which is why the router puts it behind the response cache.
func (h *TicketHandler) Venue(c echo.Context) error {
	v, err := h.Tickets.Venue()
	if err != nil {
		return h.fail(c, err)
	}
	labels := make([]string, len(v.Rows))
	for i := range v.Rows {
		labels[i] = model.RowLabel(i)
	}
	return c.JSON(http.StatusOK, venueResp{
		Rows:      v.Rows,
		Capacity:  v.Capacity(),
		MaxHoldMs: v.MaxHold.Milliseconds(),
		RowLabels: labels,
	})
}

// Layout handles GET /v1/venue/layout and renders the live seat map as text.
func (h *TicketHandler) Layout(c echo.Context) error {
	v, err := h.Tickets.Venue()
	if err != nil {
		return h.fail(c, err)
	}
	seats, err := h.Tickets.SeatMap(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.String(http.StatusOK, RenderLayout(v, seats))
}

// fail maps service errors to HTTP responses.  Messages of bad requests
// are passed through since they are already opaque about holds.
func (h *TicketHandler) fail(c echo.Context, err error) error {
	return writeError(c, h.Log, err)
}

func writeError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, model.ErrBadRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNoSeatsAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": model.ErrExpired.Error()})
	case errors.Is(err, model.ErrServiceNotReady):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": model.ErrServiceNotReady.Error()})
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
