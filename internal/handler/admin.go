package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/repository"
	"github.com/iliyamo/seat-hold-service/internal/service"
	"github.com/iliyamo/seat-hold-service/internal/token"
	"github.com/iliyamo/seat-hold-service/internal/utils"
)

// ConfirmationLookup reads archived confirmations.
type ConfirmationLookup interface {
	GetByReservationID(ctx context.Context, id int64) (repository.ConfirmationRecord, error)
}

// AdminHandler serves the operator endpoints.  Operators log in with a
// single shared password whose bcrypt hash comes from configuration.
// Confirmations is nil when the archive is disabled.
type AdminHandler struct {
	Tickets       *service.TicketService
	Confirmations ConfirmationLookup
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	Clock        clock.Clock
	Log          *slog.Logger
}

// ----- DTOs -----

type loginReq struct {
	Password string `json:"password"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type reservationResp struct {
	ReservationID int64        `json:"reservation_id"`
	HoldID        int          `json:"hold_id"`
	Email         string       `json:"email"`
	State         model.State  `json:"state"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Seats         []model.Seat `json:"seats"`
	Version       uint64       `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at,omitempty"`
}

type confirmationResp struct {
	ReservationID int64     `json:"reservation_id"`
	HoldID        int       `json:"hold_id"`
	Email         string    `json:"email"`
	Seats         []string  `json:"seats"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type verifyReq struct {
	Token string `json:"confirmation_token"`
}

// Login handles POST /v1/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	if !utils.VerifyPassword(h.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.JWTSecret, "admin", utils.RoleAdmin, h.TokenTTL, h.Clock.Now())
	if err != nil {
		h.Log.Error("issue admin token failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}
	return c.JSON(http.StatusOK, loginResp{Token: tok.Token, Expires: tok.Exp})
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	avail, err := h.Tickets.NumSeatsAvailable(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"available": avail,
		"store":     h.Tickets.Stats(),
	})
}

// Consistency handles GET /v1/admin/consistency.  A failed self-check is
// reported as 500 with the reason so it shows up on dashboards.
func (h *AdminHandler) Consistency(c echo.Context) error {
	if err := h.Tickets.CheckConsistency(); err != nil {
		h.Log.Error("store consistency check failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"consistent": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"consistent": true})
}

// Hold handles GET /v1/admin/holds/:id.  The customer's email is redacted.
func (h *AdminHandler) Hold(c echo.Context) error {
	holdID, err := strconv.Atoi(c.Param("id"))
	if err != nil || holdID < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	r, err := h.Tickets.Reservation(c.Request().Context(), holdID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationResp{
		ReservationID: r.ID,
		HoldID:        r.HoldID,
		Email:         RedactEmail(r.Email),
		State:         r.State,
		ExpiresAt:     r.ExpiresAt,
		Seats:         model.NewSeatHold(r).Seats,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	})
}

// Confirmation handles GET /v1/admin/confirmations/:id, where id is the
// reservation id.  The stored hash is never returned.
func (h *AdminHandler) Confirmation(c echo.Context) error {
	rec, err := h.lookupConfirmation(c)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return c.JSON(http.StatusOK, confirmationResp{
		ReservationID: rec.ReservationID,
		HoldID:        rec.HoldID,
		Email:         RedactEmail(rec.Email),
		Seats:         rec.SeatLabels,
		ConfirmedAt:   rec.ConfirmedAt,
	})
}

// VerifyConfirmation handles POST /v1/admin/confirmations/:id/verify.  It
// checks a token presented by a customer against the archived hash.
func (h *AdminHandler) VerifyConfirmation(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "confirmation_token required"})
	}
	rec, err := h.lookupConfirmation(c)
	if err != nil || rec == nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": token.Verify(req.Token, rec.ConfirmationHash)})
}

// lookupConfirmation loads the archived record named by the :id param.  A
// nil record with a nil error means the response has been written.
func (h *AdminHandler) lookupConfirmation(c echo.Context) (*repository.ConfirmationRecord, error) {
	if h.Confirmations == nil {
		return nil, c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "confirmation archive disabled"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	rec, err := h.Confirmations.GetByReservationID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrConfirmationNotFound) {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	if err != nil {
		h.Log.Error("confirmation lookup failed", "reservation_id", id, "err", err)
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return &rec, nil
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
