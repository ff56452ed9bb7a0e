package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is used by load balancers.  It returns 200 "ok" while the
// process is up, even before a venue is configured.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
