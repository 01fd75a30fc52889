package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type DefaultHealthRoute struct {
	DB Pinger
}

func NewHealthDefault(db Pinger) *DefaultHealthRoute {
	return &DefaultHealthRoute{DB: db}
}

// Health reports whether the database answers. The sync agent uses it as
// its connectivity check.
func (h *DefaultHealthRoute) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		c.Logger().Errorf("failed to ping database: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
