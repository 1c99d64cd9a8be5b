package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/estoque/internal/analytics"
	"github.com/saturnino-fabrica-de-software/estoque/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/estoque/internal/dashboard"
	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const maxTopN = 100

// Dashboard is implemented by dashboard.Service.
type Dashboard interface {
	Weekly(ctx context.Context, token string, q dashboard.Query) (analytics.WeeklySeries, error)
	TopProducts(ctx context.Context, token string, q dashboard.Query) ([]analytics.ProductRow, error)
	InventoryCodes(ctx context.Context, token string, q dashboard.Query) ([]analytics.InventorySlice, error)
}

type DashboardHandler struct {
	service Dashboard
	logger  *slog.Logger
}

func NewDashboardHandler(service Dashboard, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger,
	}
}

// Weekly GET /v1/dashboard/weekly?direction=&limit=
func (h *DashboardHandler) Weekly(c *fiber.Ctx) error {
	return h.serve(c, func(ctx context.Context, token string, q dashboard.Query) (interface{}, error) {
		return h.service.Weekly(ctx, token, q)
	})
}

// TopProducts GET /v1/dashboard/top-products?n=
func (h *DashboardHandler) TopProducts(c *fiber.Ctx) error {
	return h.serve(c, func(ctx context.Context, token string, q dashboard.Query) (interface{}, error) {
		rows, err := h.service.TopProducts(ctx, token, q)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"products": rows}, nil
	})
}

// InventoryCodes GET /v1/dashboard/inventory-codes
func (h *DashboardHandler) InventoryCodes(c *fiber.Ctx) error {
	return h.serve(c, func(ctx context.Context, token string, q dashboard.Query) (interface{}, error) {
		slices, err := h.service.InventoryCodes(ctx, token, q)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"inventory_codes": slices}, nil
	})
}

type dashboardCall func(ctx context.Context, token string, q dashboard.Query) (interface{}, error)

func (h *DashboardHandler) serve(c *fiber.Ctx, call dashboardCall) error {
	token, err := middleware.GetBackendToken(c)
	if err != nil {
		return err
	}

	q, err := parseQuery(c)
	if err != nil {
		return err
	}

	out, err := call(c.UserContext(), token, q)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func parseQuery(c *fiber.Ctx) (dashboard.Query, error) {
	dir, ok := domain.ParseDirection(c.Query("direction"))
	if !ok {
		return dashboard.Query{}, domain.ErrValidationFailed.WithError(errors.New("direction must be in, out or both"))
	}

	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return dashboard.Query{}, domain.ErrValidationFailed.WithError(errors.New("limit must not be negative"))
	}

	topN := c.QueryInt("n", 0)
	if topN < 0 || topN > maxTopN {
		return dashboard.Query{}, domain.ErrValidationFailed.WithError(errors.New("n must not exceed 100"))
	}

	return dashboard.Query{
		Direction:       dir,
		Limit:           limit,
		TopN:            topN,
		ExcludeCanceled: c.QueryBool("exclude_canceled", false),
		Refresh:         c.QueryBool("refresh", false),
	}, nil
}
