package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core/planning"
)

const adminHome = "/admin/planifications"

type (
	adminHandlers struct {
		svc *planning.Service
	}

	adminPlanificationsPage struct {
		Date           string
		Planifications []planning.Planification
		Upcoming       []planning.Planification
		Past           []planning.Planification
		Today          string
	}
)

func registerAdminRoutes(g *echo.Group, deps ServerDeps) {
	h := adminHandlers{svc: deps.PlanningSvc}
	g.GET("/planifications", h.planificationQuery)
	g.POST("/planifications", h.planificationCreate)
}

func (h *adminHandlers) planificationQuery(ctx echo.Context) error {
	date := ctx.QueryParam("date")

	planifs, err := h.svc.QueryAll(ctx.Request().Context())
	if err != nil && !reported(ctx, err) {
		return errors.Wrap(err, "querying planifications")
	}
	planifs = planning.FilterByDate(planifs, date)

	data := adminPlanificationsPage{
		Date:           date,
		Planifications: planifs,
		Upcoming:       planning.Upcoming(planifs),
		Past:           planning.Past(planifs),
		Today:          planning.Today(),
	}
	return respond(ctx, http.StatusOK, "admin_planifications", "Planifications", data, planifs)
}

func (h *adminHandlers) planificationCreate(ctx echo.Context) error {
	var np planning.NewPlanification
	if err := ctx.Bind(&np); err != nil {
		return errors.Wrap(err, "binding new planification")
	}

	planif, err := h.svc.Create(ctx.Request().Context(), np)
	if err != nil {
		if reported(ctx, err) {
			return ctx.Redirect(http.StatusSeeOther, adminHome)
		}
		return errors.Wrap(err, "creating planification")
	}

	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusCreated, planif)
	}
	return ctx.Redirect(http.StatusSeeOther, adminHome)
}
