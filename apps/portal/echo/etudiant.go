package echoportal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/services/export"
)

const etudiantHome = "/etudiant/soutenances"

type (
	etudiantHandlers struct {
		svc *planning.Service
	}

	etudiantSoutenancesPage struct {
		Slots    []planning.StudentSlot
		Upcoming []planning.StudentSlot
		Past     []planning.StudentSlot
		Next     *planning.StudentSlot
	}

	calendarLink struct {
		URL string `json:"url"`
	}
)

func registerEtudiantRoutes(g *echo.Group, deps ServerDeps) {
	h := etudiantHandlers{svc: deps.PlanningSvc}
	g.GET("/soutenances", h.soutenanceQuery)
	g.GET("/soutenances/pdf", h.soutenancePDF)
	g.GET("/soutenances/xlsx", h.soutenanceWorkbook)
	g.GET("/soutenances/calendar", h.soutenanceCalendar)
}

func (h *etudiantHandlers) soutenanceQuery(ctx echo.Context) error {
	slots, err := h.slots(ctx)
	if err != nil && !reported(ctx, err) {
		return err
	}

	data := etudiantSoutenancesPage{
		Slots:    slots,
		Upcoming: planning.UpcomingSlots(slots),
		Past:     planning.PastSlots(slots),
	}
	if next, ok := planning.NextSlot(slots); ok {
		data.Next = &next
	}
	return respond(ctx, http.StatusOK, "etudiant_soutenances", "Mes soutenances", data, slots)
}

func (h *etudiantHandlers) soutenancePDF(ctx echo.Context) error {
	slots, err := h.slots(ctx)
	if err != nil {
		return h.exportFailed(ctx, err)
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	f, err := export.StudentPlanningPDF(usr.FullName(), slots, time.Now())
	if err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return attachment(ctx, f)
}

func (h *etudiantHandlers) soutenanceWorkbook(ctx echo.Context) error {
	slots, err := h.slots(ctx)
	if err != nil {
		return h.exportFailed(ctx, err)
	}
	f, err := export.StudentSlotsWorkbook(slots)
	if err != nil {
		return errors.Wrap(err, "rendering workbook")
	}
	return attachment(ctx, f)
}

// soutenanceCalendar sends the student to the Google Calendar event of one of their slots.
func (h *etudiantHandlers) soutenanceCalendar(ctx echo.Context) error {
	detailID, err := strconv.ParseInt(ctx.QueryParam("detail"), 10, 64)
	if err != nil {
		return errHttpNotFound
	}
	slots, err := h.slots(ctx)
	if err != nil {
		return h.exportFailed(ctx, err)
	}
	slot, ok := planning.FindSlot(slots, detailID)
	if !ok {
		return errHttpNotFound
	}

	link := planning.GoogleCalendarURL(slot)
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, calendarLink{URL: link})
	}
	return ctx.Redirect(http.StatusFound, link)
}

func (h *etudiantHandlers) slots(ctx echo.Context) ([]planning.StudentSlot, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	slots, err := h.svc.QueryByEtudiant(ctx.Request().Context(), usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying slots")
	}
	return slots, nil
}

func (h *etudiantHandlers) exportFailed(ctx echo.Context, err error) error {
	if reported(ctx, err) {
		return ctx.Redirect(http.StatusSeeOther, etudiantHome)
	}
	return err
}
