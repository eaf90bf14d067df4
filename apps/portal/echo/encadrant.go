package echoportal

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/services/export"
)

const encadrantHome = "/encadrant/soutenances"

type (
	encadrantHandlers struct {
		svc *planning.Service
	}

	encadrantSoutenancesPage struct {
		Date     string
		Upcoming []planning.Planification
		Past     []planning.Planification
	}

	encadrantDetailsPage struct {
		Planification planning.Planification
		Details       []planning.Detail
		Stats         planning.SlotStats
		Students      []planning.Etudiant
	}

	// detailForm is a slot as submitted by the slot form; the student is picked by ID.
	detailForm struct {
		Sujet      string `json:"sujet" form:"sujet"`
		HeureDebut string `json:"heureDebut" form:"heureDebut"`
		HeureFin   string `json:"heureFin" form:"heureFin"`
		EtudiantID int64  `json:"etudiantId" form:"etudiantId"`
	}

	// detailsResponse is the slot list after a mutation, spliced without refetching.
	detailsResponse struct {
		Detail  *planning.Detail   `json:"detail,omitempty"`
		Details []planning.Detail  `json:"details"`
		Stats   planning.SlotStats `json:"stats"`
	}
)

func registerEncadrantRoutes(g *echo.Group, deps ServerDeps) {
	h := encadrantHandlers{svc: deps.PlanningSvc}
	g.GET("/soutenances", h.soutenanceQuery)
	g.GET("/soutenances/export", h.soutenanceExport)
	g.GET("/soutenances/:id", h.detailQuery)
	g.POST("/soutenances/:id/details", h.detailCreate)
	g.POST("/soutenances/:id/details/:detailId", h.detailUpdate)
	g.POST("/soutenances/:id/details/:detailId/delete", h.detailDelete)
	g.GET("/soutenances/:id/export", h.planificationExport)
	g.GET("/soutenances/:id/xlsx", h.planificationWorkbook)
	g.GET("/soutenances/:id/pdf", h.planificationPDF)
	g.GET("/class-groups/:id/etudiants", h.studentSearch)
}

func (h *encadrantHandlers) soutenanceQuery(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	date := ctx.QueryParam("date")

	planifs, err := h.svc.QueryByEncadrant(ctx.Request().Context(), usr.ID)
	if err != nil && !reported(ctx, err) {
		return errors.Wrap(err, "querying planifications")
	}
	planifs = planning.FilterByDate(planifs, date)

	data := encadrantSoutenancesPage{
		Date:     date,
		Upcoming: planning.Upcoming(planifs),
		Past:     planning.Past(planifs),
	}
	return respond(ctx, http.StatusOK, "encadrant_soutenances", "Mes soutenances", data, planifs)
}

func (h *encadrantHandlers) detailQuery(ctx echo.Context) error {
	planif, err := h.planification(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	details, err := h.svc.QueryDetails(rctx, planif.ID)
	if err != nil && !reported(ctx, err) {
		return errors.Wrap(err, "querying details")
	}

	var students []planning.Etudiant
	if planif.ClassGroup != nil && !wantsJSON(ctx) {
		if students, err = h.svc.QueryStudentsByClassGroup(rctx, planif.ClassGroup.ID); err != nil && !reported(ctx, err) {
			return errors.Wrap(err, "querying students")
		}
	}

	data := encadrantDetailsPage{
		Planification: planif,
		Details:       details,
		Stats:         planning.ComputeSlotStats(details),
		Students:      students,
	}
	title := "Soutenances du " + planning.FormatDate(planif.DateSoutenance)
	return respond(ctx, http.StatusOK, "encadrant_details", title, data,
		detailsResponse{Details: details, Stats: data.Stats})
}

func (h *encadrantHandlers) detailCreate(ctx echo.Context) error {
	planif, details, err := h.planificationDetails(ctx)
	if err != nil {
		return err
	}
	var form detailForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding detail")
	}
	rctx := ctx.Request().Context()

	nd := planning.NewDetail{
		Sujet:      form.Sujet,
		HeureDebut: form.HeureDebut,
		HeureFin:   form.HeureFin,
		Etudiant:   h.student(ctx, planif, form.EtudiantID),
	}
	detail, err := h.svc.AddDetail(rctx, planif, nd)
	if err != nil {
		return h.mutationFailed(ctx, planif, err, "adding detail")
	}

	if wantsJSON(ctx) {
		details = planning.AppendDetail(details, detail)
		return ctx.JSON(http.StatusCreated, detailsResponse{
			Detail:  &detail,
			Details: details,
			Stats:   planning.ComputeSlotStats(details),
		})
	}
	return ctx.Redirect(http.StatusSeeOther, detailsPath(planif.ID))
}

func (h *encadrantHandlers) detailUpdate(ctx echo.Context) error {
	planif, details, detailID, err := h.ownedDetail(ctx)
	if err != nil {
		return err
	}
	var form detailForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding detail")
	}

	ud := planning.UpdateDetail{
		Sujet:      form.Sujet,
		HeureDebut: form.HeureDebut,
		HeureFin:   form.HeureFin,
		Etudiant:   h.student(ctx, planif, form.EtudiantID),
	}
	detail, err := h.svc.UpdateDetail(ctx.Request().Context(), planif, detailID, ud)
	if err != nil {
		return h.mutationFailed(ctx, planif, err, "updating detail")
	}

	if wantsJSON(ctx) {
		details = planning.ReplaceDetail(details, detail)
		return ctx.JSON(http.StatusOK, detailsResponse{
			Detail:  &detail,
			Details: details,
			Stats:   planning.ComputeSlotStats(details),
		})
	}
	return ctx.Redirect(http.StatusSeeOther, detailsPath(planif.ID))
}

func (h *encadrantHandlers) detailDelete(ctx echo.Context) error {
	planif, details, detailID, err := h.ownedDetail(ctx)
	if err != nil {
		return err
	}

	if err = h.svc.DeleteDetail(ctx.Request().Context(), detailID); err != nil {
		return h.mutationFailed(ctx, planif, err, "deleting detail")
	}

	if wantsJSON(ctx) {
		details = planning.RemoveDetail(details, detailID)
		return ctx.JSON(http.StatusOK, detailsResponse{Details: details, Stats: planning.ComputeSlotStats(details)})
	}
	return ctx.Redirect(http.StatusSeeOther, detailsPath(planif.ID))
}

func (h *encadrantHandlers) soutenanceExport(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	f, err := h.svc.ExportByEncadrant(ctx.Request().Context(), usr.ID)
	if err != nil {
		if reported(ctx, err) {
			return ctx.Redirect(http.StatusSeeOther, encadrantHome)
		}
		return errors.Wrap(err, "exporting planifications")
	}
	return attachment(ctx, f)
}

func (h *encadrantHandlers) planificationExport(ctx echo.Context) error {
	planif, err := h.planification(ctx)
	if err != nil {
		return err
	}
	f, err := h.svc.ExportPlanification(ctx.Request().Context(), planif.ID)
	if err != nil {
		return h.mutationFailed(ctx, planif, err, "exporting planification")
	}
	return attachment(ctx, f)
}

// planificationWorkbook renders the slots spreadsheet locally, for when the API export is unavailable.
func (h *encadrantHandlers) planificationWorkbook(ctx echo.Context) error {
	planif, details, err := h.planificationDetails(ctx)
	if err != nil {
		return err
	}
	f, err := export.DetailsWorkbook(planif, details)
	if err != nil {
		return errors.Wrap(err, "rendering workbook")
	}
	return attachment(ctx, f)
}

func (h *encadrantHandlers) planificationPDF(ctx echo.Context) error {
	planif, details, err := h.planificationDetails(ctx)
	if err != nil {
		return err
	}
	f, err := export.PlanificationPDF(planif, details, time.Now())
	if err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return attachment(ctx, f)
}

// studentSearch lists the students of one of the supervisor's class groups, best matches of q first.
func (h *encadrantHandlers) studentSearch(ctx echo.Context) error {
	groupID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	students, err := h.svc.StudentsForEncadrant(ctx.Request().Context(), usr.ID, groupID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if q := ctx.QueryParam("q"); q != "" {
		students = planning.RankStudents(students, q)
	}
	return ctx.JSON(http.StatusOK, students)
}

// planification returns the planification of the path, as long as it is assigned to the current supervisor.
func (h *encadrantHandlers) planification(ctx echo.Context) (planning.Planification, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return planning.Planification{}, errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return planning.Planification{}, err
	}
	planif, err := h.svc.FindForEncadrant(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return planning.Planification{}, errors.Wrap(err, "finding planification")
	}
	return planif, nil
}

func (h *encadrantHandlers) planificationDetails(ctx echo.Context) (planning.Planification, []planning.Detail, error) {
	planif, err := h.planification(ctx)
	if err != nil {
		return planning.Planification{}, nil, err
	}
	details, err := h.svc.FindDetails(ctx.Request().Context(), planif.ID)
	if err != nil {
		return planning.Planification{}, nil, errors.Wrap(err, "finding details")
	}
	return planif, details, nil
}

// ownedDetail resolves the slot of the path, which must belong to the supervisor's planification.
func (h *encadrantHandlers) ownedDetail(ctx echo.Context) (planning.Planification, []planning.Detail, int64, error) {
	planif, details, err := h.planificationDetails(ctx)
	if err != nil {
		return planning.Planification{}, nil, 0, err
	}
	detailID, err := pathID(ctx, "detailId")
	if err != nil {
		return planning.Planification{}, nil, 0, err
	}
	if _, ok := planning.FindDetail(details, detailID); !ok {
		return planning.Planification{}, nil, 0, errHttpNotFound
	}
	return planif, details, detailID, nil
}

// student resolves the picked student within the planification's class group, so that they can be convened.
func (h *encadrantHandlers) student(ctx echo.Context, planif planning.Planification, id int64) *planning.Etudiant {
	if id <= 0 {
		return nil
	}
	if planif.ClassGroup != nil {
		students, err := h.svc.QueryStudentsByClassGroup(ctx.Request().Context(), planif.ClassGroup.ID)
		if err == nil {
			for _, s := range students {
				if s.ID == id {
					return &s
				}
			}
		}
	}
	return &planning.Etudiant{ID: id}
}

// mutationFailed sends a browser back to the slots, where the failure toast is shown.
func (h *encadrantHandlers) mutationFailed(ctx echo.Context, planif planning.Planification, err error, msg string) error {
	if reported(ctx, err) {
		return ctx.Redirect(http.StatusSeeOther, detailsPath(planif.ID))
	}
	return errors.Wrap(err, msg)
}

func detailsPath(planifID int64) string {
	return fmt.Sprintf("%s/%d", encadrantHome, planifID)
}

func pathID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
