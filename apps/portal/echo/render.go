package echoportal

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/fs"
)

const (
	templatesDir     = "templates/web"
	layoutTemplate   = "_layout.gohtml"
	contextNotifsKey = "notifications"
)

var pageNames = []string{
	"login",
	"error",
	"admin_planifications",
	"encadrant_soutenances",
	"encadrant_details",
	"etudiant_soutenances",
}

var templateFuncs = template.FuncMap{
	"formatDate":      planning.FormatDate,
	"formatTime":      planning.FormatTime,
	"studentName":     planning.StudentName,
	"slotStatusClass": planning.SlotStatusClass,
	"slotStatusText":  planning.SlotStatusText,
	"isOccupied":      planning.IsOccupied,
	"slotStatus":      planning.StudentSlotStatus,
	"daysUntil":       planning.DaysUntil,
	"calendarURL":     planning.GoogleCalendarURL,
	"picker":          newStudentPicker,
}

// studentPicker feeds the student select of a slot form.
type studentPicker struct {
	Students []planning.Etudiant
	Selected int64
	Form     string
}

func newStudentPicker(students []planning.Etudiant, current *planning.Etudiant, form string) studentPicker {
	p := studentPicker{Students: students, Form: form}
	if current != nil {
		p.Selected = current.ID
	}
	return p
}

// renderer renders the pages embedded in appfs, each one within the common layout.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() *renderer {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		r.pages[name] = template.Must(
			template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(
				appfs.FS,
				templatesDir+"/"+layoutTemplate,
				templatesDir+"/"+name+".gohtml",
			),
		)
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("page %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// page is what every template receives.
type page struct {
	Title  string
	User   *user.User
	Toasts []notification.Toast
	Data   interface{}
}

// newPage prepares the page of the current user, along with the toasts they have not seen yet.
func newPage(ctx echo.Context, title string, data interface{}) page {
	p := page{Title: title, Data: data, Toasts: []notification.Toast{}}
	if usr, err := getContextUser(ctx); err == nil {
		p.User = &usr
		if center, ok := ctx.Get(contextNotifsKey).(*notification.Center); ok {
			p.Toasts = center.Drain(usr.Key())
		}
	}
	return p
}

func notificationsMiddleware(center *notification.Center) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctx.Set(contextNotifsKey, center)
			return next(ctx)
		}
	}
}

// wantsJSON tells API clients apart from browsers.
func wantsJSON(ctx echo.Context) bool {
	req := ctx.Request()
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// respond sends data as JSON to API clients, or renders it within page name.
func respond(ctx echo.Context, code int, name, title string, data interface{}, jsonData ...interface{}) error {
	if wantsJSON(ctx) {
		if len(jsonData) > 0 {
			return ctx.JSON(code, jsonData[0])
		}
		return ctx.JSON(code, data)
	}
	return ctx.Render(code, name, newPage(ctx, title, data))
}

// attachment sends an exported file.
func attachment(ctx echo.Context, f planning.File) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	contentType := f.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Blob(http.StatusOK, contentType, f.Content)
}
