package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core/planning"
)

const (
	PDFContentType = "application/pdf"

	pageMargin = 15.0
	rowHeight  = 8.0
)

type column struct {
	title string
	width float64
}

// StudentPlanningFilename is the download name of a student planning generated on day.
func StudentPlanningFilename(day time.Time) string {
	return fmt.Sprintf("planification_soutenances_%s.pdf", day.Format("2006-01-02"))
}

// StudentPlanningPDF renders the slots of a student, upcoming first then past ones.
func StudentPlanningPDF(studentName string, slots []planning.StudentSlot, generatedAt time.Time) (planning.File, error) {
	doc := newDocument("Planification des soutenances", generatedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	if studentName != "" {
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(0, rowHeight, tr("Étudiant : "+studentName), "", 1, "L", false, 0, "")
		doc.Ln(2)
	}

	cols := []column{
		{"Date", 48}, {"Horaire", 26}, {"Sujet", 56}, {"Entreprise", 30}, {"Salle", 20},
	}
	sections := []struct {
		title string
		slots []planning.StudentSlot
	}{
		{"Soutenances à venir", planning.UpcomingSlots(slots)},
		{"Soutenances passées", planning.PastSlots(slots)},
	}
	for _, sec := range sections {
		sectionTitle(doc, tr(fmt.Sprintf("%s (%d)", sec.title, len(sec.slots))))
		if len(sec.slots) == 0 {
			doc.SetFont("Helvetica", "I", 10)
			doc.CellFormat(0, rowHeight, tr("Aucune soutenance."), "", 1, "L", false, 0, "")
			continue
		}
		tableHeader(doc, tr, cols)
		doc.SetFont("Helvetica", "", 9)
		for i, s := range sec.slots {
			tableRow(doc, tr, cols, i%2 == 1,
				planning.FormatDate(s.Date),
				planning.FormatTime(s.HeureDebut)+" - "+planning.FormatTime(s.HeureFin),
				s.Sujet, s.Entreprise, s.Salle,
			)
		}
	}

	return output(doc, StudentPlanningFilename(generatedAt))
}

// PlanificationPDF renders the slots of one planification for its supervisor.
func PlanificationPDF(planif planning.Planification, details []planning.Detail, generatedAt time.Time) (planning.File, error) {
	doc := newDocument("Planification du "+planning.FormatDate(planif.DateSoutenance), generatedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Helvetica", "", 11)
	if planif.Encadrant != nil {
		doc.CellFormat(0, rowHeight, tr("Encadrant : "+planif.Encadrant.FullName()), "", 1, "L", false, 0, "")
	}
	if planif.ClassGroup != nil && planif.ClassGroup.Nom != "" {
		doc.CellFormat(0, rowHeight, tr("Classe : "+planif.ClassGroup.Nom), "", 1, "L", false, 0, "")
	}
	stats := planning.ComputeSlotStats(details)
	doc.CellFormat(0, rowHeight, tr(fmt.Sprintf("Créneaux : %d (%d occupé(s), %d disponible(s))",
		stats.Total, stats.Occupied, stats.Available)), "", 1, "L", false, 0, "")
	doc.Ln(2)

	cols := []column{{"Horaire", 30}, {"Sujet", 80}, {"Étudiant", 45}, {"Statut", 25}}
	tableHeader(doc, tr, cols)
	doc.SetFont("Helvetica", "", 9)
	for i, d := range details {
		tableRow(doc, tr, cols, i%2 == 1,
			planning.FormatTime(d.HeureDebut)+" - "+planning.FormatTime(d.HeureFin),
			d.Sujet, planning.StudentName(d), planning.SlotStatusText(d),
		)
	}

	return output(doc, fmt.Sprintf("planification_%d.pdf", planif.ID))
}

// ConvocationPDF renders the convocation of the student bound to a slot, attached to its email.
func ConvocationPDF(planif planning.Planification, detail planning.Detail, generatedAt time.Time) (planning.File, error) {
	doc := newDocument("Convocation à la soutenance de stage", generatedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	lines := [][2]string{
		{"Étudiant", planning.StudentName(detail)},
		{"Sujet", detail.Sujet},
		{"Date", planning.FormatDate(planif.DateSoutenance)},
		{"Horaire", planning.FormatTime(detail.HeureDebut) + " - " + planning.FormatTime(detail.HeureFin)},
	}
	if planif.Encadrant != nil {
		lines = append(lines, [2]string{"Encadrant", planif.Encadrant.FullName()})
	}
	if planif.ClassGroup != nil && planif.ClassGroup.Nom != "" {
		lines = append(lines, [2]string{"Classe", planif.ClassGroup.Nom})
	}
	for _, l := range lines {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(35, rowHeight, tr(l[0]+" :"), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(0, rowHeight, tr(l[1]), "", 1, "L", false, 0, "")
	}

	return output(doc, fmt.Sprintf("convocation_%s_%d.pdf", planif.DateSoutenance, detail.ID))
}

func newDocument(title string, generatedAt time.Time) *fpdf.Fpdf {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetTitle(title, true)
	doc.AliasNbPages("")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-pageMargin)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(128, 128, 128)
		pageW, _ := doc.GetPageSize()
		half := (pageW - 2*pageMargin) / 2
		doc.CellFormat(half, 10, tr(fmt.Sprintf("Généré le %s", generatedAt.Format("02/01/2006 15:04"))), "", 0, "L", false, 0, "")
		doc.CellFormat(half, 10, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "R", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	})

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	doc.Ln(4)
	return doc
}

func sectionTitle(doc *fpdf.Fpdf, title string) {
	doc.Ln(3)
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, rowHeight, title, "", 1, "L", false, 0, "")
}

func tableHeader(doc *fpdf.Fpdf, tr func(string) string, cols []column) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(41, 98, 155)
	doc.SetTextColor(255, 255, 255)
	for _, c := range cols {
		doc.CellFormat(c.width, rowHeight, tr(c.title), "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)
	doc.SetTextColor(0, 0, 0)
}

func tableRow(doc *fpdf.Fpdf, tr func(string) string, cols []column, shaded bool, values ...string) {
	doc.SetFillColor(240, 244, 248)
	for i, c := range cols {
		var v string
		if i < len(values) {
			v = truncate(doc, tr(values[i]), c.width-2)
		}
		doc.CellFormat(c.width, rowHeight, v, "1", 0, "L", shaded, 0, "")
	}
	doc.Ln(-1)
}

// truncate shortens s so that it fits in width.
func truncate(doc *fpdf.Fpdf, s string, width float64) string {
	if doc.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && doc.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func output(doc *fpdf.Fpdf, name string) (planning.File, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return planning.File{}, errors.Wrap(err, "rendering pdf")
	}
	return planning.File{Name: name, ContentType: PDFContentType, Content: buf.Bytes()}, nil
}
