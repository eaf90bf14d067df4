package export

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/estbm/soutenances/core/planning"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StudentSlotsWorkbook lists the slots of a student in a spreadsheet.
func StudentSlotsWorkbook(slots []planning.StudentSlot) (planning.File, error) {
	headers := []string{"Date", "Début", "Fin", "Sujet", "Entreprise", "Encadrant", "Salle", "Statut"}
	rows := make([][]interface{}, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, []interface{}{
			s.Date, planning.FormatTime(s.HeureDebut), planning.FormatTime(s.HeureFin),
			s.Sujet, s.Entreprise, s.Encadrant, s.Salle, planning.StudentSlotStatus(s).Text,
		})
	}
	return workbook("Soutenances", headers, rows, "mes_soutenances.xlsx")
}

// DetailsWorkbook lists the slots of a planification in a spreadsheet.
func DetailsWorkbook(planif planning.Planification, details []planning.Detail) (planning.File, error) {
	headers := []string{"Date", "Début", "Fin", "Sujet", "Étudiant", "Statut"}
	rows := make([][]interface{}, 0, len(details))
	for _, d := range details {
		rows = append(rows, []interface{}{
			planif.DateSoutenance, planning.FormatTime(d.HeureDebut), planning.FormatTime(d.HeureFin),
			d.Sujet, planning.StudentName(d), planning.SlotStatusText(d),
		})
	}
	return workbook("Créneaux", headers, rows, fmt.Sprintf("planification_%d.xlsx", planif.ID))
}

func workbook(sheet string, headers []string, rows [][]interface{}, name string) (planning.File, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return planning.File{}, errors.Wrap(err, "naming sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"29629B"}},
	})
	if err != nil {
		return planning.File{}, errors.Wrap(err, "creating header style")
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return planning.File{}, errors.Wrap(err, "writing header")
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return planning.File{}, errors.Wrap(err, "styling header")
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return planning.File{}, errors.Wrap(err, "writing row")
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return planning.File{}, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return planning.File{}, errors.Wrap(err, "writing workbook")
	}
	return planning.File{Name: name, ContentType: XLSXContentType, Content: buf.Bytes()}, nil
}
