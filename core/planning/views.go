package planning

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/locales/fr"
)

const (
	dateLayout = "2006-01-02"

	StatusOccupied  = "Occupé"
	StatusAvailable = "Disponible"

	StatusClassPast     = "soutenance-past"
	StatusClassToday    = "soutenance-today"
	StatusClassUpcoming = "soutenance-upcoming"
)

var (
	NowFunc = time.Now // mockable

	frLocale = fr.New()
)

// Today is the current UTC date, formatted like the API dates.
func Today() string {
	return NowFunc().UTC().Format(dateLayout)
}

// Supervisor screen

// FilterByDate keeps the planifications whose date starts with prefix (e.g. "2025-06").
func FilterByDate(planifs []Planification, prefix string) []Planification {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return planifs
	}
	filtered := make([]Planification, 0, len(planifs))
	for _, p := range planifs {
		if strings.HasPrefix(p.DateSoutenance, prefix) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Upcoming keeps the planifications from today onwards.
func Upcoming(planifs []Planification) []Planification {
	today := Today()
	return filterPlanifs(planifs, func(p Planification) bool { return p.DateSoutenance >= today })
}

// Past keeps the planifications before today.
func Past(planifs []Planification) []Planification {
	today := Today()
	return filterPlanifs(planifs, func(p Planification) bool { return p.DateSoutenance < today })
}

func filterPlanifs(planifs []Planification, keep func(Planification) bool) []Planification {
	filtered := make([]Planification, 0, len(planifs))
	for _, p := range planifs {
		if keep(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// FindPlanification returns the planification with the given ID.
func FindPlanification(planifs []Planification, id int64) (Planification, bool) {
	for _, p := range planifs {
		if p.ID == id {
			return p, true
		}
	}
	return Planification{}, false
}

type SlotStats struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

func ComputeSlotStats(details []Detail) SlotStats {
	stats := SlotStats{Total: len(details)}
	for _, d := range details {
		if IsOccupied(d) {
			stats.Occupied++
		}
	}
	stats.Available = stats.Total - stats.Occupied
	return stats
}

// IsOccupied reports whether a student is bound to the slot.
func IsOccupied(d Detail) bool {
	return d.Etudiant != nil && d.Etudiant.ID != 0
}

func StudentName(d Detail) string {
	if d.Etudiant == nil {
		return ""
	}
	return d.Etudiant.FullName()
}

func SlotStatusClass(d Detail) string {
	if IsOccupied(d) {
		return "slot-occupied"
	}
	return "slot-available"
}

func SlotStatusText(d Detail) string {
	if IsOccupied(d) {
		return StatusOccupied
	}
	return StatusAvailable
}

// FindDetail returns the slot with the given ID.
func FindDetail(details []Detail, id int64) (Detail, bool) {
	for _, d := range details {
		if d.ID == id {
			return d, true
		}
	}
	return Detail{}, false
}

// AppendDetail, ReplaceDetail and RemoveDetail keep a rendered list in sync after a mutation.

func AppendDetail(details []Detail, d Detail) []Detail {
	res := make([]Detail, 0, len(details)+1)
	res = append(res, details...)
	return append(res, d)
}

func ReplaceDetail(details []Detail, d Detail) []Detail {
	res := make([]Detail, len(details))
	copy(res, details)
	for i := range res {
		if res[i].ID == d.ID {
			res[i] = d
		}
	}
	return res
}

func RemoveDetail(details []Detail, id int64) []Detail {
	res := make([]Detail, 0, len(details))
	for _, d := range details {
		if d.ID != id {
			res = append(res, d)
		}
	}
	return res
}

// Formatting

// FormatTime keeps the HH:MM part of a time.
func FormatTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

// FormatDate renders an API date in long French form ("mardi 10 juin 2025"). Unparsable dates are returned as is.
func FormatDate(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return date
	}
	return frLocale.FmtDateFull(t)
}

// Student screen

func UpcomingSlots(slots []StudentSlot) []StudentSlot {
	today := Today()
	return filterSlots(slots, func(s StudentSlot) bool { return s.Date >= today })
}

func PastSlots(slots []StudentSlot) []StudentSlot {
	today := Today()
	return filterSlots(slots, func(s StudentSlot) bool { return s.Date < today })
}

func filterSlots(slots []StudentSlot, keep func(StudentSlot) bool) []StudentSlot {
	filtered := make([]StudentSlot, 0, len(slots))
	for _, s := range slots {
		if keep(s) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// NextSlot returns the earliest upcoming slot.
func NextSlot(slots []StudentSlot) (StudentSlot, bool) {
	upcoming := UpcomingSlots(slots)
	if len(upcoming) == 0 {
		return StudentSlot{}, false
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return slotStart(upcoming[i]).Before(slotStart(upcoming[j]))
	})
	return upcoming[0], true
}

// FindSlot returns the slot of the given detail.
func FindSlot(slots []StudentSlot, detailID int64) (StudentSlot, bool) {
	for _, s := range slots {
		if s.DetailID == detailID {
			return s, true
		}
	}
	return StudentSlot{}, false
}

// DaysUntil is the number of days left before midnight UTC of date, rounded up.
func DaysUntil(date string) int {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0
	}
	return int(math.Ceil(d.Sub(NowFunc()).Hours() / 24))
}

type SlotStatus struct {
	Class string `json:"class"`
	Text  string `json:"text"`
}

func StudentSlotStatus(s StudentSlot) SlotStatus {
	today := Today()
	switch {
	case s.Date < today:
		return SlotStatus{Class: StatusClassPast, Text: "Terminée"}
	case s.Date == today:
		return SlotStatus{Class: StatusClassToday, Text: "Aujourd'hui"}
	}
	days := DaysUntil(s.Date)
	plural := ""
	if days > 1 {
		plural = "s"
	}
	return SlotStatus{Class: StatusClassUpcoming, Text: fmt.Sprintf("Dans %d jour%s", days, plural)}
}

// GoogleCalendarURL returns a link that opens a prefilled Google Calendar event for the slot.
func GoogleCalendarURL(s StudentSlot) string {
	const calLayout = "20060102T150405Z"
	start := slotStart(s).UTC().Format(calLayout)
	end := slotTime(s.Date, s.HeureFin).UTC().Format(calLayout)

	title := "Soutenance de stage - " + s.Sujet
	details := fmt.Sprintf("Soutenance: %s\nEntreprise: %s", s.Sujet, s.Entreprise)
	return fmt.Sprintf(
		"https://calendar.google.com/calendar/render?action=TEMPLATE&text=%s&dates=%s/%s&details=%s",
		encodeURIComponent(title), start, end, encodeURIComponent(details),
	)
}

func slotStart(s StudentSlot) time.Time {
	return slotTime(s.Date, s.HeureDebut)
}

func slotTime(date, clock string) time.Time {
	clock = FormatTime(clock)
	t, err := time.ParseInLocation(dateLayout+" 15:04", date+" "+clock, time.Local)
	if err != nil {
		t, _ = time.ParseInLocation(dateLayout, date, time.Local)
	}
	return t
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
