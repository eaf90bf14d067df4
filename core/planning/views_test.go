package planning

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func freezeTime(t *testing.T, now time.Time) {
	NowFunc = func() time.Time { return now }
	t.Cleanup(func() { NowFunc = time.Now })
}

func Test_FilterByDate(t *testing.T) {
	planifs := []Planification{
		{ID: 1, DateSoutenance: "2025-06-10"},
		{ID: 2, DateSoutenance: "2025-06-24"},
		{ID: 3, DateSoutenance: "2025-07-01"},
	}

	tests := []struct {
		name    string
		prefix  string
		wantIDs []int64
	}{
		{name: "no filter", prefix: "", wantIDs: []int64{1, 2, 3}},
		{name: "blank filter", prefix: "  ", wantIDs: []int64{1, 2, 3}},
		{name: "month", prefix: "2025-06", wantIDs: []int64{1, 2}},
		{name: "day", prefix: "2025-07-01", wantIDs: []int64{3}},
		{name: "no match", prefix: "2024", wantIDs: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByDate(planifs, tt.prefix)
			ids := make([]int64, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func Test_UpcomingPast(t *testing.T) {
	freezeTime(t, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))

	planifs := []Planification{
		{ID: 1, DateSoutenance: "2025-06-14"},
		{ID: 2, DateSoutenance: "2025-06-15"},
		{ID: 3, DateSoutenance: "2025-06-16"},
	}
	assert.Equal(t, []Planification{planifs[1], planifs[2]}, Upcoming(planifs))
	assert.Equal(t, []Planification{planifs[0]}, Past(planifs))
}

func Test_ComputeSlotStats(t *testing.T) {
	details := []Detail{
		{ID: 1, Etudiant: &Etudiant{ID: 7, Nom: "Alami", Prenom: "Sara"}},
		{ID: 2},
		{ID: 3, Etudiant: &Etudiant{}}, // unbound student
	}
	assert.Equal(t, SlotStats{Total: 3, Occupied: 1, Available: 2}, ComputeSlotStats(details))
	assert.Equal(t, SlotStats{}, ComputeSlotStats(nil))

	assert.Equal(t, "slot-occupied", SlotStatusClass(details[0]))
	assert.Equal(t, StatusOccupied, SlotStatusText(details[0]))
	assert.Equal(t, "slot-available", SlotStatusClass(details[2]))
	assert.Equal(t, StatusAvailable, SlotStatusText(details[1]))
	assert.Equal(t, "Sara Alami", StudentName(details[0]))
	assert.Equal(t, "", StudentName(details[1]))
}

func Test_detailSplicing(t *testing.T) {
	details := []Detail{{ID: 1, Sujet: "A"}, {ID: 2, Sujet: "B"}}

	added := AppendDetail(details, Detail{ID: 3, Sujet: "C"})
	assert.Len(t, added, 3)
	assert.Len(t, details, 2, "input must not be modified")

	replaced := ReplaceDetail(details, Detail{ID: 2, Sujet: "B2"})
	assert.Equal(t, "B2", replaced[1].Sujet)
	assert.Equal(t, "B", details[1].Sujet, "input must not be modified")

	removed := RemoveDetail(details, 1)
	assert.Equal(t, []Detail{{ID: 2, Sujet: "B"}}, removed)
	assert.Equal(t, details, RemoveDetail(details, 42))
}

func Test_FormatTime(t *testing.T) {
	tests := map[string]string{
		"09:30:00": "09:30",
		"09:30":    "09:30",
		"9:3":      "9:3",
		"":         "",
	}
	for in, want := range tests {
		if got := FormatTime(in); got != want {
			t.Errorf("FormatTime(%q) = %q; want %q", in, got, want)
		}
	}
}

func Test_FormatDate(t *testing.T) {
	got := FormatDate("2025-06-10")
	assert.True(t, strings.HasPrefix(got, "mardi"), got)
	assert.Contains(t, got, "10 juin 2025")

	assert.Equal(t, "not-a-date", FormatDate("not-a-date"))
	assert.Equal(t, "", FormatDate(""))
}

func Test_studentSlots(t *testing.T) {
	freezeTime(t, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))

	slots := []StudentSlot{
		{DetailID: 1, Date: "2025-06-01", HeureDebut: "09:00", HeureFin: "09:30", Sujet: "Old"},
		{DetailID: 2, Date: "2025-06-20", HeureDebut: "14:00:00", HeureFin: "14:30:00", Sujet: "Later"},
		{DetailID: 3, Date: "2025-06-20", HeureDebut: "09:00:00", HeureFin: "09:30:00", Sujet: "Sooner"},
		{DetailID: 4, Date: "2025-06-15", HeureDebut: "16:00", HeureFin: "16:30", Sujet: "Today"},
	}

	assert.Len(t, UpcomingSlots(slots), 3)
	assert.Len(t, PastSlots(slots), 1)

	next, ok := NextSlot(slots)
	assert.True(t, ok)
	assert.Equal(t, int64(4), next.DetailID)

	next, ok = NextSlot(slots[1:3])
	assert.True(t, ok)
	assert.Equal(t, int64(3), next.DetailID)

	_, ok = NextSlot(slots[:1])
	assert.False(t, ok)

	slot, ok := FindSlot(slots, 2)
	assert.True(t, ok)
	assert.Equal(t, "Later", slot.Sujet)
	_, ok = FindSlot(slots, 42)
	assert.False(t, ok)
}

func Test_StudentSlotStatus(t *testing.T) {
	freezeTime(t, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		date string
		want SlotStatus
	}{
		{name: "past", date: "2025-06-14", want: SlotStatus{Class: StatusClassPast, Text: "Terminée"}},
		{name: "today", date: "2025-06-15", want: SlotStatus{Class: StatusClassToday, Text: "Aujourd'hui"}},
		{name: "tomorrow", date: "2025-06-16", want: SlotStatus{Class: StatusClassUpcoming, Text: "Dans 1 jour"}},
		{name: "in 5 days", date: "2025-06-20", want: SlotStatus{Class: StatusClassUpcoming, Text: "Dans 5 jours"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StudentSlotStatus(StudentSlot{Date: tt.date}))
		})
	}

	assert.Equal(t, 0, DaysUntil("lol"))

	// dates roll over at midnight UTC
	casablanca := time.FixedZone("Africa/Casablanca", 3600)
	freezeTime(t, time.Date(2025, 6, 16, 0, 30, 0, 0, casablanca))
	assert.Equal(t, "2025-06-15", Today())
	assert.Equal(t, SlotStatus{Class: StatusClassToday, Text: "Aujourd'hui"}, StudentSlotStatus(StudentSlot{Date: "2025-06-15"}))
	assert.Equal(t, SlotStatus{Class: StatusClassUpcoming, Text: "Dans 1 jour"}, StudentSlotStatus(StudentSlot{Date: "2025-06-16"}))
}

func Test_GoogleCalendarURL(t *testing.T) {
	slot := StudentSlot{
		Date:       "2025-06-20",
		HeureDebut: "09:00:00",
		HeureFin:   "09:30:00",
		Sujet:      "Plateforme RH",
		Entreprise: "Acme",
	}
	start := time.Date(2025, 6, 20, 9, 0, 0, 0, time.Local).UTC().Format("20060102T150405Z")
	end := time.Date(2025, 6, 20, 9, 30, 0, 0, time.Local).UTC().Format("20060102T150405Z")

	got := GoogleCalendarURL(slot)
	assert.True(t, strings.HasPrefix(got, "https://calendar.google.com/calendar/render?action=TEMPLATE&text="))
	assert.Contains(t, got, "text=Soutenance%20de%20stage%20-%20Plateforme%20RH")
	assert.Contains(t, got, "&dates="+start+"/"+end)
	assert.Contains(t, got, "&details=Soutenance%3A%20Plateforme%20RH%0AEntreprise%3A%20Acme")
}

func Test_RankStudents(t *testing.T) {
	students := []Etudiant{
		{ID: 1, Nom: "Alami", Prenom: "Sara"},
		{ID: 2, Nom: "Bennani", Prenom: "Youssef"},
		{ID: 3, Nom: "Alaoui", Prenom: "Samir"},
	}

	ids := func(es []Etudiant) []int64 {
		res := make([]int64, 0, len(es))
		for _, e := range es {
			res = append(res, e.ID)
		}
		return res
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []int64
	}{
		{name: "empty query", query: "", wantIDs: []int64{1, 2, 3}},
		{name: "substring", query: "BENN", wantIDs: []int64{2}},
		{name: "shared prefix", query: "ala", wantIDs: []int64{1, 3}},
		{name: "typo", query: "youssf", wantIDs: []int64{2}},
		{name: "full name", query: "sara alami", wantIDs: []int64{1}},
		{name: "no match", query: "zzz", wantIDs: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIDs, ids(RankStudents(students, tt.query)))
		})
	}
}
