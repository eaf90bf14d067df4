package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/storage/database"
)

// PrepareDB opens the test database, migrates it and empties it. The test is skipped when no database is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("ENV") == "" {
		t.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	if !conf.Database.Enabled {
		t.Skip("database disabled (set TEST_DATABASE_ENABLED=true)")
	}

	db, err := database.Open(context.Background(), conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, conf); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE TABLE toast"); err != nil {
		t.Fatalf("resetting DB failed: %v", err)
	}
	return db
}

// Account is a user known by the fake stages API.
type Account struct {
	Password string
	User     user.User
}

// StagesAPI is an in-memory stand-in of the stages REST API.
type StagesAPI struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]Account // {username: account}
	tokens   map[string]user.User
	planifs  []planning.Planification
	slots    map[int64][]planning.StudentSlot
	students map[int64][]planning.Etudiant
	nextID   int64

	// Fail, when set, answers every planification call with this status.
	Fail int
	// SparseListings leaves the slots out of the planification listings, as some API versions do.
	SparseListings bool
}

var (
	reAll        = regexp.MustCompile(`^/stages/planification/all$`)
	reByEnc      = regexp.MustCompile(`^/stages/planification/encadrant/(\d+)$`)
	reEncExport  = regexp.MustCompile(`^/stages/planification/encadrant/(\d+)/export$`)
	reByEtu      = regexp.MustCompile(`^/stages/planification/etudiant/(\d+)$`)
	reDetails    = regexp.MustCompile(`^/stages/planification/(\d+)/details$`)
	reAddDetail  = regexp.MustCompile(`^/stages/planification/(\d+)/addDetail$`)
	reDetail     = regexp.MustCompile(`^/stages/planification/details/(\d+)$`)
	rePlanExport = regexp.MustCompile(`^/stages/planification/(\d+)/export$`)
	reCreate     = regexp.MustCompile(`^/stages/planification/create$`)
	reStudents   = regexp.MustCompile(`^/stages/admin/class-groups/(\d+)/etudiants$`)
)

func NewStagesAPI(t *testing.T) *StagesAPI {
	api := &StagesAPI{
		accounts: make(map[string]Account),
		tokens:   make(map[string]user.User),
		slots:    make(map[int64][]planning.StudentSlot),
		students: make(map[int64][]planning.Etudiant),
		nextID:   100,
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

// AddAccount registers a user and returns the bearer token it is issued.
func (api *StagesAPI) AddAccount(username, password string, usr user.User) string {
	api.mu.Lock()
	defer api.mu.Unlock()
	token := fmt.Sprintf("token-%s-%d", username, usr.ID)
	api.accounts[username] = Account{Password: password, User: usr}
	api.tokens[token] = usr
	return token
}

func (api *StagesAPI) AddPlanification(p planning.Planification) planning.Planification {
	api.mu.Lock()
	defer api.mu.Unlock()
	if p.ID == 0 {
		api.nextID++
		p.ID = api.nextID
	}
	api.planifs = append(api.planifs, p)
	return p
}

func (api *StagesAPI) SetStudentSlots(etudiantID int64, slots ...planning.StudentSlot) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.slots[etudiantID] = slots
}

func (api *StagesAPI) SetClassGroupStudents(classGroupID int64, students ...planning.Etudiant) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.students[classGroupID] = students
}

// RevokeTokens expires every issued token, as the API does when sessions time out.
func (api *StagesAPI) RevokeTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.tokens = make(map[string]user.User)
}

// Planification returns the current state of a planification.
func (api *StagesAPI) Planification(id int64) (planning.Planification, bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	for _, p := range api.planifs {
		if p.ID == id {
			return p, true
		}
	}
	return planning.Planification{}, false
}

func (api *StagesAPI) serve(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()

	if r.URL.Path == "/auth/login" && r.Method == http.MethodPost {
		api.login(w, r)
		return
	}
	if _, ok := api.tokens[bearer(r)]; !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	if api.Fail != 0 {
		writeJSON(w, api.Fail, map[string]string{"message": "Erreur du serveur de stages"})
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && reAll.MatchString(path):
		writeJSON(w, http.StatusOK, api.listing(func(planning.Planification) bool { return true }))
	case r.Method == http.MethodGet && reByEnc.MatchString(path):
		id := pathID(reByEnc, path)
		writeJSON(w, http.StatusOK, api.listing(func(p planning.Planification) bool {
			return p.Encadrant != nil && p.Encadrant.ID == id
		}))
	case r.Method == http.MethodGet && reEncExport.MatchString(path):
		writeFile(w, fmt.Sprintf("planifications_%d.xlsx", pathID(reEncExport, path)))
	case r.Method == http.MethodGet && reByEtu.MatchString(path):
		slots := api.slots[pathID(reByEtu, path)]
		if slots == nil {
			slots = []planning.StudentSlot{}
		}
		writeJSON(w, http.StatusOK, slots)
	case r.Method == http.MethodGet && reDetails.MatchString(path):
		p := api.find(pathID(reDetails, path))
		if p == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Planification introuvable"})
			return
		}
		details := p.Details
		if details == nil {
			details = []planning.Detail{}
		}
		writeJSON(w, http.StatusOK, details)
	case r.Method == http.MethodPost && reAddDetail.MatchString(path):
		p := api.find(pathID(reAddDetail, path))
		if p == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Planification introuvable"})
			return
		}
		var d planning.Detail
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Requête invalide"})
			return
		}
		api.nextID++
		d.ID = api.nextID
		p.Details = append(p.Details, d)
		writeJSON(w, http.StatusOK, d)
	case (r.Method == http.MethodPut || r.Method == http.MethodDelete) && reDetail.MatchString(path):
		api.updateOrDelete(w, r, pathID(reDetail, path))
	case r.Method == http.MethodGet && rePlanExport.MatchString(path):
		writeFile(w, fmt.Sprintf("planification_%d.xlsx", pathID(rePlanExport, path)))
	case r.Method == http.MethodPost && reCreate.MatchString(path):
		var req struct {
			DateSoutenance string `json:"dateSoutenance"`
			EncadrantID    int64  `json:"encadrantId"`
			ClassGroupID   int64  `json:"classGroupId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Requête invalide"})
			return
		}
		api.nextID++
		p := planning.Planification{
			ID:             api.nextID,
			DateSoutenance: req.DateSoutenance,
			Encadrant:      &user.User{ID: req.EncadrantID, Role: user.RoleEncadrant},
			ClassGroup:     &planning.ClassGroup{ID: req.ClassGroupID},
		}
		api.planifs = append(api.planifs, p)
		writeJSON(w, http.StatusOK, p)
	case r.Method == http.MethodGet && reStudents.MatchString(path):
		students := api.students[pathID(reStudents, path)]
		if students == nil {
			students = []planning.Etudiant{}
		}
		writeJSON(w, http.StatusOK, students)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	}
}

func (api *StagesAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds user.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Requête invalide"})
		return
	}
	acc, ok := api.accounts[creds.Username]
	if !ok || acc.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Identifiants invalides"})
		return
	}
	for token, usr := range api.tokens {
		if usr.ID == acc.User.ID {
			writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": acc.User})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "no token"})
}

func (api *StagesAPI) updateOrDelete(w http.ResponseWriter, r *http.Request, detailID int64) {
	for pi := range api.planifs {
		for di, d := range api.planifs[pi].Details {
			if d.ID != detailID {
				continue
			}
			if r.Method == http.MethodDelete {
				details := api.planifs[pi].Details
				api.planifs[pi].Details = append(details[:di:di], details[di+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
			var upd planning.Detail
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Requête invalide"})
				return
			}
			upd.ID = detailID
			api.planifs[pi].Details[di] = upd
			writeJSON(w, http.StatusOK, upd)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Créneau introuvable"})
}

func (api *StagesAPI) listing(keep func(planning.Planification) bool) []planning.Planification {
	res := make([]planning.Planification, 0, len(api.planifs))
	for _, p := range api.planifs {
		if !keep(p) {
			continue
		}
		if api.SparseListings {
			p.Details = nil
		}
		res = append(res, p)
	}
	return res
}

func (api *StagesAPI) find(id int64) *planning.Planification {
	for i := range api.planifs {
		if api.planifs[i].ID == id {
			return &api.planifs[i]
		}
	}
	return nil
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func pathID(re *regexp.Regexp, path string) int64 {
	id, _ := strconv.ParseInt(re.FindStringSubmatch(path)[1], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFile(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write([]byte("PK\x03\x04"))
}
