package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/estbm/soutenances/apps/portal/echo"
	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/services/email"
	"github.com/estbm/soutenances/services/export"
	"github.com/estbm/soutenances/services/logger"
	"github.com/estbm/soutenances/services/stagesapi"
	"github.com/estbm/soutenances/storage/database/inmem"
	"github.com/estbm/soutenances/tests"
)

const (
	password   = "s3cr3t"
	cookieName = "portal_session"
)

var (
	admin     = user.User{ID: 1, Nom: "Idrissi", Prenom: "Said", Email: "s.idrissi@test.ma", Role: user.RoleAdmin}
	encadrant = user.User{ID: 5, Nom: "Bennani", Prenom: "Karim", Email: "k.bennani@test.ma", Role: user.RoleEncadrant}
	other     = user.User{ID: 6, Nom: "Tazi", Prenom: "Nadia", Email: "n.tazi@test.ma", Role: user.RoleEncadrant}
	etudiant  = user.User{ID: 9, Nom: "Alami", Prenom: "Sara", Email: "sara@test.ma", Role: user.RoleEtudiant}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type testEnv struct {
	app    *Server
	api    *testutil.StagesAPI
	center *notification.Center
	mailer *emailsvc.ConsoleService
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("ENV", "TEST")

	api := testutil.NewStagesAPI(t)
	api.AddAccount("admin", password, admin)
	api.AddAccount("encadrant", password, encadrant)
	api.AddAccount("other", password, other)
	api.AddAccount("etudiant", password, etudiant)

	conf := core.NewConfig()
	conf.Debug = false
	conf.QuietNotifications = true
	conf.API.BaseURL = api.URL
	conf.Server.SessionCookieName = cookieName

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	if err := core.ParseEmailTemplates(logger); err != nil {
		t.Fatalf("core.ParseEmailTemplates() failed: %v", err)
	}
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	client := stagesapi.NewClient(api.URL, nil, logger)
	center := notification.NewCenter(inmemdb.NewToastRepository(), logger)
	center.SetQuietMode(conf.QuietNotifications)
	mailer := emailsvc.NewConsoleServiceMock(conf)

	app := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Auth:          client,
		PlanningSvc:   planning.NewService(client, center, mailer, export.ConvocationPDF, validate, conf, logger),
		Notifications: center,
		Validate:      validate,
		Translator:    translator,
	})
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	return &testEnv{app: app, api: api, center: center, mailer: mailer}
}

// login opens a session through the login endpoint and returns its token.
func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body := marshallObj(t, user.Credentials{Username: username, Password: password})
	req, rec := newRequest(http.MethodPost, "/login", body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) failed: code %v; body %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login(%s) failed: %v", username, err)
	}
	return resp.Token
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// newAuthRequest is an API client request, authenticated with the session token.
func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newBrowserRequest is a browser request: an HTML page is expected and forms are url-encoded.
func newBrowserRequest(method, path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Accept", "text/html")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// toasts drains the toasts shown to usr.
func (env *testEnv) toasts(usr user.User) []notification.Toast {
	return env.center.Drain(usr.Key())
}

func lastToast(t *testing.T, toasts []notification.Toast) notification.Toast {
	t.Helper()
	if !assert.NotEmpty(t, toasts) {
		t.FailNow()
	}
	return toasts[len(toasts)-1]
}
