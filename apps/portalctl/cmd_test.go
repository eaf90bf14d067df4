package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/services/stagesapi"
	"github.com/estbm/soutenances/storage/database"
	"github.com/estbm/soutenances/tests"
)

const password = "s3cr3t"

var encadrant = user.User{ID: 5, Nom: "Bennani", Prenom: "Karim", Role: user.RoleEncadrant}

func setup(t *testing.T) (*commandLine, *testutil.StagesAPI, *bytes.Buffer) {
	t.Setenv("ENV", "TEST")

	api := testutil.NewStagesAPI(t)
	api.AddAccount("admin", password, user.User{ID: 1, Nom: "Idrissi", Prenom: "Said", Role: user.RoleAdmin})
	api.AddAccount("encadrant", password, encadrant)

	out := new(bytes.Buffer)
	cli := &commandLine{
		conf:      core.NewConfig(),
		api:       stagesapi.NewClient(api.URL, nil, nil),
		out:       out,
		tokenFile: filepath.Join(t.TempDir(), tokenFileName),
	}
	return cli, api, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    []string
	extra      interface{}
}

func runTests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"portalctl"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
				return
			}
			if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("cli.run() output = %q; want it to contain %q", out.String(), want)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	defer func(f func(string, *sql.DB, string, ...string) error) { database.GooseRunFunc = f }(database.GooseRunFunc)
	database.GooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "migrating database (lol): \"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "migrating database (up-to): up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "migrating database (up-to): version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "migrating database (create): create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "migrating database (down-to): version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "toast_index", "sql"}},
	}
	runTests(t, cli, out, tests)
}

func Test_commandLine_login(t *testing.T) {
	cli, _, out := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"login"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"login", "-username", "encadrant"}, wantErr: errHelp},
		{name: "wrong password", args: []string{"login", "-username", "encadrant"}, extra: extra{pwd: "lol"}, wantErr: user.ErrAuthenticationFailed},
		{
			name:    "success",
			args:    []string{"login", "-username", " Encadrant "},
			extra:   extra{pwd: password},
			wantOut: []string{"Logged in as Karim Bennani (ENCADRANT)"},
		},
	}
	for i := range tests {
		tt := tests[i]
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}
		runTests(t, cli, out, tests[i:i+1])
	}

	token, err := os.ReadFile(cli.tokenFile)
	if err != nil {
		t.Fatalf("reading token file failed: %v", err)
	}
	if string(token) != "token-encadrant-5" {
		t.Errorf("cached token = %q; want %q", token, "token-encadrant-5")
	}
}

func Test_commandLine_queries(t *testing.T) {
	cli, api, out := setup(t)

	planif := api.AddPlanification(planning.Planification{
		DateSoutenance: "2099-06-10",
		Encadrant:      &encadrant,
		ClassGroup:     &planning.ClassGroup{ID: 2, Nom: "GI2"},
		Details: []planning.Detail{
			{ID: 1, Sujet: "Chatbot RH", HeureDebut: "09:00:00", HeureFin: "09:30:00", Etudiant: &planning.Etudiant{ID: 9, Nom: "Alami", Prenom: "Sara"}},
			{ID: 2, Sujet: "Migration ERP", HeureDebut: "10:00:00", HeureFin: "10:30:00"},
		},
	})
	api.AddPlanification(planning.Planification{DateSoutenance: "2099-07-01", Encadrant: &user.User{ID: 6, Nom: "Tazi", Prenom: "Nadia"}})
	api.SetStudentSlots(9, planning.StudentSlot{DetailID: 1, Date: "2099-06-10", HeureDebut: "09:00", HeureFin: "09:30", Sujet: "Chatbot RH"})

	runTests(t, cli, out, []cliTest{
		{name: "not logged in", args: []string{"planifications"}, wantErr: errNotLoggedIn},
	})

	if err := os.WriteFile(cli.tokenFile, []byte("token-admin-1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "export.xlsx")
	pdfPath := filepath.Join(dir, "sara.pdf")

	runTests(t, cli, out, []cliTest{
		{name: "all planifications", args: []string{"planifications"}, wantOut: []string{"Karim Bennani", "Nadia Tazi", "2 planification(s)"}},
		{name: "by supervisor", args: []string{"planifications", "-encadrant", "5"}, wantOut: []string{"GI2", "1 planification(s)"}},
		{name: "by date", args: []string{"planifications", "-date", "2099-07"}, wantOut: []string{"Nadia Tazi", "1 planification(s)"}},
		{name: "details: no planification", args: []string{"details"}, wantErr: errHelp},
		{
			name:    "details",
			args:    []string{"details", "-planification", strconv.FormatInt(planif.ID, 10)},
			wantOut: []string{"09:00 - 09:30", "Sara Alami", "Total: 2, occupés: 1, disponibles: 1"},
		},
		{name: "export: no target", args: []string{"export"}, wantErr: errHelp},
		{name: "export: both targets", args: []string{"export", "-planification", "1", "-encadrant", "5"}, wantErr: errHelp},
		{name: "export", args: []string{"export", "-encadrant", "5", "-out", xlsxPath}, wantOut: []string{xlsxPath + " written (4 bytes)"}},
		{name: "pdf: no student", args: []string{"pdf"}, wantErr: errHelp},
		{name: "pdf", args: []string{"pdf", "-etudiant", "9", "-name", "Sara Alami", "-out", pdfPath}, wantOut: []string{pdfPath + " written"}},
	})

	if content, err := os.ReadFile(pdfPath); err != nil || !bytes.HasPrefix(content, []byte("%PDF")) {
		t.Errorf("pdf not written: %v", err)
	}

	api.RevokeTokens()
	runTests(t, cli, out, []cliTest{
		{name: "expired session", args: []string{"planifications"}, wantErr: errNotLoggedIn},
	})
}
