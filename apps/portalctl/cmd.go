package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	"github.com/estbm/soutenances/services/export"
	"github.com/estbm/soutenances/services/stagesapi"
)

const tokenFileName = ".portalctl-token"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in: run `portalctl login -username USERNAME` first")
)

// stagesAPI is what the CLI needs from the stages API.
type stagesAPI interface {
	user.Authenticator
	planning.Repository
}

type commandLine struct {
	conf      *core.Config
	api       stagesAPI
	db        *sql.DB // only opened for migrations
	out       io.Writer
	tokenFile string
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME - open a session on the stages API (password prompted)")
	fmt.Fprintln(cli.out, "  planifications [-encadrant ID] [-date PREFIX] - list planifications")
	fmt.Fprintln(cli.out, "  details -planification ID - list the slots of a planification")
	fmt.Fprintln(cli.out, "  export -planification ID|-encadrant ID [-out FILE] - download the Excel export")
	fmt.Fprintln(cli.out, "  pdf -etudiant ID [-name NAME] [-out FILE] - render a student's planning")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command on the notifications database")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginUname := loginCmd.String("username", "", "The user's username. The password will be prompted next.")

	planifsCmd := flag.NewFlagSet("planifications", flag.ContinueOnError)
	planifsEncadrant := planifsCmd.Int64("encadrant", 0, "Only list the planifications of this supervisor.")
	planifsDate := planifsCmd.String("date", "", "Only list the planifications whose date starts with this prefix (e.g. 2025-06).")

	detailsCmd := flag.NewFlagSet("details", flag.ContinueOnError)
	detailsPlanif := detailsCmd.Int64("planification", 0, "The planification ID.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportPlanif := exportCmd.Int64("planification", 0, "Export the slots of this planification.")
	exportEncadrant := exportCmd.Int64("encadrant", 0, "Export the planifications of this supervisor.")
	exportOut := exportCmd.String("out", "", "Output file. Defaults to the name given by the API.")

	pdfCmd := flag.NewFlagSet("pdf", flag.ContinueOnError)
	pdfEtudiant := pdfCmd.Int64("etudiant", 0, "The student ID.")
	pdfName := pdfCmd.String("name", "", "The student's name, printed in the header.")
	pdfOut := pdfCmd.String("out", "", "Output file. Defaults to planification_soutenances_<date>.pdf.")

	for _, fs := range []*flag.FlagSet{loginCmd, planifsCmd, detailsCmd, exportCmd, pdfCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginUname, string(pwd))
	case "planifications":
		if err := planifsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.planifications(*planifsEncadrant, *planifsDate)
	case "details":
		if err := detailsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *detailsPlanif <= 0 {
			detailsCmd.Usage()
			return errHelp
		}
		return cli.details(*detailsPlanif)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if (*exportPlanif > 0) == (*exportEncadrant > 0) {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportPlanif, *exportEncadrant, *exportOut)
	case "pdf":
		if err := pdfCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *pdfEtudiant <= 0 {
			pdfCmd.Usage()
			return errHelp
		}
		return cli.pdf(*pdfEtudiant, *pdfName, *pdfOut)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(uname, pwd string) error {
	creds := user.Credentials{Username: core.CleanString(uname, true /* lower */), Password: pwd}
	sess, err := cli.api.Login(context.Background(), creds)
	if err != nil {
		return err
	}
	if err = os.WriteFile(cli.tokenFile, []byte(sess.Token), 0600); err != nil {
		return pkgerrors.Wrap(err, "caching token")
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", sess.User.FullName(), sess.User.Role)
	return nil
}

// authContext carries the cached token to the stages API.
func (cli *commandLine) authContext() (context.Context, error) {
	token, err := os.ReadFile(cli.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotLoggedIn
		}
		return nil, pkgerrors.Wrap(err, "reading token")
	}
	tok := strings.TrimSpace(string(token))
	if tok == "" {
		return nil, errNotLoggedIn
	}
	return stagesapi.WithToken(context.Background(), tok), nil
}

func (cli *commandLine) planifications(encadrantID int64, date string) error {
	ctx, err := cli.authContext()
	if err != nil {
		return err
	}
	var planifs []planning.Planification
	if encadrantID > 0 {
		planifs, err = cli.api.QueryPlanificationsByEncadrant(ctx, encadrantID)
	} else {
		planifs, err = cli.api.QueryAllPlanifications(ctx)
	}
	if err != nil {
		return cli.remoteErr(err)
	}
	planifs = planning.FilterByDate(planifs, date)

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tENCADRANT\tCLASSE\tCRÉNEAUX")
	for _, p := range planifs {
		var encadrant, class string
		if p.Encadrant != nil {
			encadrant = p.Encadrant.FullName()
		}
		if p.ClassGroup != nil {
			class = p.ClassGroup.Nom
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.DateSoutenance, encadrant, class, len(p.Details))
	}
	if err = w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d planification(s)\n", len(planifs))
	return nil
}

func (cli *commandLine) details(planifID int64) error {
	ctx, err := cli.authContext()
	if err != nil {
		return err
	}
	details, err := cli.api.QueryDetails(ctx, planifID)
	if err != nil {
		return cli.remoteErr(err)
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHORAIRE\tSUJET\tÉTUDIANT\tSTATUT")
	for _, d := range details {
		fmt.Fprintf(w, "%d\t%s - %s\t%s\t%s\t%s\n", d.ID,
			planning.FormatTime(d.HeureDebut), planning.FormatTime(d.HeureFin),
			d.Sujet, planning.StudentName(d), planning.SlotStatusText(d))
	}
	if err = w.Flush(); err != nil {
		return err
	}
	stats := planning.ComputeSlotStats(details)
	fmt.Fprintf(cli.out, "Total: %d, occupés: %d, disponibles: %d\n", stats.Total, stats.Occupied, stats.Available)
	return nil
}

func (cli *commandLine) export(planifID, encadrantID int64, out string) error {
	ctx, err := cli.authContext()
	if err != nil {
		return err
	}
	var f planning.File
	if planifID > 0 {
		f, err = cli.api.ExportPlanification(ctx, planifID)
		if f.Name == "" {
			f.Name = fmt.Sprintf("planification_%d.xlsx", planifID)
		}
	} else {
		f, err = cli.api.ExportPlanificationsByEncadrant(ctx, encadrantID)
		if f.Name == "" {
			f.Name = fmt.Sprintf("planifications_encadrant_%d.xlsx", encadrantID)
		}
	}
	if err != nil {
		return cli.remoteErr(err)
	}
	return cli.save(f, out)
}

func (cli *commandLine) pdf(etudiantID int64, name, out string) error {
	ctx, err := cli.authContext()
	if err != nil {
		return err
	}
	slots, err := cli.api.QuerySlotsByEtudiant(ctx, etudiantID)
	if err != nil {
		return cli.remoteErr(err)
	}
	if name == "" {
		name = fmt.Sprintf("Étudiant n°%d", etudiantID)
	}
	f, err := export.StudentPlanningPDF(name, slots, time.Now())
	if err != nil {
		return pkgerrors.Wrap(err, "rendering pdf")
	}
	return cli.save(f, out)
}

func (cli *commandLine) save(f planning.File, out string) error {
	if out == "" {
		out = filepath.Base(f.Name)
	}
	if err := os.WriteFile(out, f.Content, 0644); err != nil {
		return pkgerrors.Wrap(err, "writing file")
	}
	fmt.Fprintf(cli.out, "%s written (%d bytes)\n", out, len(f.Content))
	return nil
}

// remoteErr turns an expired session into a hint to log in again.
func (cli *commandLine) remoteErr(err error) error {
	if rErr, ok := core.AsRemoteError(err); ok && rErr.Status == http.StatusUnauthorized {
		return errNotLoggedIn
	}
	return err
}
