package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoportal "github.com/estbm/soutenances/apps/portal/echo"
	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/core/planning"
	"github.com/estbm/soutenances/core/user"
	emailsvc "github.com/estbm/soutenances/services/email"
	"github.com/estbm/soutenances/services/export"
	logsvc "github.com/estbm/soutenances/services/logger"
	"github.com/estbm/soutenances/services/stagesapi"
	"github.com/estbm/soutenances/storage/database"
	inmemdb "github.com/estbm/soutenances/storage/database/inmem"
	sqlxrepos "github.com/estbm/soutenances/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// LogFiles are the log outputs to flush and close on exit.
	LogFiles struct {
		Closers []io.Closer
	}

	// Database is the notification history database, nil when disabled.
	Database struct {
		*sqlx.DB
	}

	loggerResult struct {
		dig.Out
		Logger   core.Logger
		DBLogger core.Logger `name:"dbLogger"`
		Files    LogFiles
	}
)

func newLoggers(conf *core.Config) loggerResult {
	std, closer := logsvc.NewStdLogger(conf, "PORTAL : ")
	// both loggers share the rotated file
	dbStd := log.New(std.Writer(), "DB : ", std.Flags())

	newLogger := func(std *log.Logger) *logsvc.RollbarLogger {
		logger := logsvc.NewRollbarLogger(std, conf)
		logger.Enable(!conf.Debug && conf.RollbarToken != "")
		return logger
	}
	logger := newLogger(std)
	return loggerResult{
		Logger:   logger,
		DBLogger: newLogger(dbStd),
		// pending reports are flushed before the file is closed
		Files: LogFiles{Closers: []io.Closer{logger, closer}},
	}
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) Database {
	if !conf.Database.Enabled {
		return Database{}
	}

	setUp := func() (*sqlx.DB, error) {
		db, err := database.Open(context.Background(), conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB, conf); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Database{db}
}

// newToastRepository keeps the toast history in the database when enabled, in memory otherwise.
func newToastRepository(db Database) notification.Repository {
	if db.DB == nil {
		return inmemdb.NewToastRepository()
	}
	return sqlxrepos.NewToastRepository(db.DB)
}

func newNotificationCenter(conf *core.Config, repo notification.Repository, logger core.Logger) *notification.Center {
	center := notification.NewCenter(repo, logger)
	center.SetQuietMode(conf.QuietNotifications)
	return center
}

func newNotifier(center *notification.Center) notification.Notifier {
	return center
}

func newStagesClient(conf *core.Config, logger core.Logger) *stagesapi.Client {
	return stagesapi.NewClient(conf.API.BaseURL, stagesapi.DefaultHTTPClient(conf.API.Timeout), logger)
}

func newPlanningRepository(client *stagesapi.Client) planning.Repository {
	return client
}

func newAuthenticator(client *stagesapi.Client) user.Authenticator {
	return client
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	auth user.Authenticator,
	planningSvc *planning.Service,
	center *notification.Center,
	validate *validator.Validate,
	translator ut.Translator,
) *echoportal.Server {
	return echoportal.NewServer(echoportal.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Auth:          auth,
		PlanningSvc:   planningSvc,
		Notifications: center,
		Validate:      validate,
		Translator:    translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLoggers))
	must(c.Provide(newDB))
	must(c.Provide(newToastRepository))
	must(c.Provide(newNotificationCenter))
	must(c.Provide(newNotifier))
	must(c.Provide(emailsvc.New))
	must(c.Provide(newStagesClient))
	must(c.Provide(newPlanningRepository))
	must(c.Provide(newAuthenticator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(func() planning.ConvocationRenderer { return export.ConvocationPDF }))
	must(c.Provide(planning.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
