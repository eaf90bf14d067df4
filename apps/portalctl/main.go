package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/estbm/soutenances/core"
	"github.com/estbm/soutenances/services/logger"
	"github.com/estbm/soutenances/services/stagesapi"
	"github.com/estbm/soutenances/storage/database"
)

var stdLogger *log.Logger

func main() {
	stdLogger = log.New(os.Stderr, "PORTALCTL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	cli := commandLine{
		conf:      conf,
		api:       stagesapi.NewClient(conf.API.BaseURL, stagesapi.DefaultHTTPClient(conf.API.Timeout), logger),
		out:       os.Stdout,
		tokenFile: tokenFile(),
	}

	// the database only backs the notification history
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		db, err := database.Open(context.Background(), conf)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
	}

	err := cli.run(os.Args)
	_ = logger.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func tokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return tokenFileName
	}
	return filepath.Join(home, tokenFileName)
}

func errAndDie(err error) {
	if err != nil {
		stdLogger.Fatal(err)
	}
}
