package main

import (
	"github.com/estbm/soutenances/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return database.RunMigration(cli.db, cli.conf, args[0], arguments...)
}
