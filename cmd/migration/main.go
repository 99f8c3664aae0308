package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/identity-service/internal/config"
	"gitlab.com/dirk.krummacker/identity-service/internal/logger"
	"gitlab.com/dirk.krummacker/identity-service/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/database.sql
func main() {
	filePtr := flag.String("file", "database.sql", "the sql file to execute")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "identity-migration")
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not create logger", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	sqlDB, err := store.OpenDatabase(cfg.Database.DSN(), 1, 1)
	if err != nil {
		log.Fatal("could not open database", zap.Error(err))
	}
	db := sqlx.NewDb(sqlDB, "mysql")
	defer db.Close()

	readFile, err := os.Open(*filePtr) // nosemgrep
	if err != nil {
		log.Fatal("could not open sql file", zap.String("file", *filePtr), zap.Error(err))
	}
	defer readFile.Close()

	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	statements := 0
	for fileScanner.Scan() {
		line := fileScanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.Exec(builder.String()); err != nil {
				log.Fatal("statement failed", zap.Int("statement", statements+1), zap.Error(err))
			}
			statements++
			builder = strings.Builder{}
		}
	}
	if err := fileScanner.Err(); err != nil {
		log.Fatal("could not read sql file", zap.Error(err))
	}
	log.Info("migration finished", zap.String("file", *filePtr), zap.Int("statements", statements))
}
