// Command createuser adds an admin account to the CMS database.
//
//	createuser [-db-path PATH] <username> <password>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/keithlinneman/linnemanlabs-cms/internal/auth"
	"github.com/keithlinneman/linnemanlabs-cms/internal/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db-path", envOr("CMS_DB_PATH", "data/cms.sqlite"), "sqlite database file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: createuser [-db-path PATH] <username> <password>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	username, password := strings.TrimSpace(fs.Arg(0)), fs.Arg(1)
	if err := auth.ValidateCredentials(username, password); err != nil {
		fmt.Fprintln(stderr, "createuser:", err)
		return 1
	}

	db, err := sqlstore.Open(ctx, sqlstore.Options{Path: *dbPath})
	if err != nil {
		fmt.Fprintln(stderr, "createuser: open database:", err)
		return 1
	}
	defer func() { _ = sqlstore.Close(db) }()

	users, err := auth.NewUsers(db)
	if err != nil {
		fmt.Fprintln(stderr, "createuser:", err)
		return 1
	}
	if err := users.Migrate(ctx); err != nil {
		fmt.Fprintln(stderr, "createuser: migrate users table:", err)
		return 1
	}

	u, err := users.CreateUser(ctx, username, password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		fmt.Fprintf(stderr, "createuser: user %q already exists\n", username)
		return 1
	case err != nil:
		fmt.Fprintln(stderr, "createuser:", err)
		return 1
	}
	fmt.Fprintf(stdout, "created user %q (id %d) in %s\n", u.Username, u.ID, *dbPath)
	return 0
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
