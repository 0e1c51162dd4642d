// Command deskauthctl performs operator tasks against the postgres store:
//
//	deskauthctl migrate      [-d dsn]
//	deskauthctl create-admin [-d dsn] -email addr [-role admin]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const envDatabaseDSN = "DESKAUTH_DATABASE_DSN"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "migrate":
		err = migrateCmd(ctx, args[1:], getenv, stdout)
	case "create-admin":
		err = createAdminCmd(ctx, args[1:], getenv, stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "deskauthctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: deskauthctl <migrate|create-admin> [flags]")
}
