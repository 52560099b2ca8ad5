// brainctl is the offline administration tool for the Brain auth core. It
// talks to the store configured by STORE_DRIVER directly and needs no
// running server.
//
// Commands:
//
//	brainctl migrate
//	brainctl seed-rbac [--file permissions.yaml]
//	brainctl create-principal --email a@x.com --password ... --name "A" --role admin
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/core/service"
	"github.com/empireo/brain/internal/infrastructure/db"
	"github.com/empireo/brain/internal/infrastructure/rbacseed"
	"github.com/empireo/brain/internal/pkg/config"
	"github.com/empireo/brain/pkg/logger"
)

// errUsage marks errors caused by bad invocation rather than by the store.
var errUsage = errors.New("usage")

type storeOpener func(ctx context.Context) (*db.Store, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, openStore)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*db.Store, error) {
	cfg, err := config.LoadStore(ctx)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "brainctl", Output: os.Stderr})
	return db.Open(ctx, cfg)
}

func run(ctx context.Context, args []string, out io.Writer, open storeOpener) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, args[1:], out, open)
	case "seed-rbac":
		return runSeedRBAC(ctx, args[1:], out, open)
	case "create-principal":
		return runCreatePrincipal(ctx, args[1:], out, open)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("%w: %s: unexpected argument %q", errUsage, fs.Name(), rest[0])
	}
	return nil
}

func withStore(ctx context.Context, open storeOpener, fn func(*db.Store) error) error {
	store, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()
	return fn(store)
}

// runMigrate brings the schema up to date. Opening the store already applies
// migrations (postgres) or indexes (mongo).
func runMigrate(ctx context.Context, args []string, out io.Writer, open storeOpener) error {
	if err := parseFlags(pflag.NewFlagSet("migrate", pflag.ContinueOnError), args); err != nil {
		return err
	}
	return withStore(ctx, open, func(store *db.Store) error {
		fmt.Fprintf(out, "%s schema is up to date\n", store.Driver)
		return nil
	})
}

func runSeedRBAC(ctx context.Context, args []string, out io.Writer, open storeOpener) error {
	var file string
	fs := pflag.NewFlagSet("seed-rbac", pflag.ContinueOnError)
	fs.StringVarP(&file, "file", "f", "", "permission catalogue YAML (default: built-in catalogue)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	catalogue, err := loadCatalogue(file)
	if err != nil {
		return err
	}
	// Resolve role bundles before touching the store so a bad file changes nothing.
	if _, err := catalogue.Roles(); err != nil {
		return err
	}

	return withStore(ctx, open, func(store *db.Store) error {
		n, err := rbacseed.Apply(ctx, store.Graph, catalogue)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "seeded %d roles\n", n)
		return nil
	})
}

func loadCatalogue(file string) (*rbacseed.Catalogue, error) {
	if file == "" {
		return rbacseed.Default()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return rbacseed.Parse(data)
}

func runCreatePrincipal(ctx context.Context, args []string, out io.Writer, open storeOpener) error {
	var in ports.CreatePrincipalInput
	var cost int
	fs := pflag.NewFlagSet("create-principal", pflag.ContinueOnError)
	fs.StringVar(&in.Email, "email", "", "login email (required)")
	fs.StringVar(&in.Password, "password", "", "initial password (required)")
	fs.StringVar(&in.FullName, "name", "", "display name")
	fs.StringArrayVar(&in.Roles, "role", nil, "role to assign; repeatable (required)")
	fs.IntVar(&cost, "bcrypt-cost", 12, "bcrypt work factor")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.Email == "" || in.Password == "" || len(in.Roles) == 0 {
		return fmt.Errorf("%w: create-principal: --email, --password and at least one --role are required", errUsage)
	}

	return withStore(ctx, open, func(store *db.Store) error {
		log := logger.Component("brainctl")
		authz := service.NewAuthorizer(store.Graph, store.Audit, log)
		svc := service.NewPrincipalService(store.Principals, store.Ledger, authz, store.Audit, service.PrincipalConfig{
			BcryptCost: cost,
		}, log)

		p, err := svc.Create(ctx, "", in)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created principal %s (%s) with roles %v\n", p.ID, p.Email, p.Roles)
		return nil
	})
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: brainctl <command> [flags]

Commands:
  migrate              apply store migrations (postgres) or indexes (mongo)
  seed-rbac            upsert roles and permissions from a YAML catalogue
                         --file, -f   catalogue path (default: built-in)
  create-principal     create a staff principal
                         --email, --password, --name, --role (repeatable)

The store is selected with STORE_DRIVER (mongo or postgres).
`)
}
