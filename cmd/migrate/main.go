package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendorhub/marketplace-backend/pkg/config"
	"github.com/vendorhub/marketplace-backend/pkg/db"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up               apply every pending migration
  down             roll back the latest migration
  status           list migrations and whether they are applied
  to <version>     move up or down to version
  create <name>    write a new empty migration into -dir
  validate         check migration files without a database
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", args[0])

	if err := run(ctx, logg, *dir, args); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dir string, args []string) error {
	fsys := migrate.Migrations()
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			return errors.New("create needs a name")
		}
		target := dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, args[1], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		if err := migrate.Validate(fsys); err != nil {
			return err
		}
		logg.Info(ctx, "migrations valid")
		return nil
	}

	runner, closeDB, err := open(ctx, logg, fsys)
	if err != nil {
		return err
	}
	defer closeDB()

	switch args[0] {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		version, err := runner.Down(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "migration rolled back")
	case "to":
		if len(args) < 2 {
			return errors.New("to needs a version")
		}
		moved, err := runner.To(ctx, args[1])
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "moved", moved), "schema at requested version")
	case "status":
		rows, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied"
			}
			fmt.Printf("%d\t%-8s\t%s\n", row.Version, state, row.Path)
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func open(ctx context.Context, logg *logger.Logger, fsys fs.FS) (*migrate.Runner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return runner, closeDB, nil
}
