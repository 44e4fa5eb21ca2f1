package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradejournal/cmd/importer"
	"tradejournal/cmd/uploader"
	"tradejournal/src/database"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "tradejournal"
	app.Usage = "The trade journal command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		importCMD,
		uploadCMD,
		migrateCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	importCMD = cli.Command{
		Name:      "import",
		Usage:     "import a broker CSV export directly into the database",
		Action:    importAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file", Usage: "path to the CSV export", EnvVar: "IMPORT_FILE"},
			cli.StringFlag{Name: "email", Usage: "owner of the imported orders", EnvVar: "IMPORT_USER_EMAIL"},
			cli.StringFlag{Name: "timezone", Usage: "IANA zone of timestamps without offset", EnvVar: "IMPORT_TIMEZONE", Value: "UTC"},
		},
		Description: `Parse a CSV export and reconcile its orders into trades`,
	}
	uploadCMD = cli.Command{
		Name:      "upload",
		Usage:     "upload a broker CSV export to a running API",
		Action:    uploadAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "api", Usage: "API base URL", EnvVar: "API_BASE_URL", Value: "http://localhost:9898"},
			cli.StringFlag{Name: "file", Usage: "path to the CSV export", EnvVar: "UPLOAD_FILE"},
			cli.StringFlag{Name: "email", Usage: "account email", EnvVar: "UPLOAD_EMAIL"},
			cli.StringFlag{Name: "password", Usage: "account password", EnvVar: "UPLOAD_PASSWORD"},
			cli.StringFlag{Name: "timezone", Usage: "IANA zone of timestamps without offset", EnvVar: "UPLOAD_TIMEZONE"},
		},
		Description: `Log in and post a CSV export to /api/v1/orders/upload`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "run schema and data migrations",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run AutoMigrate and pending data migrations`,
	}
)

func importAction(c *cli.Context) error {
	logrus.Info("Starting import CMD")

	cfg := importer.GetConfig()
	cfg.File = c.String("file")
	cfg.UserEmail = c.String("email")
	cfg.Timezone = c.String("timezone")

	imp := &importer.Importer{
		Log:    logrus.WithField("cmd", "import"),
		Config: cfg,
	}
	if err := imp.Start(); err != nil {
		logrus.WithError(err).Error("Import cmd failed")
		return err
	}

	return nil
}

func uploadAction(c *cli.Context) error {
	logrus.Info("Starting upload CMD")

	cfg := uploader.GetConfig()
	cfg.BaseURL = c.String("api")
	cfg.File = c.String("file")
	cfg.Email = c.String("email")
	cfg.Password = c.String("password")
	cfg.Timezone = c.String("timezone")

	up := &uploader.Uploader{
		Log:    logrus.WithField("cmd", "upload"),
		Config: cfg,
	}
	if err := up.Start(); err != nil {
		logrus.WithError(err).Error("Upload cmd failed")
		return err
	}

	return nil
}

// migrateAction connects to the main database; InitMainDB runs the migrations.
func migrateAction(_ *cli.Context) error {
	logrus.Info("Starting migrate CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Migration failed")
		return err
	}

	logrus.Info("Migrations applied")
	return nil
}
