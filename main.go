package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/teambrains/teambrains-backend/dao"
	"github.com/teambrains/teambrains-backend/dao/query"
	"github.com/teambrains/teambrains-backend/internal"
	"github.com/teambrains/teambrains-backend/internal/handler"
	"github.com/teambrains/teambrains-backend/pkg/alert"
	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/cronjob"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

func main() {
	// set global timezone
	time.Local = time.UTC

	backendConfig := config.GetConfig()
	// variable changes in local development
	if gin.Mode() == gin.DebugMode {
		if err := godotenv.Load(".debug.env"); err != nil {
			logutils.Log.Warn("no .debug.env file: ", err)
		}
		if be := os.Getenv("TB_BE_PORT"); be != "" {
			backendConfig.ServerAddr = ":" + be
		}
	}

	// 1. init db and run the schema migrations
	db := query.GetDB()
	if err := dao.Migrate(db); err != nil {
		logutils.Log.Error("migrate database: ", err)
		os.Exit(1)
	}

	// 2. pick the mailer; debug mode never sends real mail
	var mailer alert.Mailer
	if gin.Mode() == gin.DebugMode || backendConfig.SMTP.Host == "" {
		mailer = alert.NopMailer{}
	} else {
		mailer = alert.NewSMTPMailer()
	}

	// 3. background maintenance
	if spec := backendConfig.Maintenance.PruneSpec; spec != "" {
		pruner := cronjob.NewPruneManager(db, backendConfig.Maintenance.PruneAfterDays)
		if err := pruner.Start(spec); err != nil {
			logutils.Log.Error("start prune job: ", err)
			os.Exit(1)
		}
		defer pruner.Stop()
	}

	// 4. register the handlers and serve
	backend := internal.Register(&handler.RegisterConfig{
		DB:     db,
		Mailer: mailer,
	})
	if err := backend.R.Run(backendConfig.ServerAddr); err != nil {
		logutils.Log.Error("server stopped: ", err)
		os.Exit(1)
	}
}
