package main

import (
	"context"

	"github.com/mbolis/typeform-etl/app"
	"github.com/mbolis/typeform-etl/config"
	"github.com/mbolis/typeform-etl/database"
	"github.com/mbolis/typeform-etl/etl"
	"github.com/mbolis/typeform-etl/log"
	"github.com/mbolis/typeform-etl/typeform"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.Syslog {
		err := log.EnableSyslog("typeform-etl")
		if err != nil {
			log.Fatal("main.syslog:", err)
		}
	}

	ctx := context.Background()

	db, dialect, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	syncer := etl.NewSyncer(app.App{
		DB:      db,
		Dialect: dialect,
		Client:  typeform.NewClient(typeform.ClientOptions{Token: cfg.Token}),
		Config:  cfg,
	})
	_, err = syncer.Run(ctx)
	if err != nil {
		log.Fatal("main.sync:", err)
	}
}
