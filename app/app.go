package app

import (
	"database/sql"

	"github.com/mbolis/typeform-etl/config"
	"github.com/mbolis/typeform-etl/database"
	"github.com/mbolis/typeform-etl/typeform"
)

type App struct {
	DB      *sql.DB
	Dialect database.Dialect
	Client  *typeform.Client
	config.Config
}
