// Package database owns the MySQL connection and schema migrations.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL, tunes the pool and verifies the connection
// with a short ping.  Times are stored and read as UTC throughout.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = user
	dsnCfg.Passwd = pass
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = host + ":" + port
	dsnCfg.DBName = name
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
