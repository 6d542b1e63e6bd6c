// Command db-init applies the initial schema. It is idempotent and safe to
// re-run against an existing database.
package main

import (
	"context"
	"database/sql"
	_ "embed"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

//go:embed init.sql
var initSQL string

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, initSQL); err != nil {
		log.Fatalf("Error inicializando la base: %v", err)
	}
	log.Println("Esquema inicial creado/actualizado.")
}
