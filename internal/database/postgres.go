package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to the PostgreSQL identity store (teachers, students)
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates the identity tables if they don't exist.
// Account creation and credentials live in the auth service; this store
// only holds the display fields the chat subsystem joins against.
func InitPostgresTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS teachers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			avatar_url TEXT,
			subject VARCHAR(255),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS students (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			avatar_url TEXT,
			class_name VARCHAR(100),
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_teachers_email ON teachers(email)`,
		`CREATE INDEX IF NOT EXISTS idx_teachers_is_active ON teachers(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_students_email ON students(email)`,
		`CREATE INDEX IF NOT EXISTS idx_students_is_active ON students(is_active)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
