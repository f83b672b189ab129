package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tas-project/tas-api/pkg/config"
	"github.com/tas-project/tas-api/pkg/database"
)

// Seeds an initial reviewer account so a fresh deployment can log in.
// Existing accounts with the same email are left untouched.
func main() {
	var (
		email    string
		password string
		fullName string
		role     string
		timeout  time.Duration
	)

	flag.StringVar(&email, "email", "", "Account email (required)")
	flag.StringVar(&password, "password", "", "Account password (required)")
	flag.StringVar(&fullName, "name", "Administrator", "Account full name")
	flag.StringVar(&role, "role", "ADMIN", "Account role (ADMIN or STAFF)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Database timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("both -email and -password are required")
	}
	if role != "ADMIN" && role != "STAFF" {
		log.Fatalf("unsupported role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), email, string(hash), fullName, role, now)
	if err != nil {
		log.Fatalf("failed to insert user: %v", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		fmt.Printf("user %s already exists, nothing to do\n", email)
		return
	}
	fmt.Printf("created %s account %s\n", role, email)
}
