package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// 로컬 개발용 데모 계정. 비밀번호는 전부 "password123".
var demoUsers = []struct {
	Username string
	Email    string
	FullName string
	Rating   int
}{
	{"alice", "alice@example.com", "Alice Kim", 1450},
	{"bob", "bob@example.com", "Bob Lee", 1380},
	{"carol", "carol@example.com", "Carol Park", 1100},
	{"dave", "dave@example.com", "Dave Choi", 2100},
}

func main() {
	// Load .env file
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database successfully!")

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	for _, u := range demoUsers {
		id := uuid.New().String()

		err := db.QueryRow(`
			INSERT INTO users (id, username, email, password_hash, full_name)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO UPDATE SET
			    full_name = EXCLUDED.full_name,
			    updated_at = NOW()
			RETURNING id
		`, id, u.Username, u.Email, string(hash), u.FullName).Scan(&id)
		if err != nil {
			log.Fatal("Failed to upsert user:", err)
		}

		_, err = db.Exec(`
			INSERT INTO rating_records (identity_id, format, rating)
			VALUES ($1, 'standard', $2)
			ON CONFLICT (identity_id, format) DO UPDATE SET
			    rating = EXCLUDED.rating,
			    updated_at = NOW()
		`, id, u.Rating)
		if err != nil {
			log.Fatal("Failed to upsert rating:", err)
		}

		fmt.Printf("  - %s (%s) rating=%d\n", u.Username, u.Email, u.Rating)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		log.Fatal("Failed to count users:", err)
	}

	fmt.Printf("✅ Seed complete, %d users in database\n", count)
}
