// Package main is a development utility that prepares a local environment: it
// generates a signing secret for ELITARTE_JWT_SECRET and a first administrator with
// a random password, printing a ready-to-run SQL INSERT for the users table. Do not
// use generated credentials in production.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/elitarte/elitarte-backend/internal/auth"
)

func main() {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		log.Fatal(err)
	}
	secret := hex.EncodeToString(secretBytes)

	passwordBytes := make([]byte, 18)
	if _, err := rand.Read(passwordBytes); err != nil {
		log.Fatal(err)
	}
	password := base64.RawURLEncoding.EncodeToString(passwordBytes)

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Development credentials")
	fmt.Println("==========================================================")
	fmt.Printf("\nexport %s=%s\n", auth.SecretEnvVar, secret)
	fmt.Printf("\nAdmin e-mail:    admin@dev.local\n")
	fmt.Printf("Admin password:  %s\n", password)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO users (id, name, email, role, password_hash)
VALUES ('%s', 'Administrator', 'admin@dev.local', 'admin', '%s');
`, uuid.New().String(), hash)
	fmt.Println("\n==========================================================")
}
