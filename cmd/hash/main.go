// Package main is a utility for generating bcrypt hashes of user passwords.
// Only bcrypt hashes are stored in users.password_hash, so this tool is used
// when seeding the first administrator directly in the database without going
// through the API.
//
// Usage: hash <password>
package main

import (
	"fmt"
	"os"

	"github.com/elitarte/elitarte-backend/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <password>\n", os.Args[0])
		os.Exit(2)
	}
	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
