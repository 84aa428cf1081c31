package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Credentials may live in a local .env, like the integrations this wraps.
	_ = godotenv.Load()

	Execute()
}
