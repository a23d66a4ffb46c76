package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ctrlix/bookkeeper/internal/commands"
)

func main() {
	// Optional .env for GEMINI_API_KEY and friends.
	_ = godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
