package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/clipstream/backend/internal/app"
)

func main() {
	// Absent .env files are fine; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
