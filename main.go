package main

import (
	"context"
	"flag"
	"log"

	"image-compare/internal/config"
	"image-compare/internal/runnable"
)

func main() {
	var envFile string
	flag.StringVar(&envFile, "env-file", config.EnvOrDefaultValue("ENV_FILE", ".env"), "Optional dotenv file to load before reading configuration")
	flag.BoolVar(&runnable.Debug, "debug", config.EnvOrDefaultValue("DEBUG", false), "Enable text logs and pprof endpoints")
	flag.Parse()

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	ctx := context.Background()

	server := runnable.NewServer()
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
