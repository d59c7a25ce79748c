// Package main wires together the PromoForge service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/JakeFAU/promoforge/internal/config"
	"github.com/JakeFAU/promoforge/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	checkEnv := flag.Bool("check-env", false, "Validate rendering-service credentials and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if *checkEnv {
		os.Exit(reportCredentials(os.Stdout, os.Stderr, cfg.Shotstack))
	}

	app, err := server.Build(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}

// reportCredentials prints the resolved host and masked key, returning the process exit code.
func reportCredentials(stdout, stderr io.Writer, cfg config.ShotstackConfig) int {
	creds, err := cfg.Credentials()
	if err != nil {
		fmt.Fprintln(stderr, "Shotstack config error:")
		fmt.Fprintf(stderr, "   %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Shotstack config is valid")
	fmt.Fprintf(stdout, "   Host: %s\n", creds.Host)
	fmt.Fprintf(stdout, "   Key:  %s\n", config.MaskForLog(creds.APIKey))
	fmt.Fprintf(stdout, "   Length: %d chars\n", len(creds.APIKey))
	return 0
}
