package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"spotwalk/internal/auth"
	"spotwalk/internal/config"
)

var loadConfig = config.Load

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("walktoken", flag.ContinueOnError)
	device := fs.String("device", cfg.DeviceID, "device id to issue the token for")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := auth.IssueToken(cfg.APISecret, *device, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
