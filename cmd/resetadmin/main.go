// Command resetadmin sets the password of an admin account directly in the
// configured database, creating the account if needed. The server does not
// need to be running.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"windplex/internal/config"
	"windplex/internal/models"
	"windplex/internal/services"

	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "resetadmin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("resetadmin", flag.ContinueOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to the YAML config file")
	username := fs.String("username", "", "admin username (defaults to default_admin.username)")
	passwordEnv := fs.Bool("password-env", false, "read the password from ADMIN_PASSWORD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*configPath); err != nil {
		*configPath = ""
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *username == "" {
		*username = cfg.DefaultAdmin.Username
	}

	var password string
	if *passwordEnv {
		password = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
		if password == "" {
			return fmt.Errorf("ADMIN_PASSWORD is empty")
		}
	} else {
		password, err = promptPassword(fmt.Sprintf("New password for %s", *username))
		if err != nil {
			return err
		}
	}

	db, err := models.Open(cfg)
	if err != nil {
		return err
	}
	defer models.Close(db)

	auth := services.NewAuthService(db, services.BcryptHasher{Cost: cfg.Security.BcryptCost})
	if err := auth.SetAdminPassword(context.Background(), *username, password); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "password for admin %q updated\n", *username)
	return nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Piped input; echo cannot be suppressed.
	r := bufio.NewReader(os.Stdin)
	fmt.Fprintf(os.Stderr, "%s: ", label)
	p, err := r.ReadString('\n')
	if err != nil && p == "" {
		return "", err
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return p, nil
}
