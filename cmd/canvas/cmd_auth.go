package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

func runLoginCommand(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := *email
	if addr == "" {
		addr, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	principal, err := a.idctx.Login(context.Background(), addr, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", principal.DisplayName, principal.Email)
	return nil
}

func runRegisterCommand(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := *email
	if addr == "" {
		addr, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	displayName := *name
	if displayName == "" {
		displayName, err = promptLine("Name: ")
		if err != nil {
			return err
		}
	}
	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	principal, err := a.idctx.Register(context.Background(), addr, password, displayName)
	if err != nil {
		return err
	}
	fmt.Printf("Account created. Signed in as %s (%s)\n", principal.DisplayName, principal.Email)
	return nil
}

func runLogoutCommand(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.idctx.Logout()
	fmt.Println("Signed out.")
	return nil
}

func runWhoamiCommand(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	principal := a.idctx.CurrentPrincipal()
	if principal == nil {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s (%s)\n", principal.DisplayName, principal.Email)
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
