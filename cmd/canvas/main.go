// canvas is the command-line client for the CodeCanvas execution
// environment: account management, project and file catalogs, an
// interactive terminal over the execution channel, and a bundled local
// backend for offline use.
package main

import (
	"fmt"
	"os"
)

// Version information, set via ldflags during build.
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(0)
	}

	os.Exit(dispatchSubcommand(args))
}

func dispatchSubcommand(args []string) int {
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "login":
		return runCommand(runLoginCommand, args[1:])
	case "register":
		return runCommand(runRegisterCommand, args[1:])
	case "logout":
		return runCommand(runLogoutCommand, args[1:])
	case "whoami":
		return runCommand(runWhoamiCommand, args[1:])
	case "projects":
		return runCommand(runProjectsCommand, args[1:])
	case "files":
		return runCommand(runFilesCommand, args[1:])
	case "shell":
		return runCommand(runShellCommand, args[1:])
	case "devserver":
		return runCommand(runDevServerCommand, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		return 1
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("canvas %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`canvas - CodeCanvas client

Usage:
  canvas <command> [flags]

Commands:
  login          Sign in and persist the credential
  register       Create an account and sign in
  logout         Clear the stored credential
  whoami         Show the signed-in principal
  projects       Manage projects (list, create, delete, use)
  files          Manage project files (list, cat, add, rm, mv, save)
  shell          Open an interactive terminal for the active project
  devserver      Run the bundled local backend
  version        Print version information
  help           Show this help

Global flags (per command):
  -config PATH   Config file (default ~/.codecanvas/config.yaml)
`)
}
