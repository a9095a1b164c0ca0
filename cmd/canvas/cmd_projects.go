package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

func runProjectsCommand(args []string) error {
	fs := flag.NewFlagSet("projects", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	name := fs.String("name", "", "project name (create)")
	description := fs.String("description", "", "project description (create)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	action := "list"
	if len(rest) > 0 {
		action = rest[0]
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.idctx.IsAuthenticated() {
		return fmt.Errorf("not signed in; run 'canvas login' first")
	}

	ctx := context.Background()
	switch action {
	case "list":
		if err := a.projects.Fetch(ctx); err != nil {
			return err
		}
		a.restoreActiveProject()
		projects := a.projects.Projects()
		if len(projects) == 0 {
			fmt.Println("No projects. Create one with 'canvas projects create -name <name>'.")
			return nil
		}
		activeID := a.projects.ActiveProjectID()
		for _, p := range projects {
			marker := " "
			if p.ID == activeID {
				marker = "*"
			}
			fmt.Printf("%s %-36s %s\n", marker, p.ID, p.Name)
		}
		return nil

	case "create":
		projectName := *name
		if projectName == "" && len(rest) > 1 {
			projectName = strings.Join(rest[1:], " ")
		}
		if projectName == "" {
			return fmt.Errorf("project name required")
		}
		project, err := a.projects.Create(ctx, projectName, *description)
		if err != nil {
			return err
		}
		a.projects.Wait()
		// Re-read to pick up the backend-assigned id.
		created := a.projects.Active()
		if created == nil {
			created = project
		}
		a.rememberActiveProject()
		fmt.Printf("Created project %s (%s)\n", created.Name, created.ID)
		return nil

	case "delete":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas projects delete <project-id>")
		}
		if err := a.projects.Fetch(ctx); err != nil {
			return err
		}
		if err := a.projects.Delete(ctx, rest[1]); err != nil {
			return err
		}
		a.projects.Wait()
		a.rememberActiveProject()
		fmt.Println("Deleted.")
		return nil

	case "use":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas projects use <project-id>")
		}
		if err := a.projects.Fetch(ctx); err != nil {
			return err
		}
		if err := a.projects.SetActive(rest[1]); err != nil {
			return err
		}
		a.rememberActiveProject()
		fmt.Printf("Active project is now %s\n", rest[1])
		return nil

	default:
		return fmt.Errorf("unknown projects action %q (list, create, delete, use)", action)
	}
}
