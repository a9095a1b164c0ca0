package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/odvcencio/codecanvas/pkg/workspace"
)

func runFilesCommand(args []string) error {
	fs := flag.NewFlagSet("files", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	projectID := fs.String("project", "", "project id (defaults to the active project)")
	contentPath := fs.String("from", "", "read initial content from a local file (add)")
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
	if err := a.projects.Fetch(ctx); err != nil {
		return err
	}
	a.restoreActiveProject()

	target := *projectID
	if target == "" {
		target = a.projects.ActiveProjectID()
	}
	if target == "" {
		return fmt.Errorf("no active project; run 'canvas projects use <project-id>'")
	}
	if err := a.files.LoadProject(ctx, target); err != nil {
		return err
	}

	switch action {
	case "list":
		activeID := a.files.ActiveFileID()
		for _, f := range a.files.Files() {
			marker := " "
			if f.ID == activeID {
				marker = "*"
			}
			fmt.Printf("%s %-36s %-20s %s\n", marker, f.ID, f.Name, f.Language)
		}
		return nil

	case "cat":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas files cat <file>")
		}
		f, err := resolveFile(a.files, rest[1])
		if err != nil {
			return err
		}
		fmt.Print(f.Content)
		return nil

	case "add":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas files add <name>")
		}
		content := ""
		if *contentPath != "" {
			data, err := os.ReadFile(*contentPath)
			if err != nil {
				return err
			}
			content = string(data)
		}
		f, err := a.files.Add(ctx, rest[1], content)
		if err != nil {
			return err
		}
		a.files.Wait()
		fmt.Printf("Added %s\n", f.Name)
		return nil

	case "rm":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas files rm <file>")
		}
		f, err := resolveFile(a.files, rest[1])
		if err != nil {
			return err
		}
		if err := a.files.Delete(ctx, f.ID); err != nil {
			return err
		}
		a.files.Wait()
		fmt.Printf("Removed %s\n", f.Name)
		return nil

	case "mv":
		if len(rest) < 3 {
			return fmt.Errorf("usage: canvas files mv <file> <new-name>")
		}
		f, err := resolveFile(a.files, rest[1])
		if err != nil {
			return err
		}
		renamed, err := a.files.Rename(ctx, f.ID, rest[2])
		if err != nil {
			return err
		}
		a.files.Wait()
		fmt.Printf("Renamed %s to %s\n", f.Name, renamed.Name)
		return nil

	case "save":
		if len(rest) < 2 {
			return fmt.Errorf("usage: canvas files save <file> -from <local-path>")
		}
		f, err := resolveFile(a.files, rest[1])
		if err != nil {
			return err
		}
		if *contentPath != "" {
			data, err := os.ReadFile(*contentPath)
			if err != nil {
				return err
			}
			if err := a.files.UpdateContent(f.ID, string(data)); err != nil {
				return err
			}
		}
		if err := a.files.Save(ctx, f.ID); err != nil {
			return err
		}
		a.files.Wait()
		fmt.Printf("Saved %s\n", f.Name)
		return nil

	default:
		return fmt.Errorf("unknown files action %q (list, cat, add, rm, mv, save)", action)
	}
}

// resolveFile accepts either a file id or a file name.
func resolveFile(files *workspace.Collection, ref string) (*workspace.File, error) {
	if f, err := files.Get(ref); err == nil {
		return f, nil
	}
	for _, f := range files.Files() {
		if f.Name == ref {
			out := f
			return &out, nil
		}
	}
	return nil, fmt.Errorf("no file %q in the active project", ref)
}
