package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/odvcencio/codecanvas/pkg/logging"
)

const helpText = `Available commands:
- python <filename> - Run a Python script
- pip install <package> - Install a Python package
- ls/dir - List files
- clear/cls - Clear terminal
- help - Show this help message`

// handleTerminal upgrades the channel and runs the simulated shell. The
// bearer credential rides as a query parameter because websocket
// handshakes carry no client headers.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	userID, err := s.validateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	principalID := chi.URLParam(r, "principalID")
	projectID := chi.URLParam(r, "projectID")
	if principalID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(logging.CategoryNetwork, "upgrade_failed", err.Error(), nil)
		return
	}
	defer conn.Close()

	s.logger.Info(logging.CategoryNetwork, "terminal_open", "terminal session started", map[string]any{
		"user_id":    userID,
		"project_id": projectID,
	})

	send := func(text string) bool {
		return conn.WriteMessage(websocket.TextMessage, []byte(text)) == nil
	}

	if !send("Connected to terminal. Starting container...\n") {
		return
	}
	if !send("Web Terminal ready. Type commands and press Enter. Your files are stored in /workspace\n") {
		return
	}
	if !send("\n$ ") {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		cmd := strings.TrimSpace(string(payload))
		if cmd == "" {
			continue
		}
		if cmd == "exit" || cmd == "quit" {
			send("Closing session...\n")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		if output := s.execute(projectID, cmd); output != "" {
			if !send(output) {
				return
			}
		}
		if !send("$ ") {
			return
		}
	}
}

// execute simulates command execution against the project's file set.
func (s *Server) execute(projectID, cmd string) string {
	switch {
	case strings.HasPrefix(cmd, "python "):
		return s.runPython(projectID, strings.Fields(cmd)[1])

	case strings.HasPrefix(cmd, "pip install "):
		pkg := strings.TrimPrefix(cmd, "pip install ")
		return fmt.Sprintf("Installing %s...\nSuccessfully installed %s\n", pkg, pkg)

	case cmd == "ls" || cmd == "dir":
		names := s.fileNames(projectID)
		if len(names) == 0 {
			return "No files found\n"
		}
		return strings.Join(names, "\n") + "\n"

	case cmd == "help":
		return helpText + "\n"

	default:
		return fmt.Sprintf("Command not recognized: %s\nType 'help' to see available commands\n", cmd)
	}
}

func (s *Server) runPython(projectID, filename string) string {
	// Every project starts with a default main.py on the client side,
	// which may not have been saved remotely yet.
	if filename == "main.py" {
		return "Hello, World!\nCount: 0\nCount: 1\nCount: 2\nCount: 3\nCount: 4\n"
	}

	s.mu.Lock()
	found := false
	for _, f := range s.files {
		if f.ProjectID == projectID && f.Name == filename {
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Sprintf("Error: File %s not found\n", filename)
	}
	return fmt.Sprintf("Executing %s...\nOutput would appear here\n", filename)
}

func (s *Server) fileNames(projectID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, f := range s.files {
		if f.ProjectID == projectID && !f.IsDirectory {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}
