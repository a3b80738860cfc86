// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Workflow setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/richinex/tabula/agent"
	"github.com/richinex/tabula/llm"
	"github.com/richinex/tabula/storage"
	"github.com/richinex/tabula/workbook"
)

// Ask answers a single question against a workbook and prints the answer.
func Ask(ctx context.Context, file, question string, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	path, err := resolveWorkbook(file, settings.Storage.DataDir)
	if err != nil {
		return err
	}

	analyst, err := newAnalyst(settings, opts)
	if err != nil {
		return err
	}

	outcome := analyst.Run(ctx, agent.Request{File: path, Question: question})
	fmt.Printf("%s\n", outcome.Answer)
	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "(%d iterations, final stage %s)\n", outcome.Iterations, outcome.Stage)
	}
	if outcome.Err != nil && opts.Verbose {
		fmt.Fprintf(os.Stderr, "failure cause: %v\n", outcome.Err)
	}
	return nil
}

// Chat starts an interactive session against a workbook. Conversation
// turns persist in the session store so a session can be resumed.
func Chat(ctx context.Context, file, sessionID string, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	path, err := resolveWorkbook(file, settings.Storage.DataDir)
	if err != nil {
		return err
	}

	analyst, err := newAnalyst(settings, opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(settings.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	var history []llm.ChatMessage
	if sessionID != "" {
		session, err := store.Session(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil {
			return fmt.Errorf("unknown session: %s", sessionID)
		}
		history, err = store.History(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(history) > 0 {
			fmt.Printf("Resuming session %q (%d messages)\n\n", session.Title, len(history))
		}
	}

	fmt.Printf("Chatting about %s. Type 'exit' to quit.\n\n", path)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if sessionID == "" {
			session, err := store.CreateSession(ctx, storage.TitleFromQuestion(input))
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			sessionID = session.ID
			fmt.Printf("(session %s)\n", sessionID)
		}

		outcome := analyst.Run(ctx, agent.Request{
			File:      path,
			Question:  input,
			SessionID: sessionID,
			History:   history,
		})

		fmt.Printf("\n%s\n\n", outcome.Answer)

		history = append(history,
			llm.UserMessage(input),
			llm.AssistantMessage(outcome.Answer),
		)

		if _, err := store.AppendMessage(ctx, sessionID, "user", input); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save message: %v\n", err)
		}
		if _, err := store.AppendMessage(ctx, sessionID, "assistant", outcome.Answer); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save message: %v\n", err)
		}
	}

	return scanner.Err()
}

// Preview prints the schema preview of a workbook as JSON.
func Preview(file string, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	path, err := resolveWorkbook(file, settings.Storage.DataDir)
	if err != nil {
		return err
	}

	preview, err := workbook.Read(path)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", out)
	return nil
}

// ListSessions prints stored sessions, most recent first.
func ListSessions(ctx context.Context, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(settings.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
	}
	return nil
}

// DeleteSession removes a session and its messages.
func DeleteSession(ctx context.Context, sessionID string, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(settings.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	if err := store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", sessionID)
	return nil
}
