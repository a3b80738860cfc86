// Package main provides the tabula CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/tabula/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "tabula",
		Short: "Ask natural-language questions about spreadsheet workbooks",
		Long: `A CLI tool that answers natural-language questions about Excel workbooks.

Workbooks are loaded into an embedded analytical engine and an LLM
drives the query loop: it inspects the workbook schema, issues SQL or
simple tabular operations, and summarizes the results in plain language.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show operator diagnostics")

	// Add commands
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider: provider,
		Verbose:  verbose,
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [workbook] [question]",
		Short: "Answer a single question about a workbook",
		Long: `Answer a single natural-language question about a workbook.

The workbook is resolved against the current directory first, then
against TABULA_DATA_DIR.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], args[1], options())
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [workbook]",
		Short: "Start an interactive session about a workbook",
		Long: `Start an interactive question-answering session about a workbook.

Turns are persisted so a session can be resumed later with --session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), args[0], sessionID, options())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume")

	return cmd
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview [workbook]",
		Short: "Print a workbook's schema preview as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Preview(args[0], options())
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListSessions(context.Background(), options())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteSession(context.Background(), args[0], options())
		},
	})

	return cmd
}
