// Command tpcli is a command line client for the test plan agent.
//
// Usage:
//
//	tpcli [-server URL] fetch KEY
//	tpcli [-server URL] generate [-provider grok|ollama] [-temperature T] [-max-tokens N] KEY
//	tpcli [-server URL] export [-o FILE] ID pdf|docx|md
//	tpcli [-server URL] history [-newest] [-failed]
//	tpcli [-server URL] watch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

func main() {
	server := flag.String("server", envOr("TPAGENT_URL", "http://localhost:8000"), "test plan agent base URL")
	timeout := flag.Duration("timeout", 3*time.Minute, "request timeout")
	flag.Usage = usage
	flag.Parse()

	log.SetFlags(0)

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := NewClient(*server, *timeout)
	if err := run(ctx, client, flag.Args(), os.Stdout); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			log.Fatalf("Error (%d) %v", apiErr.Status, apiErr)
		}
		log.Fatalf("Error: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tpcli [-server URL] [-timeout D] <command> [args]

Commands:
  fetch KEY                     fetch a Jira issue
  generate [flags] KEY          generate a test plan
  export [-o FILE] ID FORMAT    download a plan as pdf, docx or md
  history [-newest] [-failed]   list generation history
  watch                         stream new history entries`)
}

// run dispatches one subcommand. Output goes to out.
func run(ctx context.Context, client *Client, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "fetch":
		if len(rest) != 1 {
			return errors.New("usage: fetch KEY")
		}
		issue, err := client.FetchIssue(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out, issue)

	case "generate":
		fs := flag.NewFlagSet("generate", flag.ContinueOnError)
		provider := fs.String("provider", "", "grok or ollama (default: stored provider)")
		temperature := fs.Float64("temperature", -1, "sampling temperature override")
		maxTokens := fs.Int("max-tokens", 0, "max tokens override")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("usage: generate [flags] KEY")
		}
		req := domain.GenerateRequest{JiraIssueID: fs.Arg(0), Provider: *provider}
		if *temperature >= 0 {
			req.Temperature = temperature
		}
		if *maxTokens > 0 {
			req.MaxTokens = maxTokens
		}
		resp, err := client.Generate(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Session %s (%s, %.1fs)\n\n%s\n", resp.ID, resp.ProviderUsed,
			resp.Metadata.GenerationTimeSeconds, resp.Content)
		fmt.Fprintf(out, "\nExports:\n  pdf:  %s\n  docx: %s\n  md:   %s\n",
			resp.Exports.PDFURL, resp.Exports.WordURL, resp.Exports.MarkdownURL)
		return nil

	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		output := fs.String("o", "", "output file (default: server filename, - for stdout)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errors.New("usage: export [-o FILE] ID FORMAT")
		}
		data, filename, err := client.Export(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		target := *output
		if target == "" {
			target = filename
		}
		if target == "" || target == "-" {
			_, err := out.Write(data)
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s (%d bytes)\n", target, len(data))
		return nil

	case "history":
		fs := flag.NewFlagSet("history", flag.ContinueOnError)
		newest := fs.Bool("newest", false, "newest first")
		failed := fs.Bool("failed", false, "include failed sessions")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		resp, err := client.History(ctx, *newest, *failed)
		if err != nil {
			return err
		}
		for _, e := range resp.Entries {
			printEntry(out, e)
		}
		fmt.Fprintf(out, "%d entries\n", resp.Total)
		return nil

	case "watch":
		fmt.Fprintln(out, "Watching history, Ctrl+C to stop.")
		return client.Watch(ctx, func(raw []byte) error {
			var msg struct {
				Type    string                `json:"type"`
				Entry   *domain.HistoryEntry  `json:"entry"`
				Entries []domain.HistoryEntry `json:"entries"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("WARN: unreadable message: %v", err)
				return nil
			}
			switch {
			case msg.Entry != nil:
				printEntry(out, *msg.Entry)
			default:
				fmt.Fprintf(out, "[%s] %d entries\n", msg.Type, len(msg.Entries))
			}
			return nil
		})
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printEntry(out io.Writer, e domain.HistoryEntry) {
	id := e.ID
	if id == "" {
		id = "-"
	}
	line := fmt.Sprintf("%-36s  %-10s  %-9s  %-6s  %6.1fs  %s", id, e.IssueKey, e.Status, e.ProviderUsed, e.DurationSeconds, e.Summary)
	if e.Error != nil {
		line += fmt.Sprintf("  [%s: %s]", e.Error.Kind, e.Error.Message)
	}
	fmt.Fprintln(out, line)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
