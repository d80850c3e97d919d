// devchat is a terminal client for the development-container chat
// assistant. It loads configuration from a .env file, an optional YAML
// file and the environment, then runs one of:
//
//	devchat send   -c <container> [-a file]... <message>
//	devchat stream -c <container> [-a file]... <message>
//	devchat chat   -c <container>
//
// Sessions live in memory, so "chat" is the only mode that keeps a
// conversation across several turns.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/leofalp/devchat/core/attachment"
	"github.com/leofalp/devchat/core/backend"
	"github.com/leofalp/devchat/core/chat"
	"github.com/leofalp/devchat/core/config"
	"github.com/leofalp/devchat/providers/filetree"
	"github.com/leofalp/devchat/providers/memory"
	"github.com/leofalp/devchat/providers/memory/inmemory"
	"github.com/leofalp/devchat/providers/observability/slogobs"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	envFile     string
	containerID string
	attachments []string
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("devchat", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVarP(&opts.containerID, "container", "c", "default", "container whose conversation and files are used")
	flagSet.StringArrayVarP(&opts.attachments, "attach", "a", nil, "file to attach to the message (repeatable)")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	positional := flagSet.Args()
	if len(positional) == 0 {
		printHelp(flagSet)
		return errors.New("missing command")
	}
	command, rest := positional[0], positional[1:]

	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, store, err := build(cfg)
	if err != nil {
		return err
	}

	switch command {
	case "send", "stream":
		text := strings.TrimSpace(strings.Join(rest, " "))
		if text == "" {
			return fmt.Errorf("%s: message is required", command)
		}
		attachments, err := loadAttachments(opts.attachments)
		if err != nil {
			return err
		}
		if command == "send" {
			return sendOnce(ctx, svc, stdout, opts.containerID, text, attachments)
		}
		return streamOnce(ctx, svc, stdout, opts.containerID, text, attachments)

	case "chat":
		if cfg.Sessions.IdleTTL > 0 {
			go sweepLoop(ctx, store, cfg.Sessions.IdleTTL)
		}
		return repl(ctx, svc, stdin, stdout, opts.containerID)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// build wires the configured components together.
func build(cfg *config.Config) (*chat.Service, *inmemory.Store, error) {
	observer := slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
		slogobs.WithLevel(slogobs.ParseLogLevel(cfg.Log.Level)),
	)
	slog.SetDefault(observer.Logger())

	store := inmemory.New(
		inmemory.WithMaxSessions(cfg.Sessions.MaxSessions),
		inmemory.WithIdleTTL(cfg.Sessions.IdleTTL),
	)

	var files filetree.Source
	if cfg.Files.ServiceURL != "" {
		files = filetree.NewHTTPSource(cfg.Files.ServiceURL)
	} else {
		files = filetree.NewDirSource(cfg.Files.ProjectRoot)
	}

	var backendOpts []backend.Option
	if cfg.Attachments.HTMLAsMarkdown {
		backendOpts = append(backendOpts, backend.WithAttachmentOptions(attachment.WithHTMLAsMarkdown()))
	}
	b, err := backend.New(cfg.AI, backendOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend: %w", err)
	}

	return chat.New(b, store, files, chat.WithObserver(observer)), store, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func sendOnce(ctx context.Context, svc *chat.Service, out io.Writer, containerID, text string, attachments []memory.Attachment) error {
	result, err := svc.SendMessage(ctx, containerID, text, attachments)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, result.AssistantMessage.Content)
	return err
}

// streamOnce prints each new piece of the reply as it arrives.
func streamOnce(ctx context.Context, svc *chat.Service, out io.Writer, containerID, text string, attachments []memory.Attachment) error {
	printed := ""
	for event, err := range svc.SendMessageStream(ctx, containerID, text, attachments) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if event.Type == chat.EventUser {
			continue
		}

		content := event.Message.Content
		if strings.HasPrefix(content, printed) {
			fmt.Fprint(out, content[len(printed):])
		} else {
			fmt.Fprint(out, "\n"+content)
		}
		printed = content
	}
	_, err := fmt.Fprintln(out)
	return err
}

func repl(ctx context.Context, svc *chat.Service, in io.Reader, out io.Writer, containerID string) error {
	fmt.Fprintf(out, "devchat: container %s. Commands: /history, /reset, /quit\n", containerID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if svc.Reset(ctx, containerID) {
				fmt.Fprintln(out, "conversation cleared")
			} else {
				fmt.Fprintln(out, "no conversation yet")
			}
			continue
		case "/history":
			if err := printHistory(ctx, svc, out, containerID); err != nil {
				return err
			}
			continue
		}

		if err := streamOnce(ctx, svc, out, containerID, line, nil); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printHistory(ctx context.Context, svc *chat.Service, out io.Writer, containerID string) error {
	snapshot, ok := svc.Session(ctx, containerID)
	if !ok {
		_, err := fmt.Fprintln(out, "no conversation yet")
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

// minSweepInterval bounds how often the background sweep runs. A TTL of 1ns
// would otherwise give a zero interval, which time.NewTicker rejects.
const minSweepInterval = time.Second

func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, minSweepInterval)
}

func sweepLoop(ctx context.Context, store *inmemory.Store, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval(ttl))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep(ctx)
		}
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `devchat: chat with an AI assistant about a container's project files.

Usage:
  devchat [flags] send <message>     one turn, print the reply
  devchat [flags] stream <message>   one turn, print the reply as it arrives
  devchat [flags] chat               interactive conversation

Flags:
%s
Configuration is read from --env-file, then --config, then the environment
(AI_PROVIDER, AI_API_KEY, AI_MODEL, DEVCHAT_PROJECT_ROOT, ...).
`, flagSet.FlagUsages())
}
