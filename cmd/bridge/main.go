// Command bridge connects an LLM chat API to a local MCP tool server and
// runs an interactive prompt: each line is one query, answered after the
// model has finished calling tools.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolbridge/internal/bridge"
	"github.com/petasbytes/toolbridge/internal/config"
	"github.com/petasbytes/toolbridge/internal/hostconn"
	"github.com/petasbytes/toolbridge/internal/provider"
	"github.com/petasbytes/toolbridge/internal/schema"
	"github.com/petasbytes/toolbridge/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "optional config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Positional arguments override the configured tool host command:
	//   bridge [-config bridge.yaml] python server.py /data
	if args := flag.Args(); len(args) > 0 {
		cfg.HostCommand = strings.Join(args, " ")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	// Teardown of the host channel must run on every exit path, so the
	// run is factored out of main and os.Exit happens after its defers.
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func run(cfg config.Config) error {
	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	conn, err := hostconn.Dial(ctx, cfg.HostCommand)
	if err != nil {
		return err
	}
	defer conn.Close()

	descs, err := conn.ListTools(ctx)
	if err != nil {
		return err
	}
	tools := schema.Adapt(descs)
	log.Info().Int("tools", len(tools)).Str("provider", cfg.Provider).Msg("connected to tool host")

	chat, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	loop := bridge.New(chat, conn, tools)
	loop.MaxTurns = cfg.MaxTurns

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Chat with the model (type 'quit' to exit)")

	// stdin reader goroutine -> lines into channel, so Ctrl-C interrupts
	// the prompt too.
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-inputCh:
			if !ok {
				return scanner.Err()
			}
		}
		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "quit") || strings.EqualFold(query, "exit") {
			return nil
		}

		qctx := telemetry.WithQueryID(ctx, uuid.NewString())
		answer, err := loop.Run(qctx, query)
		if err != nil {
			// Query-level failures are reported and the prompt resumes;
			// only host/channel setup failures abort the process.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\u001b[93mAssistant\u001b[0m: %s\n", answer)
	}
}

func buildProvider(cfg config.Config) (provider.ChatProvider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return provider.NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		return provider.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
