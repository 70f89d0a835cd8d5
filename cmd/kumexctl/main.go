package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kumex-futures-sdk/config"
	"kumex-futures-sdk/kumex"
	"kumex-futures-sdk/kumex/push"

	"github.com/rs/zerolog"
)

const usage = `Usage: kumexctl [-config file] <command> [args]

Commands:
  time                       exchange server time
  status                     exchange service status
  contracts                  active contracts
  contract <symbol>          contract detail
  ticker <symbol>            real-time ticker
  book <symbol>              level-2 order book snapshot
  account [currency]         account overview
  position <symbol>          position detail
  orders [status]            list orders
  call <METHOD> <uri> [json] signed call, params given as a JSON object
  watch <topic> [private]    stream a push topic until interrupted
`

func main() {
	configFile := flag.String("config", "", "configuration file (default: config.json, config.yaml)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		console.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, closer, err := kumex.NewFromConfig(ctx, cfg)
	if err != nil {
		console.Fatal().Err(err).Msg("Failed to initialize client")
	}
	defer closer.Close()

	if err := run(ctx, client, console, flag.Args()); err != nil {
		printError(err)
		closer.Close()
		os.Exit(1)
	}
}

func loadConfig(file string) (*config.Config, error) {
	if file != "" {
		return config.LoadFrom(file)
	}
	return config.Load()
}

func run(ctx context.Context, client *kumex.Client, console zerolog.Logger, args []string) error {
	cmd, rest := args[0], args[1:]
	arg := func(i int) (string, error) {
		if i >= len(rest) {
			return "", fmt.Errorf("%s: missing argument %d", cmd, i+1)
		}
		return rest[i], nil
	}
	optional := func(i int) string {
		if i >= len(rest) {
			return ""
		}
		return rest[i]
	}

	switch cmd {
	case "time":
		t, err := client.ServerTime(ctx)
		if err != nil {
			return err
		}
		fmt.Println(t.UTC().Format(time.RFC3339Nano))
		return nil
	case "status":
		return printResult(client.ServiceStatus(ctx))
	case "contracts":
		return printResult(client.ActiveContracts(ctx))
	case "contract":
		symbol, err := arg(0)
		if err != nil {
			return err
		}
		return printResult(client.Contract(ctx, symbol))
	case "ticker":
		symbol, err := arg(0)
		if err != nil {
			return err
		}
		return printResult(client.Ticker(ctx, symbol))
	case "book":
		symbol, err := arg(0)
		if err != nil {
			return err
		}
		return printResult(client.Level2Snapshot(ctx, symbol))
	case "account":
		return printResult(client.AccountOverview(ctx, optional(0)))
	case "position":
		symbol, err := arg(0)
		if err != nil {
			return err
		}
		return printResult(client.Position(ctx, symbol))
	case "orders":
		return printResult(client.ListOrders(ctx, &kumex.OrderFilter{Status: optional(0)}))
	case "call":
		method, err := arg(0)
		if err != nil {
			return err
		}
		uri, err := arg(1)
		if err != nil {
			return err
		}
		var params map[string]interface{}
		if raw := optional(2); raw != "" {
			dec := json.NewDecoder(strings.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&params); err != nil {
				return fmt.Errorf("call: params must be a JSON object: %w", err)
			}
		}
		var data json.RawMessage
		if err := client.Do(ctx, method, uri, params, &data); err != nil {
			return err
		}
		return printResult(data, nil)
	case "watch":
		topic, err := arg(0)
		if err != nil {
			return err
		}
		return watch(ctx, client, console, topic, optional(1) == "private")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func watch(ctx context.Context, client *kumex.Client, console zerolog.Logger, topic string, private bool) error {
	var (
		token *kumex.BulletToken
		err   error
	)
	if private {
		token, err = client.PrivateBullet(ctx)
	} else {
		token, err = client.PublicBullet(ctx)
	}
	if err != nil {
		return err
	}

	ep, err := push.EndpointFromBullet(token)
	if err != nil {
		return err
	}
	feed, err := push.Dial(ctx, ep, &push.Options{Logger: &console})
	if err != nil {
		return err
	}
	defer feed.Close()

	if _, err := feed.Subscribe(topic, private); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-feed.Messages():
			if !ok {
				return feed.Err()
			}
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
	}
}

func printResult(v interface{}, err error) error {
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printError(err error) {
	var (
		httpErr *kumex.HTTPError
		apiErr  *kumex.APIError
	)
	switch {
	case errors.As(err, &httpErr):
		fmt.Fprintf(os.Stderr, "HTTP %d: %s %s\n", httpErr.StatusCode, httpErr.Code, httpErr.Message)
	case errors.As(err, &apiErr):
		fmt.Fprintf(os.Stderr, "API error %s: %s\n", apiErr.Code, apiErr.Message)
	case kumex.IsTimeout(err):
		fmt.Fprintf(os.Stderr, "request timed out: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
