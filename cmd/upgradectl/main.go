package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/pkg/client"
)

const usage = `usage: upgradectl [-server URL] [-caller ADDR] <command> [args]

commands:
  impl deploy <plain|guarded>
  proxy deploy
  proxy show <proxy>
  proxy upgrade <proxy> <implementation>
  proxy set <proxy> <value>
  proxy get <proxy>
  counter deploy <1|2> [initial]
  counter show <counter>
  counter inc <counter>
  counter toggle <counter>
  counter migrate <counter> <1|2> [reseed]
  receipts [-contract ADDR] [-status ok|reverted|failed] [-limit N]
`

func main() {
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return def
	}

	var (
		server  = flag.String("server", getenv("UPGRADEKIT_SERVER", "http://127.0.0.1:8080"), "upgradekit server URL")
		caller  = flag.String("caller", getenv("UPGRADEKIT_CALLER", ""), "caller address sent as X-Caller (default: server principal)")
		timeout = flag.Duration("timeout", 15*time.Second, "request timeout")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	opts := []client.Option{client.WithTimeout(*timeout), client.WithRetries(2)}
	if *caller != "" {
		opts = append(opts, client.WithCaller(mustAddress(*caller)))
	}
	c := client.New(*server, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := run(ctx, c, flag.Args())
	if err != nil {
		fatal(err)
	}
	printJSON(out)
}

func run(ctx context.Context, c *client.Client, args []string) (any, error) {
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	switch args[0] {
	case "impl":
		need(args, 3)
		if args[1] != "deploy" {
			break
		}
		addr, err := c.DeployImplementation(ctx, args[2])
		return map[string]any{"address": addr}, err
	case "proxy":
		return runProxy(ctx, c, args)
	case "counter":
		return runCounter(ctx, c, args)
	case "receipts":
		return runReceipts(ctx, c, args[1:])
	}
	flag.Usage()
	os.Exit(2)
	return nil, nil
}

func runProxy(ctx context.Context, c *client.Client, args []string) (any, error) {
	need(args, 2)
	switch args[1] {
	case "deploy":
		addr, err := c.DeployProxy(ctx)
		return map[string]any{"address": addr}, err
	case "show":
		need(args, 3)
		px := mustAddress(args[2])
		impl, err := c.Implementation(ctx, px)
		return map[string]any{"address": px, "implementation": impl}, err
	case "upgrade":
		need(args, 4)
		px, impl := mustAddress(args[2]), mustAddress(args[3])
		return map[string]any{"address": px, "implementation": impl}, c.UpgradeImplementation(ctx, px, impl)
	case "set":
		need(args, 4)
		v := mustBig(args[3])
		return map[string]any{"value": v.String()}, c.SetValue(ctx, mustAddress(args[2]), v)
	case "get":
		need(args, 3)
		v, err := c.GetValue(ctx, mustAddress(args[2]))
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v.String()}, nil
	}
	flag.Usage()
	os.Exit(2)
	return nil, nil
}

func runCounter(ctx context.Context, c *client.Client, args []string) (any, error) {
	need(args, 3)
	switch args[1] {
	case "deploy":
		var initial *big.Int
		if len(args) > 3 {
			initial = mustBig(args[3])
		}
		return c.DeployCounter(ctx, mustVersion(args[2]), initial)
	case "show":
		return c.Counter(ctx, mustAddress(args[2]))
	case "inc":
		return c.Increment(ctx, mustAddress(args[2]))
	case "toggle":
		return c.Toggle(ctx, mustAddress(args[2]))
	case "migrate":
		need(args, 4)
		var reseed *big.Int
		if len(args) > 4 {
			reseed = mustBig(args[4])
		}
		return c.Migrate(ctx, mustAddress(args[2]), mustVersion(args[3]), reseed)
	}
	flag.Usage()
	os.Exit(2)
	return nil, nil
}

func runReceipts(ctx context.Context, c *client.Client, args []string) (any, error) {
	fs := flag.NewFlagSet("receipts", flag.ExitOnError)
	contract := fs.String("contract", "", "filter by contract address")
	status := fs.String("status", "", "filter by status")
	limit := fs.Int("limit", 20, "max receipts")
	_ = fs.Parse(args)

	q := client.ReceiptQuery{Status: host.Status(*status), Limit: *limit}
	if *contract != "" {
		addr := mustAddress(*contract)
		q.Contract = &addr
	}
	return c.Receipts(ctx, q)
}

func need(args []string, n int) {
	if len(args) < n {
		flag.Usage()
		os.Exit(2)
	}
}

func mustAddress(s string) common.Address {
	if !common.IsHexAddress(s) {
		fatal(fmt.Errorf("invalid address %q", s))
	}
	return common.HexToAddress(s)
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		fatal(fmt.Errorf("invalid integer %q", s))
	}
	return n
}

func mustVersion(s string) int {
	switch s {
	case "1":
		return 1
	case "2":
		return 2
	}
	fatal(fmt.Errorf("version must be 1 or 2, got %q", s))
	return 0
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
