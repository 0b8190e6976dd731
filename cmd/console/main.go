package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/defistate/ammquote-go/chains/ethereum"
	"github.com/defistate/ammquote-go/cmd/quoter/config"
	"github.com/defistate/ammquote-go/quoter"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

type options struct {
	configPath string
	tokenIn    string
	tokenOut   string
	amount     *big.Int
	timeout    time.Duration
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, Red+err.Error()+Reset)
		flag.Usage()
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, Red+err.Error()+Reset)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var (
		opts   options
		amount string
	)
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to the configuration file.")
	flag.StringVar(&opts.tokenIn, "in", "", "Input token symbol or address.")
	flag.StringVar(&opts.tokenOut, "out", "", "Output token symbol or address.")
	flag.StringVar(&amount, "amount", "", "Amount in the input token's base units.")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "How long to wait for the first snapshot.")
	flag.Parse()

	if opts.tokenIn == "" || opts.tokenOut == "" || amount == "" {
		return opts, errors.New("-in, -out and -amount are required")
	}
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() <= 0 {
		return opts, fmt.Errorf("invalid amount %q", amount)
	}
	opts.amount = v
	return opts, nil
}

func run(opts options) error {
	log.Printf("Loading configuration from: %s", opts.configPath)
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	// Console output is the tables; keep the logs to warnings.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	registry := prometheus.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := connect(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer source.Wait()
	defer stop()

	fmt.Print(Gray + "Waiting for the first snapshot..." + Reset)
	var state *ethereum.State
	select {
	case state = <-source.State():
		fmt.Println(Green + " ok" + Reset)
	case err := <-source.Err():
		fmt.Println()
		return fmt.Errorf("snapshot source failed: %w", err)
	case <-time.After(opts.timeout):
		fmt.Println()
		return fmt.Errorf("no snapshot within %s", opts.timeout)
	case <-ctx.Done():
		fmt.Println()
		return ctx.Err()
	}

	tokens, err := cfg.TokenList()
	if err != nil {
		return err
	}
	defaults, err := cfg.QuoterDefaults(tokens)
	if err != nil {
		return err
	}
	service, err := quoter.NewService(quoter.Config{
		Defaults:   defaults,
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		return err
	}
	service.SetState(state)

	printStatus(state)
	preview(ctx, service, opts, defaults)
	return nil
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*ethereum.Client, error) {
	if cfg.Mode == config.ModeStream {
		return ethereum.Dial(ctx, cfg.StreamURL, logger)
	}

	tokens, err := cfg.TokenList()
	if err != nil {
		return nil, err
	}
	pools, err := cfg.PoolRegistry(tokens)
	if err != nil {
		return nil, err
	}
	chain, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	context.AfterFunc(ctx, chain.Close)

	return ethereum.Poll(ctx, ethereum.PollerConfig{
		Chain:      chain,
		ChainID:    cfg.ChainID,
		Tokens:     tokens,
		Registry:   pools,
		Interval:   cfg.PollInterval,
		Logger:     logger,
		Registerer: reg,
	})
}

func printStatus(state *ethereum.State) {
	ts := time.Unix(int64(state.Block.Timestamp), 0).Format("15:04:05")

	fmt.Printf("\n%sSTATUS  ::%s Block %s#%d%s | Chain %s%d%s | Time %s%s%s\n",
		Green, Reset,
		Bold, state.Block.Number, Reset,
		Bold, state.ChainID, Reset,
		Bold, ts, Reset,
	)
	for component, reason := range state.Errors {
		fmt.Printf("%sSTALE   ::%s %s: %s\n", Yellow, Reset, component, reason)
	}
}

func preview(ctx context.Context, service *quoter.Service, opts options, defaults quoter.Defaults) {
	header("EXACT INPUT")
	in, err := service.QuoteExactIn(ctx, quoter.QuoteRequest{TokenIn: opts.tokenIn, TokenOut: opts.tokenOut, Amount: opts.amount})
	if err != nil {
		printErr(err)
	} else {
		printQuote(in)
	}

	header("EXACT OUTPUT")
	if in.AmountOut == nil {
		fmt.Println(Gray + "skipped: no exact-input quote to invert" + Reset)
	} else {
		out, err := service.QuoteExactOut(ctx, quoter.QuoteRequest{TokenIn: opts.tokenIn, TokenOut: opts.tokenOut, Amount: in.AmountOut})
		if err != nil {
			printErr(err)
		} else {
			printQuote(out)
		}
	}

	header("SLIPPAGE BOUNDS")
	if in.AmountOut == nil {
		fmt.Println(Gray + "skipped" + Reset)
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		fmt.Fprintln(w, "TOLERANCE\tMIN OUT\t")
		fmt.Fprintln(w, "---------\t-------\t")
		for _, bps := range defaults.SlippagePresets {
			q, err := service.QuoteExactIn(ctx, quoter.QuoteRequest{TokenIn: opts.tokenIn, TokenOut: opts.tokenOut, Amount: opts.amount, SlippageBps: &bps})
			if err != nil {
				fmt.Fprintf(w, "%s\t%s\t\n", formatBps(bps), Red+err.Error()+Reset)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t\n", formatBps(bps), formatAmount(q.MinAmountOut, q.TokenOut))
		}
		w.Flush()
	}

	header("ZAP")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "MODE\tSPLIT\tSWAPPED\tRECEIVED\tLIQUIDITY\tMIN LIQUIDITY\t")
	fmt.Fprintln(w, "----\t-----\t-------\t--------\t---------\t-------------\t")
	for _, mode := range []struct {
		name    string
		optimal bool
		source  string
	}{
		{name: "default split", source: quoter.PriceSourcePool},
		{name: "optimal split", optimal: true, source: quoter.PriceSourcePool},
		{name: "oracle priced", source: quoter.PriceSourceOracle},
	} {
		z, err := service.PreviewZap(ctx, quoter.ZapRequest{
			TokenIn:     opts.tokenIn,
			TokenOther:  opts.tokenOut,
			Amount:      opts.amount,
			Optimal:     mode.optimal,
			PriceSource: mode.source,
		})
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\n", mode.name, Red+err.Error()+Reset)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			mode.name,
			formatBps(z.SplitBps),
			formatAmount(z.SwapAmount, z.TokenIn),
			formatAmount(z.ReceivedAmount, z.TokenOther),
			z.Liquidity,
			z.MinLiquidity,
		)
	}
	w.Flush()
}

func printQuote(q quoter.Quote) {
	fmt.Printf("%sIn:%s  %s\n", Bold, Reset, formatAmount(q.AmountIn, q.TokenIn))
	fmt.Printf("%sOut:%s %s\n", Bold, Reset, formatAmount(q.AmountOut, q.TokenOut))
	if q.ExactIn {
		fmt.Printf("%sMin out @ %s:%s %s\n", Bold, formatBps(q.SlippageBps), Reset, formatAmount(q.MinAmountOut, q.TokenOut))
	} else {
		fmt.Printf("%sMax in @ %s:%s %s\n", Bold, formatBps(q.SlippageBps), Reset, formatAmount(q.MaxAmountIn, q.TokenIn))
	}
	fmt.Printf("%sRoutes evaluated:%s %d\n\n", Bold, Reset, q.RoutesEvaluated)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "STEP\tPOOL\tFEE\tAMOUNT IN\tAMOUNT OUT\t")
	fmt.Fprintln(w, "----\t----\t---\t---------\t----------\t")
	for i, hop := range q.Route {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", i+1, hop.Pool.Hex(), formatBps(hop.FeeBps), hop.AmountIn, hop.AmountOut)
	}
	w.Flush()
}

func printErr(err error) {
	fmt.Println(Red + "ERROR: " + Reset + err.Error())
}

func formatBps(bps uint16) string {
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}

// formatAmount renders base units in whole tokens, keeping the raw value alongside.
func formatAmount(amount *big.Int, token quoter.TokenInfo) string {
	if amount == nil {
		return "-"
	}
	decimals := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
	human := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(decimals))
	return fmt.Sprintf("%s %s (Raw: %s)", human.Text('f', 4), token.Symbol, amount)
}
