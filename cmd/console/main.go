package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter/jsonrpc"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/adapter/mock"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/aggregator"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/cmd/console/config"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/metrics"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/pkg/units"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/token"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultHistoryLimit = 10
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// SimClock is a wall clock that can be pushed forward from the console so
// locks can mature without waiting.
type SimClock struct {
	mu     sync.RWMutex
	offset time.Duration
}

func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// App bundles what the console handlers need.
type App struct {
	agg       *aggregator.Aggregator
	cfg       *config.ConsoleConfig
	clock     *SimClock
	custodian *mock.Custodian
	store     *store.Store
	// simulated holds the in-process protocols; nil when a gateway is used.
	simulated map[string]adapter.Binding
	reader    *bufio.Reader
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("aggregator.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogHandler := slog.NewJSONHandler(logFile, nil)
	rootLogger := slog.New(rootLogHandler)

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check aggregator.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := settlement.ParsePolicy(cfg.Policy)
	if err != nil {
		rootLogger.Error("Failed to parse settlement policy", "error", err)
		closeApp()
	}

	// --- 3. METRICS ---
	m := metrics.NewMetrics(prometheusRegistry)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rootLogger.Error("Metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	// --- 4. PROTOCOL CONNECTOR ---
	app := &App{
		cfg:       cfg,
		clock:     &SimClock{},
		custodian: mock.NewCustodian(),
		reader:    bufio.NewReader(os.Stdin),
	}

	var connector adapter.Connector
	if cfg.GatewayURL != "" {
		gateway, err := jsonrpc.Dial(ctx, jsonrpc.Config{
			URL:    cfg.GatewayURL,
			Logger: rootLogger.With("component", "jsonrpc-gateway"),
		})
		if err != nil {
			rootLogger.Error("Failed to dial protocol gateway", "url", cfg.GatewayURL, "error", err)
			closeApp()
		}
		defer gateway.Close()
		connector = gateway
	} else {
		network := mock.NewNetwork()
		app.simulated = make(map[string]adapter.Binding, len(cfg.Protocols))
		for _, p := range cfg.Protocols {
			b, err := network.Deploy(common.HexToAddress(p.Ref), p.ParsedKind())
			if err != nil {
				rootLogger.Error("Failed to deploy simulated protocol", "protocol", p.Name, "error", err)
				closeApp()
			}
			app.simulated[p.Name] = b
		}
		connector = network
		if cfg.StoreDSN != "" {
			rootLogger.Warn("Simulated protocols start empty on every run; restored shares will not match them.", "dsn", cfg.StoreDSN)
		}
	}

	// --- 5. STORE ---
	var aggStore aggregator.Store
	if cfg.StoreDSN != "" {
		app.store, err = store.Open(cfg.StoreDSN)
		if err != nil {
			rootLogger.Error("Failed to open snapshot store", "dsn", cfg.StoreDSN, "error", err)
			closeApp()
		}
		defer app.store.Close()
		aggStore = app.store
	}

	// --- 6. AGGREGATOR ---
	app.agg, err = aggregator.New(ctx, aggregator.Config{
		Admin:           cfg.AdminAddress(),
		Custody:         cfg.CustodyAddress(),
		Connector:       connector,
		Custodian:       app.custodian,
		Logger:          rootLogger.With("component", "aggregator"),
		Policy:          policy,
		Store:           aggStore,
		Metrics:         m,
		Clock:           app.clock.Now,
		CheckInvariants: cfg.CheckInvariants,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize aggregator", "error", err)
		closeApp()
	}

	if err := app.bootstrap(ctx); err != nil {
		rootLogger.Error("Failed to register configured tokens and protocols", "error", err)
		closeApp()
	}

	// --- 7. START CONSOLE ---
	fmt.Println(Green + "Starting Yield Aggregator Console..." + Reset)
	fmt.Println("Logs are being written to 'aggregator.log'")
	go runConsole(ctx, app)

	<-ctx.Done()
	fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
}

// bootstrap registers configured tokens and protocols that a restored
// snapshot does not already contain, then funds the console depositor.
func (app *App) bootstrap(ctx context.Context) error {
	admin := app.cfg.AdminAddress()

	known := make(map[common.Address]bool)
	for _, t := range app.agg.ListTokens() {
		known[t.Address] = true
	}
	for _, t := range app.cfg.Tokens {
		addr := common.HexToAddress(t.Address)
		if !known[addr] {
			if err := app.agg.RegisterToken(ctx, admin, addr, t.Symbol, t.Decimals); err != nil {
				return fmt.Errorf("token %s: %w", t.Symbol, err)
			}
		}
		if t.Fund == "" {
			continue
		}
		amount, err := units.Parse(t.Fund, t.Decimals)
		if err != nil {
			return fmt.Errorf("token %s fund: %w", t.Symbol, err)
		}
		app.custodian.Fund(addr, app.cfg.DepositorAddress(), amount)
	}

	registered := make(map[string]bool)
	for _, p := range app.agg.ListProtocols() {
		registered[p.Name] = true
	}
	for _, p := range app.cfg.Protocols {
		if registered[p.Name] {
			continue
		}
		if err := app.agg.RegisterProtocol(ctx, admin, p.Name, common.HexToAddress(p.Ref), p.ParsedKind(), p.APYBps); err != nil {
			return fmt.Errorf("protocol %s: %w", p.Name, err)
		}
	}
	return nil
}

// runConsole handles user input and display.
func runConsole(ctx context.Context, app *App) {
	time.Sleep(200 * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return
		}

		printMenu(app)

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := app.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		handleCommand(ctx, strings.TrimSpace(input), app)

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		app.reader.ReadString('\n')
	}
}

func printMenu(app *App) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "YIELD AGGREGATOR CONSOLE" + Reset + Gray + " | v0.1.0" + Reset)
	fmt.Printf("%sDepositor %s | Policy %s | Clock %s%s\n",
		Gray, app.cfg.DepositorAddress().Hex(), app.agg.PolicyName(),
		app.clock.Now().Format(time.DateTime), Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Protocols & Tokens\n", Cyan, Reset)
	fmt.Printf(" %s2.%s My Position\n", Cyan, Reset)
	fmt.Printf(" %s3.%s Deposit         %s(flexible)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s4.%s Lock            %s(time-locked stake)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s5.%s Withdraw        %s(flexible balance)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Withdraw Stake  %s(by stake ID)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s7.%s Execute Scheduled Stake\n", Cyan, Reset)
	fmt.Printf(" %s8.%s Cancel Scheduled Stake %s(refund)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sa.%s Advance Clock\n", Yellow, Reset)
	if app.simulated != nil {
		fmt.Printf(" %sy.%s Simulate Yield\n", Yellow, Reset)
	}
	if app.store != nil {
		fmt.Printf(" %ss.%s Snapshot History\n", Yellow, Reset)
	}
	fmt.Printf(" %si.%s Check Invariants\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func handleCommand(ctx context.Context, input string, app *App) {
	switch input {
	case "1":
		printProtocols(app)
	case "2":
		printPosition(app)
	case "3":
		deposit(ctx, app)
	case "4":
		lock(ctx, app)
	case "5":
		withdraw(ctx, app)
	case "6":
		withdrawStake(ctx, app)
	case "7":
		executeScheduled(ctx, app)
	case "8":
		cancelScheduled(ctx, app)
	case "a":
		advanceClock(app)
	case "y":
		if app.simulated != nil {
			simulateYield(ctx, app)
			return
		}
		fmt.Println(Red + "Unknown command." + Reset)
	case "s":
		if app.store != nil {
			printHistory(ctx, app)
			return
		}
		fmt.Println(Red + "Unknown command." + Reset)
	case "i":
		if err := app.agg.CheckInvariants(); err != nil {
			fmt.Printf(Red+"[VIOLATION] %v%s\n", err, Reset)
			return
		}
		fmt.Println(Green + "[OK] Ledger is consistent." + Reset)
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printProtocols(app *App) {
	header("PROTOCOLS")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tAPY\tSTATUS\tDEPOSITED (base units)\t")
	fmt.Fprintln(w, "----\t----\t---\t------\t----------------------\t")
	for _, p := range app.agg.ListProtocols() {
		fmt.Fprintf(w, "%s\t%s\t%s%%\t%s\t%s\t\n", p.Name, p.Kind, bpsPercent(p.APYBps), status(p.Active), p.Deposited.Dec())
	}
	w.Flush()

	header("TOKENS")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tADDRESS\tDECIMALS\tSTATUS\tWALLET\tRETAINED\t")
	fmt.Fprintln(w, "------\t-------\t--------\t------\t------\t--------\t")
	for _, t := range app.agg.ListTokens() {
		wallet := app.custodian.Balance(t.Address, app.cfg.DepositorAddress())
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t\n",
			t.Symbol, t.Address.Hex(), t.Decimals, status(t.Active),
			units.Format(wallet, t.Decimals), units.Format(app.agg.Retained(t.Address), t.Decimals))
	}
	w.Flush()
}

func printPosition(app *App) {
	depositor := app.cfg.DepositorAddress()
	summary, err := app.agg.Position(depositor)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	header("POSITION (base units)")
	fmt.Printf("Total Deposited: %s\n", summary.TotalDeposited.Dec())
	fmt.Printf("Total Claimed:   %s\n", summary.TotalClaimed.Dec())
	fmt.Printf("Est. Value:      %s\n", summary.EstimatedValue.Dec())
	fmt.Printf("Est. Yield:      %s%s%s\n", Green, summary.EstimatedYield.Dec(), Reset)

	tokens := app.agg.ListTokens()
	header("HOLDINGS")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tPROTOCOL\tBALANCE\tLOCKED\tEST. YIELD\t")
	fmt.Fprintln(w, "-----\t--------\t-------\t------\t----------\t")
	for _, t := range tokens {
		for _, p := range app.agg.ListProtocols() {
			pair, err := app.agg.PairPosition(depositor, t.Address, p.Name)
			if err != nil || pair.Balance.IsZero() {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", t.Symbol, p.Name,
				units.Format(pair.Balance, t.Decimals), units.Format(pair.Locked, t.Decimals),
				units.Format(pair.EstimatedYield, t.Decimals))
		}
	}
	w.Flush()

	stakes := app.agg.Stakes(depositor)
	if len(stakes) == 0 {
		return
	}
	header("STAKES")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ID\tPAIR\tAMOUNT\tSTATE\tSTART\tEND\t")
	fmt.Fprintln(w, "--\t----\t------\t-----\t-----\t---\t")
	for _, s := range stakes {
		decimals := decimalsOf(tokens, s.Pair.Token)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n", s.ID, s.Pair.Protocol,
			units.Format(&s.Amount, decimals), s.State,
			s.Start.Format(time.DateTime), s.End.Format(time.DateTime))
	}
	w.Flush()
}

func deposit(ctx context.Context, app *App) {
	t, amount, protocol, ok := readOrder(app)
	if !ok {
		return
	}
	shares, err := app.agg.Deposit(ctx, app.cfg.DepositorAddress(), t.Address, amount, protocol)
	if err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	fmt.Printf(Green+"Deposited %s %s into %s (%s shares).%s\n", units.Format(amount, t.Decimals), t.Symbol, protocol, shares.Dec(), Reset)
}

func lock(ctx context.Context, app *App) {
	t, amount, protocol, ok := readOrder(app)
	if !ok {
		return
	}
	duration, ok := readDuration(app, "Lock duration (e.g. 720h): ")
	if !ok {
		return
	}
	delay, ok := readDuration(app, "Start delay (0 for now): ")
	if !ok {
		return
	}

	var id uint64
	var err error
	if delay == 0 {
		id, err = app.agg.CreateTimeLockedPosition(ctx, app.cfg.DepositorAddress(), t.Address, amount, protocol, duration)
	} else {
		start := app.clock.Now().Add(delay)
		id, err = app.agg.ScheduleTimeLockedPosition(ctx, app.cfg.DepositorAddress(), t.Address, amount, protocol, start, duration)
	}
	if err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	fmt.Printf(Green+"Created stake #%d.%s\n", id, Reset)
}

func withdraw(ctx context.Context, app *App) {
	t, amount, protocol, ok := readOrder(app)
	if !ok {
		return
	}
	s, err := app.agg.WithdrawImmediate(ctx, app.cfg.DepositorAddress(), t.Address, amount, protocol)
	if err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	printSettlement(s, t.Decimals)
}

func withdrawStake(ctx context.Context, app *App) {
	id, ok := readStakeID(app)
	if !ok {
		return
	}
	stake, err := app.agg.Stake(id)
	if err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	s, err := app.agg.WithdrawPosition(ctx, app.cfg.DepositorAddress(), id)
	if err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	printSettlement(s, decimalsOf(app.agg.ListTokens(), stake.Pair.Token))
}

func executeScheduled(ctx context.Context, app *App) {
	id, ok := readStakeID(app)
	if !ok {
		return
	}
	if err := app.agg.ExecuteScheduled(ctx, id); err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	fmt.Printf(Green+"Stake #%d is now active.%s\n", id, Reset)
}

func cancelScheduled(ctx context.Context, app *App) {
	id, ok := readStakeID(app)
	if !ok {
		return
	}
	if err := app.agg.CancelScheduled(ctx, app.cfg.DepositorAddress(), id); err != nil {
		fmt.Printf(Red+"[FAILED] %v%s\n", err, Reset)
		return
	}
	fmt.Printf(Green+"Stake #%d cancelled, funds returned.%s\n", id, Reset)
}

func advanceClock(app *App) {
	d, ok := readDuration(app, "Advance by (e.g. 24h): ")
	if !ok {
		return
	}
	app.clock.Advance(d)
	fmt.Printf(Green+"Clock is now %s.%s\n", app.clock.Now().Format(time.DateTime), Reset)
}

// simulateYield grows one simulated protocol's value by a number of basis
// points of what the aggregator has routed into it.
func simulateYield(ctx context.Context, app *App) {
	protocol := prompt(app, "Protocol name: ")
	b, found := app.simulated[protocol]
	if !found {
		fmt.Println(Red + "[NOT FOUND] No simulated protocol with that name." + Reset)
		return
	}
	bps, err := strconv.ParseUint(prompt(app, "Growth (bps): "), 10, 64)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid basis points: %v%s\n", err, Reset)
		return
	}

	deposited := new(uint256.Int)
	for _, p := range app.agg.ListProtocols() {
		if p.Name == protocol {
			deposited = p.Deposited
		}
	}
	growth := new(uint256.Int).Mul(deposited, uint256.NewInt(bps))
	growth.Div(growth, uint256.NewInt(10_000))

	switch binding := b.(type) {
	case adapter.Liquid:
		binding.Protocol.(*mock.Liquid).Accrue(growth)
	case adapter.LPStake:
		binding.Farm.(*mock.Farm).Reward(growth)
	case adapter.Lending:
		pool := binding.Pool.(*mock.LendingPool)
		for _, t := range app.agg.ListTokens() {
			pool.Rebase(t.Address, bps)
		}
	case adapter.Compound:
		market := binding.Market.(*mock.Market)
		rate, err := market.ExchangeRate(ctx)
		if err != nil {
			fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
			return
		}
		bump := new(uint256.Int).Mul(rate, uint256.NewInt(bps))
		bump.Div(bump, uint256.NewInt(10_000))
		market.SetRate(rate.Add(rate, bump))
	}
	fmt.Printf(Green+"%s grew by %s%%.%s\n", protocol, bpsPercent(bps), Reset)
}

func printHistory(ctx context.Context, app *App) {
	records, err := app.store.History(ctx, DefaultHistoryLimit)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	header("SNAPSHOT HISTORY")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ID\tOP\tOP ID\tTAKEN AT\t")
	fmt.Fprintln(w, "--\t--\t-----\t--------\t")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", r.ID, r.Op, r.OpID, r.TakenAt.Format(time.DateTime))
	}
	w.Flush()
}

func printSettlement(s settlement.Settlement, decimals uint8) {
	header("SETTLEMENT")
	fmt.Printf("Principal: %s\n", units.Format(s.Principal, decimals))
	fmt.Printf("Returned:  %s\n", units.Format(s.Returned, decimals))
	fmt.Printf("Yield:     %s%s%s\n", Green, units.Format(s.Yield, decimals), Reset)
	fmt.Printf("Penalty:   %s%s%s (%s%%)\n", Yellow, units.Format(s.Penalty, decimals), Reset, bpsPercent(s.PenaltyBps))
	fmt.Printf("Payout:    %s%s%s\n", Bold, units.Format(s.Payout, decimals), Reset)
}

// --- INPUT HELPERS ---

func prompt(app *App, label string) string {
	fmt.Print("\n" + Bold + label + Reset)
	input, _ := app.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readOrder asks for a token symbol, a human readable amount and a protocol.
func readOrder(app *App) (token.TokenView, *uint256.Int, string, bool) {
	symbol := prompt(app, "Token symbol: ")
	var t token.TokenView
	found := false
	for _, candidate := range app.agg.ListTokens() {
		if strings.EqualFold(candidate.Symbol, symbol) {
			t, found = candidate, true
			break
		}
	}
	if !found {
		fmt.Println(Red + "[NOT FOUND] Token symbol not registered." + Reset)
		return t, nil, "", false
	}

	amount, err := units.Parse(prompt(app, "Amount: "), t.Decimals)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return t, nil, "", false
	}
	protocol := prompt(app, "Protocol name: ")
	return t, amount, protocol, true
}

func readDuration(app *App, label string) (time.Duration, bool) {
	input := prompt(app, label)
	if input == "0" {
		return 0, true
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid duration: %v%s\n", err, Reset)
		return 0, false
	}
	return d, true
}

func readStakeID(app *App) (uint64, bool) {
	id, err := strconv.ParseUint(prompt(app, "Stake ID: "), 10, 64)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid stake ID: %v%s\n", err, Reset)
		return 0, false
	}
	return id, true
}

func decimalsOf(tokens []token.TokenView, addr common.Address) uint8 {
	for _, t := range tokens {
		if t.Address == addr {
			return t.Decimals
		}
	}
	return 0
}

func bpsPercent(bps uint64) string {
	return strconv.FormatFloat(float64(bps)/100, 'f', 2, 64)
}

func status(active bool) string {
	if active {
		return Green + "ACTIVE" + Reset
	}
	return Gray + "INACTIVE" + Reset
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}

func loadConfig() (*config.ConsoleConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
