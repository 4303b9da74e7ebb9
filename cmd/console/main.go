package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/cmd/client/config"
	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/Iwinswap/iwinswap-amm-router/streams/jsonrpc/client"
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

	DefaultClientEventBufferSize = 100
	recentEventsKept             = 20
	callTimeout                  = 10 * time.Second
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// RecentEvents is a thread-safe ring of the latest swap events.
type RecentEvents struct {
	mu     sync.RWMutex
	events []swap.SwapEvent
}

func (r *RecentEvents) Add(ev swap.SwapEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if over := len(r.events) - recentEventsKept; over > 0 {
		r.events = r.events[over:]
	}
}

func (r *RecentEvents) Get() []swap.SwapEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]swap.SwapEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Console holds what every command needs.
type Console struct {
	ctx    context.Context
	dex    *client.DexClient
	cfg    *config.ClientConfig
	recent *RecentEvents
	reader *bufio.Reader
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogHandler := slog.NewJSONHandler(logFile, nil)
	rootLogger := slog.New(rootLogHandler)

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check client.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 3. INITIALIZE CLIENTS ---
	dex, err := client.Dial(ctx, cfg.StateStreamURL)
	if err != nil {
		rootLogger.Error("Failed to connect to node", "url", cfg.StateStreamURL, "error", err)
		closeApp()
	}
	defer dex.Close()

	stream, err := client.NewClient(
		ctx,
		client.Config{
			URL:        cfg.StateStreamURL,
			Logger:     rootLogger.With("component", "jsonrpc-client"),
			BufferSize: DefaultClientEventBufferSize,
		},
	)
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "url", cfg.StateStreamURL, "error", err)
		closeApp()
	}

	// --- 4. START CONSOLE & EVENT LOOP ---
	console := &Console{
		ctx:    ctx,
		dex:    dex,
		cfg:    cfg,
		recent: &RecentEvents{},
		reader: bufio.NewReader(os.Stdin),
	}

	fmt.Println(Green + "Starting DEX Console..." + Reset)
	fmt.Println("Logs are being written to 'client.log'")
	go console.run()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			console.recent.Add(ev)

		case err := <-stream.Err():
			rootLogger.Error("Fatal client error", "error", err)
			closeApp()

		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// run handles user input and display.
func (c *Console) run() {
	time.Sleep(500 * time.Millisecond)

	for {
		if c.ctx.Err() != nil {
			return
		}

		printMenu(c.cfg)

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := c.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		c.handleCommand(strings.TrimSpace(input))

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		c.reader.ReadString('\n')
	}
}

func printMenu(cfg *config.ClientConfig) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "DEX CONSOLE" + Reset + Gray + " | account " + cfg.Account.Hex() + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Assets\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Pools\n", Cyan, Reset)
	fmt.Printf(" %s3.%s Find Pool  %s(by Asset Pair)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s4.%s Balances\n", Cyan, Reset)
	fmt.Printf(" %s5.%s Quote Path\n", Cyan, Reset)
	fmt.Printf(" %s6.%s Best Path  %s(Search)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s7.%s Swap Exact Input  %s(along path)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s8.%s Swap Exact Output %s(along path)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s9.%s Watch Swaps %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %sf.%s Faucet Credit\n", Cyan, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sh.%s Help\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (c *Console) handleCommand(input string) {
	switch input {
	case "1":
		c.printAssets()
	case "2":
		c.printPools()
	case "3":
		c.findPool()
	case "4":
		c.printBalances()
	case "5":
		c.quotePath()
	case "6":
		c.bestPath()
	case "7":
		c.swapPath(true)
	case "8":
		c.swapPath(false)
	case "9":
		c.watchSwaps()
	case "f":
		c.faucet()
	case "h":
		printHelp()
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printHelp() {
	fmt.Print("\033[H\033[2J")

	header("DEX CONSOLE")
	fmt.Println(Bold + "Concept: Constant-Product Pools" + Reset)
	fmt.Println("Every pool holds reserves of two assets and keeps reserveX * reserveY from falling.")
	fmt.Println("Each trade pays a 0.25% fee that stays in the pool.")
	fmt.Println("")
	fmt.Println(Bold + "1. PATHS" + Reset)
	fmt.Println("   A path is a list of 2 to 5 assets, e.g. " + Yellow + "BTC ETH USD" + Reset + ".")
	fmt.Println("   Each consecutive pair is one hop through that pair's pool; a pool is used at most once.")
	fmt.Println("")
	fmt.Println(Bold + "2. EXACT INPUT vs EXACT OUTPUT" + Reset)
	fmt.Println("   Exact input sells a fixed amount and fails if the output is below your minimum.")
	fmt.Println("   Exact output buys a fixed amount and fails if the input is above your maximum.")
	fmt.Println("   A failed trade changes nothing.")
	fmt.Println("")
	fmt.Println(Bold + "3. ASSETS" + Reset)
	fmt.Println("   Refer to assets by display name or by hex address.")
	fmt.Println(Gray + "---------------------------------------------------------------" + Reset)
}

func (c *Console) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, callTimeout)
}

func (c *Console) printAssets() {
	ctx, cancel := c.callCtx()
	defer cancel()
	assets, err := c.dex.Assets(ctx)
	if err != nil {
		printError(err)
		return
	}

	header("ASSETS")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "NAME\tSYMBOL\tDECIMALS\tADDRESS\t")
	fmt.Fprintln(w, "----\t------\t--------\t-------\t")
	for _, a := range assets {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", a.Name, a.Symbol, a.Decimals, a.Address.Hex())
	}
	w.Flush()
}

func (c *Console) printPools() {
	ctx, cancel := c.callCtx()
	defer cancel()
	pools, err := c.dex.Pools(ctx)
	if err != nil {
		printError(err)
		return
	}

	header("POOLS")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ID\tPAIR\tRESERVE X\tRESERVE Y\tSHARES\tPROVIDERS\t")
	fmt.Fprintln(w, "--\t----\t---------\t---------\t------\t---------\t")
	for _, p := range pools {
		fmt.Fprintf(w, "%d\t%s/%s\t%d\t%d\t%d\t%d\t\n", p.ID, p.X.Name, p.Y.Name, p.ReserveX, p.ReserveY, p.TotalSupply, p.Providers)
	}
	w.Flush()
}

func (c *Console) findPool() {
	fmt.Print("\n" + Bold + "[Find Pool] Enter two assets: " + Reset)
	assets := c.readFields()
	if len(assets) != 2 {
		fmt.Println(Red + "[ERROR] Enter exactly two assets." + Reset)
		return
	}

	ctx, cancel := c.callCtx()
	defer cancel()
	pool, err := c.dex.Pool(ctx, assets[0], assets[1])
	if err != nil {
		printError(err)
		return
	}
	printPool(pool)

	shares, err := c.dex.LiquidityBalance(ctx, c.cfg.Account, assets[0], assets[1])
	if err == nil {
		fmt.Printf("  %s%-15s%s %d\n", Gray, "Your shares:", Reset, shares)
	}
}

func (c *Console) printBalances() {
	ctx, cancel := c.callCtx()
	defer cancel()
	assets, err := c.dex.Assets(ctx)
	if err != nil {
		printError(err)
		return
	}

	header("BALANCES OF " + c.cfg.Account.Hex())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ASSET\tBALANCE\t")
	fmt.Fprintln(w, "-----\t-------\t")
	for _, a := range assets {
		balance, err := c.dex.Balance(ctx, c.cfg.Account, a.Address.Hex())
		if err != nil {
			printError(err)
			return
		}
		fmt.Fprintf(w, "%s\t%d\t\n", a.Name, balance)
	}
	w.Flush()
}

func (c *Console) quotePath() {
	fmt.Print("\n" + Bold + "[Quote] Enter path (e.g. BTC ETH USD): " + Reset)
	path := c.readFields()
	amount, ok := c.readAmount("Amount to sell")
	if !ok {
		return
	}

	ctx, cancel := c.callCtx()
	defer cancel()
	q, err := c.dex.QuoteSwap(ctx, path, amount)
	if err != nil {
		printError(err)
		return
	}
	printQuote(q)
}

func (c *Console) bestPath() {
	fmt.Print("\n" + Bold + "[Best Path] Enter from and to assets: " + Reset)
	assets := c.readFields()
	if len(assets) != 2 {
		fmt.Println(Red + "[ERROR] Enter exactly two assets." + Reset)
		return
	}
	amount, ok := c.readAmount("Amount to sell")
	if !ok {
		return
	}

	ctx, cancel := c.callCtx()
	defer cancel()
	q, err := c.dex.BestPath(ctx, assets[0], assets[1], amount, 0)
	if err != nil {
		printError(err)
		return
	}
	printQuote(q)
}

func (c *Console) swapPath(exactInput bool) {
	fmt.Print("\n" + Bold + "[Swap] Enter path (e.g. BTC ETH USD): " + Reset)
	path := c.readFields()

	ctx, cancel := c.callCtx()
	defer cancel()

	if exactInput {
		amountIn, ok := c.readAmount("Amount to sell")
		if !ok {
			return
		}
		minOut, ok := c.readAmount("Minimum to receive")
		if !ok {
			return
		}
		res, err := c.dex.SwapExactInputPath(ctx, c.cfg.Account, path, amountIn, minOut)
		if err != nil {
			printError(err)
			return
		}
		fmt.Printf(Green+"Sold %d, received %d.%s\n", res.AmountIn, res.AmountOut, Reset)
		return
	}

	amountOut, ok := c.readAmount("Amount to buy")
	if !ok {
		return
	}
	maxIn, ok := c.readAmount("Maximum to pay")
	if !ok {
		return
	}
	res, err := c.dex.SwapExactOutputPath(ctx, c.cfg.Account, path, amountOut, maxIn)
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf(Green+"Paid %d, received %d.%s\n", res.AmountIn, res.AmountOut, Reset)
}

func (c *Console) faucet() {
	fmt.Print("\n" + Bold + "[Faucet] Enter asset: " + Reset)
	fields := c.readFields()
	if len(fields) != 1 {
		fmt.Println(Red + "[ERROR] Enter exactly one asset." + Reset)
		return
	}
	amount, ok := c.readAmount("Amount")
	if !ok {
		return
	}

	ctx, cancel := c.callCtx()
	defer cancel()
	if err := c.dex.Credit(ctx, c.cfg.Account, fields[0], amount); err != nil {
		printError(err)
		return
	}
	fmt.Printf(Green+"Credited %d %s to %s.%s\n", amount, fields[0], c.cfg.Account.Hex(), Reset)
}

func (c *Console) watchSwaps() {
	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)
	time.Sleep(1 * time.Second)

	stopCh := make(chan struct{})
	go func() {
		c.reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	first := true

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			events := c.recent.Get()
			var newest uint64
			if len(events) > 0 {
				newest = events[len(events)-1].Sequence
			}
			if !first && newest == lastSeq {
				continue
			}
			first = false
			lastSeq = newest

			fmt.Print("\033[H\033[2J")
			fmt.Printf(Bold+"--- LIVE MONITOR (Last swap: #%d) ---\n"+Reset, lastSeq)
			fmt.Println(Gray + "Press ENTER to return to menu." + Reset)
			printEvents(events)
		}
	}
}

// --- HELPERS ---

func (c *Console) readFields() []string {
	input, _ := c.reader.ReadString('\n')
	return strings.Fields(input)
}

func (c *Console) readAmount(prompt string) (uint64, bool) {
	fmt.Print(Bold + prompt + ": " + Reset)
	input, _ := c.reader.ReadString('\n')
	amount, err := strconv.ParseUint(strings.TrimSpace(input), 10, 64)
	if err != nil {
		fmt.Printf(Red+"[ERROR] Invalid amount: %v%s\n", err, Reset)
		return 0, false
	}
	return amount, true
}

func printError(err error) {
	if kind := client.ErrorKind(err); kind != "" {
		fmt.Printf(Red+"[%s] %v%s\n", strings.ToUpper(kind), err, Reset)
		return
	}
	fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
}

func printPool(p poolregistry.PoolView) {
	printField := func(key string, value any) {
		fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
	}

	header("POOL " + p.X.Name + "/" + p.Y.Name)
	printField("Registry ID", p.ID)
	printField("Pool Key", p.Key.String())
	printField("Reserve "+p.X.Name, p.ReserveX)
	printField("Reserve "+p.Y.Name, p.ReserveY)
	printField("Total Shares", p.TotalSupply)
	printField("Providers", p.Providers)
}

func printQuote(q exchange.Quote) {
	header("QUOTE " + q.Path.String())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "HOP\tASSET\tAMOUNT\t")
	fmt.Fprintln(w, "---\t-----\t------\t")
	for i, amount := range q.Amounts {
		fmt.Fprintf(w, "%d\t%s\t%d\t\n", i, q.Path[i].Name, amount)
	}
	w.Flush()

	fmt.Printf("\nSpot price:      %s\n", q.SpotPrice.StringFixed(8))
	fmt.Printf("Execution price: %s\n", q.ExecutionPrice.StringFixed(8))
	fmt.Printf("Price impact:    %s%s%%%s\n", Yellow, q.PriceImpact.Shift(2).StringFixed(4), Reset)
}

func printEvents(events []swap.SwapEvent) {
	if len(events) == 0 {
		fmt.Println(Yellow + "[INFO] No swaps seen yet." + Reset)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tIN\tOUT\tINITIATOR\t")
	fmt.Fprintln(w, "---\t----\t--\t---\t---------\t")
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		fmt.Fprintf(w, "%d\t%s\t%d %s\t%d %s\t%s\t\n",
			ev.Sequence,
			ev.Timestamp.Local().Format("15:04:05"),
			ev.AmountIn(), ev.AssetIn().Name,
			ev.AmountOut(), ev.AssetOut().Name,
			ev.Initiator.Hex(),
		)
	}
	w.Flush()
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}

func loadConfig() (*config.ClientConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
