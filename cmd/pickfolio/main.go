package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/PickFolio/pickfolio-go/internal/auth"
	"github.com/PickFolio/pickfolio-go/internal/config"
	"github.com/PickFolio/pickfolio-go/internal/contest"
	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/leaderboard"
	"github.com/PickFolio/pickfolio-go/internal/observability"
	"github.com/PickFolio/pickfolio-go/internal/realtime"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

const usage = `usage: pickfolio <command> [flags]

commands:
  register     create an account
  login        log in and store the session
  logout       log out this device
  logout-all   log out every device
  lobby        list your contests and open public contests
  create       create a contest
  join         join a contest by id or invite code
  watch        follow a contest's live leaderboard
  trade        place a buy/sell order in a contest
`

// app bundles the wired runtime handed to each command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    session.Store
	identity *auth.IdentityClient
	contests *contest.Client
}

func main() {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadConfig()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a, err := wire(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			fmt.Fprintln(os.Stderr, "not logged in; run: pickfolio login")
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func wire(cfg *config.Config, logger *zap.Logger) (*app, error) {
	var store session.Store
	switch cfg.SessionBackend {
	case "redis":
		client, err := session.DialRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		store = session.NewRedisStore(client, "")
	case "memory":
		store = session.NewMemoryStore()
	default:
		fileStore, err := session.NewFileStore(cfg.SessionFile)
		if err != nil {
			return nil, err
		}
		store = fileStore
	}

	deviceInfo := auth.DeviceInfo(cfg.DeviceFile, cfg.DeviceLabel)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	coordinator := auth.NewRefreshCoordinator(store, httpClient, cfg.AuthAPIURL, deviceInfo, logger)
	coordinator.OnSessionExpired(func() {
		fmt.Fprintln(os.Stderr, "session expired; please log in again")
	})

	api := auth.NewClient(store, coordinator, httpClient, logger)
	identity := auth.NewIdentityClient(store, api, httpClient, cfg.AuthAPIURL, deviceInfo, logger)
	contests := contest.NewClient(api, cfg.ContestAPIURL)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		identity: identity,
		contests: contests,
	}, nil
}

func run(ctx context.Context, a *app, command string, args []string) error {
	switch command {
	case "register":
		return cmdRegister(ctx, a, args)
	case "login":
		return cmdLogin(ctx, a, args)
	case "logout":
		return a.identity.Logout(ctx)
	case "logout-all":
		return a.identity.LogoutAll(ctx)
	case "lobby":
		return cmdLobby(ctx, a)
	case "create":
		return cmdCreate(ctx, a, args)
	case "join":
		return cmdJoin(ctx, a, args)
	case "watch":
		return cmdWatch(ctx, a, args)
	case "trade":
		return cmdTrade(ctx, a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	username := fs.String("username", "", "username")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("-username is required")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	if err := a.identity.Register(ctx, *name, *username, password); err != nil {
		return err
	}
	fmt.Println("registration successful, please log in")
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("-username is required")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	if err := a.identity.Login(ctx, *username, password); err != nil {
		return err
	}

	if s, err := auth.CurrentSession(a.store, a.cfg.DeviceLabel); err == nil {
		fmt.Printf("logged in as %s (%s)\n", *username, s.SubjectID)
	}
	return nil
}

func cmdLobby(ctx context.Context, a *app) error {
	mine, err := a.contests.MyContests(ctx)
	if err != nil {
		return err
	}
	public, err := a.contests.OpenPublicContests(ctx)
	if err != nil {
		return err
	}

	fmt.Println("your contests:")
	for _, c := range mine {
		fmt.Printf("  %-36s  %-20s  %s\n", c.ID, c.Name, c.Status)
	}
	joined := make(map[string]bool, len(mine))
	for _, c := range mine {
		joined[c.ID] = true
	}

	fmt.Println("open public contests:")
	for _, c := range public {
		if joined[c.ID] {
			continue
		}
		fmt.Printf("  %-36s  %-20s  %s\n", c.ID, c.Name, c.Status)
	}
	return nil
}

func cmdCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "contest name")
	private := fs.Bool("private", false, "private contest (invite code)")
	start := fs.String("start", "", "start time, RFC 3339")
	end := fs.String("end", "", "end time, RFC 3339")
	budget := fs.Float64("budget", 100000, "virtual budget")
	maxPlayers := fs.Int("max", 10, "max participants")
	fs.Parse(args)

	req, err := buildCreateRequest(*name, *start, *end, *private, *budget, *maxPlayers)
	if err != nil {
		return err
	}

	created, err := a.contests.Create(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("created contest %s (%s)\n", created.Name, created.ID)
	if created.IsPrivate && created.InviteCode != "" {
		fmt.Printf("invite code: %s\n", created.InviteCode)
	}
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	contestID := fs.String("contest", "", "contest id (public)")
	code := fs.String("code", "", "invite code (private)")
	fs.Parse(args)

	switch {
	case *code != "":
		if err := a.contests.JoinByCode(ctx, strings.ToUpper(*code)); err != nil {
			return err
		}
	case *contestID != "":
		if err := a.contests.Join(ctx, *contestID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of -contest or -code is required")
	}

	fmt.Println("joined")
	return nil
}

func cmdTrade(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("trade", flag.ExitOnError)
	contestID := fs.String("contest", "", "contest id")
	symbol := fs.String("symbol", "", "stock symbol")
	qty := fs.Int("qty", 1, "quantity")
	side := fs.String("side", "BUY", "BUY or SELL")
	fs.Parse(args)

	req, err := buildTransactionRequest(*contestID, *symbol, *side, *qty)
	if err != nil {
		return err
	}

	if err := a.contests.SubmitTransaction(ctx, *contestID, req); err != nil {
		return err
	}
	fmt.Printf("%s %d x %s submitted\n", req.TransactionType, req.Quantity, req.StockSymbol)
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	contestID := fs.String("contest", "", "contest id")
	fs.Parse(args)

	if *contestID == "" {
		return fmt.Errorf("-contest is required")
	}

	details, err := a.contests.Details(ctx, *contestID)
	if err != nil {
		return err
	}
	portfolio, err := a.contests.Portfolio(ctx, *contestID)
	if err != nil {
		return err
	}

	rec := leaderboard.NewReconciler()
	if snapshot, err := a.contests.Leaderboard(ctx, *contestID); err == nil && len(snapshot) > 0 {
		rec.Seed(snapshot)
	} else {
		// No snapshot endpoint data: start from our own standing and let
		// the stream fill in the other participants.
		rec.Seed([]domain.LeaderboardEntry{{
			ParticipantID:       portfolio.ParticipantID,
			TotalPortfolioValue: portfolio.TotalPortfolioValue,
		}})
	}

	sub := realtime.NewSubscriber(a.cfg.ContestWSURL, *contestID, a.store, rec, a.cfg.ReconnectBackoff(), a.logger)
	go sub.Run(ctx)

	fmt.Printf("watching %s [%s], ctrl-c to stop\n", details.Name, details.Status)
	printBoard(rec.Snapshot(), portfolio.ParticipantID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				return nil
			}
			printBoard(snapshot, portfolio.ParticipantID)
		}
	}
}

func printBoard(entries []domain.LeaderboardEntry, selfID string) {
	fmt.Println("---")
	for i, e := range entries {
		label := e.Username
		if label == "" {
			label = shortID(e.ParticipantID)
		}
		marker := " "
		if e.ParticipantID == selfID {
			marker = "*"
		}
		fmt.Printf("%s %2d. %-24s %12.2f\n", marker, i+1, label, e.TotalPortfolioValue)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return "player-" + id[:8]
	}
	return "player-" + id
}
