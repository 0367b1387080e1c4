package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rybalka.web/internal/config"
	persistlog "rybalka.web/internal/persistence/log"
	"rybalka.web/internal/persistence/indexdb"
	"rybalka.web/internal/persistence/snapshot"
	"rybalka.web/internal/session"
	"rybalka.web/internal/transport/httpapi"
	"rybalka.web/internal/transport/observer"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: fishctl [flags] <command> [args]

commands:
  init                 register (or re-register) the player
  state                show the current state
  cast                 cast the line
  keep                 put the caught fish into the keep-net
  sell                 sell the caught fish
  sellnet <i>          sell fish i from the keep-net
  equip <i>            equip inventory item i
  unequip <slot>       unequip beer|gear|bait|accessory
  buy <name>           buy a shop item
  worms [n]            buy n worms (default 1)
  bag                  upgrade the keep-net
  shop [category]      list the shop (all|worms|beer|gear|bait|accessory)
  top [n]              leaderboard
  achievements         achievements
  history [n]          recent actions from the local index
  health               check the game server
  serve                run the websocket view bridge

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", envString("FISH_CONFIG", ""), "client config yaml (or FISH_CONFIG)")
		apiURL     = flag.String("api", envString("FISH_API_URL", ""), "game server base url (or FISH_API_URL)")
		userID     = flag.String("user", envString("FISH_USER_ID", ""), "user id (or FISH_USER_ID); empty uses the stored identity")
		userName   = flag.String("name", envString("FISH_USER_NAME", ""), "display name (or FISH_USER_NAME)")
		dataDir    = flag.String("data", "", "data directory (overrides config data_dir)")
		listen     = flag.String("listen", "", "view bridge listen address for serve (overrides config view.listen)")
		jsonOut    = flag.Bool("json", false, "print command results as json")
		verbose    = flag.Bool("v", envBool("FISH_VERBOSE", false), "log requests to stderr")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[fishctl] ", log.LstdFlags|log.Lmicroseconds)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[fishctl] config: %v", err)
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *listen != "" {
		cfg.View.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[fishctl] config: %v", err)
	}

	id := identity{UserID: strings.TrimSpace(*userID), Name: strings.TrimSpace(*userName)}
	if id.UserID == "" {
		stored, created, err := loadOrCreateIdentity(identityPath(cfg.DataDir), id.Name, time.Now())
		if err != nil {
			log.Fatalf("[fishctl] identity: %v", err)
		}
		if created {
			logger.Printf("created identity user=%s", stored.UserID)
		}
		if id.Name != "" {
			stored.Name = id.Name
		}
		id = stored
	}
	if id.Name == "" {
		id.Name = "Fisher"
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(appConfig{
		Config:   cfg,
		Identity: id,
		Out:      os.Stdout,
		Logger:   logger,
		JSON:     *jsonOut,
		Serve:    flag.Arg(0) == "serve",
	})
	if err != nil {
		log.Fatalf("[fishctl] %v", err)
	}
	err = a.run(ctx, flag.Args())
	a.close()
	// Action failures were already printed as notifications.
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case session.Classify(err) == session.KindGuard:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}

type appConfig struct {
	Config   config.Config
	Identity identity
	Out      io.Writer
	Logger   *log.Logger
	JSON     bool
	Serve    bool
	// HTTPClient replaces the default client; tests point it at httptest.
	HTTPClient *http.Client
}

type app struct {
	cfg    config.Config
	id     identity
	out    io.Writer
	logger *log.Logger
	json   bool

	api     *httpapi.Client
	store   *session.Store
	ctl     *session.Controller
	journal *persistlog.ActionLog
	index   *indexdb.SQLiteIndex
	view    *observer.Server
}

// controllerRef lets the view bridge exist before the controller it dispatches to.
type controllerRef struct{ ctl *session.Controller }

func (r *controllerRef) Dispatch(ctx context.Context, cmd session.Command) (session.Result, error) {
	return r.ctl.Dispatch(ctx, cmd)
}

func newApp(ac appConfig) (*app, error) {
	cfg := ac.Config
	logger := ac.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &app{
		cfg:    cfg,
		id:     ac.Identity,
		out:    ac.Out,
		logger: logger,
		json:   ac.JSON,
		store:  session.NewStore(),
	}

	var err error
	a.api, err = httpapi.New(httpapi.Config{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.HTTPTimeout(),
		HTTPClient: ac.HTTPClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	var recorders []session.Recorder
	if cfg.Journal {
		a.journal = persistlog.NewActionLog(cfg.DataDir)
		recorders = append(recorders, a.journal)
	}
	if cfg.Index {
		idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "actions.sqlite"))
		if err != nil {
			logger.Printf("index disabled: %v", err)
		} else {
			a.index = idx
			recorders = append(recorders, idx)
		}
	}

	if cached, err := snapshot.ReadSnapshot(snapshot.Path(cfg.DataDir, a.id.UserID)); err == nil {
		if cached.Profile.UserID == a.id.UserID && a.store.Restore(cached) {
			logger.Printf("restored cached snapshot from %s", cached.FetchedAt.Format(time.RFC3339))
		}
	}

	notifiers := session.Fanout{printer{w: a.out}}
	var render session.RenderSink
	ref := &controllerRef{}
	if ac.Serve {
		a.view, err = observer.NewServer(observer.Config{
			UserID:     a.id.UserID,
			Dispatcher: ref,
			View:       a.store.View,
			WormPrice:  cfg.WormPrice,
			Origins:    cfg.View.Origins,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, a.view)
		render = a.view
	}

	a.ctl, err = session.New(session.Config{
		UserID:           a.id.UserID,
		UserName:         a.id.Name,
		API:              a.api,
		Store:            a.store,
		Notifier:         notifiers,
		Render:           render,
		Recorders:        recorders,
		Logger:           logger,
		Rules:            cfg.Rules(),
		CastDisplayDelay: castDelay(cfg, ac.Serve),
	})
	if err != nil {
		return nil, err
	}
	ref.ctl = a.ctl
	return a, nil
}

// castDelay only matters while something keeps rendering; a one-shot command exits.
func castDelay(cfg config.Config, serve bool) time.Duration {
	if !serve {
		return 0
	}
	return cfg.CastDisplayDelay()
}

func (a *app) close() {
	if snap, ok := a.store.Snapshot(); ok && snap.Profile.UserID != "" {
		path := snapshot.Path(a.cfg.DataDir, a.id.UserID)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			a.logger.Printf("snapshot cache: %v", err)
		} else {
			a.index.RecordSnapshot(path, snap)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Printf("journal: %v", err)
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Printf("index: %v", err)
		}
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "history":
		return a.history(ctx, args[1:])
	case "health":
		return a.health(ctx)
	case "serve":
		if err := a.start(ctx); err != nil {
			return err
		}
		return a.serve(ctx)
	}

	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}
	if cmd.Action == session.ActionTop && cmd.Limit <= 0 {
		cmd.Limit = a.cfg.TopLimit
	}
	if cmd.Action != session.ActionInit {
		if err := a.start(ctx); err != nil {
			return err
		}
	}
	res, err := a.ctl.Dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	return a.print(res)
}

// start registers the player (idempotent on the server) and loads the snapshot.
func (a *app) start(ctx context.Context) error {
	_, err := a.ctl.Register(ctx)
	return err
}

func (a *app) history(ctx context.Context, args []string) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: history wants a positive count", errUsage)
		}
		limit = n
	}
	var entries []session.Entry
	if a.index != nil {
		var err error
		if entries, err = a.index.Recent(ctx, a.id.UserID, limit); err != nil {
			return err
		}
	} else {
		all, err := persistlog.ReadActions(a.cfg.DataDir)
		if err != nil {
			return err
		}
		for i := len(all) - 1; i >= 0 && len(entries) < limit; i-- {
			if all[i].UserID == a.id.UserID {
				entries = append(entries, all[i])
			}
		}
	}
	if a.json {
		return writeJSON(a.out, entries)
	}
	printHistory(a.out, entries)
	if a.index != nil {
		counts, err := a.index.OutcomeCounts(ctx, a.id.UserID)
		if err != nil {
			return err
		}
		printOutcomeCounts(a.out, counts)
	}
	return nil
}

func (a *app) health(ctx context.Context) error {
	h, err := a.api.Health(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "server %s unreachable: %v\n", a.cfg.APIBaseURL, err)
		return err
	}
	if a.json {
		return writeJSON(a.out, h)
	}
	fmt.Fprintf(a.out, "server %s: %s, %d players\n", a.cfg.APIBaseURL, h.Status, h.UsersCount)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.View.Listen,
		Handler:           a.view.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	fmt.Fprintf(a.out, "view bridge on ws://%s/view/ws (user=%s api=%s)\n", a.cfg.View.Listen, a.id.UserID, a.cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
