package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rexliu/ksdk/pkg/api"
	"github.com/rexliu/ksdk/pkg/client"
	"github.com/rexliu/ksdk/pkg/config"
	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/decode"
	"github.com/rexliu/ksdk/pkg/logging"
	"github.com/rexliu/ksdk/pkg/params"
	"github.com/rexliu/ksdk/pkg/session"
	"github.com/rexliu/ksdk/pkg/storage/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = initCommand(os.Args[2:])
	case "diag":
		err = diagCommand(os.Args[2:])
	case "session":
		err = sessionCommand(os.Args[2:])
	case "call":
		err = callCommand(os.Args[2:])
	case "serve-url":
		err = serveURLCommand(os.Args[2:])
	case "history":
		err = historyCommand(os.Args[2:])
	case "version":
		fmt.Println("ksdk CLI")
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: ksdk <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init                 Write a profile config (config.toml or config.yaml)")
	fmt.Println("  diag                 Print the effective profile settings")
	fmt.Println("  session new|inspect  Mint a session token or decode a v2 token")
	fmt.Println("  call                 Run one service action, or several with -batch")
	fmt.Println("  serve-url            Print a signed media.serve URL")
	fmt.Println("  history              List journaled calls or print a stored body")
	fmt.Println("  version              Print CLI version")
}

type env struct {
	path    string
	profile *config.Profile
	logger  *logging.Logger
	store   *sqlite.Store
	api     *api.API
}

// setup loads the profile and builds a client with logging and the journal
// wired in.
func setup(ctx context.Context, path string) (*env, error) {
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, err
	}
	logger := logging.New("ksdk")
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, err
	}
	e := &env{path: resolved, profile: cfg, logger: logger}

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = logger
	if cfg.Journal.Enabled {
		store, err := sqlite.Open(cfg.Journal.DBPath, sqlite.Options{
			JournalMode: cfg.Journal.JournalMode,
			Synchronous: cfg.Journal.Synchronous,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			store.Close()
			return nil, err
		}
		e.store = store
		clientCfg.Journal = store
	}
	c, err := client.New(clientCfg, api.NewRegistry())
	if err != nil {
		e.close()
		return nil, err
	}
	c.SetClientConfiguration(cfg.ClientParams())
	if cfg.Session.PartnerID > 0 {
		c.SetRequestConfiguration(map[string]any{"partnerId": cfg.Session.PartnerID})
	}
	e.api = api.New(c)
	return e, nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.logger != nil {
		e.logger.Sync()
	}
}

// mintSession builds a token from the profile's session section.
func (e *env) mintSession() (string, error) {
	s := e.profile.Session
	secret, err := s.ResolveSecret()
	if err != nil {
		return "", err
	}
	return e.api.Session().Local(secret, s.UserID, session.Type(s.Type), s.PartnerID, s.Expiry, s.Privileges, s.Version == 2)
}

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("profile", "./_dev_profile", "Profile directory")
	name := fs.String("name", "dev", "Profile name")
	useYAML := fs.Bool("yaml", false, "Write config.yaml instead of config.toml")
	serviceURL := fs.String("url", client.DefaultServiceURL, "Service URL")
	format := fs.String("format", "xml", "Response format (json|xml)")
	partnerID := fs.Int("partner", 0, "Partner id")
	secret := fs.String("secret", "", "Partner secret")
	journal := fs.Bool("journal", false, "Enable the call journal")
	force := fs.Bool("force", false, "Overwrite existing config if present")
	_ = fs.Parse(args)

	file := "config.toml"
	if *useYAML {
		file = "config.yaml"
	}
	path := filepath.Join(*dir, file)
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use -force to overwrite)", path)
	}
	cfg := config.Default()
	cfg.ProfileName = *name
	cfg.Service.URL = *serviceURL
	cfg.Service.Format = *format
	cfg.Session.PartnerID = *partnerID
	cfg.Session.Secret = *secret
	if *journal {
		cfg.Journal.Enabled = true
		cfg.Journal.DBPath = filepath.Join(*dir, "journal.db")
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("initialized profile %s at %s\n", cfg.ProfileName, path)
	return nil
}

func diagCommand(args []string) error {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	path := fs.String("config", "", "Config file (defaults to $KSDK_CONFIG or the user config dir)")
	_ = fs.Parse(args)

	resolved, err := config.ResolvePath(*path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return err
	}
	fmt.Printf("profile:     %s\n", cfg.ProfileName)
	fmt.Printf("config:      %s\n", resolved)
	fmt.Printf("service url: %s\n", cfg.Service.URL)
	fmt.Printf("format:      %s\n", cfg.Service.Format)
	fmt.Printf("timeout:     %ds\n", cfg.Service.TimeoutSeconds)
	if cfg.Service.Proxy.Host != "" {
		fmt.Printf("proxy:       %s %s:%d\n", cfg.Service.Proxy.Type, cfg.Service.Proxy.Host, cfg.Service.Proxy.Port)
	}
	fmt.Printf("partner id:  %d\n", cfg.Session.PartnerID)
	fmt.Printf("ks version:  v%d\n", cfg.Session.Version)
	if cfg.Logging.FilePath != "" {
		fmt.Printf("log file:    %s\n", cfg.Logging.FilePath)
	}
	if cfg.Journal.Enabled {
		fmt.Printf("journal:     %s\n", cfg.Journal.DBPath)
	} else {
		fmt.Println("journal:     disabled")
	}
	return nil
}

func sessionCommand(args []string) error {
	if len(args) == 0 {
		return errors.New("expected new or inspect")
	}
	switch args[0] {
	case "new":
		fs := flag.NewFlagSet("session new", flag.ExitOnError)
		path := fs.String("config", "", "Config file")
		userID := fs.String("user", "", "Override session.userId")
		typ := fs.Int("type", -1, "Override session.type (0 user, 2 admin)")
		expiry := fs.Int64("expiry", 0, "Override session.expiry in seconds")
		privileges := fs.String("privileges", "", "Override session.privileges")
		version := fs.Int("v", 0, "Override session.version (1|2)")
		remote := fs.Bool("remote", false, "Ask the server (session.start) instead of minting locally")
		_ = fs.Parse(args[1:])

		ctx := context.Background()
		e, err := setup(ctx, *path)
		if err != nil {
			return err
		}
		defer e.close()
		s := &e.profile.Session
		if *userID != "" {
			s.UserID = *userID
		}
		if *typ >= 0 {
			s.Type = *typ
		}
		if *expiry > 0 {
			s.Expiry = *expiry
		}
		if *privileges != "" {
			s.Privileges = *privileges
		}
		if *version != 0 {
			s.Version = *version
		}
		var ks string
		if *remote {
			secret, err := s.ResolveSecret()
			if err != nil {
				return err
			}
			ks, err = e.api.Session().Start(ctx, secret, s.UserID, session.Type(s.Type), s.PartnerID, s.Expiry, s.Privileges)
			if err != nil {
				return err
			}
		} else if ks, err = e.mintSession(); err != nil {
			return err
		}
		fmt.Println(ks)
		return nil
	case "inspect":
		fs := flag.NewFlagSet("session inspect", flag.ExitOnError)
		path := fs.String("config", "", "Config file")
		_ = fs.Parse(args[1:])
		if fs.NArg() != 1 {
			return errors.New("expected a v2 token argument")
		}
		resolved, err := config.ResolvePath(*path)
		if err != nil {
			return err
		}
		cfg, err := config.Load(resolved)
		if err != nil {
			return err
		}
		secret, err := cfg.Session.ResolveSecret()
		if err != nil {
			return err
		}
		tok, err := session.DecodeV2(secret, fs.Arg(0))
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"partnerId":  tok.PartnerID,
			"userId":     tok.UserID,
			"type":       int(tok.Type),
			"expiry":     tok.Expiry.UTC().Format(time.RFC3339),
			"expired":    tok.Expired(),
			"privileges": tok.Privileges,
		})
	default:
		return fmt.Errorf("unknown session subcommand %q", args[0])
	}
}

// multiFlag collects repeated -param / -file values.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func callCommand(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	path := fs.String("config", "", "Config file")
	service := fs.String("service", "", "Service name, e.g. media")
	action := fs.String("action", "", "Action name, e.g. list")
	expect := fs.String("expect", "", "Expected result type, e.g. MediaListResponse")
	ks := fs.String("ks", "", "Session token (minted from the profile when empty)")
	raw := fs.Bool("raw", false, "Print the raw response body")
	var paramFlags, fileFlags multiFlag
	fs.Var(&paramFlags, "param", "Parameter key=value; dotted keys nest (filter.statusIn=2). Repeatable")
	fs.Var(&fileFlags, "file", "Upload key=path. Repeatable")
	_ = fs.Parse(args)
	if *service == "" || *action == "" {
		return errors.New("-service and -action are required")
	}

	p, err := parseParams(paramFlags)
	if err != nil {
		return err
	}
	files, err := parseFiles(fileFlags)
	if err != nil {
		return err
	}

	ctx := context.Background()
	e, err := setup(ctx, *path)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.authenticate(*ks); err != nil {
		return err
	}

	c := e.api.Client()
	if _, err := c.QueueCall(*service, *action, *expect, p, files); err != nil {
		return err
	}
	if *raw {
		body, err := c.Flush(ctx)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	}
	result, err := c.Do(ctx)
	if err != nil {
		if apiErr, ok := core.AsAPIError(err); ok {
			return printJSON(apiErr)
		}
		return err
	}
	return printJSON(result)
}

func (e *env) authenticate(ks string) error {
	if ks == "" && e.profile.Session.Secret == "" && e.profile.Session.SecretEnv == "" {
		return nil
	}
	if ks == "" {
		var err error
		if ks, err = e.mintSession(); err != nil {
			return err
		}
	}
	e.api.Client().SetKS(ks)
	return nil
}

// parseParams turns key=value pairs into a parameter tree. true and false are
// sent as booleans and null clears the field.
func parseParams(pairs []string) (*params.Params, error) {
	root := params.New()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", pair)
		}
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, _ := node.Lookup(part)
			next, isParams := child.(*params.Params)
			if !isParams {
				next = params.New()
				node.Set(part, next)
			}
			node = next
		}
		node.Add(parts[len(parts)-1], literal(value))
	}
	return root, nil
}

func literal(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return core.Null
	}
	return value
}

func parseFiles(pairs []string) (map[string]client.File, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	files := make(map[string]client.File, len(pairs))
	for _, pair := range pairs {
		key, path, ok := strings.Cut(pair, "=")
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("invalid file %q, expected key=path", pair)
		}
		files[key] = client.File{Path: path}
	}
	return files, nil
}

func serveURLCommand(args []string) error {
	fs := flag.NewFlagSet("serve-url", flag.ExitOnError)
	path := fs.String("config", "", "Config file")
	entryID := fs.String("entry", "", "Entry id")
	flavor := fs.Int("flavor", -1, "Flavor params id")
	ks := fs.String("ks", "", "Session token (minted from the profile when empty)")
	_ = fs.Parse(args)
	if *entryID == "" {
		return errors.New("-entry is required")
	}

	e, err := setup(context.Background(), *path)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.authenticate(*ks); err != nil {
		return err
	}
	url, err := e.api.Media().ServeURL(*entryID, *flavor)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func historyCommand(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	path := fs.String("config", "", "Config file")
	limit := fs.Int("limit", 20, "Number of entries")
	bodyID := fs.String("body", "", "Print the stored response body of this entry")
	decoded := fs.Bool("decode", false, "With -body, print the parsed body as JSON")
	keep := fs.Int("prune", -1, "Keep only the newest N entries")
	_ = fs.Parse(args)

	ctx := context.Background()
	e, err := setup(ctx, *path)
	if err != nil {
		return err
	}
	defer e.close()
	if e.store == nil {
		return errors.New("journal disabled in profile")
	}

	switch {
	case *keep >= 0:
		removed, err := e.store.Prune(ctx, *keep)
		if err != nil {
			return err
		}
		e.logger.Infow("journal pruned", "removed", removed, "kept", *keep)
		return nil
	case *bodyID != "":
		body, err := e.store.Body(ctx, *bodyID)
		if err != nil {
			return err
		}
		if !*decoded {
			fmt.Println(string(body))
			return nil
		}
		format := e.api.Client().Config().Format
		node, err := decode.Parse(body, format)
		if err != nil {
			return err
		}
		return printJSON(node)
	}

	records, err := e.store.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		status := fmt.Sprint(rec.Status)
		if rec.Error != "" {
			status = rec.Error
		}
		created := time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339)
		fmt.Printf("%s  %s  %-24s  %5dms  %s\n", rec.ID, created, strings.Join(rec.Actions, ","), rec.DurationMS, status)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
