package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/credential"
	"github.com/Dhanuzh/betterprompt/internal/history"
	"github.com/Dhanuzh/betterprompt/internal/optimizer"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/storage"
	"github.com/Dhanuzh/betterprompt/internal/template"
	"github.com/Dhanuzh/betterprompt/internal/theme"
)

// app wires the packages together for one command invocation.
type app struct {
	cfg        *config.Config
	store      storage.Store
	registry   *provider.Registry
	creds      *credential.Store
	templates  *template.Manager
	history    *history.Manager
	dispatcher *optimizer.Dispatcher
	logger     *slog.Logger
	styles     theme.Styles
	out        io.Writer
	errOut     io.Writer
	verbose    bool

	// storedKeys are the keys entered through "auth set" and kept in vault;
	// keySource says where each active key came from ("stored" or "env").
	vault      credential.Vault
	storedKeys map[string]string
	keySource  map[provider.ID]string
}

// errorHandlingSettings is persisted under storage.KeyErrorHandlingSettings.
type errorHandlingSettings struct {
	Timeout    int `json:"timeout"` // seconds
	MaxRetries int `json:"maxRetries"`
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{
		cfg:       cfg,
		store:     store,
		registry:  provider.NewRegistry(),
		logger:    logger,
		styles:    stylesFor(cfg.Theme, cmd.OutOrStdout()),
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		keySource: make(map[provider.ID]string),
	}
	a.verbose, _ = cmd.Flags().GetBool("verbose")

	if err := a.initRegistry(); err != nil {
		store.Close()
		return nil, err
	}
	if err := a.initCredentials(cmd); err != nil {
		store.Close()
		return nil, err
	}
	if a.templates, err = template.NewManager(store); err != nil {
		store.Close()
		return nil, err
	}
	if a.history, err = history.NewManager(store); err != nil {
		store.Close()
		return nil, err
	}
	if err := a.initDispatcher(); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) initRegistry() error {
	for _, id := range provider.IDs() {
		if u := a.cfg.BaseURL(id); u != "" {
			if err := a.registry.SetEndpoint(id, u); err != nil {
				return err
			}
		}
	}

	var custom map[string][]provider.Model
	if _, err := a.store.Get(storage.KeyCustomModels, &custom); err != nil {
		return err
	}
	for name, models := range custom {
		for _, m := range models {
			if err := a.registry.AddCustomModel(provider.ID(name), m.ID, m.Name); err != nil {
				a.logger.Warn("skipping stored custom model", "provider", name, "model", m.ID, "error", err)
			}
		}
	}
	return nil
}

func (a *app) saveCustomModels() error {
	custom := make(map[string][]provider.Model)
	for _, d := range a.registry.List() {
		if models := a.registry.CustomModels(d.ID); len(models) > 0 {
			custom[string(d.ID)] = models
		}
	}
	return a.store.Set(storage.KeyCustomModels, custom)
}

func (a *app) initCredentials(cmd *cobra.Command) error {
	active, err := provider.ParseID(a.cfg.Provider)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("provider") {
		var stored string
		if _, err := a.store.Get(storage.KeyCurrentProvider, &stored); err != nil {
			return err
		}
		if id := provider.ID(stored); id.Valid() {
			active = id
		}
	}
	a.creds = credential.NewStore(active)

	if a.vault, err = credential.OpenVault(a.cfg.KeyStore, a.store); err != nil {
		return err
	}
	if a.storedKeys, err = a.vault.Load(); err != nil {
		return err
	}
	a.restoreKeys(a.storedKeys, "stored")

	fromEnv := make(map[string]string)
	for _, id := range provider.IDs() {
		if k := a.cfg.APIKey(id); k != "" {
			fromEnv[string(id)] = k
		}
	}
	a.restoreKeys(fromEnv, "env")
	return nil
}

// restoreKeys loads keys into the credential store and records source for
// each accepted key. Malformed keys are logged and left out.
func (a *app) restoreKeys(keys map[string]string, source string) {
	rejected := a.creds.Restore(keys)
	for _, id := range rejected {
		a.logger.Warn("ignoring malformed API key", "provider", id, "source", source)
	}
	for name, key := range keys {
		id := provider.ID(name)
		if k, ok := a.creds.APIKey(id); ok && k == key {
			a.keySource[id] = source
		}
	}
}

// saveCredentials persists the keys entered through the CLI. Keys that came
// from the environment are never written.
func (a *app) saveCredentials() error {
	return a.vault.Save(a.storedKeys)
}

func (a *app) initDispatcher() error {
	var eh errorHandlingSettings
	if _, err := a.store.Get(storage.KeyErrorHandlingSettings, &eh); err != nil {
		return err
	}
	timeout, retries := a.cfg.Timeout, a.cfg.MaxRetries
	if eh.Timeout > 0 {
		timeout = eh.Timeout
	}
	if eh.MaxRetries > 0 {
		retries = eh.MaxRetries
	}

	a.dispatcher = optimizer.New(a.registry, a.creds,
		optimizer.WithLogger(a.logger),
		optimizer.WithRateLimit(a.cfg.RateLimit),
	)
	return a.dispatcher.SetConfig(optimizer.SettingsUpdate{TimeoutSeconds: &timeout, MaxRetries: &retries})
}

func (a *app) saveErrorHandling() error {
	s := a.dispatcher.Settings()
	return a.store.Set(storage.KeyErrorHandlingSettings, errorHandlingSettings{
		Timeout:    int(s.Timeout / time.Second),
		MaxRetries: s.MaxRetries,
	})
}

// multiRound returns the stored multi-round settings, falling back to config.
func (a *app) multiRound() (optimizer.MultiRound, error) {
	mr := optimizer.MultiRound{
		Enabled: a.cfg.MultiRound.Enabled,
		Rounds:  a.cfg.MultiRound.Rounds,
		Depth:   a.cfg.MultiRound.Depth,
	}
	if _, err := a.store.Get(storage.KeyMultiRoundSettings, &mr); err != nil {
		return mr, err
	}
	return mr, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		cfg.Provider = p
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		cfg.Model = m
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		cfg.LogLevel = l
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func stylesFor(name string, w io.Writer) theme.Styles {
	f, ok := w.(*os.File)
	if name == "none" || !ok || !term.IsTerminal(int(f.Fd())) {
		return theme.Plain()
	}
	t, err := theme.Get(name)
	if err != nil {
		t = theme.Dark()
	}
	return t.Styles()
}

func stderrStyles() theme.Styles {
	return stylesFor("dark", os.Stderr)
}
