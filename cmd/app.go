package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/logstore"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/spf13/cobra"
)

const connectWait = 5 * time.Second

// app bundles the services one command invocation works with.
type app struct {
	store   *internal.Store
	logs    *logstore.Store
	client  *api.Client
	notes   *notify.Broker
	channel *realtime.Channel

	out    io.Writer
	errOut io.Writer

	printMu     sync.Mutex
	printed     map[int64]bool
	removeNotes func()
	stop        context.CancelFunc
	runDone     chan struct{}
}

// openApp opens the state database and builds the REST client, log store,
// notification broker and realtime channel from the loaded configuration.
// Notifications are echoed to stderr as they are raised.
func openApp(cmd *cobra.Command) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := internal.OpenStore(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	a := &app{
		store:   store,
		notes:   notify.NewBroker(),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		printed: make(map[int64]bool),
	}

	var uploader apiUploader
	a.logs = logstore.New(logstore.WithUploader(&uploader))
	a.logs.SetLevel(a.logLevel())
	a.logs.SetURL("aetherium://" + cmd.Name())
	var saved []logstore.Entry
	if _, err := store.GetJSON(internal.KeyClientLogs, &saved); err != nil {
		internal.LogWarn("Discarding unreadable client log: %v", err)
	}
	a.logs.Restore(saved)

	a.client = api.New(cfg.APIBaseURL(),
		api.WithTimeouts(cfg.GetDefaultTimeout(), cfg.GetTaskCreateTimeout()),
		api.WithCallLogger(a.logs),
	)
	uploader.client = a.client

	a.channel = realtime.New(cfg.WebSocketEndpoint(),
		realtime.WithBackoff(cfg.Backoff()),
		realtime.WithDiagnostics(a.logs),
	)

	a.removeNotes = a.notes.OnChange(a.echo)
	internal.LogDebug("api=%s ws=%s state=%s", a.client.BaseURL(), a.channel.URL(), cfg.StatePath)
	return a, nil
}

// apiUploader defers to the client once it exists; the log store is built
// first so the client can log through it.
type apiUploader struct {
	client *api.Client
}

func (u *apiUploader) SubmitLog(ctx context.Context, entry logstore.Entry) error {
	if u.client == nil {
		return nil
	}
	return u.client.SubmitLog(ctx, entry)
}

// logLevel is the persisted threshold, else the configured one.
func (a *app) logLevel() logstore.Level {
	if v, ok, err := a.store.Get(internal.KeyLogLevel); err == nil && ok {
		if l, err := logstore.ParseLevel(v); err == nil {
			return l
		}
	}
	if l, err := logstore.ParseLevel(cfg.LogLevel); err == nil {
		return l
	}
	return logstore.LevelInfo
}

func (a *app) echo(list []notify.Notification) {
	a.printMu.Lock()
	defer a.printMu.Unlock()
	for _, n := range list {
		if a.printed[n.ID] {
			continue
		}
		a.printed[n.ID] = true
		notify.Fprint(a.errOut, []notify.Notification{n})
	}
}

// quiet stops echoing notifications, for views that draw them themselves.
func (a *app) quiet() {
	if a.removeNotes != nil {
		a.removeNotes()
		a.removeNotes = nil
	}
}

// start runs the realtime channel in the background until close.
func (a *app) start(ctx context.Context) {
	if a.stop != nil {
		return
	}
	runCtx, stop := context.WithCancel(ctx)
	a.stop = stop
	a.runDone = make(chan struct{})
	go func() {
		defer close(a.runDone)
		_ = a.channel.Run(runCtx)
	}()
}

// connect starts the channel and waits up to connectWait for the first
// connection. Commands keep working offline.
func (a *app) connect(ctx context.Context) bool {
	a.start(ctx)

	deadline := time.NewTimer(connectWait)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if a.channel.State() == realtime.Connected {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			internal.PrintWarning(fmt.Sprintf("Realtime channel not connected (%s); live updates unavailable", a.channel.URL()))
			return false
		case <-tick.C:
		}
	}
}

// close stops the channel, persists the client log and releases the store.
func (a *app) close() {
	if a.stop != nil {
		a.stop()
		_ = a.channel.Close()
		<-a.runDone
	} else {
		_ = a.channel.Close()
	}
	a.logs.Close()
	if err := a.store.SetJSON(internal.KeyClientLogs, a.logs.Recent(logstore.MaxEntries)); err != nil {
		internal.LogWarn("Failed to persist client log: %v", err)
	}
	a.quiet()
	a.notes.Close()
	if err := a.store.Close(); err != nil {
		internal.LogWarn("Failed to close state: %v", err)
	}
}

// withApp opens the app around fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.logs.LogNavigation("", cmd.CommandPath(), nil)
	return fn(cmd.Context(), a)
}
