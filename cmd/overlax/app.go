package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/backend"
	"github.com/overlax/overlax/internal/chat"
	"github.com/overlax/overlax/internal/clientconfig"
	"github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/stream"
	"github.com/overlax/overlax/internal/taskstore"
)

// manualRefreshEvery bounds refreshes asked for in chat or caused by local edits.
const manualRefreshEvery = 3 * time.Second

var errNotLoggedIn = errors.New("not logged in, run 'overlax login' first")

// app is the state shared by every command
type app struct {
	out        io.Writer
	configPath string
	debug      bool

	cfg    *clientconfig.Config
	logger *zap.Logger
	now    func() time.Time
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, now: time.Now}

	root := &cobra.Command{
		Use:           "overlax",
		Short:         "Overlax task assistant in the terminal",
		Long:          "Chat with the Overlax assistant about your deadlines and manage your tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync(a.logger)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/overlax/config.json)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log debug output to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newChatCmd(a),
		newAskCmd(a),
		newTasksCmd(a),
		newHistoryCmd(a),
		newPressureCmd(a),
		newTaskCmd(a),
		newCategoriesCmd(a),
		newTelegramCmd(a),
	)
	return root
}

func (a *app) load() error {
	if a.configPath == "" {
		path, err := clientconfig.DefaultPath()
		if err != nil {
			return err
		}
		a.configPath = path
	}

	cfg, err := clientconfig.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = zap.NewNop()
	if a.debug {
		l, err := logger.NewDevelopmentLogger(true)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = l
	}
	return nil
}

func (a *app) requireLogin() error {
	if !a.cfg.Authenticated() {
		return errNotLoggedIn
	}
	return nil
}

func (a *app) backend() *backend.Client {
	return backend.NewClient(a.cfg.APIURL, a.cfg.TokenSource())
}

// conversation is a chat session wired to a live task snapshot
type conversation struct {
	session *chat.Session
	store   *taskstore.Store
	poller  *taskstore.Poller
	client  *backend.Client
}

// newConversation builds the session. Signed-in users get a poller, which the
// caller runs; anonymous sessions route against an empty snapshot.
func (a *app) newConversation() *conversation {
	client := a.backend()
	store := taskstore.NewStore()

	routerOpts := []assistant.Option{assistant.WithLocation(a.cfg.Location()), assistant.WithClock(a.now)}

	var poller *taskstore.Poller
	if a.cfg.Authenticated() {
		poller = taskstore.NewPoller(client, store, taskstore.PollerConfig{
			UserID:     a.cfg.UID,
			Interval:   a.cfg.Poll(),
			ManualRate: rate.Every(manualRefreshEvery),
		}, a.logger)
		routerOpts = append(routerOpts, assistant.WithRefresher(poller))
	}

	streamer := stream.NewClient(a.cfg.APIURL, a.cfg.TokenSource(), &stream.Assembler{
		FallbackRaw: a.cfg.RawFallback,
		Logger:      a.logger,
	})

	session := chat.NewSession(assistant.NewRouter(routerOpts...), streamer, store,
		chat.WithIdentity(a.cfg.UID, a.cfg.Authenticated()),
		chat.WithLogger(a.logger),
	)
	return &conversation{session: session, store: store, poller: poller, client: client}
}

// loadOnce fills the store with one fetch, for commands that do not poll.
func (c *conversation) loadOnce(ctx context.Context, uid string) error {
	if c.poller == nil {
		return nil
	}
	tasks, err := c.client.Tasks(ctx, uid)
	if err != nil {
		return err
	}
	c.store.Replace(tasks, nil)
	return nil
}

// prime fills the store before the first prompt so early local answers see
// the real task list. On failure the store stays empty until the poller's
// next fetch.
func (a *app) prime(ctx context.Context, conv *conversation) {
	if conv.poller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := conv.loadOnce(ctx, a.cfg.UID); err != nil {
		a.logger.Warn("initial task load failed", zap.Error(err))
	}
}

// fetchTasks loads the signed-in user's tasks.
func (a *app) fetchTasks(ctx context.Context) ([]models.Task, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	return a.backend().Tasks(ctx, a.cfg.UID)
}
