package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/chat"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/taskstore"
)

const (
	promptUser  = "you> "
	labelAI     = "overlax> "
	historyFile = "history"
)

var replCommands = []string{"/add", "/done", "/help", "/quit", "/refresh", "/rm", "/tasks"}

const replHelp = `Commands:
  /tasks        list pending tasks
  /add          add a task
  /done N       mark task N done
  /rm N         delete task N
  /refresh      refetch tasks now
  /quit         leave the chat
Anything else is sent to the assistant. Ctrl-C stops a reply in progress.`

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: `Start an interactive chat. Questions about today's tasks, deadlines and
overlaps are answered locally from your task list; everything else is streamed
from the AI backend. Without a login only the AI chat is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())

			conv := a.newConversation()
			defer conv.session.Close()
			a.prime(ctx, conv)

			var wg sync.WaitGroup
			if conv.poller != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := conv.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Warn("task poller stopped", zap.Error(err))
					}
				}()
			}
			defer wg.Wait()
			defer cancel()

			r := &repl{app: a, conv: conv, out: a.out, line: liner.NewLiner()}
			defer r.line.Close()
			return r.run(ctx)
		},
	}
}

// repl is the interactive chat loop
type repl struct {
	app  *app
	conv *conversation
	out  io.Writer
	line *liner.State

	// listed is the pending list last shown, so /done and /rm can refer to it by number.
	listed []models.Task
}

func (r *repl) run(ctx context.Context) error {
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	})

	historyPath := filepath.Join(filepath.Dir(r.app.configPath), historyFile)
	if f, err := os.Open(historyPath); err == nil {
		_, _ = r.line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o700); err != nil {
			return
		}
		if f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	tr := newTranscript(r.out)
	for _, msg := range r.conv.session.Messages() {
		tr.update(msg)
	}
	tr.finish()
	r.conv.session.OnUpdate(tr.update)

	if !r.app.cfg.Authenticated() {
		fmt.Fprintln(r.out, "Not logged in: task questions are unavailable. Run 'overlax login' to use them.")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.line.Prompt(promptUser)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		r.send(ctx, tr, input)
	}
}

func (r *repl) send(ctx context.Context, tr *transcript, input string) {
	// Ctrl-C while a reply streams cancels the reply, not the chat.
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	outcome, err := r.conv.session.Send(sendCtx, input)
	stop()
	tr.finish()

	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	switch outcome.Kind {
	case chat.OutcomeShowAddForm:
		if err := r.addTask(ctx); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	case chat.OutcomeFailed:
		r.app.logger.Debug("reply failed", zap.Error(outcome.Err))
	}
}

// command runs a slash command and reports whether the chat should end.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/refresh":
		if r.conv.poller == nil {
			return false, errNotLoggedIn
		}
		r.conv.poller.Refresh()
		fmt.Fprintln(r.out, "Refreshing tasks...")
	case "/tasks":
		if err := r.app.requireLogin(); err != nil {
			return false, err
		}
		r.listed = pendingByDeadline(r.conv.store.Tasks())
		printTaskTable(r.out, r.listed, r.app.cfg.Location(), r.app.now())
	case "/add":
		return false, r.addTask(ctx)
	case "/done", "/rm":
		if err := r.app.requireLogin(); err != nil {
			return false, err
		}
		task, err := pickTask(r.listed, arg)
		if err != nil {
			return false, err
		}
		if name == "/done" {
			if _, err := r.conv.client.SetCompleted(ctx, task.ID, true); err != nil {
				return false, err
			}
			r.conv.store.Publish(taskstore.Event{Type: taskstore.EventTaskUpdated, UserID: r.app.cfg.UID, TaskID: task.ID})
			fmt.Fprintf(r.out, "Marked %q done\n", task.Title)
		} else {
			if err := r.conv.client.DeleteTask(ctx, task.ID); err != nil {
				return false, err
			}
			r.conv.store.Publish(taskstore.Event{Type: taskstore.EventTaskDeleted, UserID: r.app.cfg.UID, TaskID: task.ID})
			fmt.Fprintf(r.out, "Deleted %q\n", task.Title)
		}
		r.listed = nil
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

// addTask prompts for the task fields and creates it.
func (r *repl) addTask(ctx context.Context) error {
	if err := r.app.requireLogin(); err != nil {
		return err
	}

	title, err := r.line.Prompt("  title: ")
	if err != nil {
		return errAddCancelled
	}
	category, err := r.line.Prompt("  category (blank for " + models.UncategorizedName + "): ")
	if err != nil {
		return errAddCancelled
	}
	when, err := r.line.Prompt("  deadline (" + deadlineLayout + "): ")
	if err != nil {
		return errAddCancelled
	}

	task, err := r.app.createTask(ctx, r.conv.client, title, category, when)
	if err != nil {
		return err
	}
	r.conv.store.Publish(taskstore.Event{Type: taskstore.EventTaskAdded, UserID: r.app.cfg.UID, TaskID: task.ID})
	fmt.Fprintf(r.out, "Added %q due %s\n", task.Title, formatDeadline(task.Deadline, r.app.cfg.Location()))
	return nil
}

var errAddCancelled = errors.New("add cancelled")

// transcript prints chat messages as they change. Streaming replies arrive as
// growing texts; only the new suffix is written.
type transcript struct {
	mu      sync.Mutex
	out     io.Writer
	current string
	shown   string
}

func newTranscript(out io.Writer) *transcript {
	return &transcript{out: out}
}

// update prints msg. User messages were typed at the prompt and are skipped.
func (t *transcript) update(msg models.ChatMessage) {
	if msg.Sender == models.SenderUser {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case msg.ID != t.current:
		if t.current != "" {
			fmt.Fprintln(t.out)
		}
		fmt.Fprint(t.out, labelAI+msg.Text)
		t.current = msg.ID
	case strings.HasPrefix(msg.Text, t.shown):
		fmt.Fprint(t.out, msg.Text[len(t.shown):])
	default:
		// Replaced text, e.g. the failure message after a partial reply.
		fmt.Fprint(t.out, "\n"+labelAI+msg.Text)
	}
	t.shown = msg.Text
}

// finish ends the current message line.
func (t *transcript) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != "" {
		fmt.Fprintln(t.out)
	}
	t.current = ""
	t.shown = ""
}
