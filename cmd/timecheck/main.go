// Command timecheck tracks time against tasks locally and reconciles
// with the remote authority when connectivity allows. All mutations go
// through the recorder so they queue in the outbox; sync runs on demand
// or continuously in daemon mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/micvant/timecheck/internal/authority"
	"github.com/micvant/timecheck/internal/config"
	"github.com/micvant/timecheck/internal/credential"
	"github.com/micvant/timecheck/internal/logger"
	"github.com/micvant/timecheck/internal/projection"
	"github.com/micvant/timecheck/internal/recorder"
	"github.com/micvant/timecheck/internal/store"
	syncengine "github.com/micvant/timecheck/internal/sync"
)

const usage = `usage: timecheck <command> [args]

  register <email> <password>   create an account and sign in
  login    <email> <password>   sign in
  logout                        stop running timers and sign out

  add   <title> [description]   create a task
  rm    <task-id>               delete a task (tombstone)
  start <task-id> [comment]     start the task's timer
  stop  <task-id>               stop the task's running timer
  clear <task-id>               delete all time entries of a task
  watch <task-id>               live elapsed time for a task

  list                          list tasks with tracked time
  entries [task-id]             list time entries
  status                        show sync cursor and pending changes

  sync                          run one sync cycle now
  daemon                        sync continuously until interrupted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "timecheck: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "timecheck: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, log: log}
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "timecheck: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired collaborators for one invocation.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	client := authority.NewClient(a.cfg.APIBase)

	// Auth commands do not need the local store.
	switch command {
	case "register", "login":
		return a.authenticate(ctx, client, command, args)
	}

	s, err := store.NewSQLiteStore(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.PurgeOrphans(ctx); err != nil {
		return err
	}

	rec := recorder.New(s)
	engine := syncengine.NewEngine(s, client, credential.Keyring{}, a.log)

	switch command {
	case "logout":
		return a.logout(ctx, rec)
	case "add":
		return a.addTask(ctx, rec, args)
	case "rm":
		return a.withOwner(func(owner string) error {
			return rec.DeleteTask(ctx, owner, arg(args, 0))
		})
	case "start":
		return a.startTimer(ctx, rec, args)
	case "stop":
		return a.stopTimer(ctx, s, rec, args)
	case "clear":
		return a.withOwner(func(owner string) error {
			return rec.ClearTaskTime(ctx, owner, arg(args, 0))
		})
	case "watch":
		return a.watchTask(ctx, s, args)
	case "list":
		return a.listTasks(ctx, s)
	case "entries":
		return a.listEntries(ctx, s, args)
	case "status":
		return a.status(ctx, s)
	case "sync":
		return a.syncOnce(ctx, engine)
	case "daemon":
		return a.daemon(ctx, engine)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) authenticate(ctx context.Context, client *authority.Client, command string, args []string) error {
	if len(args) < 2 {
		return errors.New("email and password are required")
	}
	email, password := args[0], args[1]

	var (
		token string
		err   error
	)
	if command == "register" {
		token, err = client.Register(ctx, email, password)
	} else {
		token, err = client.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}

	if err := credential.Store(email, token); err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", email)
	return nil
}

// logout stops every running timer first so nothing keeps accumulating
// against an account nobody is signed into, then clears the credential.
func (a *app) logout(ctx context.Context, rec *recorder.Recorder) error {
	owner, err := credential.Account()
	if errors.Is(err, credential.ErrNoCredential) {
		return nil
	}
	if err != nil {
		return err
	}

	stopped, err := rec.SweepRunning(ctx, owner)
	if err != nil {
		return err
	}
	if stopped > 0 {
		fmt.Printf("stopped %d running timer(s)\n", stopped)
	}

	return credential.Clear()
}

func (a *app) addTask(ctx context.Context, rec *recorder.Recorder, args []string) error {
	if len(args) < 1 {
		return errors.New("task title is required")
	}
	return a.withOwner(func(owner string) error {
		task, err := rec.CreateTask(ctx, owner, args[0], arg(args, 1))
		if err != nil {
			return err
		}
		fmt.Printf("created %s  %s\n", task.ID, task.Title)
		return nil
	})
}

func (a *app) startTimer(ctx context.Context, rec *recorder.Recorder, args []string) error {
	if len(args) < 1 {
		return errors.New("task id is required")
	}
	return a.withOwner(func(owner string) error {
		entry, err := rec.StartTimer(ctx, owner, args[0], arg(args, 1))
		if err != nil {
			return err
		}
		fmt.Printf("timer started at %s\n", entry.StartedAt.Local().Format("15:04:05"))
		return nil
	})
}

func (a *app) stopTimer(ctx context.Context, s store.Store, rec *recorder.Recorder, args []string) error {
	if len(args) < 1 {
		return errors.New("task id is required")
	}
	return a.withOwner(func(owner string) error {
		running := true
		open, err := s.GetTimeEntries(ctx, store.EntryFilter{
			Owner: owner, TaskID: args[0], Running: &running,
		})
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return recorder.ErrNotRunning
		}

		for i := range open {
			entry, err := rec.StopTimer(ctx, owner, open[i].ID)
			if err != nil {
				return err
			}
			fmt.Printf("tracked %s\n",
				projection.FormatDuration(projection.EntryDuration(entry, time.Now())))
		}
		return nil
	})
}

func (a *app) watchTask(ctx context.Context, s store.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("task id is required")
	}
	return a.withOwner(func(owner string) error {
		taskID := args[0]
		entries, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner, TaskID: taskID})
		if err != nil {
			return err
		}

		projection.Watch(ctx, time.Second, func(now time.Time) {
			d := projection.TaskDuration(entries, taskID, now)
			fmt.Printf("\r%s ", projection.FormatDuration(d))
		})
		fmt.Println()
		return nil
	})
}

func (a *app) listTasks(ctx context.Context, s store.Store) error {
	return a.withOwner(func(owner string) error {
		tasks, err := s.GetTasks(ctx, store.TaskFilter{Owner: owner})
		if err != nil {
			return err
		}
		entries, err := s.GetTimeEntries(ctx, store.EntryFilter{Owner: owner})
		if err != nil {
			return err
		}

		now := time.Now()
		for _, t := range tasks {
			d := projection.TaskDuration(entries, t.ID, now)
			fmt.Printf("%s  %s  %s\n", t.ID, projection.FormatDuration(d), t.Title)
			if t.Description != "" {
				fmt.Printf("    %s\n", t.Description)
			}
		}
		return nil
	})
}

func (a *app) listEntries(ctx context.Context, s store.Store, args []string) error {
	return a.withOwner(func(owner string) error {
		entries, err := s.GetTimeEntries(ctx, store.EntryFilter{
			Owner: owner, TaskID: arg(args, 0),
		})
		if err != nil {
			return err
		}

		now := time.Now()
		for i := range entries {
			e := &entries[i]
			state := "done"
			if e.Running() {
				state = "running"
			}
			fmt.Printf("%s  %s  %s  %s  %s\n",
				e.ID, e.StartedAt.Local().Format("02.01.2006 15:04"),
				projection.FormatDuration(projection.EntryDuration(e, now)),
				state, e.Comment)
		}
		return nil
	})
}

func (a *app) status(ctx context.Context, s store.Store) error {
	return a.withOwner(func(owner string) error {
		cursor, err := s.GetCursor(ctx, owner)
		if err != nil {
			return err
		}
		outbox, err := s.GetOutbox(ctx, owner)
		if err != nil {
			return err
		}

		if cursor == "" {
			cursor = "never"
		}
		fmt.Printf("account:  %s\nlast sync: %s\npending:   %d change(s)\n",
			owner, cursor, len(outbox))
		return nil
	})
}

func (a *app) syncOnce(ctx context.Context, engine *syncengine.Engine) error {
	return a.withOwner(func(owner string) error {
		cursor, err := engine.Sync(ctx, owner)
		if err != nil {
			return err
		}
		fmt.Printf("synced, cursor %s\n", cursor)
		return nil
	})
}

func (a *app) daemon(ctx context.Context, engine *syncengine.Engine) error {
	return a.withOwner(func(owner string) error {
		interval := time.Duration(a.cfg.SyncIntervalSec) * time.Second
		trigger := syncengine.NewTrigger(engine, owner, interval, a.log)

		a.log.Info("sync daemon running",
			zap.String("owner", owner),
			zap.Duration("interval", interval),
		)
		trigger.Kick()
		trigger.Run(ctx)
		return nil
	})
}

// withOwner resolves the signed-in account and runs fn against it.
func (a *app) withOwner(fn func(owner string) error) error {
	owner, err := credential.Account()
	if errors.Is(err, credential.ErrNoCredential) {
		return errors.New("not signed in; run `timecheck login` first")
	}
	if err != nil {
		return err
	}
	return fn(owner)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
