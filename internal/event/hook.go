package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"
)

// Hook runs a shell command when a matching event fires. The event is
// handed to the command through TASKRELAY_EVENT_* environment variables.
type Hook struct {
	Name    string `yaml:"name"`
	Event   Type   `yaml:"event"`
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // in seconds
}

type hooksFile struct {
	Hooks []Hook `yaml:"hooks"`
}

// LoadHooks reads and validates a hook configuration file. Each command
// must parse as POSIX shell; a file that fails validation is rejected
// whole so a live executor never picks up a half-broken config.
func LoadHooks(path string) ([]Hook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hooks file: %w", err)
	}

	var f hooksFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse hooks file: %w", err)
	}

	parser := syntax.NewParser()
	for i, h := range f.Hooks {
		if h.Name == "" {
			return nil, fmt.Errorf("hook %d has no name", i)
		}
		if h.Event == "" {
			return nil, fmt.Errorf("hook %q has no event", h.Name)
		}
		if h.Command == "" {
			return nil, fmt.Errorf("hook %q has no command", h.Name)
		}
		if _, err := parser.Parse(strings.NewReader(h.Command), h.Name); err != nil {
			return nil, fmt.Errorf("hook %q has an invalid command: %w", h.Name, err)
		}
	}
	return f.Hooks, nil
}

// HookExecutor runs configured hooks in response to events. The hook
// set can be swapped at runtime by a config watcher.
type HookExecutor struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewHookExecutor(hooks []Hook) *HookExecutor {
	return &HookExecutor{hooks: hooks}
}

// SetHooks replaces the current hook set.
func (he *HookExecutor) SetHooks(hooks []Hook) {
	he.mu.Lock()
	he.hooks = hooks
	he.mu.Unlock()
}

// Execute runs every hook matching the event. A failing hook is logged
// and does not stop the others.
func (he *HookExecutor) Execute(ctx context.Context, msg *Message) error {
	he.mu.RLock()
	hooks := he.hooks
	he.mu.RUnlock()

	for _, hook := range hooks {
		if hook.Event != msg.Type {
			continue
		}
		if err := he.executeHook(ctx, hook, msg); err != nil {
			slog.ErrorContext(ctx, "hook failed",
				"hook", hook.Name, "event", msg.Type, "error", err)
		}
	}
	return nil
}

func (he *HookExecutor) executeHook(ctx context.Context, hook Hook, msg *Message) error {
	env := []string{
		fmt.Sprintf("TASKRELAY_EVENT_TYPE=%s", msg.Type),
		fmt.Sprintf("TASKRELAY_EVENT_ID=%s", msg.ID),
		fmt.Sprintf("TASKRELAY_EVENT_SOURCE=%s", msg.Source),
		fmt.Sprintf("TASKRELAY_EVENT_TIMESTAMP=%s", msg.Timestamp.Format(time.RFC3339)),
		fmt.Sprintf("TASKRELAY_EVENT_DATA=%s", string(msg.Data)),
	}

	timeout := 30 * time.Second
	if hook.Timeout > 0 {
		timeout = time.Duration(hook.Timeout) * time.Second
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, "sh", "-c", hook.Command)
	cmd.Env = append(os.Environ(), env...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hook command failed: %w, output: %s", err, string(output))
	}
	return nil
}

// RegisterHooks subscribes the executor to every event type.
func RegisterHooks(bus *Bus, executor *HookExecutor) {
	for _, eventType := range AllTypes {
		bus.SubscribeAsync(eventType, fmt.Sprintf("hook-%s", eventType), func(msg *message.Message) error {
			var eventMsg Message
			if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
				return err
			}
			return executor.Execute(msg.Context(), &eventMsg)
		})
	}
}

// WatchHooks reloads the hook config whenever the file changes on disk.
// A reload that fails validation keeps the previous hook set. Blocks
// until ctx is cancelled.
func WatchHooks(ctx context.Context, path string, executor *HookExecutor) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create hooks watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file, which would drop a
	// watch held on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch hooks directory: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			hooks, err := LoadHooks(path)
			if err != nil {
				slog.WarnContext(ctx, "keeping previous hooks after reload failure",
					"path", path, "error", err)
				continue
			}
			executor.SetHooks(hooks)
			slog.InfoContext(ctx, "reloaded hooks", "path", path, "count", len(hooks))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "hooks watcher error", "error", err)
		}
	}
}
