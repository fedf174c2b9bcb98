// Package rooms loads the room allow-list and keeps it fresh while
// the file changes on disk.
package rooms

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Checker answers whether a room identifier is admissible.
type Checker interface {
	IsValid(id string) bool
}

// AllowAny admits every non-empty room id. Used when no allow-list
// file is configured.
type AllowAny struct{}

func (AllowAny) IsValid(id string) bool { return id != "" }

// List is a file-backed allow-list: one room id per line, blank lines
// and #-comments skipped. Reload swaps the set only on a successful
// parse, so a half-written file never empties the list.
type List struct {
	path string

	mu  sync.RWMutex
	ids map[string]struct{}
}

func Load(path string) (*List, error) {
	l := &List{path: path}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *List) IsValid(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Len reports the number of allowed rooms.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

func (l *List) Reload() error {
	ids, err := parseFile(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
	log.Info().Str("module", "rooms").Str("file", l.path).Int("rooms", len(ids)).Msg("allow-list loaded")
	return nil
}

func parseFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open allow-list: %w", err)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read allow-list: %w", err)
	}
	return ids, nil
}

// Watch reloads the list whenever the file is rewritten. Watching the
// parent directory keeps the watch alive across editors that replace
// the file by rename.
func (l *List) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(l.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.Reload(); err != nil {
					log.Warn().Err(err).Str("module", "rooms").Msg("allow-list reload failed, keeping previous")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("module", "rooms").Msg("allow-list watcher error")
			}
		}
	}()
	return nil
}
