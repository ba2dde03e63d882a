package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"modelgate/internal/common/fsutil"
)

// catalogFile is the on-disk alias table:
//
//	models:
//	  main.default.support_bot:
//	    aliases:
//	      champion: "3"
type catalogFile struct {
	Models map[string]struct {
		Aliases map[string]string `yaml:"aliases"`
	} `yaml:"models"`
}

// FileCatalog reads aliases from a YAML file on every lookup and uses fsnotify
// to signal edits so watchers react before their next poll.
type FileCatalog struct {
	path string
	log  zerolog.Logger

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFileCatalog starts watching the directory containing path. If the OS
// watcher cannot be created the catalog still works by polling.
func NewFileCatalog(path string, log zerolog.Logger) (*FileCatalog, error) {
	p, err := fsutil.LocalPath(path)
	if err != nil {
		return nil, fmt.Errorf("catalog path: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("catalog path: %w", err)
	}
	fc := &FileCatalog{
		path:   abs,
		log:    log,
		subs:   make(map[chan struct{}]struct{}),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("catalog: fsnotify unavailable, polling only")
		close(fc.doneCh)
		return fc, nil
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		log.Warn().Err(err).Str("path", abs).Msg("catalog: cannot watch directory, polling only")
		close(fc.doneCh)
		return fc, nil
	}
	fc.watcher = w
	go fc.watch()
	return fc, nil
}

func (fc *FileCatalog) watch() {
	defer close(fc.doneCh)
	for {
		select {
		case <-fc.stopCh:
			return
		case ev, ok := <-fc.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fc.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fc.notify()
		case err, ok := <-fc.watcher.Errors:
			if !ok {
				return
			}
			fc.log.Warn().Err(err).Msg("catalog: watcher error")
		}
	}
}

// notify wakes every subscriber. A subscriber that has not consumed its
// previous signal keeps that one; signals carry no payload.
func (fc *FileCatalog) notify() {
	fc.subMu.Lock()
	defer fc.subMu.Unlock()
	for ch := range fc.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe implements Notifier.
func (fc *FileCatalog) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	fc.subMu.Lock()
	fc.subs[ch] = struct{}{}
	fc.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			fc.subMu.Lock()
			delete(fc.subs, ch)
			fc.subMu.Unlock()
		})
	}
}

// Version implements Catalog.
func (fc *FileCatalog) Version(_ context.Context, name, alias string) (string, error) {
	b, err := os.ReadFile(fc.path)
	if err != nil {
		return "", err
	}
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return "", fmt.Errorf("parse %s: %w", fc.path, err)
	}
	m, ok := cf.Models[name]
	if !ok {
		return "", fmt.Errorf("model %q not in catalog", name)
	}
	v, ok := m.Aliases[alias]
	if !ok {
		return "", fmt.Errorf("alias %q not set for %q", alias, name)
	}
	return v, nil
}

// Close stops the file watcher.
func (fc *FileCatalog) Close() error {
	var err error
	fc.stopOnce.Do(func() {
		close(fc.stopCh)
		if fc.watcher != nil {
			err = fc.watcher.Close()
		}
		<-fc.doneCh
	})
	return err
}
