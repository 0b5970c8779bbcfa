package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/teilomillet/promptpilot/utils"
)

const reloadDebounce = 100 * time.Millisecond

type yamlFile struct {
	Prompts []SavedPromptVariation `yaml:"prompts"`
}

// YAMLStore keeps the library in a hand-editable YAML file. Edits made to the
// file by other programs are picked up while the store is open.
type YAMLStore struct {
	path   string
	logger utils.Logger

	mu     sync.RWMutex
	items  map[int]SavedPromptVariation
	nextID int
	timer  *time.Timer
	closed bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewYAMLStore(path string, logger utils.Logger) (*YAMLStore, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &YAMLStore{
		path:   absPath,
		logger: logger,
		items:  make(map[int]SavedPromptVariation),
		nextID: 1,
		done:   make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	s.watcher = watcher

	go s.watchLoop()
	return s, nil
}

func (s *YAMLStore) List(_ context.Context) ([]SavedPromptVariation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.items), nil
}

func (s *YAMLStore) Get(_ context.Context, id int) (SavedPromptVariation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return SavedPromptVariation{}, ErrNotFound
	}
	return v, nil
}

func (s *YAMLStore) Save(_ context.Context, v SavedPromptVariation) (SavedPromptVariation, error) {
	v, err := prepare(v, time.Now())
	if err != nil {
		return v, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		v.ID = s.nextID
	}
	s.nextID = max(s.nextID, v.ID+1)
	s.items[v.ID] = v
	return v, s.writeLocked()
}

func (s *YAMLStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return s.writeLocked()
}

// Close stops watching the file. It does not remove it.
func (s *YAMLStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *YAMLStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read library file: %w", err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse library file: %w", err)
	}

	items := make(map[int]SavedPromptVariation, len(f.Prompts))
	nextID := 1
	for _, v := range f.Prompts {
		if v.ID == 0 {
			continue
		}
		items[v.ID] = v
		nextID = max(nextID, v.ID+1)
	}

	s.mu.Lock()
	s.items = items
	s.nextID = max(s.nextID, nextID)
	s.mu.Unlock()
	return nil
}

func (s *YAMLStore) writeLocked() error {
	data, err := yaml.Marshal(yamlFile{Prompts: sortedValues(s.items)})
	if err != nil {
		return fmt.Errorf("encode library file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write library file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace library file: %w", err)
	}
	return nil
}

func (s *YAMLStore) watchLoop() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.scheduleReload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Library watcher error", "path", s.path, "error", err)
		}
	}
}

func (s *YAMLStore) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(reloadDebounce, func() {
		if err := s.load(); err != nil {
			s.logger.Warn("Library reload failed", "path", s.path, "error", err)
			return
		}
		s.logger.Debug("Library reloaded", "path", s.path)
	})
}
