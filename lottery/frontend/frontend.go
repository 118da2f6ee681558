// Package frontend hands the build artifacts and the project config over to
// the web front end of the lottery.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/dcSpark/smartcontract-lottery/lottery/config"
)

const (
	DefaultChainInfoDir   = "../nextjs-smartcontract-lottery/chain-info"
	DefaultConfigJSONPath = "../nextjs-smartcontract-lottery/brownie-config.json"
	DefaultDebounce       = 500 * time.Millisecond
)

type Config struct {
	// BuildDir is copied as a whole to ChainInfoDir.
	BuildDir       string
	ChainInfoDir   string
	ConfigJSONPath string
	// Debounce is how long Watch waits for the build dir to settle.
	Debounce time.Duration
}

func DefaultConfig(buildDir string) Config {
	return Config{
		BuildDir:       buildDir,
		ChainInfoDir:   DefaultChainInfoDir,
		ConfigJSONPath: DefaultConfigJSONPath,
		Debounce:       DefaultDebounce,
	}
}

func (c Config) Check() error {
	if c.BuildDir == "" {
		return errors.New("build dir must be set")
	}
	if c.ChainInfoDir == "" {
		return errors.New("front end chain-info dir must be set")
	}
	if c.ConfigJSONPath == "" {
		return errors.New("front end config path must be set")
	}
	return nil
}

// CopyFolder replaces dest with a copy of the tree at src.
func CopyFolder(fsys afero.Fs, src, dest string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("cannot copy %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot copy %s: not a directory", src)
	}
	if err := fsys.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dest, err)
	}
	return afero.Walk(fsys, src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return fsys.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyFile(fsys, path, target, info.Mode().Perm())
	})
}

func copyFile(fsys afero.Fs, src, dest string, perm fs.FileMode) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fsys.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// Exporter copies the build dir and the config to the front end.
type Exporter struct {
	l       log.Logger
	cfg     Config
	fs      afero.Fs
	project *config.Config
}

func NewExporter(l log.Logger, cfg Config, project *config.Config) *Exporter {
	return &Exporter{l: l, cfg: cfg, fs: afero.NewOsFs(), project: project}
}

// Update sends the build folder and the config, in JSON, to the front end.
func (e *Exporter) Update() error {
	if err := CopyFolder(e.fs, e.cfg.BuildDir, e.cfg.ChainInfoDir); err != nil {
		return err
	}
	if err := e.project.ToJSON(e.cfg.ConfigJSONPath); err != nil {
		return fmt.Errorf("failed to export config: %w", err)
	}
	e.l.Info("Front end updated", "chain_info", e.cfg.ChainInfoDir, "config", e.cfg.ConfigJSONPath)
	return nil
}

// Watch updates the front end once, then again whenever the build dir or the
// config file change. It returns when ctx is done.
func (e *Exporter) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(e.cfg.BuildDir, 0o755); err != nil {
		return err
	}
	if err := addTree(watcher, e.cfg.BuildDir); err != nil {
		return err
	}
	configPath := e.project.Path()
	if configPath != "" {
		if err := watcher.Add(filepath.Dir(configPath)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", configPath, err)
		}
	}

	if err := e.Update(); err != nil {
		return err
	}

	debounce := e.cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	reload := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if within(e.cfg.BuildDir, ev.Name) {
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := addTree(watcher, ev.Name); err != nil {
							e.l.Warn("Failed to watch new directory", "dir", ev.Name, "err", err)
						}
					}
				}
			} else if filepath.Clean(ev.Name) == filepath.Clean(configPath) {
				reload = true
			} else {
				continue
			}
			e.l.Debug("Change detected", "path", ev.Name, "op", ev.Op)
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.l.Warn("Watcher error", "err", err)
		case <-timer.C:
			if reload {
				project, err := config.Load(configPath)
				if err != nil {
					e.l.Error("Failed to reload config, keeping the previous one", "err", err)
				} else {
					e.project = project
				}
				reload = false
			}
			if err := e.Update(); err != nil {
				e.l.Error("Failed to update front end", "err", err)
			}
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
