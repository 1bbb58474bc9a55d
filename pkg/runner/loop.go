package runner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// RunFunc assembles and executes one complete run.
type RunFunc func(ctx context.Context) (int, error)

// LoopRunner re-runs the requested goals whenever a BUILD file changes.
// Each iteration is a fresh run with a freshly resolved graph; the loop
// exits when the context is cancelled and returns the last exit code.
type LoopRunner struct {
	rootDir       string
	logger        zerolog.Logger
	runOnce       RunFunc
	buildFileName string

	// debounce coalesces editor save bursts into one re-run.
	debounce time.Duration
}

// NewLoopRunner creates a loop over the given run function.
func NewLoopRunner(rootDir string, logger zerolog.Logger, runOnce RunFunc) *LoopRunner {
	return &LoopRunner{
		rootDir:       rootDir,
		logger:        logger.With().Str("component", "loop").Logger(),
		runOnce:       runOnce,
		buildFileName: "BUILD",
		debounce:      500 * time.Millisecond,
	}
}

// SetBuildFileName overrides the watched build file name.
func (l *LoopRunner) SetBuildFileName(name string) {
	if name != "" {
		l.buildFileName = name
	}
}

// Run executes once immediately, then re-runs on every BUILD file change
// until the context is cancelled.
func (l *LoopRunner) Run(ctx context.Context) (int, error) {
	exitCode, err := l.runOnce(ctx)
	if err != nil {
		return exitCode, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 1, err
	}
	defer func() { _ = watcher.Close() }()

	if err := l.watchTree(watcher); err != nil {
		return 1, err
	}
	l.logger.Info().Str("root", l.rootDir).Msg("Watching for BUILD file changes")

	var rerunTimer *time.Timer
	rerunCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return exitCode, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return exitCode, nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if filepath.Base(event.Name) != l.buildFileName {
				// New directories must join the watch set so BUILD files
				// created inside them are seen.
				if event.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
				continue
			}
			l.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("BUILD file changed")
			if rerunTimer != nil {
				rerunTimer.Stop()
			}
			rerunTimer = time.AfterFunc(l.debounce, func() {
				select {
				case rerunCh <- struct{}{}:
				default:
				}
			})

		case <-rerunCh:
			code, runErr := l.runOnce(ctx)
			exitCode = code
			if runErr != nil {
				return exitCode, runErr
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return exitCode, nil
			}
			l.logger.Error().Err(watchErr).Msg("Watcher error")
		}
	}
}

// watchTree adds every non-hidden directory under the root to the watcher.
func (l *LoopRunner) watchTree(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(l.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != l.rootDir && (strings.HasPrefix(name, ".") || strings.HasSuffix(name, WorkdirSuffix)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
