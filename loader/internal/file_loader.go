package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vectorhook/types"

	"github.com/fsnotify/fsnotify"
)

type FileState int

const (
	FileArchived FileState = iota
	FileBad
)

// FileLoader отслеживает файлы в папке источника и отдает каждый,
// когда он не менялся дольше MonitoringTime
type FileLoader struct {
	cfg    types.LoaderConfig
	logger *slog.Logger

	mu         sync.Mutex
	lastChange map[string]time.Time
	processing map[string]bool
}

func NewFileLoader(cfg types.LoaderConfig) (*FileLoader, error) {
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, err
	}
	return &FileLoader{
		cfg:        cfg,
		logger:     slog.Default(),
		lastChange: make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// WatchFiles отправляет готовые файлы в fileChan, пока не отменен ctx.
// Файлы, которые уже лежат в папке, тоже подхватываются
func (l *FileLoader) WatchFiles(ctx context.Context, fileChan chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", l.cfg.SourceDir, err)
	}
	if err := l.scan(); err != nil {
		return err
	}
	l.logger.Info("[LOADER] start monitoring folder", "dir", l.cfg.SourceDir, "settle", l.cfg.MonitoringTime)

	ticker := time.NewTicker(l.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("[LOADER] file watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				l.touch(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				l.Forget(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("[LOADER] watcher error", "error", err)
		case <-ticker.C:
			for _, path := range l.ready(time.Now()) {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (l *FileLoader) pollInterval() time.Duration {
	if l.cfg.MonitoringTime < time.Second {
		return l.cfg.MonitoringTime
	}
	return time.Second
}

func (l *FileLoader) scan() error {
	files, err := os.ReadDir(l.cfg.SourceDir)
	if err != nil {
		return fmt.Errorf("read source directory: %w", err)
	}
	for _, file := range files {
		l.touch(filepath.Join(l.cfg.SourceDir, file.Name()))
	}
	return nil
}

// touch фиксирует изменение файла. Только обычные файлы, файлы с точкой
// считаются недокачанными
func (l *FileLoader) touch(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.processing[path] {
		return
	}
	if _, seen := l.lastChange[path]; !seen {
		l.logger.Info("[LOADER] new file detected", "file", path)
	}
	l.lastChange[path] = time.Now()
}

// ready возвращает файлы без изменений дольше MonitoringTime и помечает
// их как находящиеся в обработке
func (l *FileLoader) ready(now time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var paths []string
	for path, changed := range l.lastChange {
		if l.processing[path] || now.Sub(changed) < l.cfg.MonitoringTime {
			continue
		}
		l.processing[path] = true
		paths = append(paths, path)
	}
	return paths
}

// Forget удаляет файл из отслеживания
func (l *FileLoader) Forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastChange, path)
	delete(l.processing, path)
}

// Release возвращает файл в отслеживание, он будет отдан снова через
// MonitoringTime. Удаленный файл забывается
func (l *FileLoader) Release(path string) {
	if _, err := os.Stat(path); err != nil {
		l.Forget(path)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.processing, path)
	l.lastChange[path] = time.Now()
}

// MoveToArchive переносит обработанный файл в <dir>/<date>/ и возвращает
// новый путь. При конфликте имен добавляется суффикс _N. Если перенести
// не удалось, файл возвращается в отслеживание
func (l *FileLoader) MoveToArchive(filePath string, state FileState) (destPath string, err error) {
	defer func() {
		if err != nil {
			l.Release(filePath)
		}
	}()

	dir := l.cfg.ArchiveDir
	if state == FileBad {
		dir = l.cfg.BadDir
	}

	destDir := filepath.Join(dir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	destPath = filepath.Join(destDir, filepath.Base(filePath))
	ext := filepath.Ext(destPath)
	baseName := strings.TrimSuffix(filepath.Base(destPath), ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
	}

	if err := moveFile(filePath, destPath); err != nil {
		return "", err
	}
	l.Forget(filePath)
	l.logger.Info("[LOADER] file moved", "from", filePath, "to", destPath)
	return destPath, nil
}

// moveFile переименовывает файл, между устройствами копирует и удаляет
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("error moving file: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
