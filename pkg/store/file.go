package store

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const fileSuffix = ".json"

type fileEntry struct {
	size       int64
	lastAccess time.Time
}

// File stores each cache entry as a file in a directory, named by the
// SHA-256 of its key. The first line of each file is the quoted key, the
// rest is the value. Writes are atomic (temp file then rename). When
// maxSize is positive, the least recently accessed entries are evicted to
// keep the total value size under it.
type File struct {
	dir     string
	maxSize int64

	mu      sync.Mutex
	entries map[string]*fileEntry
	size    int64
}

// NewFile opens or creates a file store in dir and indexes existing entries.
func NewFile(dir string, maxSize int64) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	f := &File{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[string]*fileEntry),
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, ok := readKey(filepath.Join(dir, name))
		if !ok || encodeName(key) != name {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		size := info.Size() - int64(len(entryHeader(key)))
		f.entries[key] = &fileEntry{size: size, lastAccess: info.ModTime()}
		f.size += size
	}

	return f, nil
}

// Get reads the entry for key.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			f.size -= entry.size
			delete(f.entries, key)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}
	value, ok := splitEntry(data, key)
	if !ok {
		return nil, fmt.Errorf("read entry %s: corrupt header", key)
	}

	entry.lastAccess = time.Now()
	return value, nil
}

// Set writes value for key.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	header := entryHeader(key)
	size := int64(len(value))
	var previous int64
	if old, ok := f.entries[key]; ok {
		previous = old.size
	}

	if f.maxSize > 0 {
		for f.size-previous+size > f.maxSize {
			if !f.evictOldest(key) {
				break
			}
		}
	}

	localPath := f.path(key)
	tempPath := localPath + ".tmp"

	if err := os.WriteFile(tempPath, append([]byte(header), value...), 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("write entry: %w", err)
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	f.size += size - previous
	f.entries[key] = &fileEntry{size: size, lastAccess: time.Now()}
	return nil
}

// Remove deletes the entry for key.
func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return nil
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove entry: %w", err)
	}
	f.size -= entry.size
	delete(f.entries, key)
	return nil
}

// Keys returns the sorted keys starting with prefix.
func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Stats returns the total size, the size limit and the entry count.
func (f *File) Stats() (size, maxSize int64, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, f.maxSize, len(f.entries)
}

// Dir returns the store directory.
func (f *File) Dir() string {
	return f.dir
}

// evictOldest removes the least recently accessed entry other than keep.
// Must be called with lock held.
func (f *File) evictOldest(keep string) bool {
	var oldest *fileEntry
	var oldestKey string

	for k, entry := range f.entries {
		if k == keep {
			continue
		}
		if oldest == nil || entry.lastAccess.Before(oldest.lastAccess) {
			oldest = entry
			oldestKey = k
		}
	}

	if oldest == nil {
		return false
	}

	os.Remove(f.path(oldestKey))
	f.size -= oldest.size
	delete(f.entries, oldestKey)
	return true
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, encodeName(key))
}

func encodeName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + fileSuffix
}

func entryHeader(key string) string {
	return strconv.Quote(key) + "\n"
}

// readKey returns the key stored in the header line of the entry at path.
func readKey(path string) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil {
		return "", false
	}
	key, err := strconv.Unquote(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return "", false
	}
	return key, true
}

// splitEntry strips the header from data and checks it names key.
func splitEntry(data []byte, key string) ([]byte, bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, false
	}
	stored, err := strconv.Unquote(string(data[:i]))
	if err != nil || stored != key {
		return nil, false
	}
	return data[i+1:], true
}
