// Package filesrc provides high-performance source file access using
// memory-mapped files, shared by the analysis passes and the indexing
// coordinator so a file's bytes are mapped once and then sliced by byte
// range (class bodies, doc comments, hover snippets) with no further
// syscalls.
package filesrc

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// Cache maps source files on first access and keeps them mapped until
// Close or a configured limit is reached. Safe for concurrent use: reads
// don't block each other, only loads and Close take the exclusive lock.
type Cache interface {
	// Get returns the mapped file, loading and mapping it on first access.
	Get(path string) (*MappedFile, error)

	// FetchCode slices [startByte:endByte) out of path's mapped bytes. A
	// (0, 0) range means the whole file.
	FetchCode(path string, startByte, endByte uint32) (string, error)

	// Invalidate drops path's cached mapping, if any, unmapping and closing
	// its descriptor first. The next Get/FetchCode call re-reads and
	// re-maps the file's current on-disk contents. A no-op if path isn't
	// cached.
	Invalidate(path string) error

	// Size reports how many files are currently cached.
	Size() int

	// Stats reports cumulative cache activity.
	Stats() Stats

	// Close unmaps every cached file and releases its descriptor.
	Close() error
}

// Config controls Cache behavior.
type Config struct {
	// MaxFiles caps the number of files kept mapped at once. Zero means
	// unlimited.
	MaxFiles int

	// MaxMemoryMB caps the virtual memory mapped across all cached files.
	// Zero means unlimited. This bounds address space, not resident
	// memory: the OS only pages in the ranges actually sliced.
	MaxMemoryMB int

	// EnableMetrics toggles Stats tracking.
	EnableMetrics bool

	Logger *slog.Logger
}

// DefaultConfig covers project trees up to a few thousand files plus a
// handful of stub libraries.
func DefaultConfig() Config {
	return Config{
		MaxFiles:      20000,
		MaxMemoryMB:   4096,
		EnableMetrics: true,
	}
}

// MappedFile is one cached source file.
type MappedFile struct {
	Path     string
	Data     mmap.MMap
	File     *os.File
	Size     int64
	MappedAt time.Time
}

// Stats tracks cache activity for the indexing-progress surface.
type Stats struct {
	FilesLoaded   int64
	FilesCached   int
	CacheHits     int64
	CacheMisses   int64
	MmapFailures  int64
	TotalMappedMB float64
}

// New builds a Cache from cfg. A zero Logger falls back to slog.Default.
func New(cfg Config) Cache {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &cache{
		cfg:      cfg,
		mapped:   make(map[string]*MappedFile),
		fallback: make(map[string][]byte),
		logger:   cfg.Logger,
	}
}

type cache struct {
	cfg    Config
	logger *slog.Logger

	mapped   map[string]*MappedFile
	fallback map[string][]byte
	mu       sync.RWMutex

	stats   Stats
	statsMu sync.Mutex
}

func (c *cache) Get(path string) (*MappedFile, error) {
	if mf, ok := c.lookupLocked(path); ok {
		c.recordHit()
		return mf, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mf, ok := c.peekUnlocked(path); ok {
		c.recordHit()
		return mf, nil
	}

	var size int64
	if c.cfg.MaxMemoryMB > 0 {
		stat, err := os.Stat(path)
		if err != nil {
			c.recordMiss()
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}
		size = stat.Size()
	}
	if err := c.checkLimitsLocked(size); err != nil {
		c.recordMiss()
		return nil, err
	}

	mf, err := c.loadLocked(path)
	if err != nil {
		c.recordMiss()
		return nil, err
	}
	c.mapped[path] = mf
	c.recordLoad()
	return mf, nil
}

func (c *cache) lookupLocked(path string) (*MappedFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peekUnlocked(path)
}

// peekUnlocked must be called with mu held (read or write lock).
func (c *cache) peekUnlocked(path string) (*MappedFile, bool) {
	if mf, ok := c.mapped[path]; ok {
		return mf, true
	}
	if data, ok := c.fallback[path]; ok {
		return wrapFallback(path, data), true
	}
	return nil, false
}

// checkLimitsLocked must be called with mu held for write.
func (c *cache) checkLimitsLocked(newSize int64) error {
	if c.cfg.MaxFiles > 0 {
		n := len(c.mapped) + len(c.fallback)
		if n >= c.cfg.MaxFiles {
			return fmt.Errorf("filesrc: file limit reached (%d files, limit %d)", n, c.cfg.MaxFiles)
		}
	}
	if c.cfg.MaxMemoryMB > 0 && newSize > 0 {
		totalMB := c.mappedMBLocked() + float64(newSize)/(1024*1024)
		if totalMB >= float64(c.cfg.MaxMemoryMB) {
			return fmt.Errorf("filesrc: memory limit reached (%.2f MB, limit %d MB)", totalMB, c.cfg.MaxMemoryMB)
		}
	}
	return nil
}

// loadLocked must be called with mu held for write.
func (c *cache) loadLocked(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	if stat.Size() == 0 {
		f.Close()
		return &MappedFile{Path: path, MappedAt: time.Now()}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		c.logger.Warn("mmap failed, falling back to ReadFile", "path", path, "error", err)
		raw, readErr := os.ReadFile(path)
		f.Close()
		if readErr != nil {
			return nil, fmt.Errorf("mmap %q: %w (fallback read also failed: %v)", path, err, readErr)
		}
		c.fallback[path] = raw
		c.recordMmapFailure()
		return wrapFallback(path, raw), nil
	}

	return &MappedFile{Path: path, Data: data, File: f, Size: stat.Size(), MappedAt: time.Now()}, nil
}

func wrapFallback(path string, data []byte) *MappedFile {
	return &MappedFile{Path: path, Data: mmap.MMap(data), Size: int64(len(data)), MappedAt: time.Now()}
}

func (c *cache) FetchCode(path string, startByte, endByte uint32) (string, error) {
	mf, err := c.Get(path)
	if err != nil {
		return "", err
	}

	if len(mf.Data) == 0 {
		if startByte != 0 || endByte != 0 {
			return "", fmt.Errorf("filesrc: invalid byte range for empty file %q", path)
		}
		return "", nil
	}
	if startByte == 0 && endByte == 0 {
		endByte = uint32(len(mf.Data))
	}
	if endByte <= startByte {
		return "", fmt.Errorf("filesrc: invalid byte range %d:%d for %q", startByte, endByte, path)
	}
	if endByte > uint32(len(mf.Data)) {
		return "", fmt.Errorf("filesrc: byte range %d:%d exceeds size %d for %q", startByte, endByte, len(mf.Data), path)
	}
	return string(mf.Data[startByte:endByte]), nil
}

func (c *cache) Invalidate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mf, ok := c.mapped[path]; ok {
		delete(c.mapped, path)
		if mf.Data != nil {
			if err := mf.Data.Unmap(); err != nil {
				return fmt.Errorf("filesrc: unmap %q: %w", path, err)
			}
		}
		if mf.File != nil {
			if err := mf.File.Close(); err != nil {
				return fmt.Errorf("filesrc: close %q: %w", path, err)
			}
		}
		return nil
	}
	delete(c.fallback, path)
	return nil
}

func (c *cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mapped) + len(c.fallback)
}

func (c *cache) Stats() Stats {
	c.mu.RLock()
	cached := len(c.mapped) + len(c.fallback)
	mb := c.mappedMBLocked()
	c.mu.RUnlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := c.stats
	s.FilesCached = cached
	s.TotalMappedMB = mb
	return s
}

// mappedMBLocked must be called with mu held (read or write lock).
func (c *cache) mappedMBLocked() float64 {
	var total int64
	for _, mf := range c.mapped {
		total += mf.Size
	}
	for _, data := range c.fallback {
		total += int64(len(data))
	}
	return float64(total) / (1024 * 1024)
}

func (c *cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path, mf := range c.mapped {
		if mf.Data != nil {
			if err := mf.Data.Unmap(); err != nil {
				errs = append(errs, fmt.Errorf("unmap %q: %w", path, err))
			}
		}
		if mf.File != nil {
			if err := mf.File.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", path, err))
			}
		}
	}
	c.mapped = make(map[string]*MappedFile)
	c.fallback = make(map[string][]byte)

	if len(errs) > 0 {
		return fmt.Errorf("filesrc: close errors: %v", errs)
	}
	return nil
}

func (c *cache) recordHit() {
	if !c.cfg.EnableMetrics {
		return
	}
	c.statsMu.Lock()
	c.stats.CacheHits++
	c.statsMu.Unlock()
}

func (c *cache) recordMiss() {
	if !c.cfg.EnableMetrics {
		return
	}
	c.statsMu.Lock()
	c.stats.CacheMisses++
	c.statsMu.Unlock()
}

func (c *cache) recordLoad() {
	if !c.cfg.EnableMetrics {
		return
	}
	c.statsMu.Lock()
	c.stats.FilesLoaded++
	c.statsMu.Unlock()
}

func (c *cache) recordMmapFailure() {
	if !c.cfg.EnableMetrics {
		return
	}
	c.statsMu.Lock()
	c.stats.MmapFailures++
	c.statsMu.Unlock()
}
