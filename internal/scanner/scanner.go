package scanner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	serrors "github.com/RandomsUsernames/sgrep/internal/errors"
	"github.com/RandomsUsernames/sgrep/internal/gitignore"
)

// ignoreCacheSize bounds the number of per-directory ignore matchers kept
// in memory during a single scan.
const ignoreCacheSize = 1000

// explicitIgnoreFile is the project-local explicit-ignore file, checked in
// every directory alongside .gitignore.
const explicitIgnoreFile = ".sgrepignore"

// Scanner discovers indexable files under a project root.
type Scanner struct {
	ignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu     sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](ignoreCacheSize)
	if err != nil {
		return nil, serrors.InternalError("failed to create ignore-matcher cache", err)
	}
	return &Scanner{ignoreCache: cache}, nil
}

// Scan walks opts.RootDir and returns every file that passes the ignore
// rules, the extension allow-list, and the size/binary filters. Individual
// file errors (permission, race with deletion, etc.) are silently skipped;
// only a problem with the root itself is returned as an error.
func (s *Scanner) Scan(opts *ScanOptions) ([]ScannedFile, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, serrors.IOError("failed to resolve root directory", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, serrors.IOError("failed to stat root directory", err)
	}
	if !info.IsDir() {
		return nil, serrors.IOError("root path is not a directory", nil).WithDetail("path", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	globalMatcher := s.loadGlobalIgnore()
	extraMatcher := gitignore.New()
	for _, p := range opts.ExcludePatterns {
		extraMatcher.AddPattern(p)
	}

	var files []ScannedFile

	walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we can't stat
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if s.isIgnored(absRoot, relPath, true, globalMatcher, extraMatcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		if !isAllowed(relPath) {
			return nil
		}

		if s.isIgnored(absRoot, relPath, false, globalMatcher, extraMatcher) {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if fi.Size() > maxFileSize {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if bytes.IndexByte(content, 0) != -1 {
			return nil
		}

		files = append(files, ScannedFile{
			Path:     relPath,
			Content:  content,
			Language: DetectLanguage(relPath),
		})
		return nil
	})
	if walkErr != nil {
		return nil, serrors.IOError("failed to walk root directory", walkErr)
	}

	return files, nil
}

// isIgnored reports whether relPath is ignored by the composited ignore
// rules for absRoot: nested .gitignore/.sgrepignore files, the global
// ignore file, and any caller-supplied exclude patterns.
func (s *Scanner) isIgnored(absRoot, relPath string, isDir bool, global, extra *gitignore.Matcher) bool {
	if global != nil && global.Match(relPath, isDir) {
		return true
	}
	if extra != nil && extra.Match(relPath, isDir) {
		return true
	}

	dir := filepath.Dir(relPath)
	var parts []string
	if dir != "." {
		parts = strings.Split(dir, "/")
	}

	currentDir := absRoot
	currentBase := ""
	if m := s.dirMatcher(currentDir, currentBase); m != nil && m.Match(relPath, isDir) {
		return true
	}
	for _, part := range parts {
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = currentBase + "/" + part
		}
		if m := s.dirMatcher(currentDir, currentBase); m != nil && m.Match(relPath, isDir) {
			return true
		}
	}
	return false
}

// dirMatcher returns the cached composite .gitignore+.sgrepignore matcher
// for dir, loading and caching it on first use. Returns nil if the
// directory has neither file.
func (s *Scanner) dirMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	m, ok := s.ignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return m
	}

	matcher := gitignore.New()
	found := false
	for _, name := range []string{".gitignore", explicitIgnoreFile} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			if addErr := matcher.AddFromFile(p, base); addErr == nil {
				found = true
			}
		}
	}
	if !found {
		matcher = nil
	}

	s.cacheMu.Lock()
	s.ignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()

	return matcher
}

// loadGlobalIgnore loads the user's global ignore file, if configured via
// XDG_CONFIG_HOME/sgrep/ignore (or the platform equivalent). Returns nil
// when no global ignore file exists.
func (s *Scanner) loadGlobalIgnore() *gitignore.Matcher {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(dir, "sgrep", "ignore")
	if _, statErr := os.Stat(path); statErr != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, ""); err != nil {
		return nil
	}
	return m
}

// InvalidateIgnoreCache clears the cached ignore matchers. Callers should
// invoke this between scans of the same root if ignore files may have
// changed on disk.
func (s *Scanner) InvalidateIgnoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.ignoreCache.Purge()
}
