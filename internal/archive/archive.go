// package archive reads and writes the playlist archive: a directory tree of plain, pretty and cumulative views
// plus a README index, all inside a git working tree.
//
// Layout, relative to the archive root:
//
//	playlists/plain/<id>            plain view; an empty file registers a playlist
//	playlists/pretty/<name>.md      pretty view
//	playlists/cumulative/<name>.md  cumulative view
//	playlists/aliases/<id>          single-line alternative name for a playlist
//	README.md                       index under a "## Playlists" heading
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plarchive/internal/formatter"
	"github.com/desertthunder/plarchive/internal/shared"
)

const (
	PlainDir      = "plain"
	PrettyDir     = "pretty"
	CumulativeDir = "cumulative"
	AliasesDir    = "aliases"

	ReadmeHeading = "## Playlists"

	viewExt = ".md"
)

// Store is the on-disk archive rooted at a git working tree.
type Store struct {
	root         string
	playlistsDir string
	readme       string
	logger       *log.Logger
}

// New creates a [Store] for the archive described by cfg. A nil logger discards output.
func New(cfg shared.ArchiveConfig, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Store{
		root:         cfg.Root,
		playlistsDir: cfg.PlaylistsDir,
		readme:       cfg.Readme,
		logger:       logger,
	}
	if s.root == "" {
		s.root = "."
	}
	if s.playlistsDir == "" {
		s.playlistsDir = "playlists"
	}
	if s.readme == "" {
		s.readme = "README.md"
	}
	return s
}

// Root returns the archive root directory.
func (s *Store) Root() string { return s.root }

// Paths returns the root-relative paths managed by the store, for staging with git.
func (s *Store) Paths() []string {
	return []string{filepath.ToSlash(s.playlistsDir), filepath.ToSlash(s.readme)}
}

func (s *Store) dir(kind string) string {
	return filepath.Join(s.root, s.playlistsDir, kind)
}

// PlainPath returns the path of a playlist's plain view.
func (s *Store) PlainPath(id string) string { return filepath.Join(s.dir(PlainDir), id) }

// AliasPath returns the path of a playlist's alias file.
func (s *Store) AliasPath(id string) string { return filepath.Join(s.dir(AliasesDir), id) }

// PrettyPath returns the path of the pretty view of the playlist called name.
func (s *Store) PrettyPath(name string) string { return filepath.Join(s.dir(PrettyDir), name+viewExt) }

// CumulativePath returns the path of the cumulative view of the playlist called name.
func (s *Store) CumulativePath(name string) string {
	return filepath.Join(s.dir(CumulativeDir), name+viewExt)
}

// ReadmePath returns the path of the README index.
func (s *Store) ReadmePath() string { return filepath.Join(s.root, s.readme) }

// Init creates the archive directories if they are missing.
func (s *Store) Init() error {
	for _, kind := range []string{PlainDir, PrettyDir, CumulativeDir, AliasesDir} {
		if err := os.MkdirAll(s.dir(kind), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}
	return nil
}

// PlaylistIDs returns the registered playlist IDs, i.e. the file names in the plain directory, sorted.
// Hidden files and directories are skipped.
func (s *Store) PlaylistIDs() ([]string, error) {
	return listFiles(s.dir(PlainDir), "")
}

// Aliases loads the alias of every registered playlist in ids.
//
// Aliases for unregistered playlists and aliases that are not exactly one line are removed with a warning.
func (s *Store) Aliases(ids []string) (map[string]string, error) {
	files, err := listFiles(s.dir(AliasesDir), "")
	if err != nil {
		return nil, err
	}

	registered := make(map[string]bool, len(ids))
	for _, id := range ids {
		registered[id] = true
	}

	aliases := make(map[string]string, len(files))
	for _, id := range files {
		path := s.AliasPath(id)
		if !registered[id] {
			s.logger.Warn("Removing unused alias", "playlist", id)
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove alias %s: %w", id, err)
			}
			continue
		}

		content, err := s.Read(path)
		if err != nil {
			return nil, err
		}

		lines := splitLines(content)
		if len(lines) != 1 {
			s.logger.Warn("Removing malformed alias", "playlist", id, "lines", len(lines))
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove alias %s: %w", id, err)
			}
			continue
		}
		aliases[id] = lines[0]
	}

	return aliases, nil
}

// Read returns the content of path, or "" when the file does not exist.
func (s *Store) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteIfChanged writes content to path unless the file already holds exactly that content.
// It reports whether the file was written.
func (s *Store) WriteIfChanged(path, content string) (bool, error) {
	data, err := os.ReadFile(path)
	if err == nil && string(data) == content {
		s.logger.Debug("No changes to file", "path", path)
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Info("Writing updates to file", "path", path)
	return true, nil
}

// PlainName returns the playlist name recorded in the first line of its plain view, or "" if it has none yet.
func (s *Store) PlainName(id string) (string, error) {
	content, err := s.Read(s.PlainPath(id))
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(content, "\n")
	return strings.TrimSuffix(first, "\r"), nil
}

// RemovePlaylist unregisters a playlist by deleting its plain view, its alias and its pretty view.
// The cumulative view is kept as the record of the playlist's history.
func (s *Store) RemovePlaylist(id string) error {
	name, err := s.PlainName(id)
	if err != nil {
		return err
	}

	paths := []string{s.PlainPath(id), s.AliasPath(id)}
	if name != "" {
		paths = append(paths, s.PrettyPath(name))
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	s.logger.Warn("Removed playlist from archive", "playlist", id, "name", name)
	return nil
}

// Rename moves the pretty and cumulative views of a playlist from oldName to newName.
//
// Views are not moved onto existing files. An empty oldName or an unchanged name is a no-op.
func (s *Store) Rename(oldName, newName string) error {
	if oldName == "" || oldName == newName {
		return nil
	}

	moves := [][2]string{
		{s.PrettyPath(oldName), s.PrettyPath(newName)},
		{s.CumulativePath(oldName), s.CumulativePath(newName)},
	}
	for _, m := range moves {
		from, to := m[0], m[1]
		if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if _, err := os.Stat(to); err == nil {
			s.logger.Warn("Not renaming view onto existing file", "from", from, "to", to)
			continue
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("failed to rename %s: %w", from, err)
		}
	}

	s.logger.Info("Renamed playlist", "from", oldName, "to", newName)
	return nil
}

// Names returns the distinct names recorded in the plain views of the registered playlists, sorted.
// Playlists that have never been archived have no name and are skipped.
func (s *Store) Names() ([]string, error) {
	byID, err := s.namesByID()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byID))
	names := make([]string, 0, len(byID))
	for _, name := range byID {
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	formatter.SortLines(names)
	return names, nil
}

func (s *Store) namesByID() (map[string]string, error) {
	ids, err := s.PlaylistIDs()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(ids))
	for _, id := range ids {
		name, err := s.PlainName(id)
		if err != nil {
			return nil, err
		}
		if name != "" {
			byID[id] = name
		}
	}
	return byID, nil
}

// Verify checks that the names in the plain views match the pretty view file names.
//
// Two playlists sharing a name overwrite each other's views, and a pretty view without a plain view is left over
// from a playlist whose ID changed. Both are reported as [shared.ErrInconsistentArchive].
func (s *Store) Verify() error {
	byID, err := s.namesByID()
	if err != nil {
		return err
	}

	owners := make(map[string][]string, len(byID))
	plain := make([]string, 0, len(byID))
	for id, name := range byID {
		if len(owners[name]) == 0 {
			plain = append(plain, name)
		}
		owners[name] = append(owners[name], id)
	}
	sort.Strings(plain)

	pretty, err := listFiles(s.dir(PrettyDir), viewExt)
	if err != nil {
		return err
	}

	missingFromPlain := difference(pretty, plain)
	missingFromPretty := difference(plain, pretty)

	var problems []string
	for _, name := range plain {
		if ids := owners[name]; len(ids) > 1 {
			sort.Strings(ids)
			problems = append(problems, fmt.Sprintf("playlists %s share the name %q", strings.Join(ids, ", "), name))
		}
	}
	if len(missingFromPlain) > 0 {
		problems = append(problems, fmt.Sprintf("missing plain playlists: %s", strings.Join(missingFromPlain, ", ")))
	}
	if len(missingFromPretty) > 0 {
		problems = append(problems, fmt.Sprintf("missing pretty playlists: %s", strings.Join(missingFromPretty, ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrInconsistentArchive, strings.Join(problems, "; "))
	}
	return nil
}

// UpdateReadme rewrites the README playlist index: everything after the "## Playlists" heading is replaced by a
// sorted list of links to the pretty views. The file and heading are created when missing.
func (s *Store) UpdateReadme(urls formatter.URLs) (bool, error) {
	names, err := s.Names()
	if err != nil {
		return false, err
	}

	content, err := s.Read(s.ReadmePath())
	if err != nil {
		return false, err
	}

	lines := splitLines(content)
	index := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == ReadmeHeading {
			index = i
			break
		}
	}
	if index < 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, ReadmeHeading)
		index = len(lines) - 1
	}

	out := append(lines[:index+1:index+1], "")
	for _, name := range names {
		out = append(out, fmt.Sprintf("- [%s](%s)", name, urls.Pretty(name)))
	}

	return s.WriteIfChanged(s.ReadmePath(), strings.Join(out, "\n")+"\n")
}

// AddPlaylist registers a playlist by creating its empty plain view. It reports false if it was already registered.
func (s *Store) AddPlaylist(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	f, err := os.OpenFile(s.PlainPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to register playlist %s: %w", id, err)
	}
	return true, f.Close()
}

// SetAlias sets the alternative name of a playlist. An empty alias removes it.
func (s *Store) SetAlias(id, alias string) error {
	if err := validateID(id); err != nil {
		return err
	}

	alias = strings.TrimSpace(alias)
	if strings.ContainsAny(alias, "\r\n") {
		return fmt.Errorf("%w: alias must be a single line", shared.ErrInvalidArgument)
	}

	if alias == "" {
		if err := os.Remove(s.AliasPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove alias %s: %w", id, err)
		}
		return nil
	}

	_, err := s.WriteIfChanged(s.AliasPath(id), alias+"\n")
	return err
}

func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	case strings.HasPrefix(id, "."), strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: playlist ID %q", shared.ErrInvalidArgument, id)
	}
	return nil
}

// listFiles returns the sorted names of the regular, non-hidden files in dir having suffix ext, with ext removed.
// A missing directory has no files.
func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}

	sort.Strings(names)
	return names, nil
}

// splitLines splits content into lines, ignoring a trailing newline. Empty content has no lines.
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// difference returns the elements of a missing from b.
func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[v] = true
	}

	var out []string
	for _, v := range a {
		if !in[v] {
			out = append(out, v)
		}
	}
	return out
}
