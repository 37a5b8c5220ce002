// package tasks runs archive updates.
//
// The core abstraction is Engine, which fetches every registered playlist, reconciles it with its history and
// writes the archive views. Runs emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/plarchive/internal/archive"
	"github.com/desertthunder/plarchive/internal/formatter"
	"github.com/desertthunder/plarchive/internal/models"
	"github.com/desertthunder/plarchive/internal/reconcile"
	"github.com/desertthunder/plarchive/internal/services"
	"github.com/desertthunder/plarchive/internal/shared"
)

// Recorder persists the outcome of a run.
type Recorder interface {
	Record(run *models.Run, snapshots []*models.Snapshot) error
}

// RunOpts configures a single [Engine.Run].
type RunOpts struct {
	Workers int // concurrent fetches; defaults to the number of CPUs
}

// PlaylistResult is the outcome of archiving one playlist.
type PlaylistResult struct {
	PlaylistID      string
	Name            string
	Status          models.SnapshotStatus
	Changed         bool     // any view was written
	Files           []string // paths written in this run
	Tracks          int
	CumulativeCount int
	Added           int // new and restored tracks
	Removed         int
	Err             error
}

// RunResult contains the outcome of an archive run.
type RunResult struct {
	Run           *models.Run
	Playlists     []*PlaylistResult
	ReadmeChanged bool
}

// Changed reports whether the run wrote anything to the archive.
func (r *RunResult) Changed() bool {
	if r.ReadmeChanged {
		return true
	}
	for _, p := range r.Playlists {
		if p.Changed || p.Status == models.SnapshotRemoved {
			return true
		}
	}
	return false
}

// Snapshots converts the playlist results into records for the run history.
func (r *RunResult) Snapshots() []*models.Snapshot {
	snapshots := make([]*models.Snapshot, 0, len(r.Playlists))
	for _, p := range r.Playlists {
		s := models.NewSnapshot(r.Run.ID(), p.PlaylistID, p.Status, r.Run.StartedAt)
		s.Name = p.Name
		s.TrackCount = p.Tracks
		s.CumulativeCount = p.CumulativeCount
		s.AddedCount = p.Added
		s.RemovedCount = p.Removed
		s.Changed = p.Changed
		if p.Err != nil {
			s.ErrorMessage = p.Err.Error()
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}

// Engine archives playlists fetched from a music service.
type Engine struct {
	fetcher   services.Fetcher
	store     *archive.Store
	formatter *formatter.Formatter
	recorder  Recorder
	logger    *log.Logger
	now       func() time.Time
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(fetcher services.Fetcher, store *archive.Store, f *formatter.Formatter, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		fetcher:   fetcher,
		store:     store,
		formatter: f,
		logger:    logger,
		now:       time.Now,
	}
}

// SetRecorder sets the optional run history recorder.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetClock replaces the clock used for run timestamps and history dates.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

type fetchResult struct {
	playlist *models.Playlist
	err      error
}

// Run updates the archive from the current state of every registered playlist.
//
// Playlists that are private or gone are removed from the archive. Other per-playlist failures are recorded and
// the run continues; the result is then returned with an error wrapping [shared.ErrPartialFailure].
// Invalid credentials abort the run.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: no playlist service configured", shared.ErrServiceUnavailable)
	}

	started := e.now()
	today := started.UTC().Format(reconcile.DateLayout)

	if err := e.store.Init(); err != nil {
		return nil, err
	}
	ids, err := e.store.PlaylistIDs()
	if err != nil {
		return nil, err
	}
	aliases, err := e.store.Aliases(ids)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Starting archive run", "service", e.fetcher.Name(), "playlists", len(ids))
	e.sendProgress(progress, loadArchiveUpdate(len(ids)))

	result := &RunResult{Run: models.NewRun(started)}
	result.Run.PlaylistsTotal = len(ids)

	fetched, err := e.fetchAll(ctx, progress, ids, opts.Workers)
	if err != nil {
		return result, e.abort(progress, result, err)
	}

	if err := e.resolveNames(ids, fetched, aliases); err != nil {
		return result, e.abort(progress, result, err)
	}

	for i, id := range ids {
		res, err := e.archivePlaylist(id, fetched[i], today)
		if err != nil {
			return result, e.abort(progress, result, err)
		}

		result.Playlists = append(result.Playlists, res)
		switch {
		case res.Status == models.SnapshotRemoved:
			result.Run.PlaylistsRemoved++
		case res.Status == models.SnapshotFailed:
			result.Run.PlaylistsFailed++
		case res.Changed:
			result.Run.PlaylistsChanged++
		}
		e.sendProgress(progress, archivePlaylistUpdate(i+1, len(ids), res))
	}

	e.sendProgress(progress, verifyArchiveUpdate())
	if err := e.store.Verify(); err != nil {
		return result, e.abort(progress, result, err)
	}

	changed, err := e.store.UpdateReadme(e.formatter.URLs())
	if err != nil {
		return result, e.abort(progress, result, err)
	}
	result.ReadmeChanged = changed
	e.sendProgress(progress, updateReadmeUpdate(changed))

	result.Run.Finish(e.now())
	if err := e.record(progress, result); err != nil {
		return result, err
	}

	e.logger.Info("Archive run finished",
		"status", result.Run.Status,
		"changed", result.Run.PlaylistsChanged,
		"removed", result.Run.PlaylistsRemoved,
		"failed", result.Run.PlaylistsFailed,
		"duration", result.Run.Duration())

	if result.Run.PlaylistsFailed > 0 {
		return result, fmt.Errorf("%w: %d of %d playlists", shared.ErrPartialFailure,
			result.Run.PlaylistsFailed, result.Run.PlaylistsTotal)
	}
	return result, nil
}

// fetchAll fetches the playlists with at most workers requests in flight.
// Results are returned in the order of ids; only invalid credentials or cancellation fail the whole fetch.
func (e *Engine) fetchAll(ctx context.Context, progress chan<- ProgressUpdate, ids []string, workers int) ([]fetchResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]fetchResult, len(ids))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range ids {
		g.Go(func() error {
			p, err := e.fetcher.GetPlaylist(gctx, id)
			results[i] = fetchResult{playlist: p, err: err}
			e.sendProgress(progress, fetchPlaylistUpdate(int(done.Add(1)), len(ids), id, err))

			if errors.Is(err, shared.ErrInvalidCredentials) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveNames applies aliases to the fetched playlists and fails those whose name is claimed by another
// registered playlist, so that no two playlists write the same views.
//
// Playlists that failed to fetch keep the name recorded in their plain view. Playlists that are gone release
// theirs.
func (e *Engine) resolveNames(ids []string, fetched []fetchResult, aliases map[string]string) error {
	claims := make(map[string][]string, len(ids))
	for i, id := range ids {
		f := &fetched[i]
		switch {
		case errors.Is(f.err, shared.ErrPrivatePlaylist), errors.Is(f.err, shared.ErrPlaylistNotFound):
			continue
		case f.err != nil:
			name, err := e.store.PlainName(id)
			if err != nil {
				return err
			}
			if name != "" {
				claims[name] = append(claims[name], id)
			}
			continue
		}

		if err := services.ApplyAlias(f.playlist, aliases); err != nil {
			f.err = err
			continue
		}
		claims[f.playlist.Name] = append(claims[f.playlist.Name], id)
	}

	for i, id := range ids {
		f := &fetched[i]
		if f.err != nil {
			continue
		}
		if owners := claims[f.playlist.Name]; len(owners) > 1 {
			f.err = fmt.Errorf("%w: playlists %s share the name %q", shared.ErrInvalidPlaylist,
				strings.Join(owners, ", "), f.playlist.Name)
			e.logger.Warn("Playlist name is not unique", "playlist", id, "name", f.playlist.Name)
		}
	}
	return nil
}

// archivePlaylist applies a fetch result to the archive.
//
// Fetch failures are reported in the result. The returned error is reserved for archive I/O failures, which
// abort the run.
func (e *Engine) archivePlaylist(id string, fetched fetchResult, today string) (*PlaylistResult, error) {
	logger := shared.WithLogger(e.logger, "playlist", id)
	res := &PlaylistResult{PlaylistID: id, Status: models.SnapshotFailed}

	switch err := fetched.err; {
	case errors.Is(err, shared.ErrPrivatePlaylist), errors.Is(err, shared.ErrPlaylistNotFound):
		logger.Warn("Playlist is no longer available, removing it", "error", err)
		if rmErr := e.store.RemovePlaylist(id); rmErr != nil {
			return nil, rmErr
		}
		res.Status = models.SnapshotRemoved
		res.Err = err
		return res, nil
	case errors.Is(err, shared.ErrInvalidPlaylist):
		logger.Error("Skipping playlist", "error", err)
		if fetched.playlist != nil {
			res.Name = fetched.playlist.Name
		}
		res.Err = err
		return res, nil
	case err != nil:
		logger.Error("Failed to fetch playlist", "error", err)
		res.Err = err
		return res, nil
	}

	p := fetched.playlist
	res.Name = p.Name

	if err := e.writeViews(id, p, today, res); err != nil {
		return nil, err
	}

	res.Status = models.SnapshotArchived
	logger.Debug("Archived playlist", "name", p.Name, "tracks", res.Tracks, "added", res.Added,
		"removed", res.Removed, "changed", res.Changed)
	return res, nil
}

// writeViews reconciles p with its cumulative history and writes the views that changed.
func (e *Engine) writeViews(id string, p *models.Playlist, today string, res *PlaylistResult) error {
	previousName, err := e.store.PlainName(id)
	if err != nil {
		return err
	}
	if err := e.store.Rename(previousName, p.Name); err != nil {
		return err
	}

	previous, err := e.store.Read(e.store.CumulativePath(p.Name))
	if err != nil {
		return err
	}
	merged := reconcile.Merge(formatter.ParseCumulative(previous), p.Tracks, today)

	res.Tracks = len(merged.Members)
	res.CumulativeCount = len(merged.Cumulative)
	res.Added = len(merged.Added) + len(merged.Restored)
	res.Removed = len(merged.Removed)

	views := []struct {
		path    string
		content string
	}{
		{e.store.PlainPath(id), e.formatter.Plain(p, merged.Members)},
		{e.store.PrettyPath(p.Name), e.formatter.Pretty(id, p)},
		{e.store.CumulativePath(p.Name), e.formatter.Cumulative(id, p, merged.Cumulative)},
	}
	for _, v := range views {
		written, err := e.store.WriteIfChanged(v.path, v.content)
		if err != nil {
			return err
		}
		if written {
			res.Changed = true
			res.Files = append(res.Files, v.path)
		}
	}
	return nil
}

// abort finishes a run that could not complete, records it and returns err.
func (e *Engine) abort(progress chan<- ProgressUpdate, result *RunResult, err error) error {
	e.logger.Error("Archive run aborted", "error", err)

	result.Run.Finish(e.now())
	result.Run.Status = models.RunFailed
	if recErr := e.record(progress, result); recErr != nil {
		e.logger.Warn("Failed to record aborted run", "error", recErr)
	}
	return err
}

func (e *Engine) record(progress chan<- ProgressUpdate, result *RunResult) error {
	if e.recorder != nil {
		if err := e.recorder.Record(result.Run, result.Snapshots()); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}
	e.sendProgress(progress, recordRunUpdate(result.Run))
	return nil
}
