// Package session owns the single active board of a client: its document,
// canvas coordinator, writer lease and autosave.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindboard/application/canvas"
	"mindboard/application/ports"
	"mindboard/domain/board"
	"mindboard/domain/config"
	"mindboard/domain/events"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
)

// Options are the engine tunables a session is created with.
type Options struct {
	DefaultBoardName string
	SeedNodeLabel    string
	HistoryLimit     int
	// AutosaveDebounce of zero disables autosave.
	AutosaveDebounce time.Duration
	WriterLeaseTTL   time.Duration
	Sync             canvas.Options
}

// OptionsFromConfig maps the domain configuration onto session options.
func OptionsFromConfig(cfg *config.DomainConfig) Options {
	return Options{
		DefaultBoardName: cfg.DefaultBoardName,
		SeedNodeLabel:    cfg.SeedNodeLabel,
		HistoryLimit:     cfg.HistoryLimit,
		AutosaveDebounce: cfg.AutosaveDebounce,
		WriterLeaseTTL:   cfg.WriterLeaseTTL,
		Sync: canvas.Options{
			Debounce: cfg.SyncDebounce,
			Cooldown: cfg.DragCooldown,
		},
	}
}

// Dependencies are the collaborators shared by all sessions. Only Store is
// required.
type Dependencies struct {
	Store   ports.BoardStore
	Cache   ports.BoardCache
	Lock    ports.WriterLock
	Events  ports.EventPublisher
	Clock   clock.Clock
	IDs     *board.IDGenerator
	Logger  *zap.Logger
	Metrics *observability.Collector
}

// Session holds exactly one active document.
type Session struct {
	id   string
	deps Dependencies
	opts Options

	// op serialises operations that replace or persist the document.
	op sync.Mutex

	mu       sync.Mutex
	doc      *board.Document
	coord    *canvas.Coordinator
	unsub    func()
	autosave clock.Timer
	leased   string
}

// New creates an empty session identified by id. The id doubles as the
// writer lease owner.
func New(id string, deps Dependencies, opts Options) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.IDs == nil {
		deps.IDs = board.NewIDGenerator(deps.Clock)
	}
	return &Session{
		id:   id,
		deps: deps,
		opts: opts,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Document returns the active document, or nil before the first Open.
func (s *Session) Document() *board.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Coordinator returns the canvas coordinator of the active document.
func (s *Session) Coordinator() *canvas.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord
}

// Open activates boardID without discarding unsaved changes. An empty id
// creates a new board.
func (s *Session) Open(ctx context.Context, boardID string) (*board.Document, error) {
	return s.Switch(ctx, boardID, false)
}

// Switch replaces the active document with boardID. Unsaved changes block
// the switch with an UNSAVED_CHANGES conflict unless force is set.
//
// The cached copy is used when the remote store is unreachable. A board
// missing from both starts with a single seed node.
func (s *Session) Switch(ctx context.Context, boardID string, force bool) (*board.Document, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkUnsaved(force); err != nil {
		return nil, err
	}

	rec, persisted, source, err := s.fetch(ctx, boardID)
	if err != nil {
		return nil, err
	}
	doc, err := s.activate(ctx, rec, persisted)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewBoardOpened(rec.ID, source, s.deps.Clock.Now()))
	s.deps.Logger.Info("Board opened",
		zap.String("sessionId", s.id),
		zap.String("boardId", rec.ID),
		zap.String("source", source),
		zap.Int("nodes", len(rec.Nodes)),
	)
	return doc, nil
}

// Import replaces the active document with an imported envelope. The
// imported board starts a new history and is unsaved.
func (s *Session) Import(ctx context.Context, env board.Envelope, force bool) (*board.Document, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkUnsaved(force); err != nil {
		return nil, err
	}
	if env.Nodes == nil || env.Edges == nil {
		return nil, pkgerrors.NewValidationError("import requires nodes and edges arrays").
			WithCode(pkgerrors.CodeMalformedImport)
	}
	rec := env.Record()
	if rec.Name == "" {
		rec.Name = s.opts.DefaultBoardName
	}
	if err := rec.Snapshot().Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "import rejected")
	}

	doc, err := s.activate(ctx, rec, false)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewBoardImported(rec.ID, s.deps.Clock.Now()))
	s.deps.Logger.Info("Board imported",
		zap.String("sessionId", s.id),
		zap.String("boardId", rec.ID),
		zap.Int("nodes", len(rec.Nodes)),
		zap.Int("edges", len(rec.Edges)),
	)
	return doc, nil
}

// Export flushes pending canvas edits and returns the board envelope.
func (s *Session) Export() (board.Envelope, error) {
	doc, coord := s.active()
	if doc == nil {
		return board.Envelope{}, errNoBoard()
	}
	coord.Flush()
	return doc.ExportEnvelope(s.deps.Clock.Now()), nil
}

// Save writes the active board to the local cache and then to the remote
// store. A remote failure leaves the document dirty; a cache failure alone
// is logged and does not fail the save.
func (s *Session) Save(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()
	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	doc, coord := s.active()
	if doc == nil {
		return errNoBoard()
	}
	coord.Flush()

	st := doc.State()
	now := s.deps.Clock.Now()
	rec := board.Record{
		ID:        st.ID,
		Name:      st.Name,
		Nodes:     st.Snapshot.Nodes,
		Edges:     st.Snapshot.Edges,
		UpdatedAt: now,
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Put(ctx, rec); err != nil {
			s.deps.Logger.Warn("Local board cache write failed",
				zap.String("boardId", rec.ID),
				zap.Error(pkgerrors.NewPersistenceError("cache board", err).WithCode(pkgerrors.CodeLocalSaveFailed)),
			)
		}
	}

	if err := s.deps.Store.Put(ctx, rec); err != nil {
		appErr := pkgerrors.NewPersistenceError("save board", err).
			WithCode(pkgerrors.CodeRemoteSaveFailed).
			WithDetail("boardId", rec.ID)
		s.deps.Logger.Warn("Board save failed, changes kept locally",
			zap.String("boardId", rec.ID),
			zap.Error(err),
		)
		return appErr
	}

	doc.MarkSaved(st.Snapshot, st.Name, now)
	s.renewLease(ctx, rec.ID)
	s.publish(ctx, events.NewBoardSaved(rec.ID, rec.Name, len(rec.Nodes), len(rec.Edges), now))
	s.deps.Logger.Debug("Board saved",
		zap.String("boardId", rec.ID),
		zap.Uint64("version", st.Version),
	)
	return nil
}

// Close flushes pending edits, stops autosave and releases the writer
// lease. Unsaved changes are not written.
func (s *Session) Close(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if _, coord := s.active(); coord != nil {
		coord.Flush()
	}
	return s.detach(ctx)
}

func (s *Session) checkUnsaved(force bool) error {
	doc, coord := s.active()
	if doc == nil || force {
		return nil
	}
	coord.Flush()
	if doc.IsDirty() {
		return pkgerrors.ErrUnsavedChanges().WithDetail("boardId", doc.ID())
	}
	return nil
}

// fetch resolves the record for boardID: remote first, falling back to the
// cached copy, then to a seeded default.
func (s *Session) fetch(ctx context.Context, boardID string) (board.Record, bool, string, error) {
	if boardID == "" {
		return s.seed(board.NewBoardID()), false, "default", nil
	}

	var cached board.Record
	hit := false
	if s.deps.Cache != nil {
		rec, ok, err := s.deps.Cache.Get(ctx, boardID)
		switch {
		case err != nil:
			s.deps.Logger.Warn("Local board cache read failed", zap.String("boardId", boardID), zap.Error(err))
		case ok:
			cached, hit = rec, true
		}
		s.deps.Metrics.RecordCache(hit)
	}

	rec, err := s.deps.Store.Get(ctx, boardID)
	switch {
	case err == nil:
		if s.deps.Cache != nil {
			if err := s.deps.Cache.Put(ctx, rec); err != nil {
				s.deps.Logger.Warn("Local board cache refresh failed", zap.String("boardId", boardID), zap.Error(err))
			}
		}
		return rec, true, "remote", nil
	case hit:
		if !pkgerrors.IsNotFound(err) {
			s.deps.Logger.Warn("Remote board read failed, using cached copy",
				zap.String("boardId", boardID),
				zap.Error(err),
			)
		}
		return cached, false, "cache", nil
	case pkgerrors.IsNotFound(err):
		return s.seed(boardID), false, "default", nil
	default:
		return board.Record{}, false, "", pkgerrors.NewPersistenceError("load board", err).WithDetail("boardId", boardID)
	}
}

func (s *Session) seed(boardID string) board.Record {
	snap := board.DefaultSnapshot(s.opts.SeedNodeLabel)
	return board.Record{
		ID:    boardID,
		Name:  s.opts.DefaultBoardName,
		Nodes: snap.Nodes,
		Edges: snap.Edges,
	}
}

// activate takes the writer lease for rec and makes it the active document.
func (s *Session) activate(ctx context.Context, rec board.Record, persisted bool) (*board.Document, error) {
	if err := s.acquireLease(ctx, rec.ID); err != nil {
		return nil, err
	}

	doc := board.NewDocument(rec.ID, rec.Name, s.opts.HistoryLimit, s.deps.Clock)
	if err := doc.Load(rec, persisted); err != nil {
		s.releaseLease(ctx, rec.ID)
		return nil, err
	}

	previous := s.leasedBoard()
	if err := s.detachKeepingLease(ctx, previous != rec.ID); err != nil {
		s.deps.Logger.Warn("Releasing previous board failed", zap.String("boardId", previous), zap.Error(err))
	}

	coord := canvas.NewCoordinator(doc, s.deps.IDs, s.deps.Clock, s.opts.Sync, s.deps.Logger, s.deps.Metrics)
	unsub := doc.Subscribe(s.onChange)

	s.mu.Lock()
	s.doc, s.coord, s.unsub = doc, coord, unsub
	s.leased = rec.ID
	s.mu.Unlock()
	return doc, nil
}

func (s *Session) detach(ctx context.Context) error {
	return s.detachKeepingLease(ctx, true)
}

func (s *Session) detachKeepingLease(ctx context.Context, release bool) error {
	s.mu.Lock()
	coord, unsub, leased := s.coord, s.unsub, s.leased
	stop(s.autosave)
	s.doc, s.coord, s.unsub, s.autosave = nil, nil, nil, nil
	if release {
		s.leased = ""
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if coord != nil {
		coord.Close()
	}
	if release && leased != "" && s.deps.Lock != nil {
		return s.deps.Lock.Release(ctx, leased, s.id)
	}
	return nil
}

func (s *Session) onChange(ch board.Change) {
	if s.opts.AutosaveDebounce <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stop(s.autosave)
	s.autosave = nil
	if !ch.Dirty {
		return
	}
	s.autosave = s.deps.Clock.AfterFunc(s.opts.AutosaveDebounce, s.runAutosave)
}

func (s *Session) runAutosave() {
	s.mu.Lock()
	s.autosave = nil
	s.mu.Unlock()

	if err := s.Save(context.Background()); err != nil {
		s.deps.Logger.Warn("Autosave failed", zap.String("sessionId", s.id), zap.Error(err))
	}
}

func (s *Session) acquireLease(ctx context.Context, boardID string) error {
	if s.deps.Lock == nil {
		return nil
	}
	if err := s.deps.Lock.Acquire(ctx, boardID, s.id, s.opts.WriterLeaseTTL); err != nil {
		if pkgerrors.IsConflict(err) {
			return err
		}
		return pkgerrors.NewUnavailableError("writer lock").WithCause(err)
	}
	return nil
}

func (s *Session) renewLease(ctx context.Context, boardID string) {
	if s.deps.Lock == nil {
		return
	}
	if err := s.deps.Lock.Acquire(ctx, boardID, s.id, s.opts.WriterLeaseTTL); err != nil {
		s.deps.Logger.Warn("Writer lease renewal failed", zap.String("boardId", boardID), zap.Error(err))
	}
}

func (s *Session) releaseLease(ctx context.Context, boardID string) {
	if s.deps.Lock == nil || boardID == s.leasedBoard() {
		return
	}
	if err := s.deps.Lock.Release(ctx, boardID, s.id); err != nil {
		s.deps.Logger.Warn("Writer lease release failed", zap.String("boardId", boardID), zap.Error(err))
	}
}

func (s *Session) leasedBoard() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leased
}

func (s *Session) active() (*board.Document, *canvas.Coordinator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.coord
}

func (s *Session) publish(ctx context.Context, evts ...events.DomainEvent) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, evts...); err != nil {
		s.deps.Logger.Warn("Publishing board events failed", zap.Error(err))
	}
}

func errNoBoard() *pkgerrors.AppError {
	return pkgerrors.NewNotFoundError("active board")
}

func stop(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
