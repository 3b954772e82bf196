package livediff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Renderer is the external template renderer a session drives. It owns
// the view state; the session only sees the trees it produces. Render
// must be deterministic for identical (templateRef, state) and must
// produce children in final DOM order.
type Renderer interface {
	Render(ctx context.Context, templateRef string, state any) (*Node, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, templateRef string, state any) (*Node, error)

func (f RendererFunc) Render(ctx context.Context, templateRef string, state any) (*Node, error) {
	return f(ctx, templateRef, state)
}

var (
	// ErrSessionClosed is returned once a session has disconnected. Any
	// render cycle in flight when Close lands is discarded: its result is
	// neither committed nor returned.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotMounted is returned for events arriving before Mount.
	ErrNotMounted = errors.New("session not mounted")
	// ErrAlreadyMounted is returned for a second Mount.
	ErrAlreadyMounted = errors.New("session already mounted")
)

// SessionOptions configures a render session.
type SessionOptions struct {
	// Diagnostics receives the non-fatal diff warnings. Nil disables them.
	Diagnostics *Diagnostics

	// Logger for session events. Nil falls back to the logrus standard
	// logger.
	Logger *logrus.Logger

	// DisableDiff makes every cycle emit a full-HTML update. Useful for
	// views whose trees are known to churn entirely every render.
	DisableDiff bool

	// MaxNodes and MaxDepth bound the trees a session will diff. A tree
	// over either bound falls back to a full-HTML update for that cycle;
	// the diff is a pure CPU-bound walk, so tree size is the only thing
	// to defend against. Zero means the default.
	MaxNodes int
	MaxDepth int
}

const (
	defaultMaxNodes = 50000
	defaultMaxDepth = 256
)

// DefaultSessionOptions returns the standard configuration with
// diagnostics logged through the standard logger.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Diagnostics: NewDiagnostics(NewLogSink(nil)),
		MaxNodes:    defaultMaxNodes,
		MaxDepth:    defaultMaxDepth,
	}
}

// Session is the per-connection reactive state machine. It owns the
// committed tree, the tree the client is known to reflect, and turns
// each accepted interaction into one render-diff cycle:
//
//	Unmounted -> Mounted(tree) -> [event] -> Mounted(tree') -> ... -> closed
//
// A session runs at most one cycle at a time: the per-session mutex spans
// the renderer call, the diff and the commit, so two interactions can
// never diff against the same committed tree. Different sessions are
// fully independent; the differ itself holds no shared state.
type Session struct {
	id          string
	templateRef string
	renderer    Renderer
	opts        SessionOptions
	logger      *logrus.Logger

	mu        sync.Mutex
	committed *Node
	version   uint64

	closed atomic.Bool
}

// NewSession creates an unmounted session for one connection.
func NewSession(renderer Renderer, templateRef string, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = defaultMaxNodes
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	return &Session{
		id:          ulid.Make().String(),
		templateRef: templateRef,
		renderer:    renderer,
		opts:        opts,
		logger:      logger,
	}
}

// ID returns the session id (a ULID, so ids order by creation time).
func (s *Session) ID() string {
	return s.id
}

// Version returns the version of the last committed render, 0 before
// mount.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Committed returns the last committed tree. The caller must treat it as
// read-only.
func (s *Session) Committed() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Mount performs the first render. There is no committed tree yet, so no
// diff is computed: the update is always full HTML.
func (s *Session) Mount(ctx context.Context, state any) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.committed != nil {
		return nil, ErrAlreadyMounted
	}

	tree, err := s.renderTree(ctx, state)
	if err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	update, err := s.fullUpdate(tree, s.version+1)
	if err != nil {
		return nil, err
	}
	s.commit(tree)
	s.logger.WithFields(logrus.Fields{"session": s.id, "template": s.templateRef}).
		Debug("session mounted")
	return update, nil
}

// HandleEvent runs one render-diff cycle for a state-mutating
// interaction. The renderer produces the new tree, the differ compares it
// against the committed tree, and the new tree becomes committed whether
// or not any patches came out. A renderer or structural failure leaves
// the committed tree untouched: the client stays at its last good state
// and the error surfaces to the transport boundary.
func (s *Session) HandleEvent(ctx context.Context, state any) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.committed == nil {
		return nil, ErrNotMounted
	}

	tree, err := s.renderTree(ctx, state)
	if err != nil {
		return nil, err
	}
	// The connection may have dropped while the renderer was out; the
	// result of an in-flight cycle is discarded, never committed or sent.
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	version := s.version + 1

	if s.opts.DisableDiff || s.overBounds(tree) {
		update, err := s.fullUpdate(tree, version)
		if err != nil {
			return nil, err
		}
		s.commit(tree)
		s.logger.WithFields(logrus.Fields{"session": s.id, "version": version}).
			Warn("render fell back to full HTML update; event listeners and DOM state on the client may be lost")
		return update, nil
	}

	patches, err := DiffWith(s.committed, tree, s.opts.Diagnostics)
	if err != nil {
		// MalformedTree and friends abort this cycle only. No partial
		// patch list exists; the committed tree stays.
		return nil, fmt.Errorf("diff cycle aborted: %w", err)
	}

	if len(patches) == 0 {
		// Legal but worth surfacing: the event changed state that is not
		// reflected anywhere inside the diffed subtree.
		s.opts.Diagnostics.warn(WarnZeroPatchRender, NodePath{}, fmt.Sprintf(
			"render %d produced no DOM changes; the modified state may be outside the diffed subtree", version))
	}

	s.commit(tree)
	if patches == nil {
		patches = []Patch{}
	}
	return &Update{Mode: ModePatches, Version: version, Patches: patches}, nil
}

// Close disconnects the session. Safe to call concurrently with an
// in-flight cycle: the flag is checked again at commit time, so the
// cycle's result is discarded. Idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	// Wait out any in-flight cycle, then drop the tree; no further diffs
	// will run for this session id.
	s.mu.Lock()
	s.committed = nil
	s.mu.Unlock()
	s.logger.WithField("session", s.id).Debug("session closed")
}

func (s *Session) renderTree(ctx context.Context, state any) (*Node, error) {
	tree, err := s.renderer.Render(ctx, s.templateRef, state)
	if err != nil {
		// Application error, not a diffing error. The session state is
		// unchanged.
		return nil, fmt.Errorf("renderer failed: %w", err)
	}
	// Renderers that build text in pieces produce adjacent runs the
	// serialized form cannot represent; merge them before the tree
	// becomes the committed base.
	tree.Normalize()
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *Session) fullUpdate(tree *Node, version uint64) (*Update, error) {
	markup, err := tree.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tree: %w", err)
	}
	return &Update{Mode: ModeFull, Version: version, HTML: markup}, nil
}

func (s *Session) commit(tree *Node) {
	s.committed = tree
	s.version++
}

func (s *Session) overBounds(tree *Node) bool {
	nodes, depth := countNodes(tree)
	if nodes <= s.opts.MaxNodes && depth <= s.opts.MaxDepth {
		return false
	}
	s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"nodes":   nodes,
		"depth":   depth,
	}).Warn("tree exceeds diff bounds")
	return true
}
