package livediff

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// WarningCode identifies a diagnostic condition. The numbering follows
// the DJE-05x range used by client tooling; DJE-053 is the long-standing
// "render produced no DOM changes" code, the others cover the
// sibling-group checks.
type WarningCode string

const (
	WarnMixedKeying        WarningCode = "DJE-051"
	WarnDuplicateKey       WarningCode = "DJE-052"
	WarnZeroPatchRender    WarningCode = "DJE-053"
	WarnUnkeyedPerformance WarningCode = "DJE-054"
)

// Warning is one structured diagnostic record. Warnings travel out of
// band (log/telemetry), never inside the patch stream, and are always
// developer-facing: a warning never changes what the differ emits.
type Warning struct {
	Code   WarningCode `json:"code"`
	Path   NodePath    `json:"path"` // the sibling group's parent (empty for whole-render checks)
	Detail string      `json:"detail"`
}

// Sink receives diagnostic warnings.
type Sink interface {
	Warn(w Warning)
}

// Checks toggles the individual diagnostics. The zero value disables
// everything; use DefaultChecks for the standard set.
type Checks struct {
	MixedKeying        bool
	DuplicateKey       bool
	UnkeyedPerformance bool
	ZeroPatchRender    bool

	// UnkeyedSizeThreshold is the minimum sibling-group size for the
	// unkeyed performance check. Groups below it never warn.
	UnkeyedSizeThreshold int
}

const defaultUnkeyedSizeThreshold = 10

// DefaultChecks enables every check with the default size threshold.
func DefaultChecks() Checks {
	return Checks{
		MixedKeying:          true,
		DuplicateKey:         true,
		UnkeyedPerformance:   true,
		ZeroPatchRender:      true,
		UnkeyedSizeThreshold: defaultUnkeyedSizeThreshold,
	}
}

// Diagnostics pairs a check configuration with a sink. A nil *Diagnostics
// is valid everywhere and reports nothing.
type Diagnostics struct {
	Checks Checks
	Sink   Sink
}

// NewDiagnostics builds a Diagnostics with the default checks.
func NewDiagnostics(sink Sink) *Diagnostics {
	return &Diagnostics{Checks: DefaultChecks(), Sink: sink}
}

func (d *Diagnostics) enabled(code WarningCode) bool {
	if d == nil || d.Sink == nil {
		return false
	}
	switch code {
	case WarnMixedKeying:
		return d.Checks.MixedKeying
	case WarnDuplicateKey:
		return d.Checks.DuplicateKey
	case WarnZeroPatchRender:
		return d.Checks.ZeroPatchRender
	case WarnUnkeyedPerformance:
		return d.Checks.UnkeyedPerformance
	}
	return false
}

func (d *Diagnostics) warn(code WarningCode, path NodePath, detail string) {
	if !d.enabled(code) {
		return
	}
	d.Sink.Warn(Warning{Code: code, Path: path, Detail: detail})
}

func (d *Diagnostics) unkeyedThreshold() int {
	if d == nil || d.Checks.UnkeyedSizeThreshold <= 0 {
		return defaultUnkeyedSizeThreshold
	}
	return d.Checks.UnkeyedSizeThreshold
}

// LogSink writes warnings through a logrus logger as structured fields.
type LogSink struct {
	Logger *logrus.Logger
}

// NewLogSink wraps a logger; a nil logger falls back to the logrus
// standard logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Warn(w Warning) {
	s.Logger.WithFields(logrus.Fields{
		"code":   string(w.Code),
		"path":   w.Path.String(),
		"detail": w.Detail,
	}).Warn("diff diagnostic")
}

// CollectSink accumulates warnings in memory. Useful for tests and for
// telemetry pipelines that batch-forward warnings. Safe for concurrent
// use.
type CollectSink struct {
	mu       sync.Mutex
	warnings []Warning
}

func (s *CollectSink) Warn(w Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

// Warnings returns a copy of everything collected so far.
func (s *CollectSink) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Reset discards collected warnings.
func (s *CollectSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = nil
}
