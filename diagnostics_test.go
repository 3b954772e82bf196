package livediff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func warningCodes(ws []Warning) []WarningCode {
	codes := make([]WarningCode, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

func TestChecksAreIndividuallyToggleable(t *testing.T) {
	mixedOld := Element("div").Append(
		Element("p", Attr{Name: "data-key", Value: "a"}),
		Element("p"),
	)
	mixedNew := Element("div").Append(
		Element("p"),
		Element("p", Attr{Name: "data-key", Value: "a"}),
	)

	t.Run("enabled", func(t *testing.T) {
		sink := &CollectSink{}
		if _, err := DiffWith(mixedOld, mixedNew, NewDiagnostics(sink)); err != nil {
			t.Fatalf("Diff failed: %v", err)
		}
		found := false
		for _, w := range sink.Warnings() {
			if w.Code == WarnMixedKeying {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s, got %v", WarnMixedKeying, warningCodes(sink.Warnings()))
		}
	})

	t.Run("disabled", func(t *testing.T) {
		sink := &CollectSink{}
		diag := NewDiagnostics(sink)
		diag.Checks.MixedKeying = false
		if _, err := DiffWith(mixedOld, mixedNew, diag); err != nil {
			t.Fatalf("Diff failed: %v", err)
		}
		for _, w := range sink.Warnings() {
			if w.Code == WarnMixedKeying {
				t.Errorf("disabled check still fired: %+v", w)
			}
		}
	})
}

func TestDiagnosticsNeverChangePatches(t *testing.T) {
	old := Element("ul").Append(
		Element("li", Attr{Name: "data-key", Value: "a"}),
		Element("li"),
		Element("li", Attr{Name: "data-key", Value: "a"}),
	)
	new := Element("ul").Append(
		Element("li"),
		Element("li", Attr{Name: "data-key", Value: "a"}),
	)

	bare, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	sink := &CollectSink{}
	watched, err := DiffWith(old, new, NewDiagnostics(sink))
	if err != nil {
		t.Fatalf("DiffWith failed: %v", err)
	}

	if len(bare) != len(watched) {
		t.Fatalf("diagnostics changed patch count: %d vs %d", len(bare), len(watched))
	}
	for i := range bare {
		if bare[i].Type != watched[i].Type || !pathEqual(bare[i].Path, watched[i].Path) {
			t.Errorf("patch %d differs with diagnostics attached", i)
		}
	}
	if len(sink.Warnings()) == 0 {
		t.Error("expected duplicate-key and mixed-keying warnings")
	}
}

func TestUnkeyedThresholdRespected(t *testing.T) {
	shift := func(n int) (*Node, *Node) {
		old := unkeyedList(n)
		new := Element("ul")
		new.Children = old.Clone().Children[1:]
		return old, new
	}

	// Below the threshold: silent, however pathological the shift.
	sink := &CollectSink{}
	old, new := shift(9)
	if _, err := DiffWith(old, new, NewDiagnostics(sink)); err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	for _, w := range sink.Warnings() {
		if w.Code == WarnUnkeyedPerformance {
			t.Errorf("warning fired below threshold: %+v", w)
		}
	}

	// Custom threshold pulls it in.
	sink.Reset()
	diag := NewDiagnostics(sink)
	diag.Checks.UnkeyedSizeThreshold = 5
	old, new = shift(9)
	if _, err := DiffWith(old, new, diag); err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	found := false
	for _, w := range sink.Warnings() {
		if w.Code == WarnUnkeyedPerformance {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s with threshold 5, got %v", WarnUnkeyedPerformance, warningCodes(sink.Warnings()))
	}
}

func TestNilDiagnosticsAreSafe(t *testing.T) {
	old := Element("ul").Append(Element("li", Attr{Name: "data-key", Value: "a"}), Element("li"))
	new := Element("ul").Append(Element("li"))
	if _, err := DiffWith(old, new, nil); err != nil {
		t.Fatalf("nil diagnostics broke the diff: %v", err)
	}

	var diag *Diagnostics
	diag.warn(WarnMixedKeying, NodePath{}, "must not panic")
}

func TestLogSinkEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	sink := NewLogSink(logger)
	sink.Warn(Warning{Code: WarnDuplicateKey, Path: NodePath{0, 2}, Detail: "duplicate key \"a\""})

	out := buf.String()
	for _, want := range []string{"DJE-052", "0/2", "duplicate key"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
