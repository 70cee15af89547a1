package errcat

import (
	"strings"
	"testing"
)

func TestKindCodesDeterministicAndInRuntimeRange(t *testing.T) {
	for kind, code := range kindCodes {
		if !StageRuntime.InRange(code) {
			t.Errorf("%s: code %d outside the runtime range 400-499", kind, code)
		}

		if again := New(kind, "x", 0).Code; again != code {
			t.Errorf("%s: code not deterministic, got %d then %d", kind, code, again)
		}
	}
}

func TestStageRangesDoNotOverlap(t *testing.T) {
	cases := []struct {
		stage Stage
		code  int
		want  bool
	}{
		{StageScanning, 1, true},
		{StageScanning, 100, false},
		{StageParsing, 150, true},
		{StageRuntime, 400, true},
		{StageRuntime, 500, false},
		{StageCompile, 650, true},
	}

	for _, c := range cases {
		if got := c.stage.InRange(c.code); got != c.want {
			t.Errorf("%s.InRange(%d) = %v, want %v", c.stage, c.code, got, c.want)
		}
	}
}

func TestHintAttachedFromCatalog(t *testing.T) {
	e := New(KindDivisionByZero, "Division by zero", 3)

	if e.Hint == "" || e.Suggestion == "" {
		t.Fatalf("cataloged kind must carry a hint and suggestion, got %q / %q", e.Hint, e.Suggestion)
	}

	if e2 := New(KindDivisionByZero, "Division by zero", 9); e2.Hint != e.Hint {
		t.Error("hint must depend only on (stage, message), not on location")
	}
}

func TestCausedByChainsThroughErrorAndUnwrap(t *testing.T) {
	inner := New(KindHostError, "socket closed", 0)
	outer := New(KindCancelled, "operation aborted", 7).WithCause(inner)

	if outer.Unwrap() != inner {
		t.Fatal("Unwrap must expose CausedBy")
	}

	msg := outer.Error()
	if want := "caused by:"; !strings.Contains(msg, want) {
		t.Errorf("rendered error %q must include %q", msg, want)
	}
}
