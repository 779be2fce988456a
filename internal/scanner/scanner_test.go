package scanner

import (
	"errors"
	"strings"
	"testing"

	"github.com/joeblau/jsonsplit/internal/buffer"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
	"github.com/joeblau/jsonsplit/internal/locator"
)

// scanAll locates key (possibly "") in input and collects the verbatim
// bytes of every emitted element, copying each out immediately since
// Element.Bytes is only valid until the next Next() call.
func scanAll(t *testing.T, input, key string, bufSize int) []string {
	t.Helper()
	buf := buffer.New(strings.NewReader(input), bufSize)
	if err := locator.Locate(buf, key); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	var got []string
	for {
		el, more, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !more {
			break
		}
		got = append(got, string(el.Bytes))
	}
	return got
}

func TestEmptyArray(t *testing.T) {
	got := scanAll(t, `{"accounts":[]}`, "accounts", 64)
	if len(got) != 0 {
		t.Fatalf("expected no elements, got %v", got)
	}
}

func TestWhitespaceOnlyBetweenCommas(t *testing.T) {
	got := scanAll(t, `[1,   2,
		3]`, "", 64)
	want := []string{"1", "2", "3"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScenario1(t *testing.T) {
	got := scanAll(t, `{"accounts":[{"id":1},{"id":2}]}`, "accounts", 64)
	want := []string{`{"id":1}`, `{"id":2}`}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScenario3MixedTypes(t *testing.T) {
	got := scanAll(t, `{"a":[1,"two",[3,4],{"k":"}"}]}`, "a", 64)
	want := []string{"1", `"two"`, "[3,4]", `{"k":"}"}`}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScenario4TopLevel(t *testing.T) {
	got := scanAll(t, `[10,20,30]`, "", 64)
	want := []string{"10", "20", "30"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestStringWithStructuralCharsAndEscapes(t *testing.T) {
	input := `["a{b[c]d}e\"f\\g"]`
	got := scanAll(t, input, "", 64)
	want := []string{`"a{b[c]d}e\"f\\g"`}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestElementExceedsBufferSize(t *testing.T) {
	long := `{"huge":"` + strings.Repeat("z", 500) + `"}`
	input := `[1,` + long + `,2]`
	got := scanAll(t, input, "", 8)
	if len(got) != 3 || got[0] != "1" || got[2] != "2" || got[1] != long {
		t.Fatalf("refill-across-element path broken; got lens %d, elem[1] len=%d want=%d", len(got), len(got[1]), len(long))
	}
}

func TestDeepNesting(t *testing.T) {
	depth := 64
	elem := strings.Repeat("[", depth) + "1" + strings.Repeat("]", depth)
	input := "[" + elem + "]"
	got := scanAll(t, input, "", 16)
	if len(got) != 1 || got[0] != elem {
		t.Fatalf("got %v", got)
	}
}

func TestTrailingCommaTolerated(t *testing.T) {
	got := scanAll(t, `[1,2,]`, "", 64)
	want := []string{"1", "2"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTrailingWhitespaceTrimmedOnPrimitive(t *testing.T) {
	got := scanAll(t, `[1   ,2]`, "", 64)
	want := []string{"1", "2"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTruncatedInsideString(t *testing.T) {
	buf := buffer.New(strings.NewReader(`["abc`), 64)
	if err := locator.Locate(buf, ""); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	_, _, err := s.Next()
	var te *jsonerr.TruncatedElementError
	if !errors.As(err, &te) {
		t.Fatalf("expected TruncatedElementError, got %v", err)
	}
}

func TestTruncatedInsideStructure(t *testing.T) {
	buf := buffer.New(strings.NewReader(`[{"a":1`), 64)
	if err := locator.Locate(buf, ""); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	_, _, err := s.Next()
	var te *jsonerr.TruncatedElementError
	if !errors.As(err, &te) {
		t.Fatalf("expected TruncatedElementError, got %v", err)
	}
}

func TestScenario5TruncatedRightAfterOpenBracket(t *testing.T) {
	buf := buffer.New(strings.NewReader(`{"accounts":[`), 64)
	if err := locator.Locate(buf, "accounts"); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	_, _, err := s.Next()
	var te *jsonerr.TruncatedElementError
	if !errors.As(err, &te) {
		t.Fatalf("expected TruncatedElementError, got %v", err)
	}
}

func TestEOFInsidePrimitiveTolerated(t *testing.T) {
	buf := buffer.New(strings.NewReader(`[42`), 64)
	if err := locator.Locate(buf, ""); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	el, more, err := s.Next()
	if err != nil || !more {
		t.Fatalf("expected tolerated primitive, got more=%v err=%v", more, err)
	}
	if string(el.Bytes) != "42" {
		t.Fatalf("got %q", el.Bytes)
	}
	_, more, err = s.Next()
	if err == nil && more {
		t.Fatal("expected no further elements")
	}
}

func TestBytesReadTracksConsumedInput(t *testing.T) {
	buf := buffer.New(strings.NewReader(`[1,2,3]`), 64)
	if err := locator.Locate(buf, ""); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	for {
		_, more, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !more {
			break
		}
	}
	if got := s.BytesRead(); got != 7 {
		t.Fatalf("BytesRead() = %d, want 7", got)
	}
}

func TestSeqIsDocumentOrder(t *testing.T) {
	buf := buffer.New(strings.NewReader(`[1,2,3]`), 64)
	if err := locator.Locate(buf, ""); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(buf)
	for want := uint64(1); want <= 3; want++ {
		el, more, err := s.Next()
		if err != nil || !more {
			t.Fatalf("Next: more=%v err=%v", more, err)
		}
		if el.Seq != want {
			t.Fatalf("seq = %d, want %d", el.Seq, want)
		}
	}
}

// FuzzNext feeds arbitrary byte strings through the scanner (after locating
// a top-level array) and asserts it never panics and never emits a byte
// range reaching outside the original input, per the scanner's fuzz
// coverage requirement.
func FuzzNext(f *testing.F) {
	seeds := []string{
		`[]`,
		`[1,2,3]`,
		`[{"a":[1,2]},"x",null,true,false]`,
		`["unterminated`,
		`[{"a":`,
		`[1,2,`,
		`["\\\"\n"]`,
		`[` + strings.Repeat("[", 70) + "1" + strings.Repeat("]", 70) + `]`,
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		buf := buffer.New(strings.NewReader("[" + string(data)), 32)
		ok, err := buf.EnsureByte()
		if err != nil || !ok {
			return
		}
		if buf.Byte() != '[' {
			return
		}
		buf.Advance()
		s := New(buf)
		for i := 0; i < 10_000; i++ {
			el, more, err := s.Next()
			if err != nil || !more {
				return
			}
			if len(el.Bytes) > len(data)+1 {
				t.Fatalf("emitted range longer than input: %d > %d", len(el.Bytes), len(data)+1)
			}
		}
	})
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
