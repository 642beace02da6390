package ustr

import "testing"

func TestMkUstrSliceTruncatesAtNul(t *testing.T) {
	buf := []uint8{'h', 'i', 0, 'x', 'x'}
	got := MkUstrSlice(buf)
	if got.String() != "hi" {
		t.Fatalf("MkUstrSlice = %q, want hi", got.String())
	}
}

func TestExtendInsertsSeparator(t *testing.T) {
	got := MkUstrRoot().ExtendStr("etc")
	if got.String() != "/etc" {
		t.Fatalf("Extend = %q, want /etc", got.String())
	}
}

func TestIsAbsolute(t *testing.T) {
	if !MkUstrRoot().IsAbsolute() {
		t.Fatalf("root not reported absolute")
	}
	if Ustr("rel").IsAbsolute() {
		t.Fatalf("relative path reported absolute")
	}
}

func TestCanonicalizeMatchesAcrossEncodings(t *testing.T) {
	// U+0065 U+0301 ("e" + combining acute accent) must canonicalize to
	// the same bytes as the precomposed U+00E9 ("é").
	precomposed := Ustr(string([]rune{'c', 'a', 'f', rune(0x00E9)}))
	decomposed := Ustr(string([]rune{'c', 'a', 'f', 'e', rune(0x0301)}))
	if precomposed.Eq(decomposed) {
		t.Fatalf("test fixture bug: precomposed and decomposed forms already equal byte-for-byte")
	}
	if !precomposed.Canonicalize().Eq(decomposed.Canonicalize()) {
		t.Fatalf("canonical forms diverged: %q vs %q",
			precomposed.Canonicalize(), decomposed.Canonicalize())
	}
}

func TestEqAndDotHelpers(t *testing.T) {
	if !MkUstrDot().Isdot() {
		t.Fatalf("MkUstrDot().Isdot() = false")
	}
	if !DotDot.Isdotdot() {
		t.Fatalf("DotDot.Isdotdot() = false")
	}
	if !Ustr("abc").Eq(Ustr("abc")) {
		t.Fatalf("Eq reported mismatch for identical strings")
	}
}
