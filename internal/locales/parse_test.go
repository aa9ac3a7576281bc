package locales

import (
	"errors"
	"testing"
)

func TestParseBasic(t *testing.T) {
	t.Parallel()
	list, err := Parse("fr\nja linux win32\nde")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := list.Locales(); len(got) != 3 || got[0] != "fr" || got[1] != "ja" || got[2] != "de" {
		t.Fatalf("unexpected locales: %v", got)
	}
	if list.Restrictions("fr").Len() != 0 {
		t.Fatalf("fr should be unrestricted, got %v", list.Restrictions("fr").Sorted())
	}
	if ja := list.Restrictions("ja"); !ja.Equal(NewPlatformSet("linux", "win32")) {
		t.Fatalf("ja restrictions = %v", ja.Sorted())
	}
	if list.Restrictions("de").Len() != 0 {
		t.Fatalf("de should be unrestricted, got %v", list.Restrictions("de").Sorted())
	}
}

func TestParseRepeatedLocaleUnionsPlatforms(t *testing.T) {
	t.Parallel()
	list, err := Parse("fr linux\nfr osx")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("expected 1 locale, got %d", list.Len())
	}
	if fr := list.Restrictions("fr"); !fr.Equal(NewPlatformSet("linux", "osx")) {
		t.Fatalf("fr restrictions = %v", fr.Sorted())
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	t.Parallel()
	list, err := Parse("fr\n\n   \n\t\nja-JP-mac osx\n")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if list.Len() != 2 {
		t.Fatalf("expected 2 locales, got %d (%v)", list.Len(), list.Locales())
	}
	if list.Has("") {
		t.Fatal("blank line produced an empty locale id")
	}
}

func TestParseEmptyInputYieldsEmptyList(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "\n\n", " \t \n "} {
		list, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if list.Len() != 0 {
			t.Fatalf("Parse(%q) = %v, want empty", in, list.Locales())
		}
	}
}

func TestParseRejectsBinaryContent(t *testing.T) {
	t.Parallel()
	_, err := Parse("fr\x00ja")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseKeepsTokensVerbatim(t *testing.T) {
	t.Parallel()
	// Platform tokens must not be normalized by the parser.
	list, err := Parse("ja-JP-mac macosx64")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !list.Restrictions("ja-JP-mac").Has("macosx64") {
		t.Fatalf("expected verbatim macosx64 token, got %v", list.Restrictions("ja-JP-mac").Sorted())
	}
}

func TestListCloneIsDeep(t *testing.T) {
	t.Parallel()
	orig := NewList()
	orig.Add("fr", "linux")
	cp := orig.Clone()
	cp.Add("fr", "osx")
	cp.Add("de")

	if orig.Restrictions("fr").Has("osx") {
		t.Fatal("clone mutation leaked into original restriction set")
	}
	if orig.Has("de") {
		t.Fatal("clone mutation leaked into original order")
	}
	if !orig.Equal(orig.Clone()) {
		t.Fatal("clone should be equal to its source")
	}
}
