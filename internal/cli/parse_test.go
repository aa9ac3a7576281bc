package cli

import (
	"bytes"
	"strings"
	"testing"
)

func runParse(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := parseCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return out.String()
}

func TestParseCmdStdin(t *testing.T) {
	t.Parallel()
	out := runParse(t, "fr\nja linux win32\nde\n", "-")
	for _, want := range []string{"fr\n", "ja linux win32\n", "de\n", "3 locale(s)\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseCmdPlatformAnnotations(t *testing.T) {
	t.Parallel()
	out := runParse(t, "en-US\nfr\nja linux\n", "-", "--platform", "macosx64")
	if !strings.Contains(out, "[skipped: base locale]") {
		t.Fatalf("en-US not marked skipped:\n%s", out)
	}
	if !strings.Contains(out, "[skipped: not built on osx]") {
		t.Fatalf("ja not marked skipped for osx:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "fr") && strings.Contains(line, "skipped") {
			t.Fatalf("fr wrongly skipped: %q", line)
		}
	}
}

func TestParseCmdRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()
	cmd := parseCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader("fr\n"))
	cmd.SetArgs([]string{"-", "--platform", "android"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestParsePropsFlag(t *testing.T) {
	t.Parallel()
	set, err := parseProps([]string{"who", "nightly=true"})
	if err == nil {
		t.Fatal("expected error for malformed property")
	}
	set, err = parseProps([]string{"nightly=true", "who=cron"})
	if err != nil {
		t.Fatalf("parseProps: %v", err)
	}
	if v, _ := set.Get("who"); v != "cron" {
		t.Fatalf("who = %v", v)
	}
	if p, _ := set.Lookup("nightly"); p.Source != "CommandLine" {
		t.Fatalf("source = %q", p.Source)
	}
	if set, err = parseProps(nil); err != nil || set != nil {
		t.Fatalf("nil args: %v, %v", set, err)
	}
}
