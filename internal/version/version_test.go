package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestMerge_FillsFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.24.11",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "5f3c2e1"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	got := merge(Info{AppName: AppName, Version: "dev", Commit: "none"}, bi)

	if got.Commit != "5f3c2e1" || got.CommitDate != "2026-03-01T10:00:00Z" || got.BuildDate != "2026-03-01T10:00:00Z" {
		t.Fatalf("vcs fields not merged: %+v", got)
	}
	if got.GoVersion != "go1.24.11" {
		t.Fatalf("GoVersion = %q", got.GoVersion)
	}
	if got.VCSDirty == nil || !*got.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", got.VCSDirty)
	}
}

func TestMerge_LinkerValuesWin(t *testing.T) {
	clean := false
	bi := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "from-vcs"},
		{Key: "vcs.modified", Value: "true"},
	}}
	got := merge(Info{Commit: "from-ldflags", VCSDirty: &clean}, bi)
	if got.Commit != "from-ldflags" {
		t.Fatalf("Commit = %q, linker value should win", got.Commit)
	}
	if got.VCSDirty == nil || *got.VCSDirty {
		t.Fatalf("VCSDirty = %v, linker value should win", got.VCSDirty)
	}
}

func TestMerge_DirtyTriState(t *testing.T) {
	for _, tc := range []struct {
		value string
		want  *bool
	}{
		{"", nil},
		{"false", new(bool)},
		{"garbage", nil},
	} {
		got := merge(Info{}, &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.modified", Value: tc.value}}})
		if (got.VCSDirty == nil) != (tc.want == nil) || (got.VCSDirty != nil && *got.VCSDirty != *tc.want) {
			t.Errorf("vcs.modified=%q: VCSDirty = %v", tc.value, got.VCSDirty)
		}
	}
}

func TestGet_CarriesAppName(t *testing.T) {
	if got := Get(); got.AppName != AppName || got.Version == "" {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestInfo_String(t *testing.T) {
	dirty := true
	s := Info{AppName: "linnemanlabs-cms", Version: "1.2.3", Commit: "abc", VCSDirty: &dirty}.String()
	for _, want := range []string{"linnemanlabs-cms 1.2.3", "commit=abc", "dirty=true"} {
		if !strings.Contains(s, want) {
			t.Fatalf("String() = %q, missing %q", s, want)
		}
	}
}
