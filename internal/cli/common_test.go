package cli

import (
	"strings"
	"testing"
)

func TestGetVersionInfoCarriesToolAndBuildIdentity(t *testing.T) {
	info := GetVersionInfo("limvm")

	if info.Tool != "limvm" {
		t.Errorf("Tool = %q, want limvm", info.Tool)
	}

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}

	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch", info.Platform)
	}

	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Errorf("GoVersion = %q, want a go release string", info.GoVersion)
	}
}
