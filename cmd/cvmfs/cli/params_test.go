// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_Types(t *testing.T) {
	type embedded struct {
		Config string `flag:"config" desc:"config file"`
	}
	type params struct {
		embedded
		JSONOutput
		Verbose  bool          `flag:"verbose,v"`
		Depth    int           `flag:"depth" default:"3"`
		Revision int64         `flag:"revision"`
		Timeout  time.Duration `flag:"timeout" default:"5s"`
		Ignored  string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if p.Depth != 3 || p.Timeout != 5*time.Second {
		t.Errorf("defaults not applied: %+v", p)
	}

	err := flagSet.Parse([]string{"--config", "/etc/c.yaml", "-v", "--json", "--revision", "42", "--timeout", "1m"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Config != "/etc/c.yaml" || !p.Verbose || !p.OutputJSON || p.Revision != 42 || p.Timeout != time.Minute {
		t.Errorf("parsed params = %+v", p)
	}
	if flagSet.Lookup("ignored") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_Rejects(t *testing.T) {
	var notPointer struct{}
	if err := BindFlags(notPointer, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("expected an error for a non-pointer")
	}

	var unsupported struct {
		Rate float32 `flag:"rate"`
	}
	if err := BindFlags(&unsupported, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("expected an error for an unsupported type")
	}

	var badDefault struct {
		Count int `flag:"count" default:"many"`
	}
	if err := BindFlags(&badDefault, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("expected an error for an unparseable default")
	}
}

func TestEmitJSON(t *testing.T) {
	var output JSONOutput
	var buffer bytes.Buffer

	if done, err := output.EmitJSON(&buffer, []string{"a"}); done || err != nil {
		t.Errorf("EmitJSON without --json = %v, %v", done, err)
	}

	output.OutputJSON = true
	var nilSlice []string
	if done, err := output.EmitJSON(&buffer, nilSlice); !done || err != nil {
		t.Fatalf("EmitJSON = %v, %v", done, err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q", buffer.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := NewLogger(&buffer, "warn", "json", false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "path", "/a")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("decoding %q: %v", buffer.String(), err)
	}
	if record["msg"] != "kept" || record["path"] != "/a" {
		t.Errorf("record = %v", record)
	}

	verbose, err := NewLogger(&buffer, "error", "text", true)
	if err != nil {
		t.Fatalf("NewLogger verbose: %v", err)
	}
	if !verbose.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("verbose logger should enable debug")
	}

	if _, err := NewLogger(&buffer, "loud", "text", false); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if _, err := NewLogger(&buffer, "info", "xml", false); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestStylesFor_NonTerminalIsPlain(t *testing.T) {
	styles := StylesFor(&bytes.Buffer{})
	if got := styles.Directory("bin"); got != "bin" {
		t.Errorf("Directory = %q, want plain text", got)
	}
	if got := (Styles{}).Failure("untrusted"); got != "untrusted" {
		t.Errorf("zero Styles rendered %q", got)
	}
}
