package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "hubrag version") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "frobnicate")
	if code != 1 {
		t.Errorf("exit code = %d; want 1", code)
	}
	if !strings.Contains(errOut, "error:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_Migrate(t *testing.T) {
	t.Setenv("HUBRAG_DB_PATH", filepath.Join(t.TempDir(), "hubrag.db"))

	code, out, errOut := runCLI(t, "migrate")
	if code != 0 {
		t.Fatalf("exit code = %d stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "applied 3 migration(s); schema version 3") {
		t.Errorf("first run output = %q", out)
	}

	code, out, _ = runCLI(t, "migrate")
	if code != 0 || !strings.Contains(out, "applied 0 migration(s); schema version 3") {
		t.Errorf("second run: code %d output %q", code, out)
	}
}

func TestRun_AskWithoutRetrieval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"Get morning sunlight."},"done":true,"done_reason":"stop"}` + "\n")) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("EMBED_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("LLM_MAX_ATTEMPTS", "1")

	code, out, errOut := runCLI(t, "ask", "--rag=false", "How do I sleep better?")
	if code != 0 {
		t.Fatalf("exit code = %d stderr = %s", code, errOut)
	}
	if strings.TrimSpace(out) != "Get morning sunlight." {
		t.Errorf("output = %q", out)
	}
}
