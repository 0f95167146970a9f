package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lshigami/intervue/config"
	"github.com/stretchr/testify/assert"
)

func judge0Server(t *testing.T, status int, body string, seen *judge0Submission) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submissions", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSandbox(url string) SandboxService {
	cfg := &config.Config{}
	cfg.Sandbox.Judge0URL = url + "/"
	cfg.Sandbox.Judge0ApiKey = "secret"
	cfg.Sandbox.RatePerSecond = 100
	cfg.Sandbox.Burst = 10
	return NewSandboxService(cfg)
}

func TestRunCodeAccepted(t *testing.T) {
	var seen judge0Submission
	srv := judge0Server(t, http.StatusCreated,
		`{"stdout":"42\n","stderr":null,"time":"0.125","memory":4096,"status":{"id":3,"description":"Accepted"}}`, &seen)

	res := newTestSandbox(srv.URL).RunCode(context.Background(), SandboxRunOptions{Code: "print(42)", Language: "Python", Stdin: "x"})
	assert.Equal(t, 3, res.StatusCode)
	assert.Equal(t, "42\n", res.Stdout)
	assert.Equal(t, 125, res.ExecutionTimeMs)
	assert.Equal(t, 4, res.MemoryUsedMb)
	assert.Empty(t, res.CompileError)
	assert.Empty(t, res.RuntimeError)

	assert.Equal(t, 71, seen.LanguageID)
	assert.Equal(t, "x", seen.Stdin)
	assert.Equal(t, 10, seen.CPUTimeLimit)
	assert.Equal(t, 128*1024, seen.MemoryLimit)
}

func TestRunCodeCompileError(t *testing.T) {
	srv := judge0Server(t, http.StatusOK, `{"compile_output":null,"status":{"id":6,"description":"Compilation Error"}}`, nil)
	res := newTestSandbox(srv.URL).RunCode(context.Background(), SandboxRunOptions{Code: "x", Language: "go"})
	assert.Equal(t, 6, res.StatusCode)
	assert.Equal(t, "Compilation failed", res.CompileError)
}

func TestRunCodeRuntimeError(t *testing.T) {
	srv := judge0Server(t, http.StatusOK, `{"stderr":"","status":{"id":11,"description":"Runtime Error (NZEC)"}}`, nil)
	res := newTestSandbox(srv.URL).RunCode(context.Background(), SandboxRunOptions{Code: "x"})
	assert.Equal(t, "Runtime Error (NZEC)", res.RuntimeError)
}

func TestRunCodeTransportFailure(t *testing.T) {
	srv := judge0Server(t, http.StatusInternalServerError, `boom`, nil)
	res := newTestSandbox(srv.URL).RunCode(context.Background(), SandboxRunOptions{Code: "x"})
	assert.Equal(t, -1, res.StatusCode)
	assert.Equal(t, sandboxUnavailableMsg, res.RuntimeError)
}

func TestJudge0LanguageIDDefaultsToJavaScript(t *testing.T) {
	assert.Equal(t, 60, judge0LanguageID("Go"))
	assert.Equal(t, 63, judge0LanguageID("cobol"))
}
