package server

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"vencc/pkg/store"
)

func startServer(t *testing.T, opts Options) (*Server, *fasthttp.Client) {
	t.Helper()
	s := New(opts)
	ln := fasthttputil.NewInmemoryListener()
	go s.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}
	return s, client
}

func do(t *testing.T, client *fasthttp.Client, method, uri, body string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://vencc" + uri)
	req.SetBodyString(body)

	resp := &fasthttp.Response{}
	if err := client.Do(req, resp); err != nil {
		t.Fatalf("%s %s: %v", method, uri, err)
	}
	return resp
}

func TestCompile(t *testing.T) {
	_, client := startServer(t, Options{})

	resp := do(t, client, "POST", "/compile?target=c", "@@ n i 1\n* n + 1\n>> {n}\n")
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode(), resp.Body())
	}
	if !strings.Contains(string(resp.Body()), "fprintf(stdout") {
		t.Errorf("unexpected body:\n%s", resp.Body())
	}
	if got := string(resp.Header.Peek("X-Vencc-Target")); got != "c" {
		t.Errorf("X-Vencc-Target = %q", got)
	}
	if got := resp.Header.Peek("X-Vencc-Digest"); len(got) != 64 {
		t.Errorf("X-Vencc-Digest = %q", got)
	}
}

func TestCompile_DefaultTarget(t *testing.T) {
	_, client := startServer(t, Options{Target: "rust"})
	resp := do(t, client, "POST", "/compile", ">> hi\n")
	if got := string(resp.Header.Peek("X-Vencc-Extension")); got != ".rs" {
		t.Errorf("X-Vencc-Extension = %q, want .rs", got)
	}
}

func TestCompile_Errors(t *testing.T) {
	_, client := startServer(t, Options{})

	resp := do(t, client, "POST", "/compile?target=c", ">> {ghost}\n")
	if resp.StatusCode() != fasthttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Errors) != 1 {
		t.Fatalf("errors = %+v", body.Errors)
	}
	e := body.Errors[0]
	if e.Line != 1 || e.Kind != "Undeclared" || !strings.Contains(e.Message, "ghost") {
		t.Errorf("unexpected error entry: %+v", e)
	}
}

func TestCompile_BadRequests(t *testing.T) {
	_, client := startServer(t, Options{})
	tests := []struct {
		name   string
		method string
		uri    string
		status int
	}{
		{"unknown target", "POST", "/compile?target=pdp11", fasthttp.StatusBadRequest},
		{"bad optimize", "POST", "/compile?optimize=maybe", fasthttp.StatusBadRequest},
		{"wrong method", "GET", "/compile", fasthttp.StatusMethodNotAllowed},
		{"unknown path", "GET", "/nope", fasthttp.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, client, tt.method, tt.uri, ">> hi\n")
			if resp.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode(), tt.status)
			}
		})
	}
}

func TestCompile_OptimizeParam(t *testing.T) {
	_, client := startServer(t, Options{})
	src := "@ dead i 1\n>> hi\n"

	on := do(t, client, "POST", "/compile?target=c&optimize=1", src)
	if strings.Contains(string(on.Body()), "dead") {
		t.Errorf("optimize=1 kept the dead declaration:\n%s", on.Body())
	}
	off := do(t, client, "POST", "/compile?target=c&optimize=false", src)
	if !strings.Contains(string(off.Body()), "dead") {
		t.Errorf("optimize=false dropped the declaration:\n%s", off.Body())
	}
}

func TestTargets(t *testing.T) {
	_, client := startServer(t, Options{})
	resp := do(t, client, "GET", "/targets", "")

	var got []targetEntry
	if err := json.Unmarshal(resp.Body(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d targets, want 10: %+v", len(got), got)
	}
	found := false
	for _, e := range got {
		if e.Name == "rust" {
			found = e.Extension == ".rs"
		}
	}
	if !found {
		t.Errorf("rust target missing or wrong extension: %+v", got)
	}
}

func TestHealthz_Draining(t *testing.T) {
	s, client := startServer(t, Options{})

	if resp := do(t, client, "GET", "/healthz", ""); resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("healthz before shutdown = %d", resp.StatusCode())
	}

	// Exercise the handler directly; the listener is closed by Shutdown.
	s.draining.Set()
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/healthz")
	s.Handler(&ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Errorf("healthz while draining = %d", ctx.Response.StatusCode())
	}
	s.draining.UnSet()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.Draining() {
		t.Errorf("Draining() = false after Shutdown")
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestArtifacts(t *testing.T) {
	st := store.New(0)
	_, client := startServer(t, Options{Store: st})

	resp := do(t, client, "POST", "/compile?target=ll", ">> hi\n")
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	digest := string(resp.Header.Peek("X-Vencc-Digest"))
	link := string(resp.Header.Peek("X-Vencc-Artifact"))
	if link != "/artifacts/"+digest+".ll" {
		t.Fatalf("X-Vencc-Artifact = %q", link)
	}
	text := string(resp.Body())

	got := do(t, client, "GET", link, "")
	if got.StatusCode() != fasthttp.StatusOK || string(got.Body()) != text {
		t.Errorf("GET %s = %d %q", link, got.StatusCode(), got.Body())
	}
	if len(st.List()) != 1 {
		t.Errorf("store holds %v", st.List())
	}

	missing := do(t, client, "GET", "/artifacts/"+strings.Repeat("0", 64)+".c", "")
	if missing.StatusCode() != fasthttp.StatusNotFound {
		t.Errorf("missing artifact status = %d", missing.StatusCode())
	}
	invalid := do(t, client, "GET", "/artifacts/notadigest.c", "")
	if invalid.StatusCode() != fasthttp.StatusBadRequest {
		t.Errorf("invalid artifact name status = %d", invalid.StatusCode())
	}
}

func TestArtifacts_NoStore(t *testing.T) {
	_, client := startServer(t, Options{})
	resp := do(t, client, "POST", "/compile?target=c", ">> hi\n")
	if len(resp.Header.Peek("X-Vencc-Artifact")) != 0 {
		t.Errorf("artifact link without a store")
	}
	if got := do(t, client, "GET", "/artifacts/x.c", ""); got.StatusCode() != fasthttp.StatusNotFound {
		t.Errorf("status = %d", got.StatusCode())
	}
}
