// Package server exposes the compiler over HTTP.
//
//	POST /compile?target=c[&optimize=0]   body: ven source
//	GET  /artifacts/<digest><ext>   (when a store is configured)
//	GET  /targets
//	GET  /healthz
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tevino/abool/v2"
	"github.com/valyala/fasthttp"

	"vencc/pkg/codegen"
	"vencc/pkg/driver"
	"vencc/pkg/logs"
	"vencc/pkg/store"
)

// MaxSourceSize bounds the request body accepted by /compile.
const MaxSourceSize = 1 << 20

type Options struct {
	// Target is used when a request names none.
	Target string
	// NoOptimize is the default for requests without ?optimize=.
	NoOptimize bool
	Logger     *slog.Logger
	// Store, when set, keeps every artifact served by /compile so it
	// can be fetched again from /artifacts/.
	Store *store.Store
}

type Server struct {
	opts     Options
	logger   *slog.Logger
	draining *abool.AtomicBool
	srv      *fasthttp.Server
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logs.Discard()
	}
	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		draining: abool.NewBool(false),
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "vencc",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: MaxSourceSize,
	}
	return s
}

// Handler routes a single request.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/compile":
		if !ctx.IsPost() {
			ctx.Error("use POST", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleCompile(ctx)
	case "/targets":
		s.handleTargets(ctx)
	case "/healthz":
		if s.draining.IsSet() {
			ctx.Error("draining", fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString("ok")
	default:
		if name, ok := strings.CutPrefix(string(ctx.Path()), "/artifacts/"); ok && s.opts.Store != nil {
			s.handleArtifact(ctx, name)
			return
		}
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleArtifact(ctx *fasthttp.RequestCtx, name string) {
	data, err := s.opts.Store.Get(name)
	switch {
	case errors.Is(err, store.ErrInvalidName):
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
	case err != nil:
		ctx.Error(err.Error(), fasthttp.StatusNotFound)
	default:
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBody(data)
	}
}

type errorBody struct {
	Errors []errorEntry `json:"errors"`
}

type errorEntry struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleCompile(ctx *fasthttp.RequestCtx) {
	target := string(ctx.QueryArgs().Peek("target"))
	if target == "" {
		target = s.opts.Target
	}
	noOptimize := s.opts.NoOptimize
	if v := ctx.QueryArgs().Peek("optimize"); len(v) > 0 {
		on, err := strconv.ParseBool(string(v))
		if err != nil {
			ctx.Error("optimize: "+err.Error(), fasthttp.StatusBadRequest)
			return
		}
		noOptimize = !on
	}

	art, err := driver.Compile(string(ctx.PostBody()), driver.Options{
		Target:     target,
		NoOptimize: noOptimize,
		Logger:     s.logger,
	})
	var ce *driver.CompileError
	switch {
	case errors.Is(err, driver.ErrUnknownTarget):
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	case errors.As(err, &ce):
		body := errorBody{Errors: make([]errorEntry, len(ce.Errors))}
		for i, e := range ce.Errors {
			body.Errors[i] = errorEntry{Line: e.Line() + 1, Kind: e.Kind(), Message: e.Message()}
		}
		s.writeJSON(ctx, fasthttp.StatusUnprocessableEntity, body)
		return
	case err != nil:
		s.logger.Error("compile", "err", err)
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.Response.Header.Set("X-Vencc-Target", art.Target)
	ctx.Response.Header.Set("X-Vencc-Extension", art.Extension)
	ctx.Response.Header.Set("X-Vencc-Digest", art.DigestHex())
	if s.opts.Store != nil {
		name := store.Name(art.DigestHex(), art.Extension)
		if err := s.opts.Store.Put(name, []byte(art.Text)); err != nil {
			s.logger.Warn("artifact not stored", "name", name, "err", err)
		} else {
			ctx.Response.Header.Set("X-Vencc-Artifact", "/artifacts/"+name)
		}
	}
	ctx.SetBodyString(art.Text)
}

type targetEntry struct {
	Name      string   `json:"name"`
	Extension string   `json:"extension"`
	Aliases   []string `json:"aliases,omitempty"`
}

func (s *Server) handleTargets(ctx *fasthttp.RequestCtx) {
	var out []targetEntry
	for _, name := range codegen.Targets() {
		e, _ := codegen.Lookup(name)
		out = append(out, targetEntry{
			Name:      name,
			Extension: e.Extension(),
			Aliases:   codegen.Aliases(name),
		})
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving", "addr", ln.Addr().String())
	return s.srv.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown marks the server as draining, so /healthz starts failing,
// then waits for open requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.draining.SetToIf(false, true) {
		return nil
	}
	s.logger.Info("draining")
	return s.srv.ShutdownWithContext(ctx)
}

// Draining reports whether Shutdown has been called.
func (s *Server) Draining() bool {
	return s.draining.IsSet()
}
