package templates

import (
	"bytes"
	"context"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	texttmpl "text/template"
)

// Config controls how the engine loads templates.
// Dir: when non-empty, templates are read from this directory (<id>.tmpl).
// Reload: with Dir set, templates are reparsed on every render.
type Config struct {
	Dir    string
	Reload bool
}

// Rendered holds the per-channel content of a scenario.
type Rendered struct {
	Subject   string
	EmailHTML string
	EmailText string
	SMSText   string
}

// IHandle is a runtime view of a typed Handle.
type IHandle interface {
	ID() string
	DataType() reflect.Type
}

// Handle ties a template id to the type of data it renders.
type Handle[T any] struct {
	id string
}

func Expect[T any](id string) Handle[T] { return Handle[T]{id: id} }

func (h Handle[T]) ID() string { return h.id }

func (h Handle[T]) DataType() reflect.Type {
	var zero *T
	return reflect.TypeOf(zero).Elem()
}

// Renderer is the DI-friendly interface for the engine.
type Renderer interface {
	RenderAny(ctx context.Context, id string, data any) (Rendered, error)
}

// Engine compiles scenario templates once and renders them per call.
type Engine struct {
	cfg   Config
	log   *slog.Logger
	fs    fs.FS
	mu    sync.RWMutex
	cache map[string]*compiled
}

type compiled struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

// textBlocks lists the plain text blocks a scenario may define and where
// their output goes.
var textBlocks = []struct {
	name string
	set  func(*Rendered, string)
}{
	{"subject", func(r *Rendered, s string) { r.Subject = strings.TrimSpace(s) }},
	{"email_text", func(r *Rendered, s string) { r.EmailText = s }},
	{"sms_text", func(r *Rendered, s string) { r.SMSText = strings.TrimSpace(s) }},
}

func NewEngine(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	var source fs.FS = EmbeddedFS
	if cfg.Dir != "" {
		source = os.DirFS(cfg.Dir)
	}
	return &Engine{
		cfg:   cfg,
		log:   log,
		fs:    source,
		cache: make(map[string]*compiled),
	}
}

// Render checks at compile time that data matches the handle.
func Render[T any](ctx context.Context, e *Engine, h Handle[T], data T) (Rendered, error) {
	return e.RenderAny(ctx, h.ID(), data)
}

func (e *Engine) RenderAny(_ context.Context, id string, data any) (Rendered, error) {
	c, err := e.getCompiled(id)
	if err != nil {
		return Rendered{}, err
	}

	var out Rendered
	for _, b := range textBlocks {
		if c.text.Lookup(b.name) == nil {
			continue
		}
		var buf bytes.Buffer
		if err := c.text.ExecuteTemplate(&buf, b.name, data); err != nil {
			return Rendered{}, fmt.Errorf("render %s: %w", b.name, err)
		}
		b.set(&out, buf.String())
	}
	if c.html.Lookup("email_html") != nil {
		var buf bytes.Buffer
		if err := c.html.ExecuteTemplate(&buf, "email_html", data); err != nil {
			return Rendered{}, fmt.Errorf("render email_html: %w", err)
		}
		out.EmailHTML = buf.String()
	}
	return out, nil
}

func (e *Engine) getCompiled(id string) (*compiled, error) {
	if e.cfg.Dir != "" && e.cfg.Reload {
		return e.parse(id)
	}

	e.mu.RLock()
	cached, ok := e.cache[id]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	c, err := e.parse(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[id] = c
	e.mu.Unlock()
	return c, nil
}

func (e *Engine) parse(id string) (*compiled, error) {
	path := id + ".tmpl"
	if e.cfg.Dir == "" {
		path = "files/" + path
	}
	b, err := fs.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read template %q: %w", path, err)
	}

	tText, err := texttmpl.New(id).Option("missingkey=error").Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("parse text blocks (%s): %w", id, err)
	}
	tHTML, err := htmltmpl.New(id).Option("missingkey=error").Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("parse html block (%s): %w", id, err)
	}
	e.log.Debug("template compiled", "id", id)
	return &compiled{text: tText, html: tHTML}, nil
}
