// Package inity mounts interactive form islands onto server-rendered HTML.
//
// Markup declares a mount point with a logical name and optional JSON props:
//
//	<div x-inity="posts" x-props='{"timezone":"Europe/Paris"}'></div>
//
// A Registry maps each name to a Component and its static props. Attach scans
// a document and mounts one independent Island per anchor.
package inity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

const (
	NameAttr  = "x-inity"
	PropsAttr = "x-props"
)

var (
	ErrAlreadyRegistered = errors.New("inity: component already registered")
	ErrEmptyName         = errors.New("inity: empty component name")
)

// Props are the merged properties handed to a component on mount.
type Props map[string]any

// String returns the string stored at key, or "".
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Decode converts the JSON-shaped value at key into out. A missing key
// leaves out untouched.
func (p Props) Decode(key string, out any) error {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("props %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("props %s: %w", key, err)
	}
	return nil
}

// Anchor describes the element a component is mounted on.
type Anchor struct {
	Name  string
	ID    string
	Index int // position among the anchors sharing Name, in document order
	Attrs map[string]string
}

// Island is a mounted component instance.
type Island interface {
	Unmount()
}

type Component interface {
	Mount(anchor Anchor, props Props) (Island, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(anchor Anchor, props Props) (Island, error)

func (f ComponentFunc) Mount(anchor Anchor, props Props) (Island, error) {
	return f(anchor, props)
}

type entry struct {
	component Component
	props     Props
}

// Registry associates logical names with components. Names are registered
// once at startup and read on every Attach.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) Register(name string, component Component, staticProps Props) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = entry{component: component, props: staticProps}
	return nil
}

func (r *Registry) lookup(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Mounted is one island attached to one anchor.
type Mounted struct {
	Name   string
	Anchor Anchor
	Island Island
}

// Attach parses doc and mounts every anchor whose name is registered.
// Anchors are processed in document order. A mount failure stops the scan
// and the islands mounted so far are returned with the error.
func (r *Registry) Attach(doc io.Reader) ([]*Mounted, error) {
	root, err := html.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("inity: parse document: %w", err)
	}

	var mounted []*Mounted
	counts := make(map[string]int)

	for _, n := range elements(root) {
		attrs := attrMap(n)
		name, ok := attrs[NameAttr]
		if !ok {
			continue
		}

		e, ok := r.lookup(name)
		if !ok {
			continue
		}

		anchor := Anchor{
			Name:  name,
			ID:    attrs["id"],
			Index: counts[name],
			Attrs: attrs,
		}
		counts[name]++

		island, err := e.component.Mount(anchor, mergeProps(anchor, attrs[PropsAttr], e.props))
		if err != nil {
			return mounted, fmt.Errorf("inity: mount %s #%d: %w", name, anchor.Index, err)
		}
		mounted = append(mounted, &Mounted{Name: name, Anchor: anchor, Island: island})
	}

	return mounted, nil
}

// Detach unmounts every island.
func Detach(mounted []*Mounted) {
	for _, m := range mounted {
		m.Island.Unmount()
	}
}

// mergeProps decodes the anchor's props blob and lays the static props over
// it. A blob that fails to parse is logged and treated as empty.
func mergeProps(anchor Anchor, blob string, static Props) Props {
	props := Props{}

	if strings.TrimSpace(blob) != "" {
		if err := json.Unmarshal([]byte(blob), &props); err != nil {
			log.Printf("inity: ignoring invalid %s on %s #%d: %v", PropsAttr, anchor.Name, anchor.Index, err)
			props = Props{}
		}
	}
	if props == nil {
		props = Props{}
	}

	for k, v := range static {
		props[k] = v
	}
	return props
}

// elements lists the element nodes under n in document order.
func elements(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
