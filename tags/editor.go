package tags

import (
	"context"
	"log"
	"strings"
	"sync"
)

// MinQueryLength is the number of characters typed before suggestions show.
const MinQueryLength = 2

// Source provides the existing tag vocabulary.
type Source interface {
	ExistingTags(ctx context.Context) ([]string, error)
}

type loadState int

const (
	notLoaded loadState = iota
	loading
	loaded
	failed
)

// Editor is the tag input of a post form: the selected set, the vocabulary
// used for suggestions and the suggestions currently shown.
//
// The vocabulary is loaded once, usually on its own goroutine, while input
// events keep arriving; every call works against whatever vocabulary is
// loaded at that moment.
type Editor struct {
	mu          sync.Mutex
	selected    *Set
	encoding    Encoding
	vocabulary  []string
	state       loadState
	query       string
	suggestions []string

	subs   map[int]func()
	nextID int
}

func NewEditor(initial *Set, enc Encoding) *Editor {
	if initial == nil {
		initial = NewSet()
	}
	return &Editor{
		selected: initial,
		encoding: enc,
		subs:     make(map[int]func()),
	}
}

// Load fetches the vocabulary from src. Only the first call does anything;
// a failure leaves suggestions empty for the life of the editor.
func (e *Editor) Load(ctx context.Context, src Source) error {
	e.mu.Lock()
	if e.state != notLoaded {
		e.mu.Unlock()
		return nil
	}
	e.state = loading
	e.mu.Unlock()

	names, err := src.ExistingTags(ctx)

	e.mu.Lock()
	if err != nil {
		e.state = failed
		e.mu.Unlock()
		log.Printf("tags: loading vocabulary failed, suggestions disabled: %v", err)
		return err
	}
	e.vocabulary = names
	e.state = loaded
	e.mu.Unlock()

	e.notify()
	return nil
}

// Ready reports whether the vocabulary has been loaded.
func (e *Editor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == loaded
}

// OnInput updates the query and returns the suggestions to show. A nil result
// means the panel is hidden.
func (e *Editor) OnInput(query string) []string {
	e.mu.Lock()
	e.query = query
	e.suggestions = e.match(query)
	out := e.copySuggestions()
	e.mu.Unlock()

	e.notify()
	return out
}

func (e *Editor) match(query string) []string {
	if len([]rune(query)) < MinQueryLength {
		return nil
	}

	needle := strings.ToLower(query)
	var matches []string
	for _, name := range e.vocabulary {
		if strings.Contains(strings.ToLower(name), needle) {
			matches = append(matches, name)
		}
	}
	return matches
}

// Commit adds name to the selection (Enter key or suggestion click). The
// input and the suggestions are cleared whether or not anything was added.
func (e *Editor) Commit(name string) bool {
	e.mu.Lock()
	added := e.selected.Add(name)
	e.query = ""
	e.suggestions = nil
	e.mu.Unlock()

	e.notify()
	return added
}

func (e *Editor) Remove(name string) bool {
	e.mu.Lock()
	removed := e.selected.Remove(name)
	e.mu.Unlock()

	if removed {
		e.notify()
	}
	return removed
}

func (e *Editor) Tags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected.Names()
}

func (e *Editor) Suggestions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copySuggestions()
}

func (e *Editor) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Field returns the hidden form field value in the editor's encoding.
func (e *Editor) Field() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Encode(e.selected, e.encoding)
}

// Subscribe registers fn to run after every state change. The returned
// function removes it.
func (e *Editor) Subscribe(fn func()) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Close drops every subscription.
func (e *Editor) Close() {
	e.mu.Lock()
	e.subs = make(map[int]func())
	e.mu.Unlock()
}

func (e *Editor) copySuggestions() []string {
	if e.suggestions == nil {
		return nil
	}
	out := make([]string, len(e.suggestions))
	copy(out, e.suggestions)
	return out
}

func (e *Editor) notify() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
