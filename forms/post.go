// Package forms holds the editing islands of the admin panel: post and page
// forms, menu items, the media picker, notices and delete actions.
package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"captain/apiclient"
	"captain/inity"
	"captain/slug"
	"captain/tags"
	"captain/validation"
	"captain/visibility"
)

// Component names used in x-inity anchors.
const (
	PostsComponent = "posts"
	PagesComponent = "pages"
)

// Prop keys understood by the post and page components.
const (
	PropPost        = "post"
	PropPage        = "page"
	PropTimezone    = "timezone"
	PropTagEncoding = "tagEncoding"
	PropTagField    = "tagField"
	PropLegacyTags  = "legacyTags"
	PropOnSubmit    = "onSubmit"
	PropTagSource   = "tagSource"
)

// datetime-local format used to show a stored timestamp in the input.
const inputLayout = "2006-01-02T15:04"

var errNoHandler = errors.New("forms: no onSubmit handler")

// PostDocument is what a post form hands to its submit handler.
type PostDocument struct {
	ID          uint     `json:"id,omitempty"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Tags        []string      `json:"tags"`
	TagField    string        `json:"tagField"` // hidden field value, in TagEncoding
	TagEncoding tags.Encoding `json:"tagEncoding"`
	Visible     bool          `json:"visible"`
	PublishedAt string        `json:"publishedAt"` // RFC 3339
	Timezone    string        `json:"timezone"`
}

// TagNames reads the tags back from the hidden field, which is what the form
// submits. Documents without an encoding fall back to Tags.
func (d PostDocument) TagNames() ([]string, error) {
	if d.TagEncoding == "" {
		return d.Tags, nil
	}
	s, err := tags.Decode(d.TagField, d.TagEncoding)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// postProp is the "post" prop. Its tags are either a list of names or the
// hidden field value written in the form's tag encoding.
type postProp struct {
	apiclient.Post
	Tags json.RawMessage `json:"tags"`
}

type postInput struct {
	Title   string `json:"title" validate:"required"`
	Slug    string `json:"slug" validate:"required,slug"`
	Content string `json:"content" validate:"required"`
}

// PostForm is one mounted post editor.
type PostForm struct {
	mu sync.Mutex

	anchor      inity.Anchor
	id          uint
	title       string
	content     string
	excerpt     string
	visible     bool
	mode        visibility.Mode
	publishedAt string
	timezone    string
	loc         *time.Location
	tagEncoding tags.Encoding

	// stored timestamp and how it was shown, so an untouched input keeps
	// its seconds
	loadedAt    time.Time
	loadedInput string

	slug      *slug.Field
	tags      *tags.Editor
	lifecycle *inity.Lifecycle
	onSubmit  inity.SubmitHandler
	validator *validation.Validator
	errors    validation.FieldErrors
	now       func() time.Time

	cancel   context.CancelFunc
	tagsDone chan struct{}
}

// PostComponent mounts PostForm islands.
type PostComponent struct{}

func (PostComponent) Mount(anchor inity.Anchor, props inity.Props) (inity.Island, error) {
	return NewPostForm(anchor, props)
}

// NewPostForm builds a post form from its props. A "post" prop puts the form
// in edit mode.
func NewPostForm(anchor inity.Anchor, props inity.Props) (*PostForm, error) {
	enc, err := tags.ParseEncoding(props.String(PropTagEncoding))
	if err != nil {
		return nil, err
	}

	var (
		existing *apiclient.Post
		prop     *postProp
	)
	if _, ok := props[PropPost]; ok {
		prop = &postProp{}
		if err := props.Decode(PropPost, prop); err != nil {
			return nil, err
		}
		existing = &prop.Post
	}
	initial, err := initialTags(props, prop, enc)
	if err != nil {
		return nil, err
	}

	timezone := props.String(PropTimezone)
	if existing != nil && existing.Timezone != "" {
		timezone = existing.Timezone
	}
	if timezone == "" {
		timezone = "UTC"
	}

	f := &PostForm{
		anchor:      anchor,
		timezone:    timezone,
		loc:         visibility.LoadLocation(timezone),
		lifecycle:   inity.NewLifecycle(),
		onSubmit:    submitHandler(props[PropOnSubmit]),
		validator:   validation.New(),
		errors:      validation.FieldErrors{},
		now:         time.Now,
		mode:        visibility.ModeImmediate,
		visible:     true,
		tagEncoding: enc,
		tagsDone:    make(chan struct{}),
		tags:        tags.NewEditor(initial, enc),
	}

	if existing != nil {
		f.id = existing.ID
		f.title = existing.Title
		f.content = existing.Content
		f.excerpt = existing.Excerpt
		f.visible = existing.Visible
		f.slug = slug.NewEditField(existing.Slug)
		if !existing.PublishedAt.IsZero() {
			f.publishedAt = existing.PublishedAt.In(f.loc).Format(inputLayout)
			f.loadedAt = existing.PublishedAt
			f.loadedInput = f.publishedAt
		}
		f.mode = visibility.InferMode(f.publishedAt)
	} else {
		f.slug = slug.NewCreateField()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	if src, ok := props[PropTagSource].(tags.Source); ok && src != nil {
		go func() {
			defer close(f.tagsDone)
			_ = f.tags.Load(ctx, src)
		}()
	} else {
		log.Printf("forms: %s #%d has no tag source, suggestions disabled", anchor.Name, anchor.Index)
		close(f.tagsDone)
	}

	return f, nil
}

// initialTags seeds the tag editor. A "tagField" prop holds the hidden field
// in the declared encoding and wins over the post's own tags. A "legacyTags"
// prop holds a comma-joined value from before the JSON encoding and is
// migrated first.
func initialTags(props inity.Props, prop *postProp, enc tags.Encoding) (*tags.Set, error) {
	if raw, ok := props[PropTagField].(string); ok {
		return tags.Decode(raw, enc)
	}
	if legacy, ok := props[PropLegacyTags].(string); ok {
		field, err := tags.Migrate(legacy)
		if err != nil {
			return nil, err
		}
		return tags.Decode(field, tags.JSON)
	}
	if prop == nil || len(prop.Tags) == 0 || string(prop.Tags) == "null" {
		return tags.NewSet(), nil
	}

	var names []string
	if err := json.Unmarshal(prop.Tags, &names); err == nil {
		return tags.NewSet(names...), nil
	}
	var raw string
	if err := json.Unmarshal(prop.Tags, &raw); err != nil {
		return nil, fmt.Errorf("props post: tags: %w", err)
	}
	return tags.Decode(raw, enc)
}

func submitHandler(v any) inity.SubmitHandler {
	switch h := v.(type) {
	case inity.SubmitHandler:
		return h
	case func(context.Context, any, inity.Reporter, inity.Anchor):
		return h
	}
	return nil
}

func (f *PostForm) Anchor() inity.Anchor {
	return f.anchor
}

func (f *PostForm) Editing() bool {
	return f.slug.Editing()
}

func (f *PostForm) Lifecycle() *inity.Lifecycle {
	return f.lifecycle
}

func (f *PostForm) Tags() *tags.Editor {
	return f.tags
}

// TagsLoaded is closed once the tag vocabulary load has finished, whether it
// succeeded or not.
func (f *PostForm) TagsLoaded() <-chan struct{} {
	return f.tagsDone
}

func (f *PostForm) SetTitle(title string) slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	return f.slug.TitleChanged(title)
}

func (f *PostForm) SetSlug(value string) slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slug.Input(value)
}

func (f *PostForm) Slug() slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slug.State()
}

func (f *PostForm) SetContent(content string) {
	f.mu.Lock()
	f.content = content
	f.mu.Unlock()
}

func (f *PostForm) SetExcerpt(excerpt string) {
	f.mu.Lock()
	f.excerpt = excerpt
	f.mu.Unlock()
}

func (f *PostForm) SetVisible(visible bool) {
	f.mu.Lock()
	f.visible = visible
	f.mu.Unlock()
}

func (f *PostForm) SetPublishMode(mode visibility.Mode) {
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
}

func (f *PostForm) PublishMode() visibility.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// SetPublishedAt records the raw datetime-local value of the timestamp input.
func (f *PostForm) SetPublishedAt(raw string) {
	f.mu.Lock()
	f.publishedAt = raw
	f.mu.Unlock()
}

func (f *PostForm) PublishedAt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishedAt
}

// TimestampVisible reports whether the timestamp input is shown.
func (f *PostForm) TimestampVisible() bool {
	return f.PublishMode() == visibility.ModeScheduled
}

// TimestampRequired reports whether an empty timestamp blocks submission.
func (f *PostForm) TimestampRequired() bool {
	return f.PublishMode() == visibility.ModeScheduled
}

// Validate checks the form and keeps the result for rendering.
func (f *PostForm) Validate() validation.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = f.validateLocked()
	return f.errors
}

func (f *PostForm) validateLocked() validation.FieldErrors {
	fe := f.validator.Fields(postInput{
		Title:   f.title,
		Slug:    f.slug.Value(),
		Content: f.content,
	})

	if _, err := visibility.Resolve(f.mode, f.publishedAt, f.loc, f.now()); err != nil {
		switch {
		case errors.Is(err, visibility.ErrTimestampRequired):
			fe.Add("publishedAt", visibility.ErrTimestampRequired.Error())
		default:
			fe.Add("publishedAt", visibility.ErrTimestampInvalid.Error())
		}
	}
	return fe
}

// Errors returns the field errors of the last validation.
func (f *PostForm) Errors() validation.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(validation.FieldErrors, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Document serializes the form. It fails when the form does not validate.
func (f *PostForm) Document() (PostDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errors = f.validateLocked()
	if err := f.errors.Err(); err != nil {
		return PostDocument{}, err
	}

	at, err := visibility.Resolve(f.mode, f.publishedAt, f.loc, f.now())
	if err != nil {
		return PostDocument{}, err
	}
	if f.mode == visibility.ModeScheduled && !f.loadedAt.IsZero() && f.publishedAt == f.loadedInput {
		at = f.loadedAt
	}
	field, err := f.tags.Field()
	if err != nil {
		return PostDocument{}, fmt.Errorf("encode tags: %w", err)
	}

	return PostDocument{
		ID:          f.id,
		Title:       f.title,
		Slug:        f.slug.Value(),
		Content:     f.content,
		Excerpt:     f.excerpt,
		Tags:        f.tags.Tags(),
		TagField:    field,
		TagEncoding: f.tagEncoding,
		Visible:     f.visible,
		PublishedAt: at.UTC().Format(time.RFC3339),
		Timezone:    f.timezone,
	}, nil
}

// Submit validates the form and, when it is valid, runs one save cycle
// through the onSubmit handler. Validation errors are returned as
// validation.FieldErrors and never reach the handler.
func (f *PostForm) Submit(ctx context.Context) (inity.Status, error) {
	doc, err := f.Document()
	if err != nil {
		return f.lifecycle.Status(), err
	}
	if f.onSubmit == nil {
		return f.lifecycle.Status(), errNoHandler
	}
	return inity.Submit(ctx, f.lifecycle, f.onSubmit, doc, f.anchor)
}

// ScrollTarget names the element to bring into view after a failed submit.
func (f *PostForm) ScrollTarget() string {
	return scrollTarget(f.Errors(), f.lifecycle.Status(), "title", "slug", "content", "publishedAt")
}

// Renderer renders markdown for the live preview.
type Renderer interface {
	Preview(ctx context.Context, markdown string) (string, error)
}

func (f *PostForm) Preview(ctx context.Context, r Renderer) (string, error) {
	f.mu.Lock()
	content := f.content
	f.mu.Unlock()
	return r.Preview(ctx, content)
}

// Unmount stops the tag load and drops every subscription.
func (f *PostForm) Unmount() {
	f.cancel()
	f.tags.Close()
	f.lifecycle.Close()
}

func scrollTarget(fe validation.FieldErrors, st inity.Status, order ...string) string {
	for _, name := range order {
		if _, ok := fe[name]; ok {
			return "field-" + name
		}
	}
	if st.State == inity.Error {
		return "form-error"
	}
	return ""
}
