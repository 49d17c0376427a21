package forms

import (
	"context"
	"sync"

	"captain/apiclient"
	"captain/inity"
	"captain/slug"
	"captain/validation"
)

// PageDocument is what a page form hands to its submit handler.
type PageDocument struct {
	ID      uint   `json:"id,omitempty"`
	Title   string `json:"title" validate:"required"`
	Slug    string `json:"slug" validate:"required,slug"`
	Content string `json:"content"`
	Visible bool   `json:"visible"`
}

// PageForm is one mounted page editor.
type PageForm struct {
	mu sync.Mutex

	anchor    inity.Anchor
	id        uint
	title     string
	content   string
	visible   bool
	slug      *slug.Field
	lifecycle *inity.Lifecycle
	onSubmit  inity.SubmitHandler
	validator *validation.Validator
	errors    validation.FieldErrors
}

// PageComponent mounts PageForm islands.
type PageComponent struct{}

func (PageComponent) Mount(anchor inity.Anchor, props inity.Props) (inity.Island, error) {
	return NewPageForm(anchor, props)
}

func NewPageForm(anchor inity.Anchor, props inity.Props) (*PageForm, error) {
	f := &PageForm{
		anchor:    anchor,
		visible:   true,
		lifecycle: inity.NewLifecycle(),
		onSubmit:  submitHandler(props[PropOnSubmit]),
		validator: validation.New(),
		errors:    validation.FieldErrors{},
	}

	if _, ok := props[PropPage]; ok {
		var existing apiclient.Page
		if err := props.Decode(PropPage, &existing); err != nil {
			return nil, err
		}
		f.id = existing.ID
		f.title = existing.Title
		f.content = existing.Content
		f.visible = existing.Visible
		f.slug = slug.NewEditField(existing.Slug)
	} else {
		f.slug = slug.NewCreateField()
	}
	return f, nil
}

func (f *PageForm) Anchor() inity.Anchor {
	return f.anchor
}

func (f *PageForm) Editing() bool {
	return f.slug.Editing()
}

func (f *PageForm) Lifecycle() *inity.Lifecycle {
	return f.lifecycle
}

func (f *PageForm) SetTitle(title string) slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	return f.slug.TitleChanged(title)
}

func (f *PageForm) SetSlug(value string) slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slug.Input(value)
}

func (f *PageForm) Slug() slug.FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slug.State()
}

func (f *PageForm) SetContent(content string) {
	f.mu.Lock()
	f.content = content
	f.mu.Unlock()
}

func (f *PageForm) SetVisible(visible bool) {
	f.mu.Lock()
	f.visible = visible
	f.mu.Unlock()
}

func (f *PageForm) document() PageDocument {
	return PageDocument{
		ID:      f.id,
		Title:   f.title,
		Slug:    f.slug.Value(),
		Content: f.content,
		Visible: f.visible,
	}
}

func (f *PageForm) Validate() validation.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = f.validator.Fields(f.document())
	return f.errors
}

func (f *PageForm) Document() (PageDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.document()
	f.errors = f.validator.Fields(doc)
	if err := f.errors.Err(); err != nil {
		return PageDocument{}, err
	}
	return doc, nil
}

func (f *PageForm) Submit(ctx context.Context) (inity.Status, error) {
	doc, err := f.Document()
	if err != nil {
		return f.lifecycle.Status(), err
	}
	if f.onSubmit == nil {
		return f.lifecycle.Status(), errNoHandler
	}
	return inity.Submit(ctx, f.lifecycle, f.onSubmit, doc, f.anchor)
}

func (f *PageForm) ScrollTarget() string {
	f.mu.Lock()
	fe := f.errors
	f.mu.Unlock()
	return scrollTarget(fe, f.lifecycle.Status(), "title", "slug")
}

func (f *PageForm) Preview(ctx context.Context, r Renderer) (string, error) {
	f.mu.Lock()
	content := f.content
	f.mu.Unlock()
	return r.Preview(ctx, content)
}

func (f *PageForm) Unmount() {
	f.lifecycle.Close()
}
