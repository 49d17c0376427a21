package slug

const (
	MessageRequired = "Slug is required"
	MessageInvalid  = "Slug may only contain lowercase letters, numbers and single hyphens"
	MessageLinks    = "Changing the slug may break existing links to this content"
)

// FieldState is what the slug input renders after each event.
type FieldState struct {
	Value   string `json:"value"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Field tracks the slug input of a post or page form.
//
// In create mode the value follows the title. In edit mode it is seeded from
// the persisted slug and only changes through Input, which raises a warning
// for as long as the value differs from the persisted one.
type Field struct {
	editing  bool
	original string
	value    string
	touched  bool
}

func NewCreateField() *Field {
	return &Field{}
}

func NewEditField(original string) *Field {
	return &Field{editing: true, original: original, value: original}
}

func (f *Field) Editing() bool {
	return f.editing
}

func (f *Field) Original() string {
	return f.original
}

func (f *Field) Value() string {
	return f.value
}

// TitleChanged re-derives the slug from title in create mode.
func (f *Field) TitleChanged(title string) FieldState {
	if !f.editing {
		f.value = Generate(title)
		f.touched = title != ""
	}
	return f.State()
}

// Input records a manual edit. The value is kept as typed; validity is
// reported through the returned state.
func (f *Field) Input(value string) FieldState {
	f.value = value
	f.touched = true
	return f.State()
}

func (f *Field) State() FieldState {
	st := FieldState{Value: f.value}

	if f.touched || f.editing {
		switch {
		case f.value == "":
			st.Error = MessageRequired
		case !IsValid(f.value):
			st.Error = MessageInvalid
		}
	}

	if f.editing && f.value != f.original {
		st.Warning = MessageLinks
	}

	return st
}
