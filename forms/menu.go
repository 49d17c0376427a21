package forms

import (
	"context"
	"strings"

	"captain/apiclient"
	"captain/validation"
)

const msgTargetRequired = "a URL or a page is required"

// MenuItemForm is the add and edit form of a menu item. A non-zero ID edits
// that item.
type MenuItemForm struct {
	ID     uint   `json:"-"`
	Label  string `json:"label" validate:"required"`
	URL    string `json:"url"`
	PageID *uint  `json:"pageId"`
}

func (m MenuItemForm) Validate() validation.FieldErrors {
	fe := validation.New().Fields(m)
	if strings.TrimSpace(m.URL) == "" && m.PageID == nil {
		fe.Add("url", msgTargetRequired)
	}
	return fe
}

type MenuSaver interface {
	CreateMenuItem(ctx context.Context, req apiclient.MenuItemRequest) (apiclient.Result, error)
	UpdateMenuItem(ctx context.Context, id uint, req apiclient.MenuItemRequest) (apiclient.Result, error)
}

// Submit sends the item when it validates. An invalid form returns its
// validation.FieldErrors without calling c.
func (m MenuItemForm) Submit(ctx context.Context, c MenuSaver) (apiclient.Result, error) {
	if err := m.Validate().Err(); err != nil {
		return apiclient.Result{}, err
	}
	req := apiclient.MenuItemRequest{
		Label:  strings.TrimSpace(m.Label),
		URL:    strings.TrimSpace(m.URL),
		PageID: m.PageID,
	}
	if m.ID != 0 {
		return c.UpdateMenuItem(ctx, m.ID, req)
	}
	return c.CreateMenuItem(ctx, req)
}

// CanMove reports whether the item at index can move in dir. The up control
// of the first item and the down control of the last one are inert.
func CanMove(index, count int, dir apiclient.Direction) bool {
	if index < 0 || index >= count {
		return false
	}
	switch dir {
	case apiclient.Up:
		return index > 0
	case apiclient.Down:
		return index < count-1
	}
	return false
}
