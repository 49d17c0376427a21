package forms

import (
	"context"
	"fmt"

	"captain/apiclient"
	"captain/inity"
)

// Saver is the part of the API client the submit handler needs.
type Saver interface {
	SavePost(ctx context.Context, id uint, req apiclient.PostRequest) (apiclient.Result, error)
	SavePage(ctx context.Context, id uint, req apiclient.PageRequest) (apiclient.Result, error)
}

// APISubmitter returns the standard onSubmit handler: documents are sent
// through s, creating when they have no id and updating otherwise.
func APISubmitter(s Saver) inity.SubmitHandler {
	return func(ctx context.Context, doc any, r inity.Reporter, anchor inity.Anchor) {
		r.Saving()

		var (
			res apiclient.Result
			err error
		)
		switch d := doc.(type) {
		case PostDocument:
			var names []string
			if names, err = d.TagNames(); err != nil {
				break
			}
			res, err = s.SavePost(ctx, d.ID, apiclient.PostRequest{
				Title:       d.Title,
				Slug:        d.Slug,
				Content:     d.Content,
				Excerpt:     d.Excerpt,
				Tags:        names,
				Visible:     d.Visible,
				PublishedAt: d.PublishedAt,
				Timezone:    d.Timezone,
			})
		case PageDocument:
			res, err = s.SavePage(ctx, d.ID, apiclient.PageRequest{
				Title:   d.Title,
				Slug:    d.Slug,
				Content: d.Content,
				Visible: d.Visible,
			})
		default:
			err = fmt.Errorf("forms: %s cannot submit %T", anchor.Name, doc)
		}

		if err != nil {
			r.Failed(err)
			return
		}
		r.Saved(res.Redirect)
	}
}
