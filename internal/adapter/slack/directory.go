package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Strob0t/specnotify/internal/port/directory"
	"github.com/Strob0t/specnotify/internal/port/notifier"
)

type usersListResponse struct {
	apiResponse
	Members          []member `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type member struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
	Profile struct {
		DisplayName string `json:"display_name"`
	} `json:"profile"`
}

// ListPeople returns one users.list page.
func (c *Client) ListPeople(ctx context.Context, cursor string) (directory.Page, error) {
	if c.token == "" {
		return directory.Page{}, notifier.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageLimit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users.list?"+q.Encode(), http.NoBody)
	if err != nil {
		return directory.Page{}, fmt.Errorf("slack request: %w", err)
	}

	var out usersListResponse
	if err := c.do(req, &out); err != nil {
		return directory.Page{}, err
	}
	if !out.OK {
		return directory.Page{}, fmt.Errorf("slack users.list: %s", out.Error)
	}

	page := directory.Page{
		Members:    make([]directory.Person, 0, len(out.Members)),
		NextCursor: out.ResponseMetadata.NextCursor,
	}
	for _, m := range out.Members {
		page.Members = append(page.Members, directory.Person{
			Handle:      m.Name,
			ID:          m.ID,
			DisplayName: m.Profile.DisplayName,
		})
	}
	return page, nil
}
