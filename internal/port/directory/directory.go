// Package directory defines the people-directory port used to resolve mentions.
package directory

import "context"

// Person is one directory entry.
type Person struct {
	Handle      string `json:"handle"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Page is one page of a paginated listing. An empty NextCursor ends the listing.
type Page struct {
	Members    []Person
	NextCursor string
}

// Directory lists people page by page.
type Directory interface {
	// ListPeople returns the page at cursor; the empty cursor is the first page.
	ListPeople(ctx context.Context, cursor string) (Page, error)
}
