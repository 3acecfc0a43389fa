package addy

import "github.com/ignite/aliasguard/internal/domain"

// Alias is the alias resource returned by GET /api/v1/aliases.
// Only the fields the checker needs are decoded.
type Alias struct {
	ID          string  `json:"id"`
	LocalPart   string  `json:"local_part"`
	Domain      string  `json:"domain"`
	Email       string  `json:"email"`
	Active      bool    `json:"active"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ToDomain converts the API representation to a domain.Alias.
func (a Alias) ToDomain() domain.Alias {
	out := domain.Alias{
		ID:     a.ID,
		Email:  a.Email,
		Active: a.Active,
	}
	if a.Description != nil {
		out.Description = *a.Description
	}
	return out
}

// PageMeta is the Laravel pagination block attached to list responses.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// ListResponse is one page of the alias listing.
type ListResponse struct {
	Data []Alias  `json:"data"`
	Meta PageMeta `json:"meta"`
}

// terminal reports whether no further pages should be requested.
func (r ListResponse) terminal() bool {
	if len(r.Data) == 0 {
		return true
	}
	if r.Meta.LastPage == 0 {
		return true
	}
	return r.Meta.CurrentPage >= r.Meta.LastPage
}

// TokenDetails describes the API token in use, as returned by
// GET /api/v1/api-token-details.
type TokenDetails struct {
	Name      string  `json:"name"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at"`
}
