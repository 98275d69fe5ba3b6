package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrGroupNotFound is returned when no group matches the display name.
var ErrGroupNotFound = fmt.Errorf("group not found")

// ResolveGroup finds a group by exact display name.
func (c *Client) ResolveGroup(ctx context.Context, displayName string) (*Group, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(displayName, "'", "''")))

	var page collection[Group]
	if err := c.do(ctx, http.MethodGet, "/groups", query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to resolve group %q: %w", displayName, err)
	}
	if len(page.Value) == 0 {
		return nil, fmt.Errorf("group %q: %w", displayName, ErrGroupNotFound)
	}
	return &page.Value[0], nil
}

// GroupMembers enumerates the user members of a group, following
// continuation links until the directory stops paging.
func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]User, error) {
	var members []User

	next := c.baseURL + "/groups/" + url.PathEscape(groupID) + "/members/microsoft.graph.user"
	for next != "" {
		var page collection[User]
		if err := c.doURL(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list members of group %s: %w", groupID, err)
		}
		members = append(members, page.Value...)
		next = page.NextLink
	}
	return members, nil
}

// ListUsers enumerates every user in the directory, paged.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User

	next := c.baseURL + "/users"
	for next != "" {
		var page collection[User]
		if err := c.doURL(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		users = append(users, page.Value...)
		next = page.NextLink
	}
	return users, nil
}

// GetUser fetches a single identity by UPN or object ID.
func (c *Client) GetUser(ctx context.Context, upn string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(upn), nil, nil, &u); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", upn, err)
	}
	return &u, nil
}
