package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Profile describes the current portal user of an access token.
type Profile struct {
	ID      int64
	Name    string
	IsAdmin bool
}

// User is a portal user record.
type User struct {
	ID       string
	Name     string
	LastName string
}

// FullName returns the display name, trimming whichever part is empty.
func (u User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.LastName)
}

type profilePayload struct {
	ID       flexString `json:"ID"`
	Name     string     `json:"NAME"`
	LastName string     `json:"LAST_NAME"`
	Admin    bool       `json:"ADMIN"`
}

type userPayload struct {
	ID       flexString `json:"ID"`
	Name     string     `json:"NAME"`
	LastName string     `json:"LAST_NAME"`
}

// Profile fetches the profile of the token's owner.
func (c *Client) Profile(ctx context.Context, domain, token string) (*Profile, error) {
	raw, err := c.getREST(ctx, domain, "profile.json", url.Values{"auth": {token}})
	if err != nil {
		return nil, err
	}
	var payload profilePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("profile decode: %w", err)
	}
	id, err := strconv.ParseInt(string(payload.ID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("profile user id %q: %w", payload.ID, err)
	}
	return &Profile{
		ID:      id,
		Name:    strings.TrimSpace(payload.Name + " " + payload.LastName),
		IsAdmin: payload.Admin,
	}, nil
}

// UserName resolves a user's display name by id. An unknown id returns
// an empty name without an error.
func (c *Client) UserName(ctx context.Context, domain, token, userID string) (string, error) {
	users, err := c.fetchUsers(ctx, domain, url.Values{
		"auth": {token},
		"ID":   {userID},
	})
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", nil
	}
	return users[0].FullName(), nil
}

// UserExists reports whether a user with the given id exists on the portal.
func (c *Client) UserExists(ctx context.Context, domain, token, userID string) (bool, error) {
	users, err := c.fetchUsers(ctx, domain, url.Values{
		"auth": {token},
		"ID":   {userID},
	})
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// ListEmployees returns the portal's employee users.
func (c *Client) ListEmployees(ctx context.Context, domain, token string) ([]User, error) {
	return c.fetchUsers(ctx, domain, url.Values{
		"auth":              {token},
		"FILTER[USER_TYPE]": {"employee"},
	})
}

func (c *Client) fetchUsers(ctx context.Context, domain string, params url.Values) ([]User, error) {
	raw, err := c.getREST(ctx, domain, "user.get.json", params)
	if err != nil {
		return nil, err
	}
	var payload []userPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("user.get decode: %w", err)
	}
	users := make([]User, 0, len(payload))
	for _, p := range payload {
		users = append(users, User{
			ID:       string(p.ID),
			Name:     p.Name,
			LastName: p.LastName,
		})
	}
	return users, nil
}
