package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
)

// Routes used for metrics labels and rate limit buckets.
const (
	RouteCurrentApplication = "GET /applications/@me"
	RouteGuild              = "GET /guilds/{guild}"
	RouteGuildRoles         = "GET /guilds/{guild}/roles"
	RouteGuildMember        = "GET /guilds/{guild}/members/{user}"
	RouteGuildBans          = "GET /guilds/{guild}/bans"
	RouteDeleteGuildBan     = "DELETE /guilds/{guild}/bans/{user}"
)

// MaxBansLimit is the largest page Discord serves from the bans endpoint.
const MaxBansLimit = 1000

// CurrentApplication returns the application owning the token.
func (c *Client) CurrentApplication(ctx context.Context) (*Application, error) {
	var app Application
	if err := c.getJSON(ctx, RouteCurrentApplication, "/applications/@me", nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Guild returns a guild by ID.
func (c *Client) Guild(ctx context.Context, guildID snowflake.ID) (*Guild, error) {
	var guild Guild
	if err := c.getJSON(ctx, RouteGuild, "/guilds/"+guildID.String(), nil, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// GuildRoles returns every role of a guild.
func (c *Client) GuildRoles(ctx context.Context, guildID snowflake.ID) ([]Role, error) {
	var roles []Role
	if err := c.getJSON(ctx, RouteGuildRoles, "/guilds/"+guildID.String()+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GuildMember returns one member of a guild.
func (c *Client) GuildMember(ctx context.Context, guildID, userID snowflake.ID) (*Member, error) {
	var member Member
	path := "/guilds/" + guildID.String() + "/members/" + userID.String()
	if err := c.getJSON(ctx, RouteGuildMember, path, nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// ListBans returns up to limit bans of a guild in ascending user ID order,
// starting strictly after the given user ID when after is non-nil.
func (c *Client) ListBans(ctx context.Context, guildID snowflake.ID, after *snowflake.ID, limit int) ([]Ban, error) {
	if limit < 1 || limit > MaxBansLimit {
		return nil, fmt.Errorf("limit must be in 1..%d (got %d)", MaxBansLimit, limit)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if after != nil {
		query.Set("after", after.String())
	}

	var bans []Ban
	if err := c.getJSON(ctx, RouteGuildBans, "/guilds/"+guildID.String()+"/bans", query, &bans); err != nil {
		return nil, err
	}
	return bans, nil
}

// DeleteBan removes the ban of one user. It is never retried.
func (c *Client) DeleteBan(ctx context.Context, guildID, userID snowflake.ID) error {
	path := "/guilds/" + guildID.String() + "/bans/" + userID.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.config.AuditLogReason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(c.config.AuditLogReason))
	}

	resp, err := c.Do(req, RouteDeleteGuildBan)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, route, path string, query url.Values, out any) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req, route)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}
