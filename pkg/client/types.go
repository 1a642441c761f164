package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
)

// Permissions is a Discord permission bit set.
type Permissions uint64

// Permission bits used by this client.
const (
	PermissionBanMembers    Permissions = 1 << 2
	PermissionAdministrator Permissions = 1 << 3
)

// Has reports whether every bit of p2 is set in p.
func (p Permissions) Has(p2 Permissions) bool {
	return p&p2 == p2
}

// UnmarshalJSON decodes Discord's string-encoded permission integer.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	if raw == "" {
		*p = 0
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	*p = Permissions(value)
	return nil
}

// User is a Discord user as embedded in ban and member objects.
type User struct {
	ID         snowflake.ID `json:"id"`
	Username   string       `json:"username"`
	GlobalName *string      `json:"global_name"`
}

// DisplayName returns the global display name, falling back to the
// account username when none is set.
func (u User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}

// Ban is one entry of a guild's ban list.
type Ban struct {
	Reason *string `json:"reason"`
	User   User    `json:"user"`
}

// Application is the bot application the token belongs to.
type Application struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}

// Guild is the subset of a guild object used here.
type Guild struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	OwnerID snowflake.ID `json:"owner_id"`
}

// Role is a guild role.
type Role struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Permissions Permissions  `json:"permissions"`
}

// Member is a guild member.
type Member struct {
	User  *User          `json:"user,omitempty"`
	Roles []snowflake.ID `json:"roles"`
}
