// Package preflight verifies the bot token, the target guild and the bot's
// ban permission before a run starts.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/guild-unban/pkg/client"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidToken is returned when Discord rejects the bot token.
	ErrInvalidToken = errors.New("invalid token provided, please check your token and try again")

	// ErrUnknownGuild is returned when the guild does not exist or the bot is
	// not a member of it.
	ErrUnknownGuild = errors.New("invalid guild ID provided")

	// ErrMissingBanPermission is returned when no role of the bot grants
	// BAN_MEMBERS.
	ErrMissingBanPermission = errors.New("the bot does not have permission to unban users, please add the ban permission to the bot and try again")
)

// API is the subset of the Discord client used by Check.
type API interface {
	CurrentApplication(ctx context.Context) (*client.Application, error)
	Guild(ctx context.Context, guildID snowflake.ID) (*client.Guild, error)
	GuildRoles(ctx context.Context, guildID snowflake.ID) ([]client.Role, error)
	GuildMember(ctx context.Context, guildID, userID snowflake.ID) (*client.Member, error)
}

// Result holds what preflight learned about the bot and the guild.
type Result struct {
	Application client.Application
	Guild       client.Guild
}

// Token verifies the token and returns the bot application.
func Token(ctx context.Context, api API) (*client.Application, error) {
	app, err := api.CurrentApplication(ctx)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("fetch current application: %w", err)
	}
	return app, nil
}

// Guild verifies the guild and that app may remove its bans.
func Guild(ctx context.Context, api API, app *client.Application, guildID snowflake.ID) (*client.Guild, error) {
	guild, err := api.Guild(ctx, guildID)
	if err != nil {
		if client.IsCode(err, client.CodeUnknownGuild) || client.IsStatus(err, http.StatusNotFound) || client.IsStatus(err, http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrUnknownGuild, err)
		}
		return nil, fmt.Errorf("fetch guild: %w", err)
	}

	roles, err := api.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild roles: %w", err)
	}

	// The bot user shares the application's ID.
	member, err := api.GuildMember(ctx, guildID, app.ID)
	if err != nil {
		if client.IsCode(err, client.CodeUnknownMember) {
			return nil, fmt.Errorf("%w: bot is not a member: %w", ErrUnknownGuild, err)
		}
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}

	if !CanBan(guildID, roles, member.Roles) {
		return nil, ErrMissingBanPermission
	}
	return guild, nil
}

// Check runs Token and Guild.
func Check(ctx context.Context, api API, guildID snowflake.ID) (*Result, error) {
	logger := log.With().Str("component", "preflight").Logger()

	app, err := Token(ctx, api)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("application", app.Name).Msg("Token verified")

	guild, err := Guild(ctx, api, app, guildID)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("guild", guild.Name).Str("guild_id", guild.ID.String()).Msg("Ban permission verified")

	return &Result{Application: *app, Guild: *guild}, nil
}

// CanBan reports whether any of memberRoles, or the @everyone role (whose ID
// equals the guild ID), grants BAN_MEMBERS or ADMINISTRATOR.
func CanBan(guildID snowflake.ID, roles []client.Role, memberRoles []snowflake.ID) bool {
	held := make(map[snowflake.ID]struct{}, len(memberRoles)+1)
	held[guildID] = struct{}{}
	for _, id := range memberRoles {
		held[id] = struct{}{}
	}

	for _, role := range roles {
		if _, ok := held[role.ID]; !ok {
			continue
		}
		if role.Permissions.Has(client.PermissionBanMembers) || role.Permissions.Has(client.PermissionAdministrator) {
			return true
		}
	}
	return false
}
