package discord

import (
	"encoding/json"
	"errors"

	"github.com/bwmarrin/discordgo"
)

var errMissing = errors.New("missing or empty")

// DecodeUser parses a /users/@me payload.
func DecodeUser(raw []byte) (User, error) {
	var u discordgo.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, &DecodeError{Resource: "user", Err: err}
	}
	return userFromWire("user", &u)
}

func userFromWire(resource string, u *discordgo.User) (User, error) {
	if u.ID == "" {
		return User{}, &DecodeError{Resource: resource, Field: "id", Err: errMissing}
	}
	id, err := ParseSnowflake(u.ID)
	if err != nil {
		return User{}, &DecodeError{Resource: resource, Field: "id", Err: err}
	}
	if u.Username == "" {
		return User{}, &DecodeError{Resource: resource, Field: "username", Err: errMissing}
	}
	return User{
		ID:            id,
		Username:      u.Username,
		GlobalName:    u.GlobalName,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Banner:        u.Banner,
	}, nil
}

// DecodeGuilds parses a /users/@me/guilds payload. Every entry must be
// valid for the list to be accepted.
func DecodeGuilds(raw []byte) ([]Guild, error) {
	var wire []*discordgo.UserGuild
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &DecodeError{Resource: "guilds", Err: err}
	}

	guilds := make([]Guild, 0, len(wire))
	for _, g := range wire {
		if g == nil {
			return nil, &DecodeError{Resource: "guilds", Err: errors.New("null entry")}
		}
		if g.ID == "" {
			return nil, &DecodeError{Resource: "guild", Field: "id", Err: errMissing}
		}
		id, err := ParseSnowflake(g.ID)
		if err != nil {
			return nil, &DecodeError{Resource: "guild", Field: "id", Err: err}
		}
		if g.Name == "" {
			return nil, &DecodeError{Resource: "guild " + g.ID, Field: "name", Err: errMissing}
		}

		features := make([]string, 0, len(g.Features))
		for _, f := range g.Features {
			features = append(features, string(f))
		}
		guilds = append(guilds, Guild{
			ID:          id,
			Name:        g.Name,
			Owner:       g.Owner,
			Icon:        g.Icon,
			Permissions: g.Permissions,
			Features:    features,
		})
	}
	return guilds, nil
}

// DecodeMember parses a /users/@me/guilds/{id}/member payload and joins it
// with guild. A payload without a user object yields an unknown member
// rather than an error.
func DecodeMember(raw []byte, guild Guild) (Member, error) {
	var wire discordgo.Member
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Member{}, &DecodeError{Resource: "member", Err: err}
	}

	m := Member{
		Guild:    guild,
		JoinedAt: wire.JoinedAt,
		Avatar:   wire.Avatar,
	}
	if wire.Nick != "" {
		nick := wire.Nick
		m.Nick = &nick
	}

	if wire.User != nil && wire.User.ID != "" {
		id, err := ParseSnowflake(wire.User.ID)
		if err != nil {
			return Member{}, &DecodeError{Resource: "member", Field: "user.id", Err: err}
		}
		m.ID = id
		m.Username = wire.User.Username
		m.Discriminator = wire.User.Discriminator
		if m.Avatar == "" {
			m.Avatar = wire.User.Avatar
		}
	}

	for _, r := range wire.Roles {
		id, err := ParseSnowflake(r)
		if err != nil {
			return Member{}, &DecodeError{Resource: "member", Field: "roles", Err: err}
		}
		m.Roles = append(m.Roles, id)
	}
	return m, nil
}
