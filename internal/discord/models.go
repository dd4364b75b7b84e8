package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// User is the signed-in account as returned by /users/@me.
type User struct {
	ID            uint64 `json:"id,string"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar,omitempty"`
	Banner        string `json:"banner,omitempty"`
}

// CreatedAt is derived from the id.
func (u User) CreatedAt() time.Time {
	return SnowflakeTime(u.ID)
}

// String returns username#discriminator, or the bare username for accounts
// migrated to unique usernames (discriminator "0").
func (u User) String() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// DisplayName prefers the global display name over the username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL is the CDN URL of the avatar, or "" when none is set.
func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	if animated(u.Avatar) {
		return discordgo.EndpointUserAvatarAnimated(FormatSnowflake(u.ID), u.Avatar)
	}
	return discordgo.EndpointUserAvatar(FormatSnowflake(u.ID), u.Avatar)
}

// BannerURL is the CDN URL of the profile banner, or "" when none is set.
func (u User) BannerURL() string {
	if u.Banner == "" {
		return ""
	}
	if animated(u.Banner) {
		return discordgo.EndpointUserBannerAnimated(FormatSnowflake(u.ID), u.Banner)
	}
	return discordgo.EndpointUserBanner(FormatSnowflake(u.ID), u.Banner)
}

// Guild is one entry of /users/@me/guilds.
type Guild struct {
	ID          uint64   `json:"id,string"`
	Name        string   `json:"name"`
	Owner       bool     `json:"owner"`
	Icon        string   `json:"icon,omitempty"`
	Permissions int64    `json:"permissions,string"`
	Features    []string `json:"features,omitempty"`
}

func (g Guild) String() string {
	return g.Name
}

// CreatedAt is derived from the id.
func (g Guild) CreatedAt() time.Time {
	return SnowflakeTime(g.ID)
}

// IconURL is the CDN URL of the guild icon, or "" when none is set.
func (g Guild) IconURL() string {
	if g.Icon == "" {
		return ""
	}
	if animated(g.Icon) {
		return discordgo.EndpointGuildIconAnimated(FormatSnowflake(g.ID), g.Icon)
	}
	return discordgo.EndpointGuildIcon(FormatSnowflake(g.ID), g.Icon)
}

// HasFeature reports whether the guild has the named feature flag.
func (g Guild) HasFeature(name string) bool {
	for _, f := range g.Features {
		if f == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether all bits of perm are granted to the user
// in this guild. Administrators are granted everything.
func (g Guild) HasPermission(perm int64) bool {
	if g.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return g.Permissions&perm == perm
}

// Member is the signed-in user's membership in one guild. Guild is a copy
// taken when the member was fetched.
//
// A zero ID means the payload carried no user object; such a member is
// valid but unknown.
type Member struct {
	ID            uint64    `json:"id,string"`
	Guild         Guild     `json:"guild"`
	Username      string    `json:"username,omitempty"`
	Discriminator string    `json:"discriminator,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Nick          *string   `json:"nick,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
	Roles         []uint64  `json:"roles,omitempty"`
}

// Known reports whether the member is tied to a user.
func (m Member) Known() bool {
	return m.ID != 0
}

// CreatedAt is the creation time of the underlying user account, or the
// zero time for an unknown member.
func (m Member) CreatedAt() time.Time {
	if !m.Known() {
		return time.Time{}
	}
	return SnowflakeTime(m.ID)
}

// DisplayName returns the guild nickname if set, else the username.
func (m Member) DisplayName() string {
	if m.Nick != nil && *m.Nick != "" {
		return *m.Nick
	}
	return m.Username
}

// HasRole reports whether the member holds the role.
func (m Member) HasRole(roleID uint64) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func (m Member) String() string {
	return fmt.Sprintf("%s in %s", m.DisplayName(), m.Guild.Name)
}

func animated(hash string) bool {
	return strings.HasPrefix(hash, "a_")
}
