package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

// JSON shapes returned by the /api routes. Snowflakes are rendered as
// strings, as Discord itself does.

type userView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	GlobalName  string    `json:"globalName,omitempty"`
	DisplayName string    `json:"displayName"`
	Tag         string    `json:"tag"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	BannerURL   string    `json:"bannerUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newUserView(u discord.User) userView {
	return userView{
		ID:          discord.FormatSnowflake(u.ID),
		Username:    u.Username,
		GlobalName:  u.GlobalName,
		DisplayName: u.DisplayName(),
		Tag:         u.String(),
		AvatarURL:   u.AvatarURL(),
		BannerURL:   u.BannerURL(),
		CreatedAt:   u.CreatedAt(),
	}
}

type guildView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Owner       bool      `json:"owner"`
	IconURL     string    `json:"iconUrl,omitempty"`
	Permissions string    `json:"permissions"`
	Features    []string  `json:"features"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newGuildView(g discord.Guild) guildView {
	features := g.Features
	if features == nil {
		features = []string{}
	}
	return guildView{
		ID:          discord.FormatSnowflake(g.ID),
		Name:        g.Name,
		Owner:       g.Owner,
		IconURL:     g.IconURL(),
		Permissions: strconv.FormatInt(g.Permissions, 10),
		Features:    features,
		CreatedAt:   g.CreatedAt(),
	}
}

type memberView struct {
	ID          string     `json:"id,omitempty"`
	Known       bool       `json:"known"`
	DisplayName string     `json:"displayName,omitempty"`
	Nick        *string    `json:"nick"`
	JoinedAt    time.Time  `json:"joinedAt"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Roles       []string   `json:"roles"`
	Guild       guildView  `json:"guild"`
}

func newMemberView(m discord.Member) memberView {
	v := memberView{
		Known:    m.Known(),
		Nick:     m.Nick,
		JoinedAt: m.JoinedAt,
		Roles:    make([]string, 0, len(m.Roles)),
		Guild:    newGuildView(m.Guild),
	}
	if m.Known() {
		created := m.CreatedAt()
		v.ID = discord.FormatSnowflake(m.ID)
		v.DisplayName = m.DisplayName()
		v.CreatedAt = &created
	}
	for _, r := range m.Roles {
		v.Roles = append(v.Roles, discord.FormatSnowflake(r))
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Server", "Failed to write response: %v", err)
	}
}
