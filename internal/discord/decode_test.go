package discord

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUser(t *testing.T) {
	u, err := DecodeUser([]byte(`{
		"id": "80351110224678912",
		"username": "Nelly",
		"discriminator": "1337",
		"avatar": "8342729096ea3675442027381ff50dfe",
		"banner": null,
		"global_name": "Nelly G"
	}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(80351110224678912), u.ID)
	assert.Equal(t, "Nelly", u.Username)
	assert.Equal(t, "Nelly G", u.GlobalName)
	assert.Equal(t, "1337", u.Discriminator)
	assert.Empty(t, u.Banner)
}

func TestDecodeUser_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", `<html>`, ""},
		{"missing id", `{"username":"x"}`, "id"},
		{"bad id", `{"id":"abc","username":"x"}`, "id"},
		{"missing username", `{"id":"1"}`, "username"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeUser([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)

			var derr *DecodeError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, tc.field, derr.Field)
		})
	}
}

func TestDecodeGuilds(t *testing.T) {
	guilds, err := DecodeGuilds([]byte(`[
		{"id":"80351110224678912","name":"1337 Krew","icon":"8342729096ea3675442027381ff50dfe","owner":true,"permissions":"36953089","features":["COMMUNITY","NEWS"]},
		{"id":"41771983423143937","name":"Other","icon":null,"owner":false,"permissions":"0","features":[]}
	]`))
	require.NoError(t, err)
	require.Len(t, guilds, 2)

	assert.Equal(t, uint64(80351110224678912), guilds[0].ID)
	assert.Equal(t, "1337 Krew", guilds[0].Name)
	assert.True(t, guilds[0].Owner)
	assert.Equal(t, int64(36953089), guilds[0].Permissions)
	assert.Equal(t, []string{"COMMUNITY", "NEWS"}, guilds[0].Features)
	assert.Empty(t, guilds[1].Icon)
}

func TestDecodeGuilds_Invalid(t *testing.T) {
	for name, raw := range map[string]string{
		"object instead of list": `{"id":"1"}`,
		"entry without name":     `[{"id":"1","permissions":"0"}]`,
		"entry without id":       `[{"name":"x","permissions":"0"}]`,
		"numeric permissions":    `[{"id":"1","name":"x","permissions":8}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeGuilds([]byte(raw))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecodeMember(t *testing.T) {
	guild := Guild{ID: 1, Name: "Guild"}
	m, err := DecodeMember([]byte(`{
		"user": {"id":"80351110224678912","username":"Nelly","discriminator":"1337","avatar":"abc"},
		"nick": "NOT API SUPPORT",
		"roles": ["41771983423143936", "41771983423143937"],
		"joined_at": "2015-04-26T06:26:56.936000+00:00",
		"deaf": false,
		"mute": false
	}`), guild)
	require.NoError(t, err)

	assert.True(t, m.Known())
	assert.Equal(t, uint64(80351110224678912), m.ID)
	assert.Equal(t, "Nelly", m.Username)
	assert.Equal(t, "abc", m.Avatar)
	require.NotNil(t, m.Nick)
	assert.Equal(t, "NOT API SUPPORT", *m.Nick)
	assert.Equal(t, []uint64{41771983423143936, 41771983423143937}, m.Roles)
	assert.True(t, m.JoinedAt.Equal(time.Date(2015, 4, 26, 6, 26, 56, 936000000, time.UTC)))
	assert.Equal(t, guild, m.Guild)
}

func TestDecodeMember_GuildIsACopy(t *testing.T) {
	guild := Guild{ID: 1, Name: "Before", Features: []string{"A"}}
	m, err := DecodeMember([]byte(`{"roles":[]}`), guild)
	require.NoError(t, err)

	guild.Name = "After"
	assert.Equal(t, "Before", m.Guild.Name)
}

func TestDecodeMember_UnknownUser(t *testing.T) {
	m, err := DecodeMember([]byte(`{"roles":[],"nick":null}`), Guild{ID: 1})
	require.NoError(t, err)
	assert.False(t, m.Known())
	assert.Equal(t, uint64(0), m.ID)
	assert.Nil(t, m.Nick)
}

func TestDecodeMember_BadRole(t *testing.T) {
	_, err := DecodeMember([]byte(`{"roles":["x"]}`), Guild{ID: 1})
	var derr *DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "roles", derr.Field)
}
