package server

import (
	"errors"
	"net/http"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/internal/oauth"
	"github.com/giantswarm/discord-oauth/internal/session"
	"github.com/giantswarm/discord-oauth/pkg/logging"
	textutil "github.com/giantswarm/discord-oauth/pkg/strings"
)

func sessionFrom(r *http.Request) (session.Store, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

// handleLogin redirects to Discord's authorization page. Scopes may be
// requested with one or more scope query parameters; without any the
// configured scopes are used.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	authURL, _, err := s.auth.AuthorizationURL(sess, oauth.NormalizeScopes(r.URL.Query()["scope"]))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	setSecurityHeaders(w)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the sign-in and sends the visitor back to the
// page that required it.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if _, err := s.auth.HandleCallback(r.Context(), sess, r.URL); err != nil {
		s.renderCallbackError(w, err)
		return
	}

	// Entries cached for whoever used this session before belong to a
	// different sign-in.
	if err := s.profiles.Invalidate(sess); err != nil {
		logging.Warn("Server", "Failed to reset profile cache: %v", err)
	}

	target := s.cfg.PostLoginRedirect
	var next string
	if found, err := sess.Get(oauth.KeyNext, &next); err == nil && found && isLocalPath(next) {
		target = next
	}
	if err := sess.Delete(oauth.KeyNext); err != nil {
		logging.Warn("Server", "Failed to drop post-login target: %v", err)
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) renderCallbackError(w http.ResponseWriter, err error) {
	page := errorPage{LoginPath: s.cfg.LoginPath}

	var perr *oauth.ProviderError
	switch {
	case errors.Is(err, oauth.ErrAccessDenied):
		page.Status = http.StatusForbidden
		page.Title = "Access denied"
		page.Message = "You declined to share your Discord account with this application."
	case errors.Is(err, oauth.ErrCSRFMismatch):
		page.Status = http.StatusBadRequest
		page.Title = "Sign-in expired"
		page.Message = "This sign-in attempt is no longer valid. Please start again."
	case errors.As(err, &perr):
		page.Status = http.StatusBadRequest
		page.Title = "Sign-in failed"
		page.Message = "Discord reported an error: " + textutil.Truncate(perr.Code, 64)
		page.Detail = textutil.Truncate(perr.Description, textutil.DefaultDetailMaxLen)
	case errors.Is(err, oauth.ErrTokenExchangeFailed):
		page.Status = http.StatusBadGateway
		page.Title = "Sign-in failed"
		page.Message = "Could not complete sign-in with Discord. Please try again."
	default:
		logging.Error("Server", err, "Callback failed")
		page.Status = http.StatusInternalServerError
		page.Title = "Sign-in failed"
		page.Message = "Something went wrong on our side."
	}

	renderPage(w, page.Status, "error", page)
}

// handleLogout clears the session, including any cached profile data.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := s.auth.Clear(sess); err != nil {
		WriteError(w, r, err)
		return
	}
	logging.Info("Server", "Session signed out")

	http.Redirect(w, r, s.cfg.PostLogoutRedirect, http.StatusFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if s.auth.SignedIn(sess) {
		http.Redirect(w, r, s.cfg.PostLoginRedirect, http.StatusFound)
		return
	}
	renderPage(w, http.StatusOK, "index", indexPage{LoginPath: s.cfg.LoginPath})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMePage greets the signed-in user.
func (s *Server) handleMePage(w http.ResponseWriter, r *http.Request) error {
	sess, err := sessionFrom(r)
	if err != nil {
		return err
	}
	user, err := s.profiles.User(r.Context(), sess)
	if err != nil {
		return err
	}
	guilds, err := s.profiles.Guilds(r.Context(), sess)
	if err != nil {
		return err
	}

	renderPage(w, http.StatusOK, "me", mePage{User: user, Guilds: guilds, LogoutPath: s.cfg.LogoutPath})
	return nil
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) error {
	sess, err := sessionFrom(r)
	if err != nil {
		return err
	}
	user, err := s.profiles.User(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newUserView(user))
	return nil
}

func (s *Server) handleAPIGuilds(w http.ResponseWriter, r *http.Request) error {
	sess, err := sessionFrom(r)
	if err != nil {
		return err
	}
	guilds, err := s.profiles.Guilds(r.Context(), sess)
	if err != nil {
		return err
	}

	views := make([]guildView, 0, len(guilds))
	for _, g := range guilds {
		views = append(views, newGuildView(g))
	}
	writeJSON(w, http.StatusOK, views)
	return nil
}

func (s *Server) handleAPIGuild(w http.ResponseWriter, r *http.Request) error {
	sess, err := sessionFrom(r)
	if err != nil {
		return err
	}
	guildID, ok := guildIDParam(w, r)
	if !ok {
		return nil
	}

	guild, err := s.profiles.Guild(r.Context(), sess, guildID)
	if err != nil {
		return err
	}
	if guild == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not_a_member", Message: "not a member of this guild"})
		return nil
	}
	writeJSON(w, http.StatusOK, newGuildView(*guild))
	return nil
}

func (s *Server) handleAPIMember(w http.ResponseWriter, r *http.Request) error {
	sess, err := sessionFrom(r)
	if err != nil {
		return err
	}
	guildID, ok := guildIDParam(w, r)
	if !ok {
		return nil
	}

	member, err := s.profiles.Member(r.Context(), sess, guildID)
	if err != nil {
		return err
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not_a_member", Message: "not a member of this guild"})
		return nil
	}
	writeJSON(w, http.StatusOK, newMemberView(*member))
	return nil
}

// guildIDParam parses the {id} path segment, answering 400 itself when it
// is not a snowflake.
func guildIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := discord.ParseSnowflake(r.PathValue("id"))
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid_guild_id", Message: "guild id must be a snowflake"})
		return 0, false
	}
	return id, true
}
