package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/Masterminds/sprig/v3"

	"github.com/giantswarm/discord-oauth/internal/discord"
	"github.com/giantswarm/discord-oauth/pkg/logging"
)

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: linear-gradient(135deg, #23272a 0%, #2c2f33 50%, #404eed 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #e8e8e8;
        }
        .container {
            text-align: center;
            padding: 3rem;
            background: rgba(255, 255, 255, 0.05);
            border-radius: 16px;
            border: 1px solid rgba(255, 255, 255, 0.1);
            max-width: 560px;
            margin: 1rem;
        }
        h1 { font-size: 1.75rem; font-weight: 600; margin-bottom: 0.5rem; color: #fff; }
        p { color: #a0a0a0; line-height: 1.6; margin-top: 1rem; }
        .message { color: #ff6b6b; font-weight: 500; }
        .avatar { width: 96px; height: 96px; border-radius: 50%; margin-bottom: 1rem; }
        ul { list-style: none; margin-top: 1rem; text-align: left; }
        li { padding: 0.25rem 0; color: #c8c8c8; }
        a { color: #8ea1e1; }
        .footer { margin-top: 2rem; padding-top: 1.5rem; border-top: 1px solid rgba(255, 255, 255, 0.1); font-size: 0.875rem; color: #666; }
`

var pages = template.Must(template.New("pages").Funcs(sprig.FuncMap()).Parse(`
{{- define "head" -}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ . }}</title>
    <style>` + pageStyle + `</style>
</head>
{{- end -}}

{{- define "error" -}}
{{ template "head" (printf "%s - Discord sign-in" .Title) }}
<body>
    <div class="container">
        <h1>{{ .Title }}</h1>
        <p class="message">{{ .Message }}</p>
        {{- with .Detail }}
        <p>{{ . | trunc 200 }}</p>
        {{- end }}
        <p><a href="{{ .LoginPath }}">Try signing in again</a></p>
        <div class="footer">HTTP {{ .Status }}</div>
    </div>
</body>
</html>
{{- end -}}

{{- define "index" -}}
{{ template "head" "Discord sign-in" }}
<body>
    <div class="container">
        <h1>Discord sign-in</h1>
        <p>Sign in with your Discord account to see your profile and servers.</p>
        <p><a href="{{ .LoginPath }}">Sign in with Discord</a></p>
    </div>
</body>
</html>
{{- end -}}

{{- define "me" -}}
{{ template "head" (printf "%s - Discord sign-in" .User.DisplayName) }}
<body>
    <div class="container">
        {{- with .User.AvatarURL }}
        <img class="avatar" src="{{ . }}" alt="avatar">
        {{- end }}
        <h1>Hello, {{ .User.DisplayName }}!</h1>
        <p>Signed in as {{ .User.String }}, on Discord since {{ dateInZone "January 2, 2006" .User.CreatedAt "UTC" }}.</p>
        <p>You are in {{ len .Guilds }} {{ if eq (len .Guilds) 1 }}server{{ else }}servers{{ end }}{{ if .Guilds }}:{{ else }}.{{ end }}</p>
        {{- if .Guilds }}
        <ul>
            {{- range .Guilds }}
            <li>{{ .Name }}{{ if .Owner }} (owner){{ end }}</li>
            {{- end }}
        </ul>
        {{- end }}
        <div class="footer"><form method="post" action="{{ .LogoutPath }}"><button type="submit">Sign out</button></form></div>
    </div>
</body>
</html>
{{- end -}}
`))

type errorPage struct {
	Status    int
	Title     string
	Message   string
	Detail    string
	LoginPath string
}

type indexPage struct {
	LoginPath string
}

type mePage struct {
	User       discord.User
	Guilds     []discord.Guild
	LogoutPath string
}

// setSecurityHeaders sets the headers every HTML response carries.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src https://cdn.discordapp.com")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// renderPage executes a template into a buffer first so a template error
// still produces a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("Server", err, "Failed to render %s page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
