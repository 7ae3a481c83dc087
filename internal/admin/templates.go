package admin

import "html/template"

const baseLayout = `{{ define "base" }}<!DOCTYPE html>
<html lang="{{ .Lang }}">
<head>
<meta charset="utf-8">
<title>{{ block "title" . }}Site administration{{ end }} | {{ .SiteTitle }}</title>
</head>
<body>
<header><h1><a href="/admin/">{{ .SiteHeader }}</a></h1>
{{- with .User }}
<p>Welcome, <strong>{{ .Username }}</strong>.
<form method="post" action="/admin/logout/" style="display:inline"><button type="submit">Log out</button></form></p>
{{- end }}
</header>
{{- with .Messages }}
<ul class="messagelist">{{ range . }}<li class="{{ .Level }}">{{ .Text }}</li>{{ end }}</ul>
{{- end }}
<main>{{ block "content" . }}{{ end }}</main>
</body>
</html>{{ end }}`

const loginPage = `{{ define "title" }}Log in{{ end }}
{{ define "content" }}
{{- with .Error }}<p class="errornote">{{ . }}</p>{{ end }}
<form method="post" action="/admin/login/">
<input type="hidden" name="next" value="{{ .Next }}">
<label for="id_username">Username:</label>
<input type="text" name="username" id="id_username" value="{{ .Username }}" autofocus required>
<label for="id_password">Password:</label>
<input type="password" name="password" id="id_password" required>
<button type="submit">Log in</button>
</form>
{{ end }}`

const indexPage = `{{ define "content" }}
<section id="apps">
<h2>Installed applications</h2>
<ul>{{ range .Apps }}<li>{{ . }}</li>{{ end }}</ul>
</section>
{{- if .Users }}
<section id="users">
<h2>Users</h2>
<table>
<thead><tr><th>Username</th><th>Email</th><th>Staff</th><th>Superuser</th><th>Active</th></tr></thead>
<tbody>{{ range .Users }}<tr><td>{{ .Username }}</td><td>{{ .Email }}</td><td>{{ .IsStaff }}</td><td>{{ .IsSuperuser }}</td><td>{{ .IsActive }}</td></tr>{{ end }}</tbody>
</table>
</section>
{{- end }}
{{ end }}`

const loggedOutPage = `{{ define "title" }}Logged out{{ end }}
{{ define "content" }}
<p>Thanks for spending some quality time with the web site today.</p>
<p><a href="/admin/login/">Log in again</a></p>
{{ end }}`

// newTemplateCache parses each page against the shared layout.
func newTemplateCache() (map[string]*template.Template, error) {
	pages := map[string]string{
		"login":      loginPage,
		"index":      indexPage,
		"logged_out": loggedOutPage,
	}

	cache := make(map[string]*template.Template, len(pages))
	for name, page := range pages {
		t, err := template.New(name).Parse(baseLayout)
		if err != nil {
			return nil, err
		}
		if t, err = t.Parse(page); err != nil {
			return nil, err
		}
		cache[name] = t
	}
	return cache, nil
}
