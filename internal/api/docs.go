package api

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"derbent-workflow/backend/internal/auth"
)

//go:embed openapi.yaml
var openAPISpec string

const (
	specPath     = "/openapi.yaml"
	redirectPath = "/docs/oauth2-redirect.html"
)

// SpecHandler serves openapi.yaml with {oktaIssuer} filled in.
func SpecHandler(oktaIssuer string) http.HandlerFunc {
	spec := []byte(strings.ReplaceAll(openAPISpec, "{oktaIssuer}", oktaIssuer))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(spec)
	}
}

type docsPage struct {
	SpecURL     string
	RedirectURL string
	ClientID    string
	Scopes      string
}

// SwaggerHandler serves the interactive API docs. Sign-in from the page uses
// PKCE with clientID, which must be a public (SPA) client.
func SwaggerHandler(clientID string) http.HandlerFunc {
	scopes := strings.Join(auth.AllScopes, " ")
	return func(w http.ResponseWriter, r *http.Request) {
		page := docsPage{
			SpecURL:     specPath,
			RedirectURL: requestOrigin(r) + redirectPath,
			ClientID:    clientID,
			Scopes:      scopes,
		}
		var buf bytes.Buffer
		if err := docsTemplate.Execute(&buf, page); err != nil {
			http.Error(w, "failed to render docs", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}

// OAuthRedirectHandler hands the authorization response back to the docs
// window that opened the login popup.
func OAuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(redirectPage))
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Workflow API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.addEventListener("load", function () {
  window.ui = SwaggerUIBundle({
    url: {{.SpecURL}},
    dom_id: "#swagger-ui",
    oauth2RedirectUrl: {{.RedirectURL}},
    persistAuthorization: true
  });
  window.ui.initOAuth({
    clientId: {{.ClientID}},
    scopes: {{.Scopes}},
    usePkceWithAuthorizationCodeGrant: true
  });
});
</script>
</body>
</html>`))

const redirectPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Signing in</title></head>
<body>
<script>
(function () {
  var cb = window.opener && window.opener.swaggerUIRedirectOauth2;
  if (!cb) { return; }
  var raw = window.location.search || window.location.hash;
  var params = new URLSearchParams(raw.substring(1));
  var qp = Object.fromEntries(params.entries());
  if (qp.state !== cb.state) {
    cb.errCb({authId: cb.auth.name, source: "auth", level: "warning", message: "state mismatch"});
  } else if (qp.code) {
    cb.auth.code = qp.code;
    cb.callback({auth: cb.auth, redirectUrl: cb.redirectUrl});
  } else {
    cb.errCb({authId: cb.auth.name, source: "auth", level: "error", message: qp.error_description || qp.error || "no code returned"});
  }
  window.close();
})();
</script>
</body>
</html>`
