package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: sans-serif; line-height: 1.5; max-width: 600px; margin: 0 auto;">
<h1>{{.AppName}}</h1>
{{template "content" .}}
{{if .AppURL}}<p style="color: #666; font-size: 0.9em;">Sent by <a href="{{.AppURL}}">{{.AppName}}</a></p>{{end}}
</body>
</html>{{end}}

{{define "verification"}}<p>Hi {{.Name}},</p>
<p>Use this token to verify your email address:</p>
<p><b>{{.Token}}</b></p>
<p>The token expires in {{.ExpiresIn}}.</p>{{end}}

{{define "already_registered"}}<p>Someone tried to register a new account with this email address, but an account already exists.</p>
<p>If that was you, log in or request a password reset instead.</p>{{end}}

{{define "already_verified"}}<p>Your account has already been verified. You can proceed to log in.</p>{{end}}

{{define "password_reset"}}<p>Hi {{.Name}},</p>
<p>Use this token to set a new password:</p>
<p><b>{{.Token}}</b></p>
<p>The token can only be used once and expires in {{.ExpiresIn}}.</p>{{end}}

{{define "verify_before_reset"}}<p>Please verify your email address before requesting a password change.</p>{{end}}
`))

// Composer renders the account emails.
type Composer struct {
	appName string
	appURL  string
}

// NewComposer creates a Composer that signs mail as appName.
func NewComposer(appName string) *Composer {
	if appName == "" {
		appName = "Tagbox"
	}
	return &Composer{appName: appName}
}

// WithURL returns a copy of c whose mail links back to the server at url.
func (c *Composer) WithURL(url string) *Composer {
	out := *c
	out.appURL = url
	return &out
}

type templateData struct {
	AppName   string
	AppURL    string
	Subject   string
	Name      string
	Token     string
	ExpiresIn string
}

// Verification carries a new email-verification token.
func (c *Composer) Verification(to, name, token string, ttl time.Duration) (Message, error) {
	return c.render("verification", to, "Verify your email address", templateData{Name: name, Token: token, ExpiresIn: humanDuration(ttl)})
}

// AlreadyRegistered tells an existing account holder someone tried to sign up again.
func (c *Composer) AlreadyRegistered(to string) (Message, error) {
	return c.render("already_registered", to, "Registration attempt", templateData{})
}

// AlreadyVerified answers a verification request for a verified account.
func (c *Composer) AlreadyVerified(to string) (Message, error) {
	return c.render("already_verified", to, "Welcome", templateData{})
}

// PasswordReset carries a password reset token.
func (c *Composer) PasswordReset(to, name, token string, ttl time.Duration) (Message, error) {
	return c.render("password_reset", to, "Password reset", templateData{Name: name, Token: token, ExpiresIn: humanDuration(ttl)})
}

// VerifyBeforeReset answers a reset request for an unverified account.
func (c *Composer) VerifyBeforeReset(to string) (Message, error) {
	return c.render("verify_before_reset", to, "Password reset", templateData{})
}

func (c *Composer) render(name, to, subject string, data templateData) (Message, error) {
	data.AppName = c.appName
	data.AppURL = c.appURL
	data.Subject = subject

	content := templates.Lookup(name)
	if content == nil {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}

	// Bind the chosen content block into a copy of the layout.
	t, err := templates.Lookup("layout").Clone()
	if err != nil {
		return Message{}, err
	}
	if _, err := t.AddParseTree("content", content.Tree.Copy()); err != nil {
		return Message{}, err
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s mail: %w", name, err)
	}

	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
