package mailer

import (
	"database/sql"
	"testing"

	"github.com/havenretreats/haven-go/internal/model"
)

func TestRenderTextNoEscaping(t *testing.T) {
	got := RenderText("Hi {{first_name}}", map[string]string{"first_name": "A&B"})
	if got != "Hi A&B" {
		t.Errorf("RenderText = %q, want %q", got, "Hi A&B")
	}
}

func TestRenderHTMLEscapesValues(t *testing.T) {
	got := RenderHTML("Hi {{first_name}}", map[string]string{"first_name": "A&B"})
	if got != "Hi A&amp;B" {
		t.Errorf("RenderHTML = %q, want %q", got, "Hi A&amp;B")
	}

	got = RenderHTML("<p>{{msg}}</p>", map[string]string{"msg": `<script>alert("x")</script>`})
	want := "<p>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>"
	if got != want {
		t.Errorf("RenderHTML = %q, want %q", got, want)
	}
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	if got := RenderText("Hello {{missing}}!", nil); got != "Hello !" {
		t.Errorf("RenderText = %q, want %q", got, "Hello !")
	}
	if got := RenderHTML("Hello {{missing}}!", map[string]string{}); got != "Hello !" {
		t.Errorf("RenderHTML = %q, want %q", got, "Hello !")
	}
}

func TestRenderWhitespaceInPlaceholder(t *testing.T) {
	got := RenderText("Hi {{ name }}", map[string]string{"name": "Ada"})
	if got != "Hi Ada" {
		t.Errorf("RenderText = %q, want %q", got, "Hi Ada")
	}
}

func TestRenderTemplate(t *testing.T) {
	tpl := model.EmailTemplate{
		Key:      "contact_notification",
		Subject:  "From {{name}}",
		HTMLBody: "<p>{{name}} says {{message}}</p>",
		TextBody: sql.NullString{String: "{{name}} says {{message}}", Valid: true},
	}

	out := RenderTemplate(tpl, map[string]string{"name": "Bo & Co", "message": "hi"})
	if out.Subject != "From Bo & Co" {
		t.Errorf("Subject = %q", out.Subject)
	}
	if out.HTML != "<p>Bo &amp; Co says hi</p>" {
		t.Errorf("HTML = %q", out.HTML)
	}
	if out.Text != "Bo & Co says hi" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestRenderTemplateNoTextBody(t *testing.T) {
	tpl := model.EmailTemplate{Subject: "s", HTMLBody: "<p>b</p>"}
	out := RenderTemplate(tpl, nil)
	if out.Text != "" {
		t.Errorf("Text = %q, want empty", out.Text)
	}
}
