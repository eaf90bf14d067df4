package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estbm/soutenances/core"
)

var conf = &core.Config{
	AppName:         "Stages",
	FrontendBaseURL: "http://portal.test",
	Mail:            core.MailConfig{DefaultFromName: "Service des stages", DefaultFromEmail: "stages@test.ma"},
}

type convocation struct {
	Sujet      string
	Date       string
	HeureDebut string
	HeureFin   string
}

func newConvocation() *core.EmailMessage {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Sara Alami", Address: "sara@test.ma"}},
		Subject:      "Convocation",
		TemplateName: "convocation",
		TemplateData: convocation{Sujet: "Gestion RH", Date: "mardi 10 juin 2025", HeureDebut: "09:00", HeureFin: "09:30"},
	}
	msg.SetFrontendBaseURL(conf.FrontendBaseURL)
	return msg
}

func TestConsoleService_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		newConvocation(),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@test.ma"}}, Subject: "plain", BodyStr: "hello"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	conv := sent[0]
	assert.Contains(t, conv.TextContent, "« Gestion RH » est programmée le mardi 10 juin 2025 de 09:00 à 09:30.")
	assert.Contains(t, conv.TextContent, "http://portal.test/etudiant/soutenances")
	assert.Contains(t, conv.HTMLContent, "<strong>09:30</strong>")
	assert.True(t, strings.HasPrefix(conv.TextContent, "Bonjour,"))

	assert.Equal(t, "hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleServiceMock(conf)
	msg := newConvocation()
	require.NoError(t, msg.Render())
	require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.3"), "planning.pdf", "application/pdf"))

	body, err := svc.format(*msg)
	require.NoError(t, err)
	assert.Contains(t, body, `From: "Service des stages" <stages@test.ma>`)
	assert.Contains(t, body, "Subject: [Stages] Convocation")
	assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, body, "filename=planning.pdf")
	assert.NotContains(t, body, "CC:")
}

func TestSendgridService_send(t *testing.T) {
	var gotBody string
	origAPI := sendgridAPI
	defer func() { sendgridAPI = origAPI }()
	sendgridAPI = func(req rest.Request) (*rest.Response, error) {
		gotBody = string(req.Body)
		return &rest.Response{StatusCode: 202}, nil
	}

	svc := NewSendgridService(conf, nil)
	msg := newConvocation()
	msg.Cc = []mail.Address{{Name: "Karim Bennani", Address: "k.bennani@test.ma"}}
	require.NoError(t, msg.Render())
	require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.3"), "convocation.pdf", "application/pdf"))
	svc.send(*msg)

	assert.Contains(t, gotBody, `"subject":"[Stages] Convocation"`)
	assert.Contains(t, gotBody, `"email":"sara@test.ma"`)
	assert.Contains(t, gotBody, `"cc":[{"name":"Karim Bennani","email":"k.bennani@test.ma"}]`)
	assert.Contains(t, gotBody, `"type":"text/html"`)
	assert.Contains(t, gotBody, `"filename":"convocation.pdf"`)
}

func TestNew(t *testing.T) {
	c := *conf
	_, ok := New(&c, nil).(*ConsoleService)
	assert.True(t, ok, "console when mails are disabled")

	c.Mail.Enabled = true
	c.Mail.SendgridAPIKey = "SG.key"
	_, ok = New(&c, nil).(*SendgridService)
	assert.True(t, ok)
}
