// Package graph binds mailstore to the Microsoft Graph mail API using
// OAuth2 client-credentials authentication.
package graph

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"time"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type graphErrorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type folderPage struct {
	Value    []graphFolder `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

type graphFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type messagePage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphMessage struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversationId"`
	Subject          string         `json:"subject"`
	From             graphRecipient `json:"from"`
	Sender           graphRecipient `json:"sender"`
	Body             graphItemBody  `json:"body"`
	ReceivedDateTime time.Time      `json:"receivedDateTime"`
	IsRead           bool           `json:"isRead"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// toMessage flattens a Graph message. The sender recipient wins over the
// from recipient when both are present, matching how delegated mailboxes
// report the submitting account.
func (m graphMessage) toMessage() mailstore.Message {
	from := m.Sender.EmailAddress.Address
	if from == "" {
		from = m.From.EmailAddress.Address
	}
	name := m.Sender.EmailAddress.Name
	if name == "" {
		name = m.From.EmailAddress.Name
	}
	return mailstore.Message{
		ID:             mailstore.MessageID(m.ID),
		ConversationID: m.ConversationID,
		Subject:        m.Subject,
		From:           from,
		SenderName:     name,
		Body:           m.Body.Content,
		Received:       m.ReceivedDateTime,
		Unread:         !m.IsRead,
	}
}

type attachmentPage struct {
	Value    []graphAttachment `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

type graphAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

type sendMailMessage struct {
	Subject       string           `json:"subject"`
	Body          messageBody      `json:"body"`
	ToRecipients  []recipient      `json:"toRecipients"`
	CcRecipients  []recipient      `json:"ccRecipients,omitempty"`
	BccRecipients []recipient      `json:"bccRecipients,omitempty"`
	Attachments   []fileAttachment `json:"attachments,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
	IsInline     bool   `json:"isInline,omitempty"`
	ContentID    string `json:"contentId,omitempty"`
}

// buildSendMailRequest converts an outbound message into the Graph
// sendMail request body.
func buildSendMailRequest(out mailstore.Outbound) *sendMailRequest {
	body := messageBody{ContentType: "text", Content: out.Body}
	if out.HTML {
		body.ContentType = "html"
	}

	toRecipients := []recipient{{EmailAddress: emailAddress{Address: out.To}}}

	ccRecipients := make([]recipient, 0, len(out.CC))
	for _, addr := range out.CC {
		ccRecipients = append(ccRecipients, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	bccRecipients := make([]recipient, 0, len(out.BCC))
	for _, addr := range out.BCC {
		bccRecipients = append(bccRecipients, recipient{EmailAddress: emailAddress{Address: addr}})
	}

	attachments := make([]fileAttachment, 0, len(out.Attachments))
	for _, att := range out.Attachments {
		attachments = append(attachments, fileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Name,
			ContentType:  mime.TypeByExtension(filepath.Ext(att.Name)),
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
			IsInline:     att.Inline,
			ContentID:    att.ContentID,
		})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:       out.Subject,
			Body:          body,
			ToRecipients:  toRecipients,
			CcRecipients:  ccRecipients,
			BccRecipients: bccRecipients,
			Attachments:   attachments,
		},
	}
}
