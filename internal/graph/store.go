package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
)

const messagePageSize = 100

// Config holds the client-credentials identity and the mailbox the store
// operates on.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Mailbox      string
}

// Store drives one Graph mailbox over plain HTTP.
type Store struct {
	mailbox    string
	baseURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New constructs a Store against the public Graph endpoints.
func New(cfg Config) *Store {
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	client := &http.Client{Timeout: 30 * time.Second}
	return &Store{
		mailbox:    cfg.Mailbox,
		baseURL:    "https://graph.microsoft.com/v1.0",
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides constructs a Store with custom endpoints and HTTP
// client, used for testing.
func newWithOverrides(cfg Config, baseURL, tokenURL string, client *http.Client) *Store {
	return &Store{
		mailbox:    cfg.Mailbox,
		baseURL:    baseURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

var _ mailstore.Store = (*Store)(nil)

func (s *Store) Probe(ctx context.Context) error {
	resp, err := s.roundTrip(ctx, http.MethodGet, s.userURL(""), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (s *Store) ChildFolders(ctx context.Context) ([]mailstore.Folder, error) {
	var folders []mailstore.Folder
	next := s.userURL("/mailFolders/inbox/childFolders")
	for next != "" {
		var page folderPage
		if err := s.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list child folders: %w", err)
		}
		for _, f := range page.Value {
			folders = append(folders, mailstore.Folder{
				ID:   mailstore.FolderID(f.ID),
				Name: f.DisplayName,
			})
		}
		next = page.NextLink
	}
	return folders, nil
}

func (s *Store) Messages(ctx context.Context, folder mailstore.FolderID, q mailstore.Query) ([]mailstore.Message, error) {
	params := url.Values{}
	if filter := buildFilter(q); filter != "" {
		params.Set("$filter", filter)
	}
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", "id,conversationId,subject,from,sender,body,receivedDateTime,isRead")
	params.Set("$top", strconv.Itoa(messagePageSize))

	var msgs []mailstore.Message
	next := s.userURL("/mailFolders/"+url.PathEscape(string(folder))+"/messages") + "?" + params.Encode()
	for next != "" {
		var page messagePage
		if err := s.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range page.Value {
			msgs = append(msgs, m.toMessage())
		}
		next = page.NextLink
	}
	return msgs, nil
}

// buildFilter renders the query as an OData $filter. The subject
// substring goes in verbatim; only embedded single quotes are doubled,
// as OData string literal syntax requires.
func buildFilter(q mailstore.Query) string {
	var clauses []string
	if q.SubjectContains != "" {
		literal := strings.ReplaceAll(q.SubjectContains, "'", "''")
		clauses = append(clauses, fmt.Sprintf("contains(subject,'%s')", literal))
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "receivedDateTime ge "+q.Since.UTC().Format(time.RFC3339))
	}
	return strings.Join(clauses, " and ")
}

func (s *Store) Attachments(ctx context.Context, msg mailstore.MessageID) ([]mailstore.Attachment, error) {
	params := url.Values{}
	params.Set("$select", "id,name")

	var atts []mailstore.Attachment
	next := s.userURL("/messages/"+url.PathEscape(string(msg))+"/attachments") + "?" + params.Encode()
	for next != "" {
		var page attachmentPage
		if err := s.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list attachments: %w", err)
		}
		for _, a := range page.Value {
			atts = append(atts, mailstore.Attachment{
				ID:   mailstore.AttachmentID(a.ID),
				Name: a.Name,
			})
		}
		next = page.NextLink
	}
	return atts, nil
}

// SaveAttachment streams the attachment bytes to a temp file beside the
// destination, then renames it into place so a failed transfer never
// leaves a partial file at path.
func (s *Store) SaveAttachment(ctx context.Context, msg mailstore.MessageID, att mailstore.AttachmentID, path string) error {
	u := s.userURL("/messages/" + url.PathEscape(string(msg)) + "/attachments/" + url.PathEscape(string(att)) + "/$value")
	resp, err := s.roundTrip(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move attachment into place: %w", err)
	}
	return nil
}

func (s *Store) Send(ctx context.Context, out mailstore.Outbound) error {
	payload, err := json.Marshal(buildSendMailRequest(out))
	if err != nil {
		return fmt.Errorf("marshal sendMail request: %w", err)
	}
	resp, err := s.roundTrip(ctx, http.MethodPost, s.userURL("/sendMail"), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}
	return apiError(resp)
}

func (s *Store) userURL(suffix string) string {
	return s.baseURL + "/users/" + url.PathEscape(s.mailbox) + suffix
}

// roundTrip issues one authenticated request, refreshing the token and
// reissuing once when the store answers 401.
func (s *Store) roundTrip(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	refreshed := false
	for {
		token, err := s.token.Token()
		if err != nil {
			return nil, fmt.Errorf("get access token: %w", err)
		}

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph request failed: %w", err)
		}
		if resp.StatusCode == http.StatusUnauthorized && !refreshed {
			resp.Body.Close()
			if _, refreshErr := s.token.ForceRefresh(); refreshErr != nil {
				return nil, fmt.Errorf("token refresh failed: %w", refreshErr)
			}
			refreshed = true
			continue
		}
		return resp, nil
	}
}

func (s *Store) getJSON(ctx context.Context, u string, v any) error {
	resp, err := s.roundTrip(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var envelope graphErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("graph api error (HTTP %d): %s", resp.StatusCode, envelope.Error.Message)
	}
	return fmt.Errorf("graph api error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
