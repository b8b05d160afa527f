package runtime

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	gc "github.com/yourorg/rulesweep/internal/gmail"
)

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient adapts a *gmail.Service to the narrow client the
// services consume.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc: svc} }

func (g *googleClient) List(
	ctx context.Context,
	q gc.Query,
	pageToken string,
	pageSize int,
) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List("me").MaxResults(int64(pageSize))
	if q.Raw != "" {
		call = call.Q(q.Raw)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, gc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, err
	}
	return parseMessage(msg), nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	// A minimal fetch carries the current labels, which is all we need
	// to decide whether the modify would change anything.
	current, err := g.svc.Users.Messages.Get("me", string(id)).Format("minimal").Context(ctx).Do()
	if err != nil {
		return err
	}
	req := modifyRequest(current.LabelIds, ops)
	if req == nil {
		return gc.ErrNoChange
	}
	_, err = g.svc.Users.Messages.Modify("me", string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) ListLabels(
	ctx context.Context,
) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	res, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]gc.LabelID, len(res.Labels))
	byID := make(map[gc.LabelID]string, len(res.Labels))
	for _, l := range res.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

// modifyRequest works out which label changes are still needed given
// the labels currently on the message. A nil request means the message
// is already in the requested state.
func modifyRequest(currentLabels []string, ops gc.ModifyOps) *gmail.ModifyMessageRequest {
	present := make(map[string]bool, len(currentLabels))
	for _, l := range currentLabels {
		present[l] = true
	}
	var add, remove []string
	for _, l := range ops.AddLabels {
		if !present[string(l)] {
			add = append(add, string(l))
		}
	}
	for _, l := range ops.RemoveLabels {
		if present[string(l)] {
			remove = append(remove, string(l))
		}
	}
	if ops.MarkRead && present["UNREAD"] {
		remove = append(remove, "UNREAD")
	}
	if ops.Archive && present["INBOX"] {
		remove = append(remove, "INBOX")
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	return &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
}

func parseMessage(msg *gmail.Message) gc.Message {
	out := gc.Message{ID: gc.MessageID(msg.Id)}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			out.Subject = h.Value
		case "from":
			out.From = h.Value
		case "date":
			out.Date = parseMessageDate(h.Value)
		}
	}
	if out.Date.IsZero() && msg.InternalDate > 0 {
		out.Date = time.UnixMilli(msg.InternalDate).UTC()
	}
	out.Body = extractBody(msg.Payload)
	return out
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// parseMessageDate handles the Date header, including trailing zone
// comments like "(UTC)". It returns the zero time when no layout fits,
// letting the caller fall back to the server timestamp.
func parseMessageDate(value string) time.Time {
	if idx := strings.Index(value, "("); idx >= 0 {
		value = value[:idx]
	}
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extractBody returns the first text/plain body in the payload tree.
// Single-part messages carry the body directly on the payload.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	}
	if err != nil {
		return ""
	}
	return string(decoded)
}
