package gmail

import (
	"context"
	"errors"
)

// ErrNoChange reports that a modify call had nothing to do because the
// message already satisfied the requested state.
var ErrNoChange = errors.New("message already in requested state")

// Client is the narrow Gmail surface required by rulesweep.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	Get(ctx context.Context, id MessageID) (Message, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	ListLabels(ctx context.Context) (map[string]LabelID, map[LabelID]string, error)
}
