package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// Notion allows an average of three requests per second per integration.
const (
	requestsPerSecond = 3
	requestBurst      = 3
)

// NotionClient implements NotionService on top of github.com/jomei/notionapi.
// Calls share one rate limiter, so sync workers never exceed the API quota.
// Every API failure is reported as domain.ErrExternalService.
type NotionClient struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

func (n *NotionClient) wait(ctx context.Context, op string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return domain.External(err, op+": rate limiter")
	}
	return nil
}

// CreatePage adds a row to the ledger database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.wait(ctx, "CreatePage"); err != nil {
		return nil, err
	}

	page, err := n.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, domain.External(err, "CreatePage")
	}
	return page, nil
}

// UpdatePage rewrites the given properties of a ledger row.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := n.wait(ctx, "UpdatePage"); err != nil {
		return nil, err
	}

	page, err := n.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, domain.External(err, "UpdatePage")
	}
	return page, nil
}

// ArchivePage moves a ledger row to the trash.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	if err := n.wait(ctx, "ArchivePage"); err != nil {
		return err
	}

	_, err := n.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived:   true,
		Properties: notionapi.Properties{},
	})
	if err != nil {
		return domain.External(err, "ArchivePage")
	}
	return nil
}

// QueryDatabase returns one page of database results.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := n.wait(ctx, "QueryDatabase"); err != nil {
		return nil, err
	}

	resp, err := n.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), query)
	if err != nil {
		return nil, domain.External(err, "QueryDatabase")
	}
	return resp, nil
}

var _ NotionService = (*NotionClient)(nil)
