package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type quoteStoreStub struct {
	quotes     map[string]*models.Quote
	lastFilter models.QuoteFilter
	gets       int
}

func newQuoteStoreStub() *quoteStoreStub {
	return &quoteStoreStub{quotes: make(map[string]*models.Quote)}
}

func (s *quoteStoreStub) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == "" {
		quote.ID = "quote-generated"
	}
	if quote.Status == "" {
		quote.Status = models.QuoteStatusDraft
	}
	s.quotes[quote.ID] = quote
	return nil
}

func (s *quoteStoreStub) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	s.gets++
	if quote, ok := s.quotes[id]; ok {
		copy := *quote
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *quoteStoreStub) List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, error) {
	s.lastFilter = filter
	result := make([]models.Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		result = append(result, *quote)
	}
	return result, nil
}

type cacheStub struct {
	values map[string][]byte
	sets   int
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.sets++
	return nil
}

func repairerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "repairer-1", Role: models.RoleRepairer}
}

func TestQuoteServiceCreate(t *testing.T) {
	store := newQuoteStoreStub()
	svc := NewQuoteService(store, nil)

	quote, err := svc.Create(context.Background(), dto.CreateQuoteRequest{
		ClientID:    "client-1",
		DeviceModel: "Pixel 8",
		AmountCents: 12500,
		Currency:    "eur",
	}, repairerClaims())
	require.NoError(t, err)
	require.Equal(t, "repairer-1", quote.RepairerID)
	require.Equal(t, "EUR", quote.Currency)
	require.Equal(t, models.QuoteStatusDraft, quote.Status)
}

func TestQuoteServiceCreateRejectsClients(t *testing.T) {
	svc := NewQuoteService(newQuoteStoreStub(), nil)

	_, err := svc.Create(context.Background(), dto.CreateQuoteRequest{
		ClientID:    "client-1",
		DeviceModel: "Pixel 8",
		AmountCents: 12500,
		Currency:    "EUR",
	}, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestQuoteServiceCreateValidates(t *testing.T) {
	svc := NewQuoteService(newQuoteStoreStub(), nil)

	_, err := svc.Create(context.Background(), dto.CreateQuoteRequest{
		ClientID: "client-1",
		Currency: "EURO", // must be a 3-letter code
	}, repairerClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestQuoteServiceGetScopesAccess(t *testing.T) {
	store := newQuoteStoreStub()
	store.quotes["quote-1"] = &models.Quote{
		ID: "quote-1", ClientID: "client-1", RepairerID: "repairer-1", Status: models.QuoteStatusDraft,
	}
	svc := NewQuoteService(store, nil)

	_, err := svc.Get(context.Background(), "quote-1", &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "quote-1", &models.JWTClaims{UserID: "client-2", Role: models.RoleClient})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "missing", repairerClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestQuoteServiceGetReadsThroughCache(t *testing.T) {
	store := newQuoteStoreStub()
	store.quotes["quote-1"] = &models.Quote{
		ID: "quote-1", ClientID: "client-1", RepairerID: "repairer-1", Status: models.QuoteStatusDraft,
	}
	cache := newCacheStub()
	svc := NewQuoteService(store, nil, WithQuoteCache(cache, time.Minute))

	_, err := svc.Get(context.Background(), "quote-1", repairerClaims())
	require.NoError(t, err)
	require.Equal(t, 1, store.gets)
	require.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	_, err = svc.Get(context.Background(), "quote-1", repairerClaims())
	require.NoError(t, err)
	require.Equal(t, 1, store.gets)
}

func TestQuoteServiceListScopesByRole(t *testing.T) {
	store := newQuoteStoreStub()
	svc := NewQuoteService(store, nil)

	_, err := svc.List(context.Background(), dto.QuoteQuery{}, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})
	require.NoError(t, err)
	require.Equal(t, "client-1", store.lastFilter.ClientID)
	require.Empty(t, store.lastFilter.RepairerID)

	_, err = svc.List(context.Background(), dto.QuoteQuery{}, repairerClaims())
	require.NoError(t, err)
	require.Equal(t, "repairer-1", store.lastFilter.RepairerID)
	require.Empty(t, store.lastFilter.ClientID)

	_, err = svc.List(context.Background(), dto.QuoteQuery{}, adminClaims())
	require.NoError(t, err)
	require.Empty(t, store.lastFilter.ClientID)
	require.Empty(t, store.lastFilter.RepairerID)
}
