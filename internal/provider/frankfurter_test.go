package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/kvachev/fx-rate-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFrankfurterTest(t *testing.T, handler http.HandlerFunc) (*Frankfurter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewFrankfurter(config.ProviderConfig{
		Name:    "frankfurter",
		BaseURL: server.URL,
	}, model.NewExcludedSet([]string{"TRY", "RUB"}), zap.NewNop())
	return p, server
}

func TestFrankfurterFetchLatest(t *testing.T) {
	var gotPath, gotQuery string
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"EUR","date":"2025-03-10","rates":{"USD":1.1,"GBP":0.8,"TRY":34.2,"X1":9.9}}`))
	})

	table, err := p.FetchLatest(context.Background(), "EUR", []model.Code{"USD", "GBP"})
	require.NoError(t, err)

	assert.Equal(t, "/latest", gotPath)
	assert.Contains(t, gotQuery, "from=EUR")
	assert.Contains(t, gotQuery, "to=USD%2CGBP")

	// Excluded and malformed upstream entries are dropped, not errored.
	require.Len(t, table, 2)
	assert.Equal(t, "1.1", table["USD"].Value.String())
	assert.Equal(t, "frankfurter", table["USD"].Source)
	assert.Equal(t, model.Code("EUR"), table["GBP"].From)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), table["USD"].ObservedAt)
}

func TestFrankfurterRejectsExcludedBaseWithoutIO(t *testing.T) {
	hits := 0
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
	})

	_, err := p.FetchLatest(context.Background(), "TRY", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	assert.Zero(t, hits)

	_, err = p.FetchHistorical(context.Background(), time.Now(), "EUR", []model.Code{"RUB"})
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	assert.Zero(t, hits)

	_, err = p.FetchPair(context.Background(), "USD", "TRY")
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidCurrency, model.KindOf(err))
	assert.Zero(t, hits)
}

func TestFrankfurterErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   model.ErrorKind
	}{
		{"server error is transient", http.StatusBadGateway, "oops", model.KindTransientUpstream},
		{"client error is permanent", http.StatusNotFound, "not found", model.KindRateUnavailable},
		{"garbage body is permanent", http.StatusOK, "{not json", model.KindRateUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.FetchLatest(context.Background(), "EUR", nil)
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
		})
	}
}

func TestFrankfurterFetchHistoricalUsesDatePath(t *testing.T) {
	var gotPath string
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"base":"EUR","date":"2024-06-14","rates":{"USD":1.07}}`))
	})

	date := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	table, err := p.FetchHistorical(context.Background(), date, "EUR", nil)
	require.NoError(t, err)
	assert.Equal(t, "/2024-06-14", gotPath)
	assert.Equal(t, "1.07", table["USD"].Value.String())
}

func TestFrankfurterNativeRange(t *testing.T) {
	var gotPath string
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"base":"EUR","start_date":"2024-06-10","end_date":"2024-06-11",
			"rates":{"2024-06-10":{"USD":1.07},"2024-06-11":{"USD":1.08}}}`))
	})

	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	series, err := p.FetchRange(context.Background(), start, end, "EUR", nil)
	require.NoError(t, err)

	assert.Equal(t, "/2024-06-10..2024-06-11", gotPath)
	require.Len(t, series, 2)
	assert.Equal(t, "1.08", series["2024-06-11"]["USD"].Value.String())
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), series["2024-06-10"]["USD"].ObservedAt)
}

func TestFrankfurterFetchPair(t *testing.T) {
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","date":"2025-03-10","rates":{"GBP":0.79}}`))
	})

	rate, err := p.FetchPair(context.Background(), "USD", "GBP")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, model.Code("USD"), rate.From)
	assert.Equal(t, model.Code("GBP"), rate.To)
	assert.Equal(t, "0.79", rate.Value.String())
}

func TestFrankfurterFetchPairAbsent(t *testing.T) {
	p, _ := newFrankfurterTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","date":"2025-03-10","rates":{}}`))
	})

	rate, err := p.FetchPair(context.Background(), "USD", "GBP")
	require.NoError(t, err)
	assert.Nil(t, rate)
}
