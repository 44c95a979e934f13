package client

import (
	"context"
	"net/http"
	"testing"

	"ethcrawler/internal/domain"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testAPIURL = "http://crawler.test"

func newTestAPIClient(t *testing.T) (*APIClient, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client, err := NewAPIClient(testAPIURL+"/", &http.Client{Transport: transport})
	require.NoError(t, err)
	return client, transport
}

func TestNewAPIClient_RequiresURL(t *testing.T) {
	_, err := NewAPIClient("  ", nil)
	require.EqualError(t, err, "api url is required")
}

func TestAPIClient_FetchAccount(t *testing.T) {
	c := require.New(t)
	client, transport := newTestAPIClient(t)

	transport.RegisterResponder(http.MethodGet, testAPIURL+"/account", func(req *http.Request) (*http.Response, error) {
		query := req.URL.Query()
		c.Equal("0xabc", query.Get("address"))
		c.Equal("0", query.Get("from"))
		c.Equal("100", query.Get("to"))
		c.Equal("1", query.Get("page"))
		c.Equal("1000", query.Get("offset"))
		c.Equal("asc", query.Get("sort"))
		return httpmock.NewStringResponse(http.StatusOK, `{
			"address":"0xabc","balance":"1000000000000000000","page":1,"offset":1000,"sort":"asc",
			"normal_transactions":[{"hash":"0x1","from":"0xabc","to":"0xdef","block_number":"50","time_stamp":"0","value":"5","gas_price":"1","cumulative_gas_used":"2"}]
		}`), nil
	})

	account, err := client.FetchAccount(context.Background(), domain.QueryParams{
		Address: "0xabc", From: 0, To: 100, Page: 1, Offset: 1000, Sort: "asc",
	})
	c.NoError(err)
	c.Equal("1000000000000000000", account.Balance)
	c.Len(account.NormalTransactions, 1)
	c.Equal("50", account.NormalTransactions[0].BlockNumber)
	c.Equal("2", account.NormalTransactions[0].CumulativeGasUsed)
}

func TestAPIClient_ErrorBody(t *testing.T) {
	client, transport := newTestAPIClient(t)
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/account",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"error":"explorer request failed","kind":"timeout"}`))

	_, err := client.FetchAccount(context.Background(), domain.QueryParams{Address: "0xabc"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, "timeout", apiErr.Kind)
	require.Equal(t, "api status 502: explorer request failed (timeout)", err.Error())
}

func TestAPIClient_UndecodableBody(t *testing.T) {
	client, transport := newTestAPIClient(t)
	transport.RegisterResponder(http.MethodGet, testAPIURL+"/account",
		httpmock.NewStringResponder(http.StatusOK, `not json`))

	_, err := client.FetchAccount(context.Background(), domain.QueryParams{Address: "0xabc"})
	require.ErrorContains(t, err, "decode account")
}
