package salesforce_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
)

func newClient(t *testing.T, org *sftest.Org, opts ...salesforce.Option) *salesforce.Client {
	t.Helper()
	opts = append([]salesforce.Option{salesforce.WithLogger(zaptest.NewLogger(t))}, opts...)
	return salesforce.NewClient(org.Session(), nil, opts...)
}

func seedAccounts(org *sftest.Org, n int) {
	org.AddObject("Account", "Id", "Name", "Industry")
	for i := 0; i < n; i++ {
		org.AddRecords("Account", salesforce.Record{"Name": "Acme " + string(rune('A'+i%26)), "Industry": "Energy"})
	}
}

func TestQueryAndQueryMore(t *testing.T) {
	org := sftest.New(t)
	org.PageSize = 2
	seedAccounts(org, 5)
	c := newClient(t, org)
	ctx := context.Background()

	first, err := c.Query(ctx, "SELECT Id,Name FROM Account")
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalSize)
	assert.False(t, first.Done)
	require.Len(t, first.Records, 2)
	assert.Contains(t, first.Records[0], "attributes")
	assert.NotContains(t, first.Records[0], "Industry")
	require.NotEmpty(t, first.NextRecordsURL)

	second, err := c.QueryMore(ctx, first.NextRecordsURL)
	require.NoError(t, err)
	assert.False(t, second.Done)
	assert.Len(t, second.Records, 2)

	// a full URL and a bare cursor id are accepted too
	cursor := second.NextRecordsURL[strings.LastIndexByte(second.NextRecordsURL, '/')+1:]
	third, err := c.QueryMore(ctx, cursor)
	require.NoError(t, err)
	assert.True(t, third.Done)
	assert.Len(t, third.Records, 1)

	assert.Equal(t, []string{sftest.OpQuery, sftest.OpQueryMore, sftest.OpQueryMore}, org.Ops())
}

func TestQueryAllUsesQueryAllEndpoint(t *testing.T) {
	org := sftest.New(t)
	seedAccounts(org, 2)
	c := newClient(t, org)

	id := org.Records("Account")[0]["Id"].(string)
	require.NoError(t, c.Delete(context.Background(), "Account", id))

	live, err := c.Query(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)
	assert.Len(t, live.Records, 1)

	all, err := c.QueryAll(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)
	assert.Len(t, all.Records, 2)

	calls := org.CallsFor(sftest.OpQuery)
	require.Len(t, calls, 2)
	assert.True(t, strings.HasSuffix(calls[1].Path, "/queryAll"))
}

func TestQueryMoreRejectsEmptyCursor(t *testing.T) {
	org := sftest.New(t)
	c := newClient(t, org)

	_, err := c.QueryMore(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	assert.Empty(t, org.Calls())
}

func TestDescribe(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Contact", "Id", "FirstName", "LastName", "CreatedDate")
	org.AddObject("Account", "Id", "Name")
	c := newClient(t, org)

	desc, err := c.DescribeSObject(context.Background(), "Contact")
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "FirstName", "LastName", "CreatedDate"}, desc.FieldNames())
	assert.Equal(t, "datetime", desc.Fields[3].Type)

	global, err := c.DescribeGlobal(context.Background())
	require.NoError(t, err)
	require.Len(t, global.SObjects, 2)
	assert.Equal(t, "Account", global.SObjects[0]["name"])
	assert.Equal(t, "Contact", global.SObjects[1]["name"])
}

func TestDescribeUnknownObject(t *testing.T) {
	org := sftest.New(t)
	c := newClient(t, org)

	_, err := c.DescribeSObject(context.Background(), "Nope__c")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeDescribe, errors.TypeOf(err))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.True(t, errors.IsFatal(err))

	var apiErr *salesforce.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code())
}

func TestCreateUpdateDelete(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Account", "Id", "Name", "Industry")
	c := newClient(t, org)
	ctx := context.Background()

	id, err := c.Create(ctx, "Account", salesforce.Record{"Name": "Acme"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "001"))

	require.NoError(t, c.Update(ctx, "Account", id, salesforce.Record{"Industry": "Energy"}))
	recs := org.Records("Account")
	require.Len(t, recs, 1)
	assert.Equal(t, "Energy", recs[0]["Industry"])
	assert.Equal(t, "Acme", recs[0]["Name"])

	update := org.CallsFor(sftest.OpUpdate)[0]
	assert.Equal(t, http.MethodPatch, update.Method)
	assert.JSONEq(t, `{"Industry":"Energy"}`, string(update.Body))

	require.NoError(t, c.Delete(ctx, "Account", id))
	assert.Empty(t, org.Records("Account"))

	err = c.Delete(ctx, "Account", id)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeRecord, errors.TypeOf(err))
	assert.False(t, errors.IsFatal(err))
}

func TestCreateRejectedField(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Account", "Id", "Name")
	c := newClient(t, org)

	_, err := c.Create(context.Background(), "Account", salesforce.Record{"Name": "Acme", "Bogus__c": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_FIELD")
	assert.Equal(t, errors.ErrorTypeRecord, errors.TypeOf(err))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		failure   sftest.Failure
		wantType  errors.ErrorType
		retryable bool
	}{
		{name: "expired session", failure: sftest.Failure{Status: 401, Code: "INVALID_SESSION_ID", Message: "Session expired"}, wantType: errors.ErrorTypeAuthentication},
		{name: "api limit", failure: sftest.Failure{Status: 403, Code: "REQUEST_LIMIT_EXCEEDED", Message: "TotalRequests Limit exceeded."}, wantType: errors.ErrorTypeRateLimit, retryable: true},
		{name: "no access", failure: sftest.Failure{Status: 403, Code: "INSUFFICIENT_ACCESS", Message: "no"}, wantType: errors.ErrorTypePermission},
		{name: "server error", failure: sftest.Failure{Status: 503, Code: "SERVER_UNAVAILABLE", Message: "down"}, wantType: errors.ErrorTypeConnection, retryable: true},
		{name: "bad query", failure: sftest.Failure{Status: 400, Code: "MALFORMED_QUERY", Message: "unexpected token"}, wantType: errors.ErrorTypeData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := sftest.New(t)
			org.Fail(sftest.OpQuery, tt.failure)
			c := newClient(t, org)

			_, err := c.Query(context.Background(), "SELECT Id FROM Account")
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeQuery, errors.TypeOf(err))
			assert.True(t, errors.IsType(err, tt.wantType), err.Error())
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestWrongSessionIsAuthenticationError(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Account", "Id")
	session := org.Session()
	session.ID = "stale"
	c := salesforce.NewClient(session, nil)

	_, err := c.DescribeGlobal(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestCallsAreMetered(t *testing.T) {
	org := sftest.New(t)
	seedAccounts(org, 1)
	m := metrics.NewCollector()
	c := newClient(t, org, salesforce.WithMetrics(m))

	_, err := c.Query(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)
	_, err = c.DescribeSObject(context.Background(), "Missing")
	require.Error(t, err)

	assert.Equal(t, 2, mustCount(t, m))
}

func TestCanceledContext(t *testing.T) {
	org := sftest.New(t)
	c := newClient(t, org)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.DescribeGlobal(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func mustCount(t *testing.T, m *metrics.Collector) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), "forcebridge_api_calls_total")
	require.NoError(t, err)
	return n
}
