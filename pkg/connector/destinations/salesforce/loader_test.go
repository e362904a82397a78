package salesforce

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	api "github.com/ajitpratap0/forcebridge/pkg/salesforce"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
	"github.com/ajitpratap0/forcebridge/pkg/table"
	fbtest "github.com/ajitpratap0/forcebridge/pkg/testutil"
)

type LoaderSuite struct {
	fbtest.NodeTestSuite
	metrics *metrics.Collector
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.NodeTestSuite.SetupTest()
	s.metrics = metrics.NewCollector()
	s.Org.AddObject("Account", "Id", "Name", "Industry")
}

func (s *LoaderSuite) config(operation string) *config.BaseConfig {
	cfg := fbtest.NodeConfig(config.KindLoad, s.Org)
	cfg.Salesforce.Object = "Account"
	cfg.Salesforce.Operation = operation
	return cfg
}

func (s *LoaderSuite) loader(operation string) *Loader {
	node, err := NewLoader(s.config(operation), base.WithLogger(s.Log), base.WithMetrics(s.metrics))
	s.Require().NoError(err)
	return node
}

func (s *LoaderSuite) rows(columns []string, rows ...[]interface{}) *core.Input {
	tbl := table.New("input", columns...)
	for _, r := range rows {
		s.Require().NoError(tbl.Append(r...))
	}
	return core.NewInput(tbl)
}

func (s *LoaderSuite) partitions(out *core.Output) (*table.Table, *table.Table) {
	s.Require().NotNil(out)
	s.Require().Len(out.Tables, 2)
	s.Equal(core.TableSuccesses, out.Tables[0].Name)
	s.Equal(core.TableFailures, out.Tables[1].Name)
	return out.Tables[0], out.Tables[1]
}

func (s *LoaderSuite) TestInsert() {
	in := s.rows([]string{"Name", "Industry"},
		[]interface{}{"Acme", "Energy"},
		[]interface{}{"Globex", nil},
	)

	out, err := s.loader("insert").Execute(s.Context(), in)
	s.Require().NoError(err)

	ok, failed := s.partitions(out)
	s.Equal([]string{"Name", "Industry", ColumnID}, ok.Columns)
	s.Equal([]string{"Name", "Industry", ColumnError}, failed.Columns)
	s.Equal(2, ok.Len())
	s.Equal(0, failed.Len())

	id, _ := ok.Cell(0, ColumnID)
	s.NotEmpty(id)
	s.Len(s.Org.Records("Account"), 2)

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.Org.CallsFor(sftest.OpCreate)[1].Body, &body))
	s.Equal(map[string]interface{}{"Name": "Globex"}, body)
}

func (s *LoaderSuite) TestUpdateSendsFieldsWithoutIdentifier() {
	s.Org.AddRecords("Account", api.Record{"Id": "001", "Name": "Old"})
	in := s.rows([]string{"Id", "Name", "Industry"}, []interface{}{"001", "Acme", ""})

	out, err := s.loader("Update").Execute(s.Context(), in)
	s.Require().NoError(err)

	ok, failed := s.partitions(out)
	s.Equal(1, ok.Len())
	s.Equal(0, failed.Len())

	calls := s.Org.CallsFor(sftest.OpUpdate)
	s.Require().Len(calls, 1)
	s.Equal(http.MethodPatch, calls[0].Method)
	s.Contains(calls[0].Path, "/sobjects/Account/001")

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(calls[0].Body, &body))
	s.Equal(map[string]interface{}{"Name": "Acme"}, body)
	s.Equal("Acme", s.Org.Records("Account")[0]["Name"])
}

func (s *LoaderSuite) TestDelete() {
	s.Org.AddRecords("Account", api.Record{"Id": "001", "Name": "Acme"}, api.Record{"Id": "002", "Name": "Globex"})
	in := s.rows([]string{"id"}, []interface{}{"001"}, []interface{}{"404"})

	out, err := s.loader(" DELETE ").Execute(s.Context(), in)
	s.Require().NoError(err)

	ok, failed := s.partitions(out)
	s.Equal(1, ok.Len())
	s.Equal(1, failed.Len())
	msg, _ := failed.Cell(0, ColumnError)
	s.Contains(msg, "NOT_FOUND")

	remaining := s.Org.Records("Account")
	s.Require().Len(remaining, 1)
	s.Equal("002", remaining[0]["Id"])
}

func (s *LoaderSuite) TestPartitionsAreExhaustive() {
	s.Org.Reject = func(op, object, id string, body api.Record) *sftest.Failure {
		if body["Name"] == "bad" {
			return &sftest.Failure{Code: "REQUIRED_FIELD_MISSING", Message: "Required fields are missing: [Name]"}
		}
		return nil
	}
	in := s.rows([]string{"Name"},
		[]interface{}{"a"}, []interface{}{"bad"}, []interface{}{"b"}, []interface{}{"bad"}, []interface{}{"c"},
	)

	out, err := s.loader("insert").Execute(s.Context(), in)
	s.Require().NoError(err)

	ok, failed := s.partitions(out)
	s.Equal(in.First().Len(), ok.Len()+failed.Len())
	s.Equal(3, ok.Len())
	s.Equal(2, failed.Len())
	s.Equal([]interface{}{"a", "b", "c"}, []interface{}{ok.Rows[0][0], ok.Rows[1][0], ok.Rows[2][0]})

	msg, _ := failed.Cell(0, ColumnError)
	s.Equal("REQUIRED_FIELD_MISSING: Required fields are missing: [Name]", msg)

	s.Equal(float64(3), s.metrics.Sum("records_total", map[string]string{"outcome": metrics.OutcomeSucceeded}))
	s.Equal(float64(2), s.metrics.Sum("records_total", map[string]string{"outcome": metrics.OutcomeFailed}))
	s.Equal(2, s.Logs.FilterMessage("record failed").Len())
}

func (s *LoaderSuite) TestServerErrorsNeverSkipRecords() {
	cfg := s.config("insert")
	cfg.Reliability = config.NewBaseConfig("defaults", config.KindLoad).Reliability
	s.Require().True(cfg.Reliability.CircuitBreaker)
	s.Org.Fail(sftest.OpCreate, sftest.Failure{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVER_UNAVAILABLE",
		Message: "try again later",
	})

	rows := make([][]interface{}, 10)
	for i := range rows {
		rows[i] = []interface{}{fmt.Sprintf("Account %d", i)}
	}
	node, err := NewLoader(cfg, base.WithLogger(s.Log), base.WithMetrics(s.metrics))
	s.Require().NoError(err)

	out, err := node.Execute(s.Context(), s.rows([]string{"Name"}, rows...))
	s.Require().NoError(err)

	ok, failed := s.partitions(out)
	s.Equal(0, ok.Len())
	s.Require().Equal(10, failed.Len())
	s.Len(s.Org.CallsFor(sftest.OpCreate), 10)
	for i := 0; i < failed.Len(); i++ {
		msg, _ := failed.Cell(i, ColumnError)
		s.Equal("SERVER_UNAVAILABLE: try again later", msg)
	}
}

func (s *LoaderSuite) TestMissingIdentifierMakesNoCall() {
	for _, op := range []string{"update", "delete"} {
		s.Run(op, func() {
			s.SetupTest()
			in := s.rows([]string{"Id", "Name"},
				[]interface{}{"", "Acme"},
				[]interface{}{nil, "Globex"},
			)

			out, err := s.loader(op).Execute(s.Context(), in)
			s.Require().NoError(err)

			ok, failed := s.partitions(out)
			s.Equal(0, ok.Len())
			s.Equal(2, failed.Len())
			msg, _ := failed.Cell(0, ColumnError)
			s.Equal("record has no Id value", msg)
			s.Equal([]string{sftest.OpLogin}, s.Org.Ops())
		})
	}
}

func (s *LoaderSuite) TestCustomIdentifierField() {
	s.Org.AddRecords("Account", api.Record{"Id": "001", "Name": "Acme"})
	cfg := s.config("delete")
	cfg.Salesforce.IDField = "AccountId"
	node, err := NewLoader(cfg, base.WithLogger(s.Log))
	s.Require().NoError(err)

	out, err := node.Execute(s.Context(), s.rows([]string{"accountid"}, []interface{}{"001"}))
	s.Require().NoError(err)

	ok, _ := s.partitions(out)
	s.Equal(1, ok.Len())
	s.Empty(s.Org.Records("Account"))
}

func (s *LoaderSuite) TestUnsupportedOperation() {
	_, err := NewLoader(s.config("upsert"), base.WithLogger(s.Log))
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeConfig))

	r := registry.NewRegistry()
	s.Require().NoError(r.RegisterNode(core.NodeKindLoad, func(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
		return NewLoader(cfg, opts...)
	}))
	node, err := r.CreateNode(s.config("upsert"))
	s.Require().Error(err)
	s.Nil(node)
	s.True(errors.IsType(err, errors.ErrorTypeConfig))
	s.Empty(s.Org.Calls())
}

func (s *LoaderSuite) TestMissingInputTable() {
	out, err := s.loader("insert").Execute(s.Context(), nil)
	s.Require().Error(err)
	s.Nil(out)
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	s.Empty(s.Org.Calls())
}

func (s *LoaderSuite) TestAuthFailurePreventsMutations() {
	cfg := s.config("insert")
	cfg.Credentials.Password = "wrong"
	node, err := NewLoader(cfg, base.WithLogger(s.Log))
	s.Require().NoError(err)

	out, err := node.Execute(s.Context(), s.rows([]string{"Name"}, []interface{}{"Acme"}))
	s.Require().Error(err)
	s.Nil(out)
	s.True(errors.IsType(err, errors.ErrorTypeAuthentication))
	s.RequireNoDataCalls()
}

func (s *LoaderSuite) TestCancelledLoadReturnsNoPartition() {
	ctx, cancel := context.WithCancel(s.Context())
	defer cancel()
	s.Org.Reject = func(op, object, id string, body api.Record) *sftest.Failure {
		if body["Name"] == "b" {
			cancel()
		}
		return nil
	}
	in := s.rows([]string{"Name"}, []interface{}{"a"}, []interface{}{"b"}, []interface{}{"c"})

	out, err := s.loader("insert").Execute(ctx, in)
	s.Require().Error(err)
	s.Nil(out)
	s.Less(len(s.Org.CallsFor(sftest.OpCreate)), 3)
}

func (s *LoaderSuite) TestRegisteredNode() {
	node, err := registry.CreateNode(s.config("insert"), base.WithLogger(s.Log))
	s.Require().NoError(err)
	s.Equal(core.NodeKindLoad, node.Kind())
	s.Equal(core.ConnectorTypeDestination, node.Type())
}

func TestIdentifierLookup(t *testing.T) {
	rec := api.Record{"ID": " 001 ", "Name": "Acme"}

	id, ok := identifier(rec, "Id")
	assert.True(t, ok)
	assert.Equal(t, "001", id)
	assert.Contains(t, rec, "ID")

	id, ok = popIdentifier(rec, "Id")
	assert.True(t, ok)
	assert.Equal(t, "001", id)
	assert.NotContains(t, rec, "ID")

	_, ok = identifier(api.Record{"Id": "  "}, "Id")
	assert.False(t, ok)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "", FailureMessage(nil))

	apiErr := &api.APIError{StatusCode: http.StatusBadRequest, Details: []api.ErrorDetail{{ErrorCode: "INVALID_FIELD", Message: "bad"}}}
	wrapped := errors.Wrap(errors.Wrap(apiErr, errors.ErrorTypeValidation, "create failed"), errors.ErrorTypeRecord, "record rejected")
	assert.Equal(t, "INVALID_FIELD: bad", FailureMessage(wrapped))

	assert.Equal(t, "HTTP 500", FailureMessage(&api.APIError{StatusCode: http.StatusInternalServerError}))
	assert.Equal(t, "record has no Id value",
		FailureMessage(errors.New(errors.ErrorTypeMissingIdentifier, "record has no Id value")))

	transport := &url.Error{Op: "Post", URL: "https://na1.example.com/services/data/v59.0/sobjects/Account", Err: io.ErrUnexpectedEOF}
	msg := FailureMessage(errors.Wrap(errors.Wrap(transport, errors.ErrorTypeConnection, "request failed"), errors.ErrorTypeRecord, "create failed"))
	assert.Equal(t, "create failed: request failed", msg)
	assert.NotContains(t, msg, "https://")

	assert.Equal(t, "create failed: circuit breaker open",
		FailureMessage(errors.Wrap(errors.New(errors.ErrorTypeConnection, "circuit breaker open"), errors.ErrorTypeRecord, "create failed")))
	assert.Equal(t, "plain", FailureMessage(fmt.Errorf("plain")))
}

func TestDropEmpty(t *testing.T) {
	got := dropEmpty(api.Record{"Name": "Acme", "Industry": "", "Phone": nil, "Employees": 0})
	assert.Equal(t, api.Record{"Name": "Acme", "Employees": 0}, got)
}
