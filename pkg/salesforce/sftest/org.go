// Package sftest runs an in-memory Salesforce org over httptest. It speaks
// the SOAP login, OAuth2 password grant, query, describe and sObject
// endpoints forcebridge uses, and records every request so tests can assert
// exactly which remote calls a node made.
package sftest

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ajitpratap0/forcebridge/pkg/json"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// Default login tuple accepted by a new Org.
const (
	Username      = "ops@example.com"
	Password      = "correct-horse"
	SecurityToken = "TOKEN123"
	ClientID      = "fb-client"
	ClientSecret  = "fb-secret"
	SessionID     = "00D000000000001!AQ0AQFakeSession"
	APIVersion    = "59.0"
)

// Operation keys for Fail.
const (
	OpLogin          = "login"
	OpToken          = "token"
	OpQuery          = "query"
	OpQueryMore      = "query_more"
	OpDescribe       = "describe"
	OpDescribeGlobal = "describe_global"
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
)

// Call is one request the org received.
type Call struct {
	Op     string
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Failure is a canned error response.
type Failure struct {
	Status  int
	Code    string
	Message string
}

// Rejecter decides per record whether a mutation fails. Returning nil
// accepts the record.
type Rejecter func(op, object, id string, body salesforce.Record) *Failure

type object struct {
	name    string
	label   string
	fields  []string
	records []salesforce.Record
	deleted []salesforce.Record
}

// Org is a fake Salesforce org.
type Org struct {
	server *httptest.Server

	mu       sync.Mutex
	calls    []Call
	objects  map[string]*object
	order    []string
	cursors  map[string][]salesforce.Record
	failures map[string]Failure
	nextID   int
	nextCur  int

	// PageSize bounds records per query page
	PageSize int
	// BrokenCursor makes non-final pages omit nextRecordsUrl
	BrokenCursor bool
	// ReportedTotal, when set, replaces the totalSize of every page
	ReportedTotal func(actual int) int
	// Reject is consulted before every create, update and delete
	Reject Rejecter
}

// New starts an org and closes it when the test ends.
func New(t testing.TB) *Org {
	o := &Org{
		objects:  make(map[string]*object),
		cursors:  make(map[string][]salesforce.Record),
		failures: make(map[string]Failure),
		PageSize: 2000,
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)
	return o
}

// URL is the base URL of the org, usable as a login domain.
func (o *Org) URL() string {
	return o.server.URL
}

// Session returns a session that the org accepts, for tests that skip login.
func (o *Org) Session() *salesforce.Session {
	return &salesforce.Session{ID: SessionID, InstanceURL: o.server.URL, APIVersion: APIVersion}
}

// AddObject declares an object with its fields in describe order.
func (o *Org) AddObject(name string, fields ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[strings.ToLower(name)]; !ok {
		o.order = append(o.order, name)
	}
	o.objects[strings.ToLower(name)] = &object{name: name, label: name, fields: fields}
}

// AddRecords stores records on an existing object. Records without an Id
// get one.
func (o *Org) AddRecords(name string, recs ...salesforce.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj := o.objects[strings.ToLower(name)]
	for _, r := range recs {
		r = r.Clone()
		if _, ok := r["Id"]; !ok {
			r["Id"] = o.newID(obj.name)
		}
		obj.records = append(obj.records, r)
	}
}

// Records returns a copy of the live records of an object.
func (o *Org) Records(name string) []salesforce.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.objects[strings.ToLower(name)]
	if !ok {
		return nil
	}
	out := make([]salesforce.Record, 0, len(obj.records))
	for _, r := range obj.records {
		out = append(out, r.Clone())
	}
	return out
}

// Fail makes every request for op answer with f.
func (o *Org) Fail(op string, f Failure) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[op] = f
}

// Calls returns every request received so far.
func (o *Org) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.calls...)
}

// CallsFor returns the requests of one operation.
func (o *Org) CallsFor(op string) []Call {
	var out []Call
	for _, c := range o.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the operation of each request in order.
func (o *Org) Ops() []string {
	calls := o.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

var (
	reSoapPath      = regexp.MustCompile(`^/services/Soap/u/[\d.]+$`)
	reDataPath      = regexp.MustCompile(`^/services/data/v[\d.]+(/.*)$`)
	reSelect        = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+(\w+)`)
	reQueryCursor   = regexp.MustCompile(`^/query/([\w-]+)$`)
	reDescribe      = regexp.MustCompile(`^/sobjects/(\w+)/describe$`)
	reSObject       = regexp.MustCompile(`^/sobjects/(\w+)$`)
	reSObjectWithID = regexp.MustCompile(`^/sobjects/(\w+)/([\w-]+)$`)
)

func (o *Org) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	op := o.classify(r)

	o.mu.Lock()
	o.calls = append(o.calls, Call{Op: op, Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	f, failing := o.failures[op]
	o.mu.Unlock()

	if op == OpLogin {
		if failing {
			writeSoapFault(w, f)
			return
		}
		o.handleLogin(w, body)
		return
	}
	if op == OpToken {
		if failing {
			writeJSON(w, f.Status, map[string]string{"error": f.Code, "error_description": f.Message})
			return
		}
		o.handleToken(w, r, body)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+SessionID {
		writeErrors(w, Failure{Status: http.StatusUnauthorized, Code: "INVALID_SESSION_ID", Message: "Session expired or invalid"})
		return
	}
	if failing {
		writeErrors(w, f)
		return
	}

	sub := reDataPath.FindStringSubmatch(r.URL.Path)
	switch op {
	case OpQuery:
		o.handleQuery(w, r.URL.Query().Get("q"), strings.HasSuffix(sub[1], "queryAll"))
	case OpQueryMore:
		o.handleQueryMore(w, reQueryCursor.FindStringSubmatch(sub[1])[1])
	case OpDescribe:
		o.handleDescribe(w, reDescribe.FindStringSubmatch(sub[1])[1])
	case OpDescribeGlobal:
		o.handleDescribeGlobal(w)
	case OpCreate:
		o.handleCreate(w, reSObject.FindStringSubmatch(sub[1])[1], body)
	case OpUpdate, OpDelete:
		m := reSObjectWithID.FindStringSubmatch(sub[1])
		o.handleMutation(w, op, m[1], m[2], body)
	default:
		writeErrors(w, Failure{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "The requested resource does not exist"})
	}
}

func (o *Org) classify(r *http.Request) string {
	p := r.URL.Path
	if reSoapPath.MatchString(p) && r.Method == http.MethodPost {
		return OpLogin
	}
	if p == "/services/oauth2/token" && r.Method == http.MethodPost {
		return OpToken
	}
	sub := reDataPath.FindStringSubmatch(p)
	if sub == nil {
		return "unknown"
	}
	rest := sub[1]
	switch {
	case (rest == "/query" || rest == "/queryAll") && r.Method == http.MethodGet:
		return OpQuery
	case reQueryCursor.MatchString(rest) && r.Method == http.MethodGet:
		return OpQueryMore
	case rest == "/sobjects" && r.Method == http.MethodGet:
		return OpDescribeGlobal
	case reDescribe.MatchString(rest) && r.Method == http.MethodGet:
		return OpDescribe
	case reSObject.MatchString(rest) && r.Method == http.MethodPost:
		return OpCreate
	case reSObjectWithID.MatchString(rest) && r.Method == http.MethodPatch:
		return OpUpdate
	case reSObjectWithID.MatchString(rest) && r.Method == http.MethodDelete:
		return OpDelete
	default:
		return "unknown"
	}
}

type loginEnvelope struct {
	Body struct {
		Login struct {
			Username string `xml:"username"`
			Password string `xml:"password"`
		} `xml:"login"`
	} `xml:"Body"`
}

func (o *Org) handleLogin(w http.ResponseWriter, body []byte) {
	var env loginEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		writeSoapFault(w, Failure{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}
	if env.Body.Login.Username != Username || env.Body.Login.Password != Password+SecurityToken {
		writeSoapFault(w, Failure{Code: "INVALID_LOGIN", Message: "INVALID_LOGIN: Invalid username, password, security token; or user locked out."})
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns="urn:partner.soap.sforce.com"><soapenv:Body><loginResponse><result><metadataServerUrl>%[1]s/services/Soap/m/%[2]s/00D000000000001</metadataServerUrl><passwordExpired>false</passwordExpired><sandbox>false</sandbox><serverUrl>%[1]s/services/Soap/u/%[2]s/00D000000000001</serverUrl><sessionId>%[3]s</sessionId><userId>005000000000001AAA</userId></result></loginResponse></soapenv:Body></soapenv:Envelope>`,
		o.server.URL, APIVersion, SessionID)
}

func writeSoapFault(w http.ResponseWriter, f Failure) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:sf="urn:fault.partner.soap.sforce.com"><soapenv:Body><soapenv:Fault><faultcode>sf:%s</faultcode><faultstring>%s</faultstring></soapenv:Fault></soapenv:Body></soapenv:Envelope>`,
		f.Code, xmlEscape(f.Message))
}

func (o *Org) handleToken(w http.ResponseWriter, r *http.Request, body []byte) {
	form, _ := url.ParseQuery(string(body))
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = form.Get("client_id"), form.Get("client_secret")
	}
	if id != ClientID || secret != ClientSecret {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client_id", "error_description": "client identifier invalid"})
		return
	}
	if form.Get("grant_type") != "password" || form.Get("username") != Username || form.Get("password") != Password+SecurityToken {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "authentication failure"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": SessionID,
		"instance_url": o.server.URL,
		"id":           o.server.URL + "/id/00D000000000001/005000000000001AAA",
		"token_type":   "Bearer",
		"issued_at":    "1700000000000",
		"signature":    "c2lnbmF0dXJl",
	})
}

func (o *Org) handleQuery(w http.ResponseWriter, soql string, includeDeleted bool) {
	m := reSelect.FindStringSubmatch(soql)
	if m == nil {
		writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "MALFORMED_QUERY", Message: "unexpected token: " + soql})
		return
	}

	o.mu.Lock()
	obj, ok := o.objects[strings.ToLower(m[2])]
	if !ok {
		o.mu.Unlock()
		writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "INVALID_TYPE", Message: "sObject type '" + m[2] + "' is not supported."})
		return
	}

	var fields []string
	for _, f := range strings.Split(m[1], ",") {
		fields = append(fields, strings.TrimSpace(f))
	}
	for _, f := range fields {
		if !hasField(obj, f) {
			o.mu.Unlock()
			writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "INVALID_FIELD", Message: "No such column '" + f + "' on entity '" + obj.name + "'."})
			return
		}
	}

	source := obj.records
	if includeDeleted {
		source = append(append([]salesforce.Record(nil), obj.records...), obj.deleted...)
	}
	rows := make([]salesforce.Record, 0, len(source))
	for _, r := range source {
		row := salesforce.Record{
			"attributes": map[string]interface{}{
				"type": obj.name,
				"url":  fmt.Sprintf("/services/data/v%s/sobjects/%s/%v", APIVersion, obj.name, r["Id"]),
			},
		}
		for _, f := range fields {
			row[canonicalField(obj, f)] = r[canonicalField(obj, f)]
		}
		rows = append(rows, row)
	}
	result := o.page(rows, len(rows))
	o.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (o *Org) handleQueryMore(w http.ResponseWriter, cursor string) {
	o.mu.Lock()
	rows, ok := o.cursors[cursor]
	total := 0
	if ok {
		delete(o.cursors, cursor)
		total, _ = strconv.Atoi(cursor[strings.LastIndexByte(cursor, '-')+1:])
	}
	var result salesforce.QueryResult
	if ok {
		result = o.page(rows, total)
	}
	o.mu.Unlock()

	if !ok {
		writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "INVALID_QUERY_LOCATOR", Message: "invalid query locator"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// page must be called with mu held. Cursor ids carry the total size.
func (o *Org) page(rows []salesforce.Record, total int) salesforce.QueryResult {
	size := o.PageSize
	if size <= 0 {
		size = 2000
	}
	if o.ReportedTotal != nil {
		total = o.ReportedTotal(total)
	}
	if len(rows) <= size {
		return salesforce.QueryResult{TotalSize: total, Done: true, Records: rows}
	}

	o.nextCur++
	cursor := fmt.Sprintf("01g%015d-%d", o.nextCur, total)
	o.cursors[cursor] = rows[size:]

	result := salesforce.QueryResult{TotalSize: total, Done: false, Records: rows[:size]}
	if !o.BrokenCursor {
		result.NextRecordsURL = fmt.Sprintf("/services/data/v%s/query/%s", APIVersion, cursor)
	}
	return result
}

func (o *Org) handleDescribe(w http.ResponseWriter, name string) {
	o.mu.Lock()
	obj, ok := o.objects[strings.ToLower(name)]
	var desc salesforce.SObjectDescribe
	if ok {
		desc = salesforce.SObjectDescribe{Name: obj.name, Label: obj.label}
		for _, f := range obj.fields {
			desc.Fields = append(desc.Fields, salesforce.Field{
				Name:       f,
				Label:      f,
				Type:       fieldType(f),
				Nillable:   f != "Id",
				Createable: f != "Id",
				Updateable: f != "Id",
			})
		}
	}
	o.mu.Unlock()

	if !ok {
		writeErrors(w, Failure{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "The requested resource does not exist"})
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (o *Org) handleDescribeGlobal(w http.ResponseWriter) {
	o.mu.Lock()
	names := append([]string(nil), o.order...)
	o.mu.Unlock()
	sort.Strings(names)

	sobjects := make([]map[string]interface{}, 0, len(names))
	for _, n := range names {
		sobjects = append(sobjects, map[string]interface{}{
			"name":       n,
			"label":      n,
			"custom":     strings.HasSuffix(n, "__c"),
			"queryable":  true,
			"createable": true,
			"urls": map[string]string{
				"sobject":  fmt.Sprintf("/services/data/v%s/sobjects/%s", APIVersion, n),
				"describe": fmt.Sprintf("/services/data/v%s/sobjects/%s/describe", APIVersion, n),
			},
		})
	}
	writeJSON(w, http.StatusOK, salesforce.GlobalDescribe{Encoding: "UTF-8", MaxBatchSize: 200, SObjects: sobjects})
}

func (o *Org) handleCreate(w http.ResponseWriter, name string, body []byte) {
	var rec salesforce.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "JSON_PARSER_ERROR", Message: err.Error()})
		return
	}
	if f := o.reject(OpCreate, name, "", rec); f != nil {
		writeErrors(w, *f)
		return
	}

	o.mu.Lock()
	obj, ok := o.objects[strings.ToLower(name)]
	if !ok {
		o.mu.Unlock()
		writeErrors(w, Failure{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "The requested resource does not exist"})
		return
	}
	for k := range rec {
		if !hasField(obj, k) {
			o.mu.Unlock()
			writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "INVALID_FIELD", Message: "No such column '" + k + "' on sobject of type " + obj.name})
			return
		}
	}
	id := o.newID(obj.name)
	stored := rec.Clone()
	stored["Id"] = id
	obj.records = append(obj.records, stored)
	o.mu.Unlock()

	writeJSON(w, http.StatusCreated, salesforce.SaveResult{ID: id, Success: true, Errors: []salesforce.ErrorDetail{}})
}

func (o *Org) handleMutation(w http.ResponseWriter, op, name, id string, body []byte) {
	var rec salesforce.Record
	if op == OpUpdate {
		if err := json.Unmarshal(body, &rec); err != nil {
			writeErrors(w, Failure{Status: http.StatusBadRequest, Code: "JSON_PARSER_ERROR", Message: err.Error()})
			return
		}
	}
	if f := o.reject(op, name, id, rec); f != nil {
		writeErrors(w, *f)
		return
	}

	o.mu.Lock()
	obj, ok := o.objects[strings.ToLower(name)]
	idx := -1
	if ok {
		for i, r := range obj.records {
			if r["Id"] == id {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		o.mu.Unlock()
		writeErrors(w, Failure{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Provided external ID field does not exist or is not accessible: " + id})
		return
	}
	if op == OpUpdate {
		for k, v := range rec {
			obj.records[idx][k] = v
		}
	} else {
		obj.deleted = append(obj.deleted, obj.records[idx])
		obj.records = append(obj.records[:idx], obj.records[idx+1:]...)
	}
	o.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (o *Org) reject(op, object, id string, rec salesforce.Record) *Failure {
	if o.Reject == nil {
		return nil
	}
	f := o.Reject(op, object, id, rec)
	if f != nil && f.Status == 0 {
		f.Status = http.StatusBadRequest
	}
	return f
}

// newID must be called with mu held.
func (o *Org) newID(objectName string) string {
	o.nextID++
	prefix := "a00"
	switch strings.ToLower(objectName) {
	case "account":
		prefix = "001"
	case "contact":
		prefix = "003"
	case "lead":
		prefix = "00Q"
	}
	return fmt.Sprintf("%s%012dAAA", prefix, o.nextID)
}

func hasField(obj *object, name string) bool {
	return canonicalField(obj, name) != ""
}

func canonicalField(obj *object, name string) string {
	for _, f := range obj.fields {
		if strings.EqualFold(f, name) {
			return f
		}
	}
	return ""
}

func fieldType(name string) string {
	switch {
	case name == "Id":
		return "id"
	case strings.HasSuffix(name, "Date"):
		return "datetime"
	default:
		return "string"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, f Failure) {
	status := f.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, []salesforce.ErrorDetail{{Message: f.Message, ErrorCode: f.Code}})
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
