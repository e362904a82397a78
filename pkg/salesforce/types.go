// Package salesforce is a small client for the Salesforce REST API: SOQL
// queries with cursor pagination, sObject and global describes, and
// single-record create, update and delete.
package salesforce

import (
	"net/url"
	"strings"
	"time"
)

// Session is the authenticated handle every API call needs. It lives for
// one node invocation and is never persisted.
type Session struct {
	// ID is the session id or OAuth access token
	ID string
	// InstanceURL is the scheme and host of the org, e.g. https://na1.my.salesforce.com
	InstanceURL string
	APIVersion  string
	IssuedAt    time.Time
}

// DataPath returns the REST data path for the session's API version with
// the given suffix appended.
func (s *Session) DataPath(suffix string) string {
	return "/services/data/v" + strings.TrimPrefix(s.APIVersion, "v") + suffix
}

// URL resolves a path against the instance URL.
func (s *Session) URL(path string) string {
	return strings.TrimRight(s.InstanceURL, "/") + path
}

// InstanceFromServerURL extracts the scheme and host from a SOAP serverUrl
// such as https://na1.salesforce.com/services/Soap/u/59.0/00D...
func InstanceFromServerURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// Record is one Salesforce record as a field map. Query results carry an
// "attributes" entry with the record type and URL.
type Record map[string]interface{}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// QuerySpec says what to extract: a custom SOQL query, or every field of
// an object. A non-blank Custom always wins.
type QuerySpec struct {
	Custom string
	Object string
	// Fields restricts the describe-derived field list (optional)
	Fields []string
}

// IsCustom reports whether q carries an explicit query.
func (q QuerySpec) IsCustom() bool {
	return strings.TrimSpace(q.Custom) != ""
}

// QueryResult is one page of a query.
type QueryResult struct {
	TotalSize      int      `json:"totalSize"`
	Done           bool     `json:"done"`
	NextRecordsURL string   `json:"nextRecordsUrl,omitempty"`
	Records        []Record `json:"records"`
}

// Field is the subset of a field describe forcebridge uses.
type Field struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Nillable   bool   `json:"nillable"`
	Createable bool   `json:"createable"`
	Updateable bool   `json:"updateable"`
}

// SObjectDescribe is the describe result of one object. Fields keep the
// order the service returned them in.
type SObjectDescribe struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// FieldNames returns the field names in describe order.
func (d *SObjectDescribe) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// GlobalDescribe is the org-wide object listing. SObjects entries are kept
// as raw maps so every attribute the service sends is preserved.
type GlobalDescribe struct {
	Encoding     string                   `json:"encoding"`
	MaxBatchSize int                      `json:"maxBatchSize"`
	SObjects     []map[string]interface{} `json:"sobjects"`
}

// SaveResult is the body of a successful create.
type SaveResult struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []ErrorDetail `json:"errors"`
}

// Operation is a record mutation kind.
type Operation string

// Supported mutations.
const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation trims and lower-cases s. ok is false for anything other
// than insert, update or delete.
func ParseOperation(s string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return op, true
	default:
		return op, false
	}
}

// Outcome is the result of one record mutation. Index is the record's
// position in the input.
type Outcome struct {
	Index  int
	Record Record
	// ID is the created or targeted record id, when known
	ID  string
	Err error
}

// Partition splits a batch of outcomes into successes and failures, both
// in input order. Every input record lands in exactly one of them.
type Partition struct {
	Successes []Outcome
	Failures  []Outcome
}

// Add appends o to the side its Err selects.
func (p *Partition) Add(o Outcome) {
	if o.Err != nil {
		p.Failures = append(p.Failures, o)
		return
	}
	p.Successes = append(p.Successes, o)
}

// Len returns the number of outcomes on both sides.
func (p *Partition) Len() int {
	return len(p.Successes) + len(p.Failures)
}
