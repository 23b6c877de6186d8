package models

import (
	"encoding/json"
	"fmt"
)

// Input is one row of an evaluation input file.
type Input struct {
	// Request is the writing request sent to the orchestrator.
	Request string `json:"request" yaml:"request"`
	// Instructions are the extra writer instructions for this request.
	Instructions string `json:"instructions" yaml:"instructions"`
}

// Query is the request half of a run record.
type Query struct {
	Request      string `json:"request"`
	Instructions string `json:"instructions"`
}

// Context holds the grounding material the orchestrator gathered before
// writing. Either field may be absent when the pipeline skipped that agent.
type Context struct {
	Research json.RawMessage `json:"research,omitempty"`
	Products json.RawMessage `json:"products,omitempty"`
}

// RunRecord is one input row's query, context and response bundle.
//
// Each field holds JSON text rather than a decoded value so that records
// written to eval_data.jsonl can be scored again without knowing the
// orchestrator's payload shapes.
type RunRecord struct {
	Query    string `json:"query"`
	Context  string `json:"context"`
	Response string `json:"response"`
}

// NewRunRecord encodes the query, context and response into a RunRecord.
// A nil response is encoded as the JSON literal null.
func NewRunRecord(q Query, c Context, response json.RawMessage) (*RunRecord, error) {
	qb, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	cb, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	rb := []byte("null")
	if len(response) > 0 {
		rb, err = json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
	}
	return &RunRecord{
		Query:    string(qb),
		Context:  string(cb),
		Response: string(rb),
	}, nil
}

// DecodeQuery parses the record's query JSON.
func (r *RunRecord) DecodeQuery() (Query, error) {
	var q Query
	if err := json.Unmarshal([]byte(r.Query), &q); err != nil {
		return Query{}, fmt.Errorf("decode query: %w", err)
	}
	return q, nil
}

// HasResponse reports whether the orchestrator produced an article.
func (r *RunRecord) HasResponse() bool {
	return r.Response != "" && r.Response != "null"
}
