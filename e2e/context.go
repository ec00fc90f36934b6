// Package e2e drives a running insurely server through its HTTP API using
// godog feature files. The server must run with INSURELY_DEV_TOKENS=true.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario state: who is acting, the last response, and
// the policy and claim the scenario is working with.
type TestContext struct {
	baseURL string
	admin   string
	client  *http.Client
	tokens  map[string]string

	actor      string
	lastStatus int
	lastBody   map[string]any
	policyID   int64
	claimID    int64
}

func NewTestContext(baseURL, admin string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		admin:   admin,
		client:  &http.Client{Timeout: 30 * time.Second},
		tokens:  make(map[string]string),
	}
}

// Reset clears scenario state. Tokens survive between scenarios.
func (tc *TestContext) Reset() {
	tc.actor = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.policyID = 0
	tc.claimID = 0
}

func (tc *TestContext) Admin() string { return tc.admin }

func (tc *TestContext) Actor() string { return tc.actor }

func (tc *TestContext) SetActor(principal string) { tc.actor = principal }

func (tc *TestContext) PolicyID() int64 { return tc.policyID }

func (tc *TestContext) SetPolicyID(id int64) { tc.policyID = id }

func (tc *TestContext) ClaimID() int64 { return tc.claimID }

func (tc *TestContext) SetClaimID(id int64) { tc.claimID = id }

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// POST sends body as the given principal.
func (tc *TestContext) POST(principal, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	return tc.do(principal, http.MethodPost, path, reader)
}

// GET fetches path as the given principal.
func (tc *TestContext) GET(principal, path string) error {
	return tc.do(principal, http.MethodGet, path, nil)
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no JSON response captured (status %d)", tc.lastStatus)
	}
	v, ok := tc.lastBody[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %v", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) do(principal, method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		token, err := tc.token(principal)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			tc.lastBody = parsed
		}
	}
	return nil
}

func (tc *TestContext) token(principal string) (string, error) {
	if t, ok := tc.tokens[principal]; ok {
		return t, nil
	}
	raw, err := json.Marshal(map[string]string{"principal": principal})
	if err != nil {
		return "", err
	}
	resp, err := tc.client.Post(tc.baseURL+"/dev/tokens", "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mint token for %s: status %d (is INSURELY_DEV_TOKENS enabled?)", principal, resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	tc.tokens[principal] = out.AccessToken
	return out.AccessToken, nil
}
