// Package bz is a client for the Bugzilla REST API (as served by
// bugzilla.mozilla.org and compatible instances).
//
// The client remembers the token obtained from Login or accepted by
// ValidLogin and sends it with every later request.
package bz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/version"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// tokenHeader is how BMO accepts API tokens.
const tokenHeader = "X-BUGZILLA-TOKEN"

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithToken seeds the client with an existing token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// Client talks to a bug service over REST. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

var _ Service = (*Client)(nil)

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("bz: parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bz: unsupported url scheme %q", u.Scheme)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the token currently attached to requests.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// BugURL returns the web address of a bug on this service.
func (c *Client) BugURL(id int) string {
	u := *c.base
	u.Path = c.base.Path + "/show_bug.cgi"
	u.RawQuery = "id=" + strconv.Itoa(id)
	return u.String()
}

// Login exchanges a login and password for a token.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	q := url.Values{}
	q.Set("login", creds.Login)
	q.Set("password", creds.Password)

	var res LoginResult
	if err := c.do(ctx, http.MethodGet, "/rest/login", q, nil, &res); err != nil {
		return LoginResult{}, err
	}
	c.setToken(res.Token)
	return res, nil
}

// Logout invalidates the current token. The local token is dropped even if
// the request fails.
func (c *Client) Logout(ctx context.Context) error {
	q := url.Values{}
	if tok := c.Token(); tok != "" {
		q.Set("token", tok)
	}
	c.setToken("")
	return c.do(ctx, http.MethodGet, "/rest/logout", q, nil, nil)
}

// ValidLogin checks a stored login/token pair. It returns ErrInvalidLogin
// when the service answers false, and adopts the token when it answers true.
func (c *Client) ValidLogin(ctx context.Context, creds Credentials) error {
	q := url.Values{}
	q.Set("login", creds.Login)
	q.Set("token", creds.Token)

	var res struct {
		Result bool `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/valid_login", q, nil, &res); err != nil {
		return err
	}
	if !res.Result {
		return ErrInvalidLogin
	}
	c.setToken(creds.Token)
	return nil
}

// GetBug fetches a single bug by id or alias.
func (c *Client) GetBug(ctx context.Context, id string) (BugList, error) {
	var res BugList
	err := c.do(ctx, http.MethodGet, "/rest/bug/"+url.PathEscape(id), nil, nil, &res)
	if err != nil {
		return BugList{}, err
	}
	if len(res.Bugs) == 0 {
		return BugList{}, &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("bug %s not found", id)}
	}
	return res, nil
}

// Comments returns the comments of a bug in creation order.
func (c *Client) Comments(ctx context.Context, id int) ([]Comment, error) {
	var res struct {
		Bugs map[string]struct {
			Comments []Comment `json:"comments"`
		} `json:"bugs"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/bug/%d/comment", id), nil, nil, &res); err != nil {
		return nil, err
	}
	return res.Bugs[strconv.Itoa(id)].Comments, nil
}

// Attachments lists attachment metadata for a bug without the payloads.
func (c *Client) Attachments(ctx context.Context, id int) ([]AttachmentInfo, error) {
	q := url.Values{}
	q.Set("exclude_fields", "data")

	var res struct {
		Bugs map[string][]AttachmentInfo `json:"bugs"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/bug/%d/attachment", id), q, nil, &res); err != nil {
		return nil, err
	}
	return res.Bugs[strconv.Itoa(id)], nil
}

// Search runs a quicksearch query.
func (c *Client) Search(ctx context.Context, query string) (BugList, error) {
	q := url.Values{}
	q.Set("quicksearch", query)
	q.Set("limit", "50")
	q.Set("include_fields", "id,summary,status,resolution,product,component,last_change_time")

	var res BugList
	if err := c.do(ctx, http.MethodGet, "/rest/bug", q, nil, &res); err != nil {
		return BugList{}, err
	}
	return res, nil
}

// CreateBug files a new bug.
func (c *Client) CreateBug(ctx context.Context, bug NewBug) (CreateResult, error) {
	var res CreateResult
	if err := c.do(ctx, http.MethodPost, "/rest/bug", nil, bug, &res); err != nil {
		return CreateResult{}, err
	}
	return res, nil
}

// CreateAttachment uploads one attachment to an existing bug.
func (c *Client) CreateAttachment(ctx context.Context, bugID int, att NewAttachment) error {
	if len(att.IDs) == 0 {
		att.IDs = []int{bugID}
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rest/bug/%d/attachment", bugID), nil, att, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bz: encoding %s body: %w", path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("bz: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set(tokenHeader, tok)
	}

	debug.Log("bz %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bz: reading %s response: %w", path, err)
	}

	if svcErr := decodeError(resp.StatusCode, data); svcErr != nil {
		return svcErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("bz: decoding %s response: %w", path, err)
	}
	return nil
}

// decodeError returns a *Error when the status or the envelope reports a
// failure. Bugzilla sometimes answers 200 with {"error": true}.
func decodeError(status int, data []byte) error {
	var env struct {
		Error   bool   `json:"error"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &env)

	if status < 400 && !env.Error {
		return nil
	}
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Code: env.Code, Message: msg}
}
