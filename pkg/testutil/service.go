// Package testutil provides fakes and assertions shared by bugwork tests.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/bugwork/pkg/bz"
)

// ErrNetwork simulates a transport failure.
var ErrNetwork = fmt.Errorf("connection refused: %w", bz.ErrUnreachable)

// FakeService is an in-memory bz.Service. Zero-value error fields mean
// success. Every call is recorded in order.
type FakeService struct {
	mu sync.Mutex

	Passwords   map[string]string // login -> password
	Tokens      map[string]string // token -> login
	Bugs        map[int]bz.Bug
	BugComments map[int][]bz.Comment
	Attached    map[int][]bz.AttachmentInfo

	LoginErr      error
	LogoutErr     error
	ValidLoginErr error
	GetBugErr     error
	CreateBugErr  error
	// UploadErr decides the outcome of each attachment upload.
	UploadErr func(att bz.NewAttachment) error
	// GetBugDelay slows GetBug down, to exercise ordering.
	GetBugDelay time.Duration

	nextID   int
	calls    []string
	created  []bz.NewBug
	uploads  []bz.NewAttachment
	loggedIn string
}

var _ bz.Service = (*FakeService)(nil)

// NewFakeService returns a service with one known user and no bugs.
func NewFakeService() *FakeService {
	return &FakeService{
		Passwords:   map[string]string{"a@b.com": "pw"},
		Tokens:      map[string]string{},
		Bugs:        map[int]bz.Bug{},
		BugComments: map[int][]bz.Comment{},
		Attached:    map[int][]bz.AttachmentInfo{},
		nextID:      1000,
	}
}

// AddBug stores a bug and returns it.
func (f *FakeService) AddBug(id int, summary string) bz.Bug {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := bz.Bug{
		ID:           id,
		Summary:      summary,
		Status:       "NEW",
		Product:      "Firefox OS",
		Component:    "Gaia",
		Version:      "unspecified",
		OpSys:        "All",
		Platform:     "All",
		Creator:      "a@b.com",
		CreationTime: time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.Bugs[id] = b
	return b
}

func (f *FakeService) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls.
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Created returns the bugs passed to CreateBug.
func (f *FakeService) Created() []bz.NewBug {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bz.NewBug(nil), f.created...)
}

// Uploads returns every attempted attachment upload in order.
func (f *FakeService) Uploads() []bz.NewAttachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bz.NewAttachment(nil), f.uploads...)
}

// Login implements bz.Service.
func (f *FakeService) Login(ctx context.Context, creds bz.Credentials) (bz.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("login %s", creds.Login)
	if f.LoginErr != nil {
		return bz.LoginResult{}, f.LoginErr
	}
	if pw, ok := f.Passwords[creds.Login]; !ok || pw != creds.Password {
		return bz.LoginResult{}, &bz.Error{Status: 401, Code: 300, Message: "The username or password you entered is not valid."}
	}
	token := "tok-" + creds.Login
	f.Tokens[token] = creds.Login
	f.loggedIn = creds.Login
	return bz.LoginResult{ID: 1, Token: token}, nil
}

// Logout implements bz.Service.
func (f *FakeService) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("logout")
	f.loggedIn = ""
	return f.LogoutErr
}

// ValidLogin implements bz.Service.
func (f *FakeService) ValidLogin(ctx context.Context, creds bz.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("validLogin %s", creds.Login)
	if f.ValidLoginErr != nil {
		return f.ValidLoginErr
	}
	if f.Tokens[creds.Token] != creds.Login {
		return bz.ErrInvalidLogin
	}
	return nil
}

// GetBug implements bz.Service.
func (f *FakeService) GetBug(ctx context.Context, id string) (bz.BugList, error) {
	f.mu.Lock()
	delay := f.GetBugDelay
	f.record("getBug %s", id)
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetBugErr != nil {
		return bz.BugList{}, f.GetBugErr
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return bz.BugList{}, &bz.Error{Status: 400, Message: "invalid bug id"}
	}
	b, ok := f.Bugs[n]
	if !ok {
		return bz.BugList{}, &bz.Error{Status: 404, Code: 101, Message: fmt.Sprintf("Bug #%d does not exist.", n)}
	}
	return bz.BugList{Bugs: []bz.Bug{b}}, nil
}

// Comments implements bz.Service.
func (f *FakeService) Comments(ctx context.Context, id int) ([]bz.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("comments %d", id)
	return f.BugComments[id], nil
}

// Attachments implements bz.Service.
func (f *FakeService) Attachments(ctx context.Context, id int) ([]bz.AttachmentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("attachments %d", id)
	return f.Attached[id], nil
}

// Search implements bz.Service; it matches summaries containing query.
func (f *FakeService) Search(ctx context.Context, query string) (bz.BugList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("search %s", query)
	var out bz.BugList
	for _, b := range f.Bugs {
		if containsFold(b.Summary, query) {
			out.Bugs = append(out.Bugs, b)
		}
	}
	return out, nil
}

// CreateBug implements bz.Service.
func (f *FakeService) CreateBug(ctx context.Context, bug bz.NewBug) (bz.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("createBug %s", bug.Summary)
	f.created = append(f.created, bug)
	if f.CreateBugErr != nil {
		return bz.CreateResult{}, f.CreateBugErr
	}
	f.nextID++
	id := f.nextID
	f.Bugs[id] = bz.Bug{ID: id, Summary: bug.Summary, Status: "UNCONFIRMED", Product: bug.Product, Component: bug.Component}
	return bz.CreateResult{ID: id}, nil
}

// CreateAttachment implements bz.Service.
func (f *FakeService) CreateAttachment(ctx context.Context, bugID int, att bz.NewAttachment) error {
	f.mu.Lock()
	f.record("createAttachment %d %s", bugID, att.FileName)
	f.uploads = append(f.uploads, att)
	decide := f.UploadErr
	f.mu.Unlock()

	if decide != nil {
		if err := decide(att); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.Attached[bugID] = append(f.Attached[bugID], bz.AttachmentInfo{
		ID:          len(f.Attached[bugID]) + 1,
		FileName:    att.FileName,
		Summary:     att.Summary,
		ContentType: att.ContentType,
	})
	f.mu.Unlock()
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
