package bz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidLogin is returned by ValidLogin when the service rejects the
// stored login/token pair.
var ErrInvalidLogin = errors.New("bz: invalid login")

// ErrUnreachable wraps transport failures: the request never got an answer.
var ErrUnreachable = errors.New("bz: service unreachable")

// Credentials identify a user. Only Login and Token are ever serialized;
// the password is used once for Login and never persisted.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"-"`
	Token    string `json:"token,omitempty"`
}

// LoginResult is the service response to a successful login.
type LoginResult struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
}

// Bug is the subset of a bug record the client displays.
type Bug struct {
	ID             int       `json:"id"`
	Summary        string    `json:"summary"`
	Status         string    `json:"status"`
	Resolution     string    `json:"resolution,omitempty"`
	Product        string    `json:"product"`
	Component      string    `json:"component"`
	Version        string    `json:"version"`
	OpSys          string    `json:"op_sys"`
	Platform       string    `json:"platform"`
	Severity       string    `json:"severity,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	Creator        string    `json:"creator"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	Whiteboard     string    `json:"whiteboard,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
	CreationTime   time.Time `json:"creation_time"`
	LastChangeTime time.Time `json:"last_change_time"`
}

// StatusLine renders status and resolution the way the service shows them.
func (b Bug) StatusLine() string {
	if b.Resolution == "" {
		return b.Status
	}
	return b.Status + " " + b.Resolution
}

// BugList is the envelope returned by bug lookups and searches.
type BugList struct {
	Bugs []Bug `json:"bugs"`
}

// Comment is a single comment on a bug. Comment 0 is the description.
type Comment struct {
	ID           int       `json:"id"`
	Count        int       `json:"count"`
	Creator      string    `json:"creator"`
	Text         string    `json:"text"`
	CreationTime time.Time `json:"creation_time"`
	IsPrivate    bool      `json:"is_private,omitempty"`
}

// AttachmentInfo describes an existing attachment without its payload.
type AttachmentInfo struct {
	ID           int       `json:"id"`
	FileName     string    `json:"file_name"`
	Summary      string    `json:"summary"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Creator      string    `json:"creator"`
	IsObsolete   bool      `json:"is_obsolete,omitempty"`
	CreationTime time.Time `json:"creation_time"`
}

// NewBug carries the fields of a bug creation request.
type NewBug struct {
	Product     string `json:"product"`
	Component   string `json:"component"`
	OpSys       string `json:"op_sys"`
	Platform    string `json:"platform"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// CreateResult is the response to a bug creation request.
type CreateResult struct {
	ID int `json:"id"`
}

// NewAttachment carries one attachment upload. Data is base64 encoded.
type NewAttachment struct {
	IDs         []int  `json:"ids"`
	Data        string `json:"data"`
	FileName    string `json:"file_name"`
	Summary     string `json:"summary"`
	ContentType string `json:"content_type"`
}

// Error is a failure reported by the service itself.
type Error struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bz: %s (code %d)", e.Message, e.Code)
	}
	return "bz: " + e.Message
}

// Service is the full set of bug service operations the client uses.
type Service interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Logout(ctx context.Context) error
	ValidLogin(ctx context.Context, creds Credentials) error
	GetBug(ctx context.Context, id string) (BugList, error)
	Comments(ctx context.Context, id int) ([]Comment, error)
	Attachments(ctx context.Context, id int) ([]AttachmentInfo, error)
	Search(ctx context.Context, query string) (BugList, error)
	CreateBug(ctx context.Context, bug NewBug) (CreateResult, error)
	CreateAttachment(ctx context.Context, bugID int, att NewAttachment) error
}

// ParseID validates a bug id taken from a path segment.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bz: invalid bug id %q", s)
	}
	return id, nil
}
