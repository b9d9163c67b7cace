package attach

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/config"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/metrics"
	"github.com/vanderheijden86/bugwork/pkg/notify"
	"github.com/vanderheijden86/bugwork/pkg/session"
)

// Messages shown while submitting.
const (
	SubmittingMessage   = "Submitting Bug ..."
	SubmittedMessage    = "Bug Submitted"
	UnknownErrorMessage = "There was an unknown error"
	UnreachableMessage  = "Could not reach the bug service."
	fallbackContentType = "application/octet-stream"
)

// BugCreator is the part of the bug service submission needs.
type BugCreator interface {
	CreateBug(ctx context.Context, bug bz.NewBug) (bz.CreateResult, error)
	CreateAttachment(ctx context.Context, bugID int, att bz.NewAttachment) error
}

// Fields are the user-entered parts of a new bug.
type Fields struct {
	Component   string
	Summary     string
	Description string
}

// Submitter files a bug and then uploads the pending attachments.
type Submitter struct {
	Service  BugCreator
	Notifier notify.Notifier
	// Navigate is called with the path to show once everything is sent.
	Navigate func(path string)
	Defaults config.BugDefaults
	Legacy   bool
	Logger   *log.Logger
}

// NewBug maps form fields to the bug record sent to the service.
func (s *Submitter) NewBug(f Fields) bz.NewBug {
	component := strings.TrimSpace(f.Component)
	if s.Legacy {
		component = s.Defaults.LegacyComponent
	}
	return bz.NewBug{
		Product:     s.Defaults.Product,
		Component:   component,
		OpSys:       s.Defaults.OpSys,
		Platform:    s.Defaults.Platform,
		Summary:     strings.TrimSpace(f.Summary),
		Description: strings.TrimSpace(f.Description),
		Version:     s.Defaults.Version,
	}
}

// Submit creates the bug, then drains list one attachment at a time,
// newest first. A failed upload is logged and the next one is attempted.
// It returns the new bug id, or the creation error after alerting the user;
// in that case nothing is uploaded and list is left alone.
func (s *Submitter) Submit(ctx context.Context, list *List, f Fields) (int, error) {
	dialog := s.Notifier.Dialog(SubmittingMessage)

	res, err := s.Service.CreateBug(ctx, s.NewBug(f))
	if err != nil {
		s.Notifier.Alert(alertMessage(err))
		dialog.Close()
		return 0, fmt.Errorf("attach: creating bug: %w", err)
	}
	debug.Log("attach: created bug %d, %d attachments pending", res.ID, list.Len())

	for {
		a, ok := list.Pop()
		if !ok {
			break
		}
		if err := s.upload(ctx, res.ID, a); err != nil {
			s.logger().Printf("Error writing %s: %v", a.Name, err)
		}
	}

	dialog.Close()
	s.Notifier.Toast(SubmittedMessage)
	if s.Navigate != nil {
		if s.Legacy {
			s.Navigate(session.CreatePath)
		} else {
			s.Navigate(fmt.Sprintf("/bug/%d", res.ID))
		}
	}
	return res.ID, nil
}

func (s *Submitter) upload(ctx context.Context, bugID int, a Attachment) error {
	stop := metrics.Timer(metrics.AttachmentUpload)
	defer stop()

	contentType := a.MimeType
	if contentType == "" {
		contentType = fallbackContentType
	}
	err := s.Service.CreateAttachment(ctx, bugID, bz.NewAttachment{
		IDs:         []int{bugID},
		Data:        a.Data,
		FileName:    a.Name,
		Summary:     a.Name,
		ContentType: contentType,
	})
	if err != nil {
		metrics.AttachmentUpload.Fail()
	}
	return err
}

func (s *Submitter) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func alertMessage(err error) string {
	var svcErr *bz.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	if errors.Is(err, bz.ErrUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		return UnreachableMessage
	}
	return UnknownErrorMessage
}
