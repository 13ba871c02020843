package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// RecipientPlaceholder is replaced with the manager email in the service URL.
const RecipientPlaceholder = "{to}"

// ShoutrrrChannel sends reminders through a shoutrrr service URL, typically
// smtp://. The URL may contain {to}, substituted per recipient.
type ShoutrrrChannel struct {
	urlTemplate string
	timeout     time.Duration
}

// NewShoutrrrChannel constructs a shoutrrr channel.
func NewShoutrrrChannel(urlTemplate string) (*ShoutrrrChannel, error) {
	if urlTemplate == "" {
		return nil, errors.New("shoutrrr channel: empty url")
	}
	// Validate the URL shape up front with a placeholder recipient.
	probe := strings.ReplaceAll(urlTemplate, RecipientPlaceholder, "probe@example.com")
	if _, err := shoutrrr.CreateSender(probe); err != nil {
		return nil, err
	}
	return &ShoutrrrChannel{urlTemplate: urlTemplate, timeout: 10 * time.Second}, nil
}

// Send delivers the reminder to one recipient.
func (c *ShoutrrrChannel) Send(ctx context.Context, recipient, subject, content string) error {
	if c == nil || c.urlTemplate == "" {
		return errors.New("shoutrrr channel: empty url")
	}
	url := strings.ReplaceAll(c.urlTemplate, RecipientPlaceholder, recipient)
	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		return err
	}
	if c.timeout > 0 {
		sender.Timeout = c.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	if subject != "" {
		params.SetTitle(subject)
	}
	errs := sender.Send(content, &params)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
