package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrSender delivers notifications through shoutrrr service URLs
// (smtp://, slack://, discord://, ...). One Send fans out to every configured
// URL; any per-service failure fails the whole delivery so cron triggers
// retry.
type ShoutrrrSender struct {
	router *router.ServiceRouter
}

// NewShoutrrrSender creates a sender for the given service URLs.
func NewShoutrrrSender(urls []string) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, errors.New("no notification URLs configured")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("creating shoutrrr sender: %w", err)
	}
	return &ShoutrrrSender{router: sender}, nil
}

func (s *ShoutrrrSender) Send(_ context.Context, msg Message) error {
	params := &types.Params{"title": msg.Subject}
	var errs []error
	for _, err := range s.router.Send(msg.Text, params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification delivery failed: %w", errors.Join(errs...))
	}
	return nil
}
