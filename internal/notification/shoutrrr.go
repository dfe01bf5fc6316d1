package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/birdnetpi/speciestools/internal/errors"
)

// messageSender is the part of the shoutrrr router used here.
type messageSender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrNotifier sends events through one shoutrrr router covering all URLs.
type ShoutrrrNotifier struct {
	sender messageSender
}

// NewShoutrrrNotifier validates urls and builds the router.
func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one shoutrrr URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// urls carry tokens
		return nil, errors.Newf("invalid shoutrrr configuration: %s", errors.ScrubMessage(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrNotifier{sender: sender}, nil
}

// Name implements Notifier.
func (s *ShoutrrrNotifier) Name() string { return "shoutrrr" }

// NotifySpeciesDeleted implements Notifier. The router applies its own timeout.
func (s *ShoutrrrNotifier) NotifySpeciesDeleted(_ context.Context, event SpeciesDeleted) error {
	params := stypes.Params{}
	params.SetTitle(event.Title())

	var sendErrs []error
	for _, err := range s.sender.Send(event.Message(), &params) {
		if err != nil {
			sendErrs = append(sendErrs, err)
		}
	}
	if len(sendErrs) == 0 {
		return nil
	}
	return errors.New(fmt.Errorf("shoutrrr send failed: %s", errors.ScrubMessage(errors.Join(sendErrs...).Error()))).
		Component("notification").
		Category(errors.CategoryIntegration).
		Context("failed", len(sendErrs)).
		Build()
}
