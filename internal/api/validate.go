package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"wahook/internal/model"
	"wahook/internal/webhooks"
)

const (
	maxRetryAttempts = 20
	maxTimeoutMs     = 5 * 60 * 1000
)

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url: %w", errBadRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url must be http or https", errBadRequest)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url must include a host", errBadRequest)
	}
	return nil
}

func validateWebhookConfig(c *model.WebhookConfig) error {
	var errs []error
	if strings.TrimSpace(c.URL) == "" {
		errs = append(errs, fmt.Errorf("%w: url is required", errBadRequest))
	} else if err := validateWebhookURL(c.URL); err != nil {
		errs = append(errs, err)
	}
	for _, e := range c.Events {
		if strings.TrimSpace(e) == "" {
			errs = append(errs, fmt.Errorf("%w: events must not contain empty names", errBadRequest))
			break
		}
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.MaxAttempts > maxRetryAttempts {
		errs = append(errs, fmt.Errorf("%w: retry.maxAttempts must be within [0,%d]", errBadRequest, maxRetryAttempts))
	}
	if c.Retry.BaseDelayMs < 0 || c.Retry.MaxDelayMs < 0 {
		errs = append(errs, fmt.Errorf("%w: retry delays must be >= 0", errBadRequest))
	}
	if c.TimeoutMs < 0 || c.TimeoutMs > maxTimeoutMs {
		errs = append(errs, fmt.Errorf("%w: timeoutMs must be within [0,%d]", errBadRequest, maxTimeoutMs))
	}
	return errors.Join(errs...)
}

func validateEventIn(in *model.WebhookEventIn) error {
	if strings.TrimSpace(in.Event) == "" {
		return fmt.Errorf("%w: event is required", errBadRequest)
	}
	if _, err := webhooks.ParsePriority(in.Priority); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
