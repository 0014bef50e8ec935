package portainer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/artpar/shipway/internal/shell/sshsync"
)

// =============================================================================
// Webhook Configuration
// =============================================================================

// WebhookConfig locates the Portainer stack webhook.
type WebhookConfig struct {
	// URL is the full webhook URL. When set it wins over Token.
	URL string
	// Token is the webhook token, the last segment of the URL. Portainer
	// has used two URL layouts over time; both are tried.
	Token string
	// Host is the target host, with or without a user@ prefix.
	Host string
	// HTTPSPort is the host port the Portainer UI is published on.
	HTTPSPort int
	// Insecure skips TLS verification. Portainer ships with a self-signed
	// certificate, so this is usually required.
	Insecure bool

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultWebhookConfig returns the default webhook configuration.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		HTTPSPort:    9943,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 10 * time.Second,
		Timeout:      20 * time.Second,
	}
}

// =============================================================================
// Webhook Trigger
// =============================================================================

// Trigger fires a Portainer stack webhook. Transient failures (5xx,
// connection errors) are retried with backoff; a 404 is not retried because
// it means the URL layout is wrong and the next known layout should be tried
// instead.
type Trigger struct {
	cfg    WebhookConfig
	client *retryablehttp.Client
	log    *slog.Logger
}

// NewTrigger creates a webhook trigger for the given configuration.
func NewTrigger(cfg WebhookConfig, log *slog.Logger) *Trigger {
	def := DefaultWebhookConfig()
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = def.HTTPSPort
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = def.RetryWaitMax
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = cfg.Timeout
	if cfg.Insecure {
		rc.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Trigger{
		cfg:    cfg,
		client: rc,
		log:    log.With("component", "portainer"),
	}
}

// URLs returns the webhook URLs to try, most specific first. An explicit URL
// is used as-is; otherwise both known layouts are derived from host and
// token.
func (t *Trigger) URLs() []string {
	if t.cfg.URL != "" {
		return []string{t.cfg.URL}
	}
	if t.cfg.Token == "" || t.cfg.Host == "" {
		return nil
	}
	_, hostname := sshsync.SplitHost(t.cfg.Host)
	base := fmt.Sprintf("https://%s:%d", hostname, t.cfg.HTTPSPort)
	token := strings.TrimSpace(t.cfg.Token)
	return []string{
		base + "/api/stacks/webhooks/" + token,
		base + "/api/webhooks/" + token,
	}
}

// Trigger POSTs the stack webhook. It falls through the known URL layouts on
// 404 and fails fast on any other HTTP error, carrying a snippet of the
// response body.
func (t *Trigger) Trigger(ctx context.Context) error {
	urls := t.URLs()
	if len(urls) == 0 {
		return NewPortainerError("Trigger", t.cfg.Host,
			"a webhook URL or token is required for webhook deployments", ErrNotConfigured)
	}

	saw404 := false
	var lastErr error
	for _, url := range urls {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return NewPortainerError("Trigger", t.cfg.Host, t.redact(err.Error()), ErrWebhookFailed)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body := readSnippet(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			t.log.Info("stack webhook triggered", "status", resp.StatusCode)
			return nil
		case resp.StatusCode == http.StatusNotFound:
			saw404 = true
			lastErr = fmt.Errorf("HTTP 404 from %s", url)
		default:
			return NewPortainerError("Trigger", t.cfg.Host,
				fmt.Sprintf("webhook returned HTTP %d: %s", resp.StatusCode, body), ErrWebhookFailed)
		}
	}

	if saw404 {
		return NewPortainerError("Trigger", t.cfg.Host,
			"every known webhook endpoint returned 404; verify the stack exists in Portainer and its webhook token is current",
			ErrWebhookNotFound)
	}
	if lastErr != nil {
		return NewPortainerError("Trigger", t.cfg.Host, t.redact(lastErr.Error()), ErrWebhookFailed)
	}
	return NewPortainerError("Trigger", t.cfg.Host, "webhook trigger failed", ErrWebhookFailed)
}

// redact strips the webhook token out of error text before it reaches logs
// or the user.
func (t *Trigger) redact(s string) string {
	if t.cfg.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.cfg.Token, "<token>")
}

// readSnippet drains up to 300 bytes of a response body for error messages,
// collapsing newlines so the snippet stays on one line.
func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 300))
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\n", " "))
}
