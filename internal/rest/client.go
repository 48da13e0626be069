package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/token"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Client talks JSON to the HAMU backend. Every call attaches the bearer
// token unless told otherwise, and a 401 triggers at most one token refresh
// before the original request is retried once.
type Client interface {
	// Do issues a request and returns the raw response body. Errors are
	// always *domain.APIError classified per the offline policy.
	Do(ctx context.Context, method string, endpoint string, body any) ([]byte, error)

	Login(ctx context.Context, username string, password string) (*domain.TokenPair, error)
	Me(ctx context.Context) (*domain.UserProfile, error)
	Page(ctx context.Context, collection string, page int) (*domain.PageEnvelope, error)
	CustomersExport(ctx context.Context) (*domain.ExportEnvelope, error)
	PackagesExport(ctx context.Context) (*domain.ExportEnvelope, error)
	LowStock(ctx context.Context) ([]json.RawMessage, error)
	CheckLoyalty(ctx context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error)

	SalesAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.SalesAnalytics, error)
	CustomerAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error)
	InventoryAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error)
	FinancialAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error)

	ChangePassword(ctx context.Context, oldPassword string, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email string, code string) (string, error)
	ResetPassword(ctx context.Context, email string, resetToken string, newPassword string) error
}

type client struct {
	log     zerolog.Logger
	http    *http.Client
	baseURL string
	tokens  token.Service

	refreshGroup singleflight.Group
}

func NewClient(log logger.Logger, cfg *domain.Config, tokens token.Service) Client {
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := cfg.API.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &client{
		log:     log.With().Str("module", "rest").Logger(),
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		tokens:  tokens,
	}
}

type requestOptions struct {
	skipAuth bool
	isRetry  bool
}

func (c *client) Do(ctx context.Context, method string, endpoint string, body any) ([]byte, error) {
	payload, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, method, endpoint, payload, requestOptions{})
}

func (c *client) doUnauthenticated(ctx context.Context, method string, endpoint string, body any) ([]byte, error) {
	payload, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.request(ctx, method, endpoint, payload, requestOptions{skipAuth: true})
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}
	return payload, nil
}

func (c *client) request(ctx context.Context, method string, endpoint string, payload []byte, opt requestOptions) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	if !opt.skipAuth {
		if access := c.tokens.Access(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Trace().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("Request failed to reach backend")
		return nil, &domain.APIError{Kind: domain.KindUnreachable, StatusCode: 0, Message: err.Error(), Endpoint: endpoint}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.KindUnreachable, StatusCode: 0, Message: err.Error(), Endpoint: endpoint}
	}

	c.log.Trace().Str("method", method).Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("Request completed")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil

	case resp.StatusCode == http.StatusUnauthorized:
		if opt.skipAuth {
			return nil, &domain.APIError{Kind: domain.KindClient, StatusCode: resp.StatusCode, Message: apiMessage(resp.StatusCode, data), Endpoint: endpoint}
		}
		if opt.isRetry {
			return nil, sessionExpired(endpoint)
		}
		if err := c.refreshAccess(ctx); err != nil {
			return nil, err
		}
		opt.isRetry = true
		return c.request(ctx, method, endpoint, payload, opt)

	case resp.StatusCode == http.StatusConflict:
		return nil, &domain.APIError{Kind: domain.KindConflict, StatusCode: resp.StatusCode, Message: apiMessage(resp.StatusCode, data), Endpoint: endpoint}

	case resp.StatusCode >= 500:
		return nil, &domain.APIError{Kind: domain.KindUnreachable, StatusCode: resp.StatusCode, Message: apiMessage(resp.StatusCode, data), Endpoint: endpoint}

	default:
		return nil, &domain.APIError{Kind: domain.KindClient, StatusCode: resp.StatusCode, Message: apiMessage(resp.StatusCode, data), Endpoint: endpoint}
	}
}

// refreshAccess exchanges the refresh token for a new access token.
// Concurrent callers collapse onto a single POST; they all share its result.
func (c *client) refreshAccess(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("token-refresh", func() (interface{}, error) {
		refresh := c.tokens.Refresh()
		if refresh == "" {
			return nil, sessionExpired("token/refresh/")
		}

		c.log.Debug().Msg("Access token rejected, attempting refresh")
		payload, _ := json.Marshal(map[string]string{"refresh": refresh})
		data, err := c.request(ctx, http.MethodPost, "token/refresh/", payload, requestOptions{skipAuth: true})
		if err != nil {
			c.log.Warn().Err(err).Msg("Token refresh failed")
			return nil, sessionExpired("token/refresh/")
		}

		var pair domain.TokenPair
		if err := json.Unmarshal(data, &pair); err != nil || pair.Access == "" {
			return nil, sessionExpired("token/refresh/")
		}

		if err := c.tokens.Save(ctx, pair.Access, pair.Refresh); err != nil {
			return nil, errors.Wrap(err, "failed to store refreshed credentials")
		}

		c.log.Debug().Msg("Access token refreshed")
		return nil, nil
	})
	return err
}

func sessionExpired(endpoint string) *domain.APIError {
	return &domain.APIError{Kind: domain.KindSessionExpired, StatusCode: http.StatusUnauthorized, Message: "Session expired", Endpoint: endpoint}
}

// apiMessage digs a human-readable message out of a DRF error body.
func apiMessage(status int, body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err == nil {
		if d, ok := m["detail"].(string); ok {
			return d
		}
		if d, ok := m["error"].(string); ok {
			return d
		}
	}
	if len(body) > 0 {
		s := string(body)
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	return http.StatusText(status)
}
