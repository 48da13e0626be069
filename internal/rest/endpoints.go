package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
)

func (c *client) Login(ctx context.Context, username string, password string) (*domain.TokenPair, error) {
	data, err := c.doUnauthenticated(ctx, http.MethodPost, "token/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, errors.Wrap(err, "failed to decode token response")
	}
	if pair.Access == "" {
		return nil, errors.New("token response missing access token")
	}
	return &pair, nil
}

func (c *client) Me(ctx context.Context) (*domain.UserProfile, error) {
	data, err := c.Do(ctx, http.MethodGet, "users/me/", nil)
	if err != nil {
		return nil, err
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrap(err, "failed to decode user profile")
	}
	return &profile, nil
}

func (c *client) Page(ctx context.Context, collection string, page int) (*domain.PageEnvelope, error) {
	endpoint := collection + "/"
	if page > 1 {
		endpoint = fmt.Sprintf("%s/?page=%d", collection, page)
	}

	data, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeListEnvelope(data)
}

func (c *client) CustomersExport(ctx context.Context) (*domain.ExportEnvelope, error) {
	return c.export(ctx, "customers/export_for_offline/")
}

func (c *client) PackagesExport(ctx context.Context) (*domain.ExportEnvelope, error) {
	return c.export(ctx, "packages/export_for_offline/")
}

func (c *client) export(ctx context.Context, endpoint string) (*domain.ExportEnvelope, error) {
	data, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var env domain.ExportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode export from %s", endpoint)
	}
	return &env, nil
}

func (c *client) LowStock(ctx context.Context) ([]json.RawMessage, error) {
	data, err := c.Do(ctx, http.MethodGet, "stock-items/low_stock/", nil)
	if err != nil {
		return nil, err
	}

	env, err := decodeListEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.Results, nil
}

func (c *client) CheckLoyalty(ctx context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error) {
	q := url.Values{}
	q.Set("customer", strconv.FormatInt(customerID, 10))
	q.Set("package", strconv.FormatInt(packageID, 10))
	q.Set("quantity", strconv.Itoa(quantity))

	data, err := c.Do(ctx, http.MethodGet, "refills/check_loyalty/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var check domain.LoyaltyCheck
	if err := json.Unmarshal(data, &check); err != nil {
		return nil, errors.Wrap(err, "failed to decode loyalty check")
	}
	return &check, nil
}

func (c *client) SalesAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.SalesAnalytics, error) {
	out := &domain.SalesAnalytics{}
	if err := c.analytics(ctx, "analytics/sales/", q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) CustomerAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error) {
	out := &domain.CustomerAnalytics{}
	if err := c.analytics(ctx, "analytics/customers/", q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) InventoryAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error) {
	out := &domain.InventoryAnalytics{}
	if err := c.analytics(ctx, "analytics/inventory/", q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FinancialAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error) {
	out := &domain.FinancialAnalytics{}
	if err := c.analytics(ctx, "analytics/financial/", q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) analytics(ctx context.Context, endpoint string, q domain.AnalyticsQuery, out any) error {
	if enc := analyticsQuery(q); enc != "" {
		endpoint += "?" + enc
	}

	data, err := c.Do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode analytics from %s", endpoint)
	}
	return nil
}

func analyticsQuery(q domain.AnalyticsQuery) string {
	v := url.Values{}
	if q.TimeRange != "" {
		v.Set("time_range", q.TimeRange)
	}
	if q.ShopID != 0 {
		v.Set("shop_id", strconv.FormatInt(q.ShopID, 10))
	}
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	return v.Encode()
}

func (c *client) ChangePassword(ctx context.Context, oldPassword string, newPassword string) error {
	_, err := c.Do(ctx, http.MethodPost, "users/change_password/", map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	})
	return err
}

func (c *client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.doUnauthenticated(ctx, http.MethodPost, "users/request_password_reset/", map[string]string{
		"email": email,
	})
	return err
}

func (c *client) VerifyResetCode(ctx context.Context, email string, code string) (string, error) {
	data, err := c.doUnauthenticated(ctx, http.MethodPost, "users/verify_reset_code/", map[string]string{
		"email": email,
		"code":  code,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		ResetToken string `json:"reset_token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", errors.Wrap(err, "failed to decode reset code response")
	}
	return resp.ResetToken, nil
}

func (c *client) ResetPassword(ctx context.Context, email string, resetToken string, newPassword string) error {
	_, err := c.doUnauthenticated(ctx, http.MethodPost, "users/reset_password/", map[string]string{
		"email":        email,
		"reset_token":  resetToken,
		"new_password": newPassword,
	})
	return err
}

// decodeListEnvelope accepts both paginated envelopes and bare arrays, since
// unpaginated viewsets return the latter.
func decodeListEnvelope(data []byte) (*domain.PageEnvelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []json.RawMessage
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, errors.Wrap(err, "failed to decode list response")
		}
		return &domain.PageEnvelope{Count: len(results), Results: results}, nil
	}

	var env domain.PageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode page envelope")
	}
	return &env, nil
}
