package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"energy-server/entities"
)

var ErrNotLoggedIn = errors.New("not logged in")

// apiClient talks to the energy server, keeping the session cookie in a jar.
type apiClient struct {
	baseURL string
	http    *http.Client
	userID  string
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func newAPIClient(baseURL string) (*apiClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second, Jar: jar},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) Login(ctx context.Context, email, password string) (string, error) {
	var res struct {
		UserID string `json:"userId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.UserID == "" {
		return "", errors.New("login response carried no user id")
	}
	c.userID = res.UserID
	return res.UserID, nil
}

func (c *apiClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/users/logout", nil, nil)
	c.userID = ""
	return err
}

func (c *apiClient) Devices(ctx context.Context) ([]entities.Device, error) {
	if c.userID == "" {
		return nil, ErrNotLoggedIn
	}
	var res struct {
		Devices []entities.Device `json:"devices"`
	}
	q := url.Values{"page": {"1"}, "limit": {"100"}}
	if err := c.do(ctx, http.MethodGet, "/api/devices/"+c.userID+"?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res.Devices, nil
}

func (c *apiClient) SetDeviceStatus(ctx context.Context, deviceID string, status entities.DeviceStatus) (*entities.Device, error) {
	if c.userID == "" {
		return nil, ErrNotLoggedIn
	}
	var res struct {
		Device entities.Device `json:"device"`
	}
	path := fmt.Sprintf("/api/devices/%s/%s", c.userID, deviceID)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"status": string(status)}, &res); err != nil {
		return nil, err
	}
	return &res.Device, nil
}

func (c *apiClient) TickDevice(ctx context.Context, deviceID string) (float64, error) {
	if c.userID == "" {
		return 0, ErrNotLoggedIn
	}
	var res struct {
		EnergyConsumed float64 `json:"energyConsumed"`
	}
	path := fmt.Sprintf("/api/devices/%s/%s/energy-usage", c.userID, deviceID)
	if err := c.do(ctx, http.MethodPut, path, nil, &res); err != nil {
		return 0, err
	}
	return res.EnergyConsumed, nil
}

func (c *apiClient) Budgets(ctx context.Context) ([]entities.Budget, error) {
	if c.userID == "" {
		return nil, ErrNotLoggedIn
	}
	var res struct {
		Budgets []entities.Budget `json:"budgets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/budgets/"+c.userID, nil, &res); err != nil {
		return nil, err
	}
	return res.Budgets, nil
}

func (c *apiClient) Alerts(ctx context.Context) ([]entities.Alert, error) {
	if c.userID == "" {
		return nil, ErrNotLoggedIn
	}
	var res struct {
		Alerts []entities.Alert `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/alerts", nil, &res); err != nil {
		return nil, err
	}
	return res.Alerts, nil
}

// TriggerAggregation runs the budget job immediately and returns its overrun count.
func (c *apiClient) TriggerAggregation(ctx context.Context) (int, error) {
	var res struct {
		Report struct {
			Overruns int `json:"overruns"`
		} `json:"report"`
	}
	if err := c.do(ctx, http.MethodGet, "/trigger-cron-job", nil, &res); err != nil {
		return 0, err
	}
	return res.Report.Overruns, nil
}
