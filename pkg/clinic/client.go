package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 15 * time.Second
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// APIError is a non-OK response carrying the backend's error message verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinic api: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the clinic REST API. It keeps the session and CSRF cookies
// in a jar primed by Login; every mutating request echoes the CSRF token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	jar        *cookiejar.Jar
	logger     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errs.New("create cookie jar").Wrap(err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar:    jar,
		logger: logger,
	}, nil
}

// Login authenticates against the backend, priming the cookie jar with the
// session and csrftoken cookies that later requests depend on.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/api/login/", body, nil)
}

// ListAppointments fetches the current user's appointments. An absent or empty
// array in the response means no appointments, not an error.
func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/api/appointments/", nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

// CreateAppointment books a new appointment and returns the server message.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/create-appointment/", req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// DeleteAppointment removes an appointment. The backend exposes this as POST,
// not DELETE; that is a fixed server contract.
func (c *Client) DeleteAppointment(ctx context.Context, id int64) (string, error) {
	var out messageResponse
	path := fmt.Sprintf("/api/delete-appointment/%d/", id)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// PayAppointment submits a mobile-money payment for one appointment.
func (c *Client) PayAppointment(ctx context.Context, id int64, req PaymentRequest) (*PaymentResult, error) {
	var out PaymentResult
	path := fmt.Sprintf("/api/pay/%d/", id)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CSRFToken returns the URL-decoded csrftoken cookie value, or "" if the jar
// holds none (before Login, or if the server never set it).
func (c *Client) CSRFToken() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	tok, _ := cookieValue(c.jar.Cookies(u), csrfCookieName)
	return tok
}

// cookieValue extracts and URL-decodes the named cookie.
func cookieValue(cookies []*http.Cookie, name string) (string, bool) {
	for _, ck := range cookies {
		if ck.Name != name {
			continue
		}
		val, err := url.QueryUnescape(ck.Value)
		if err != nil {
			return ck.Value, true
		}
		return val, true
	}
	return "", false
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errs.New("marshal request").Arg("path", path).Wrap(err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return errs.New("build request").Arg("path", path).Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if tok := c.CSRFToken(); tok != "" {
			req.Header.Set(csrfHeaderName, tok)
		}
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("clinic api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New("request failed").Arg("path", path).Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New("read response").Arg("path", path).Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg messageResponse
		_ = json.Unmarshal(raw, &msg)
		if msg.Error == "" {
			msg.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Error}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errs.New("decode response").Arg("path", path).Wrap(err)
		}
	}
	return nil
}
