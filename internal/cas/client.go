// Package cas validates CAS service tickets against the institute SSO server.
package cas

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrTicketRejected is returned when the CAS server does not accept the ticket.
var ErrTicketRejected = errors.New("cas ticket rejected")

// ErrServiceNotAllowed is returned when the caller asks to validate for a
// service URL outside the configured allowlist.
var ErrServiceNotAllowed = errors.New("cas service url not allowed")

const (
	ProtocolV1 = "1.0"
	ProtocolV3 = "3.0"
)

// Config configures the CAS client.
type Config struct {
	BaseURL string
	// Protocol selects /validate (1.0, plain text) or /p3/serviceValidate (3.0, XML).
	Protocol string
	// AllowedServices restricts the service parameter; empty allows any.
	AllowedServices []string
	HTTPClient      *http.Client
}

// Client calls the CAS server over HTTP.
type Client struct {
	baseURL    string
	protocol   string
	services   map[string]struct{}
	httpClient *http.Client
}

// NewClient constructs a CAS client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("cas base url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid cas base url: %w", err)
	}
	protocol := strings.TrimSpace(cfg.Protocol)
	if protocol == "" {
		protocol = ProtocolV1
	}
	if protocol != ProtocolV1 && protocol != ProtocolV3 {
		return nil, fmt.Errorf("unsupported cas protocol %q", protocol)
	}
	services := make(map[string]struct{}, len(cfg.AllowedServices))
	for _, s := range cfg.AllowedServices {
		if s = strings.TrimSpace(s); s != "" {
			services[s] = struct{}{}
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    base,
		protocol:   protocol,
		services:   services,
		httpClient: httpClient,
	}, nil
}

// Validate exchanges a service ticket for the authenticated username.
func (c *Client) Validate(ctx context.Context, ticket, service string) (string, error) {
	ticket = strings.TrimSpace(ticket)
	service = strings.TrimSpace(service)
	if ticket == "" || service == "" {
		return "", ErrTicketRejected
	}
	if len(c.services) > 0 {
		if _, ok := c.services[service]; !ok {
			return "", ErrServiceNotAllowed
		}
	}
	path := "/validate"
	if c.protocol == ProtocolV3 {
		path = "/p3/serviceValidate"
	}
	q := url.Values{}
	q.Set("ticket", ticket)
	q.Set("service", service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cas request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("cas server error: %s", resp.Status)
	}
	body := io.LimitReader(resp.Body, 64<<10)
	if c.protocol == ProtocolV3 {
		return parseServiceResponse(body)
	}
	return parseValidateResponse(body)
}

// parseValidateResponse reads the CAS 1.0 reply: "yes\n<user>\n" or "no\n".
func parseValidateResponse(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read cas response: %w", err)
		}
		return "", errors.New("empty cas response")
	}
	if strings.TrimSpace(sc.Text()) != "yes" {
		return "", ErrTicketRejected
	}
	if !sc.Scan() {
		return "", errors.New("cas response missing username")
	}
	user := strings.TrimSpace(sc.Text())
	if user == "" {
		return "", errors.New("cas response missing username")
	}
	return user, nil
}

type serviceResponse struct {
	XMLName xml.Name `xml:"serviceResponse"`
	Success *struct {
		User string `xml:"user"`
	} `xml:"authenticationSuccess"`
	Failure *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"authenticationFailure"`
}

func parseServiceResponse(r io.Reader) (string, error) {
	var resp serviceResponse
	if err := xml.NewDecoder(r).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode cas response: %w", err)
	}
	if resp.Failure != nil {
		return "", fmt.Errorf("%w: %s", ErrTicketRejected, strings.TrimSpace(resp.Failure.Code))
	}
	if resp.Success == nil || strings.TrimSpace(resp.Success.User) == "" {
		return "", errors.New("cas response missing username")
	}
	return strings.TrimSpace(resp.Success.User), nil
}
