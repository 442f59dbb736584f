// Package weather implements the weather tool provider. Lookups never fail:
// every problem is reported as a human readable "Error: ..." string so the agent
// always sees a successful tool call.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

	MissingKeyMessage = "Error: OpenWeatherMap API key not found. Please set OPENWEATHER_API_KEY in your .env file."

	maxBodySize = 1 << 20
)

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// WithAPIKey sets where the API key is read from. The source is consulted on
// every lookup.
func WithAPIKey(source func() string) Option {
	return func(c *Client) { c.apiKey = source }
}

type Client struct {
	logger  logger.Logger
	http    *http.Client
	baseURL string
	apiKey  func() string
}

func NewClient(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		logger:  log,
		http:    &http.Client{},
		baseURL: DefaultBaseURL,
		apiKey:  func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the current conditions for city in metric units.
func (c *Client) Lookup(ctx context.Context, city string) string {
	key := strings.TrimSpace(c.apiKey())
	if key == "" {
		c.logger.Error("weather lookup for %q without an API key", city)
		return MissingKeyMessage
	}
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return errorText(fmt.Sprintf("invalid weather endpoint: %s", err.Error()))
	}
	query := endpoint.Query()
	query.Set("q", city)
	query.Set("appid", key)
	query.Set("units", "metric")
	endpoint.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return errorText(err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// the url error would echo the API key back to the model
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Error("weather request for %q failed: %s", city, err.Error())
		return errorText(err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Info("weather lookup: city %q not found", city)
		return fmt.Sprintf("Error: City '%s' not found.", city)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("weather lookup for %q returned status %d", city, resp.StatusCode)
		return fmt.Sprintf("Error: Failed to get weather data. Status code: %d.", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errorText(fmt.Sprintf("error reading weather response: %s", err.Error()))
	}
	report, err := format(city, body)
	if err != nil {
		c.logger.Error("weather response for %q could not be parsed: %s", city, err.Error())
		return errorText(err.Error())
	}
	c.logger.Info("weather data for %s: %s", city, string(body))
	return report
}

func format(city string, body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("invalid JSON in weather response")
	}
	fields := gjson.GetManyBytes(body, "weather.0.description", "main.temp", "main.feels_like", "main.humidity")
	names := []string{"weather[0].description", "main.temp", "main.feels_like", "main.humidity"}
	for i, f := range fields {
		if !f.Exists() {
			return "", fmt.Errorf("weather response is missing %s", names[i])
		}
	}
	return fmt.Sprintf("Weather in %s: %s, Temperature: %s°C (feels like %s°C), Humidity: %s%%",
		city, fields[0].String(), literal(fields[1]), literal(fields[2]), literal(fields[3])), nil
}

// literal keeps numbers exactly as the API wrote them.
func literal(r gjson.Result) string {
	if r.Type == gjson.Number {
		return r.Raw
	}
	return r.String()
}

func errorText(msg string) string {
	return "Error: " + strings.TrimSuffix(strings.TrimSpace(msg), ".") + "."
}
