package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/koscakluka/ema-realtime/core/tools"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const weatherTimeout = 10 * time.Second

type weatherQuery struct {
	Latitude  float64 `json:"latitude" jsonschema:"description=Latitude of the location,minimum=-90,maximum=90"`
	Longitude float64 `json:"longitude" jsonschema:"description=Longitude of the location,minimum=-180,maximum=180"`
}

type weatherReport struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"wind_speed"`
	WeatherCode int     `json:"weather_code"`
	Time        string  `json:"time"`
	Units       string  `json:"units"`
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
		WindSpeed10m  float64 `json:"wind_speed_10m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	CurrentUnits struct {
		Temperature2m string `json:"temperature_2m"`
	} `json:"current_units"`
}

// NewWeatherTool queries an open-meteo style forecast endpoint for the
// current conditions. A nil client gets an otelhttp instrumented one.
func NewWeatherTool(baseURL string, client *http.Client) tools.Tool {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   weatherTimeout,
		}
	}

	return tools.NewTool("get_weather", "Get the current weather for a latitude and longitude.",
		func(ctx context.Context, query weatherQuery) (any, error) {
			return fetchWeather(ctx, client, baseURL, query)
		})
}

func fetchWeather(ctx context.Context, client *http.Client, baseURL string, query weatherQuery) (report weatherReport, err error) {
	ctx, span := tracer.Start(ctx, "fetch weather", trace.WithAttributes(
		attribute.Float64("weather.latitude", query.Latitude),
		attribute.Float64("weather.longitude", query.Longitude),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint, err := url.Parse(baseURL)
	if err != nil {
		return weatherReport{}, fmt.Errorf("invalid weather url: %w", err)
	}
	params := endpoint.Query()
	params.Set("latitude", strconv.FormatFloat(query.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(query.Longitude, 'f', -1, 64))
	params.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return weatherReport{}, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return weatherReport{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return weatherReport{}, fmt.Errorf("weather service returned %d: %s", resp.StatusCode, body)
	}

	var forecast forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return weatherReport{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	logger.Debug("weather fetched", "latitude", query.Latitude, "longitude", query.Longitude)
	return weatherReport{
		Temperature: forecast.Current.Temperature2m,
		WindSpeed:   forecast.Current.WindSpeed10m,
		WeatherCode: forecast.Current.WeatherCode,
		Time:        forecast.Current.Time,
		Units:       forecast.CurrentUnits.Temperature2m,
	}, nil
}
