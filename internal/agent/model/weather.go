package model

import "time"

// WeatherData is the result of a weather lookup: either a *WeatherReport or a
// *WeatherError, never both.
type WeatherData interface {
	weatherData()
}

// WeatherReport is the normalized provider response for one city.
type WeatherReport struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	TempMin     float64   `json:"temp_min"`
	TempMax     float64   `json:"temp_max"`
	Humidity    int       `json:"humidity"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"wind_speed"`
	Timestamp   time.Time `json:"timestamp"`
}

// WeatherError carries a provider failure as ordinary data.
type WeatherError struct {
	Message string `json:"error"`
}

func (*WeatherReport) weatherData() {}
func (*WeatherError) weatherData()  {}

// WeatherErrorOf returns the error message and true when d is a WeatherError.
func WeatherErrorOf(d WeatherData) (string, bool) {
	if e, ok := d.(*WeatherError); ok {
		return e.Message, true
	}
	return "", false
}
