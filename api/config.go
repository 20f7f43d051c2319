package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string   `yaml:"port"`
	MongoURI     string   `yaml:"mongo_uri"`
	MongoDB      string   `yaml:"mongo_db"`
	JWTSecret    string   `yaml:"jwt_secret"`
	AuthRequired bool     `yaml:"auth_required"`
	LogLevel     string   `yaml:"log_level"`
	CORSOrigins  []string `yaml:"cors_origins"`

	// Classifier bridge
	PythonPath     string        `yaml:"python_path"`
	PredictScript  string        `yaml:"predict_script"`
	PredictTimeout time.Duration `yaml:"predict_timeout"`

	// OpenWeather forecast
	WeatherAPIKey string  `yaml:"openweather_api_key"`
	WeatherURL    string  `yaml:"openweather_url"`
	WeatherLat    float64 `yaml:"weather_lat"`
	WeatherLon    float64 `yaml:"weather_lon"`

	// Optional MQTT ingest of probe readings
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`

	// Optional InfluxDB mirror of readings
	InfluxURL    string `yaml:"influx_url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxOrg    string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

func defaultConfig() Config {
	return Config{
		Port:           "8080",
		MongoURI:       "mongodb://localhost:27017",
		MongoDB:        "farmalytica",
		JWTSecret:      "change_me",
		LogLevel:       "info",
		CORSOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173"},
		PythonPath:     "python",
		PredictScript:  "scripts/predict_soil.py",
		PredictTimeout: 15 * time.Second,
		WeatherURL:     "https://api.openweathermap.org/data/2.5/forecast",
		WeatherLat:     9.03,
		WeatherLon:     38.74,
		MQTTTopic:      "farmalytica/sensor/#",
		MQTTClientID:   "farmalytica-api",
		InfluxOrg:      "farmalytica",
		InfluxBucket:   "soil",
	}
}

// loadConfig layers defaults, an optional YAML file and the environment
// (.env included), in that order of precedence from lowest to highest.
func loadConfig(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := defaultConfig()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getenv("PORT", c.Port)
	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDB = getenv("MONGO_DB", c.MongoDB)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.AuthRequired = getenvBool("AUTH_REQUIRED", c.AuthRequired)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.PythonPath = getenv("PYTHON_PATH", c.PythonPath)
	c.PredictScript = getenv("PREDICT_SCRIPT", c.PredictScript)
	c.PredictTimeout = getenvDuration("PREDICT_TIMEOUT", c.PredictTimeout)

	c.WeatherAPIKey = getenv("OPENWEATHER_API_KEY", c.WeatherAPIKey)
	c.WeatherURL = getenv("OPENWEATHER_URL", c.WeatherURL)
	c.WeatherLat = getenvFloat("WEATHER_LAT", c.WeatherLat)
	c.WeatherLon = getenvFloat("WEATHER_LON", c.WeatherLon)

	c.MQTTBroker = getenv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getenv("MQTT_TOPIC", c.MQTTTopic)
	c.MQTTClientID = getenv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.MQTTUser = getenv("MQTT_USER", c.MQTTUser)
	c.MQTTPassword = getenv("MQTT_PASSWORD", c.MQTTPassword)

	c.InfluxURL = getenv("INFLUX_URL", c.InfluxURL)
	c.InfluxToken = getenv("INFLUX_TOKEN", c.InfluxToken)
	c.InfluxOrg = getenv("INFLUX_ORG", c.InfluxOrg)
	c.InfluxBucket = getenv("INFLUX_BUCKET", c.InfluxBucket)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getenvDuration accepts Go durations ("15s") or plain milliseconds ("15000").
func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
