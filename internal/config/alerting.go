package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/ratelimit"
	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AlertConfig is the resolved alerting configuration handed to the monitor
type AlertConfig struct {
	PollingInterval   time.Duration
	LookbackHours     int
	MinFetchMagnitude *float64
	Regions           []models.MonitoringRegion
	PointsOfInterest  []models.PointOfInterest
	Channels          []models.AlertChannel
	RateLimit         ratelimit.Config

	// POI names each channel referenced, keyed by channel index, kept for
	// validation since unknown names are dropped during resolution.
	poiRefs map[int][]string
}

// Lookback returns the fetch window
func (a *AlertConfig) Lookback() time.Duration {
	return time.Duration(a.LookbackHours) * time.Hour
}

// Region returns the monitoring region with the given name
func (a *AlertConfig) Region(name string) (models.MonitoringRegion, bool) {
	for _, r := range a.Regions {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return models.MonitoringRegion{}, false
}

// DefaultAlertConfig returns an empty configuration with default settings
func DefaultAlertConfig() *AlertConfig {
	return &AlertConfig{
		PollingInterval: 60 * time.Second,
		LookbackHours:   1,
		RateLimit:       ratelimit.DefaultConfig(),
	}
}

type fileConfig struct {
	PollingIntervalSeconds int              `mapstructure:"polling_interval_seconds"`
	LookbackHours          int              `mapstructure:"lookback_hours"`
	MinFetchMagnitude      *float64         `mapstructure:"min_fetch_magnitude"`
	MonitoringRegions      []fileRegion     `mapstructure:"monitoring_regions"`
	PointsOfInterest       []filePOI        `mapstructure:"points_of_interest"`
	AlertChannels          []fileChannel    `mapstructure:"alert_channels"`
	RateLimit              ratelimit.Config `mapstructure:"rate_limit"`
}

type fileBounds struct {
	MinLatitude  float64 `mapstructure:"min_latitude"`
	MaxLatitude  float64 `mapstructure:"max_latitude"`
	MinLongitude float64 `mapstructure:"min_longitude"`
	MaxLongitude float64 `mapstructure:"max_longitude"`
}

type fileRegion struct {
	Name   string     `mapstructure:"name"`
	Bounds fileBounds `mapstructure:"bounds"`
}

type filePOI struct {
	Name          string   `mapstructure:"name"`
	Latitude      float64  `mapstructure:"latitude"`
	Longitude     float64  `mapstructure:"longitude"`
	AlertRadiusKm *float64 `mapstructure:"alert_radius_km"`
}

type fileRule struct {
	MinMagnitude     float64     `mapstructure:"min_magnitude"`
	MaxMagnitude     *float64    `mapstructure:"max_magnitude"`
	Bounds           *fileBounds `mapstructure:"bounds"`
	PointsOfInterest []string    `mapstructure:"points_of_interest"`
	AlertOnTsunami   *bool       `mapstructure:"alert_on_tsunami"`
	AlertOnFelt      bool        `mapstructure:"alert_on_felt"`
	FeltThreshold    *int        `mapstructure:"felt_threshold"`
}

type fileCredentials struct {
	APIKey            string   `mapstructure:"api_key"`
	APISecret         string   `mapstructure:"api_secret"`
	AccessToken       string   `mapstructure:"access_token"`
	AccessTokenSecret string   `mapstructure:"access_token_secret"`
	AccountSID        string   `mapstructure:"account_sid"`
	AuthToken         string   `mapstructure:"auth_token"`
	FromNumber        string   `mapstructure:"from_number"`
	ToNumbers         []string `mapstructure:"to_numbers"`
}

type fileChannel struct {
	Name        string           `mapstructure:"name"`
	Type        string           `mapstructure:"type"`
	WebhookURL  string           `mapstructure:"webhook_url"`
	Credentials *fileCredentials `mapstructure:"credentials"`
	Recipients  []string         `mapstructure:"recipients"`
	Rules       fileRule         `mapstructure:"rules"`
}

const defaultPOIRadiusKm = 50.0

// LoadAlertConfig reads the alerting configuration file at path. YAML, JSON
// and TOML are accepted. A missing file yields the defaults.
func LoadAlertConfig(path string) (*AlertConfig, error) {
	logrus.Infof("Loading configuration from %s", path)

	v := viper.New()
	v.SetConfigFile(path)
	setAlertDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logrus.Warnf("Config file not found: %s, using defaults", path)
			return DefaultAlertConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := raw.resolve()

	logrus.Infof("Loaded config: %d regions, %d channels, %d POIs",
		len(cfg.Regions), len(cfg.Channels), len(cfg.PointsOfInterest))

	return cfg, nil
}

func setAlertDefaults(v *viper.Viper) {
	defaults := ratelimit.DefaultConfig()

	v.SetDefault("polling_interval_seconds", 60)
	v.SetDefault("lookback_hours", 1)
	v.SetDefault("rate_limit.max_alerts_per_run", defaults.MaxPerRun)
	v.SetDefault("rate_limit.max_alerts_per_channel", defaults.MaxPerChannel)
	v.SetDefault("rate_limit.fail_on_limit_exceeded", defaults.FailOnLimitExceeded)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (f fileConfig) resolve() *AlertConfig {
	cfg := &AlertConfig{
		PollingInterval:   time.Duration(f.PollingIntervalSeconds) * time.Second,
		LookbackHours:     f.LookbackHours,
		MinFetchMagnitude: f.MinFetchMagnitude,
		RateLimit:         f.RateLimit,
		poiRefs:           make(map[int][]string),
	}

	for _, p := range f.PointsOfInterest {
		radius := defaultPOIRadiusKm
		if p.AlertRadiusKm != nil {
			radius = *p.AlertRadiusKm
		}
		cfg.PointsOfInterest = append(cfg.PointsOfInterest, models.PointOfInterest{
			Name:      p.Name,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			RadiusKm:  radius,
		})
	}

	for _, r := range f.MonitoringRegions {
		cfg.Regions = append(cfg.Regions, models.MonitoringRegion{Name: r.Name, Bounds: r.Bounds.toModel()})
	}

	for i, c := range f.AlertChannels {
		cfg.Channels = append(cfg.Channels, c.resolve(cfg.PointsOfInterest))
		if len(c.Rules.PointsOfInterest) > 0 {
			cfg.poiRefs[i] = c.Rules.PointsOfInterest
		}
	}

	return cfg
}

func (b fileBounds) toModel() models.GeoBounds {
	return models.GeoBounds{
		MinLatitude:  b.MinLatitude,
		MaxLatitude:  b.MaxLatitude,
		MinLongitude: b.MinLongitude,
		MaxLongitude: b.MaxLongitude,
	}
}

func (c fileChannel) resolve(pois []models.PointOfInterest) models.AlertChannel {
	kind := models.ChannelKind(strings.ToLower(c.Type))
	if kind == "" {
		kind = models.KindSlack
	}

	ch := models.AlertChannel{
		Name:       c.Name,
		Kind:       kind,
		WebhookURL: resolveValue(c.WebhookURL),
		Rule:       c.Rules.resolve(pois),
	}

	if c.Credentials != nil {
		creds := c.Credentials
		switch kind {
		case models.KindTwitter:
			ch.Twitter = &models.TwitterCredentials{
				APIKey:            resolveValue(creds.APIKey),
				APISecret:         resolveValue(creds.APISecret),
				AccessToken:       resolveValue(creds.AccessToken),
				AccessTokenSecret: resolveValue(creds.AccessTokenSecret),
			}
		case models.KindWhatsApp:
			ch.WhatsApp = &models.WhatsAppCredentials{
				AccountSID: resolveValue(creds.AccountSID),
				AuthToken:  resolveValue(creds.AuthToken),
				FromNumber: resolveValue(creds.FromNumber),
				ToNumbers:  resolveValues(creds.ToNumbers),
			}
		}
	}

	if len(c.Recipients) > 0 {
		ch.Email = &models.EmailTarget{Recipients: resolveValues(c.Recipients)}
	}

	return ch
}

func (r fileRule) resolve(pois []models.PointOfInterest) models.AlertRule {
	rule := models.DefaultAlertRule()
	rule.MinMagnitude = r.MinMagnitude
	rule.MaxMagnitude = r.MaxMagnitude
	rule.AlertOnFelt = r.AlertOnFelt

	if r.AlertOnTsunami != nil {
		rule.AlertOnTsunami = *r.AlertOnTsunami
	}
	if r.FeltThreshold != nil {
		rule.FeltThreshold = *r.FeltThreshold
	}
	if r.Bounds != nil {
		b := r.Bounds.toModel()
		rule.Bounds = &b
	}

	// POIs are matched by name and keep configuration order; the first
	// definition of a duplicated name wins
	if len(r.PointsOfInterest) > 0 {
		wanted := make(map[string]bool, len(r.PointsOfInterest))
		for _, name := range r.PointsOfInterest {
			wanted[name] = true
		}
		for _, p := range pois {
			if wanted[p.Name] {
				rule.PointsOfInterest = append(rule.PointsOfInterest, p)
				wanted[p.Name] = false
			}
		}
	}

	return rule
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// resolveValue substitutes ${VAR} placeholders from the environment.
// Unset variables are left in place so validation can report them.
func resolveValue(value string) string {
	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if env, ok := os.LookupEnv(name); ok && env != "" {
			return env
		}
		logrus.Warnf("Environment variable %s not set", name)
		return match
	})
}

func resolveValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, resolveValue(v))
	}
	return out
}

func hasPlaceholder(value string) bool {
	return placeholderPattern.MatchString(value)
}

// AlertConfigFromEnv builds a single Slack channel configuration from
// SLACK_WEBHOOK_URL, MONITORING_BOUNDS, MIN_MAGNITUDE and LOOKBACK_HOURS.
func AlertConfigFromEnv() *AlertConfig {
	cfg := DefaultAlertConfig()
	cfg.LookbackHours = getIntEnv("LOOKBACK_HOURS", 1)

	webhookURL := getEnv("SLACK_WEBHOOK_URL", "")
	if webhookURL == "" {
		logrus.Warn("SLACK_WEBHOOK_URL not set and CONFIG_PATH not given")
		return cfg
	}

	minMagnitude := getFloatEnv("MIN_MAGNITUDE", 2.5)
	cfg.MinFetchMagnitude = &minMagnitude

	rule := models.DefaultAlertRule()
	rule.MinMagnitude = minMagnitude

	if bounds, ok := parseBounds(getSliceEnv("MONITORING_BOUNDS", nil)); ok {
		rule.Bounds = &bounds
		cfg.Regions = append(cfg.Regions, models.MonitoringRegion{Name: "default", Bounds: bounds})
	}

	cfg.Channels = []models.AlertChannel{{
		Name:       "default",
		Kind:       models.KindSlack,
		WebhookURL: webhookURL,
		Rule:       rule,
	}}

	return cfg
}

// parseBounds reads min_lat,max_lat,min_lon,max_lon
func parseBounds(parts []string) (models.GeoBounds, bool) {
	if len(parts) != 4 {
		return models.GeoBounds{}, false
	}

	var values [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			logrus.Warnf("Ignoring MONITORING_BOUNDS: %v", err)
			return models.GeoBounds{}, false
		}
		values[i] = v
	}

	return models.GeoBounds{
		MinLatitude:  values[0],
		MaxLatitude:  values[1],
		MinLongitude: values[2],
		MaxLongitude: values[3],
	}, true
}
