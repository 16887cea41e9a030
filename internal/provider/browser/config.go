package browser

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL             = "https://web.whatsapp.com"
	defaultSessionCheckTimeout = 15 * time.Second
	defaultLoginTimeout        = 120 * time.Second
	defaultChatLoadTimeout     = 45 * time.Second
	defaultUploadTimeout       = 60 * time.Second

	chatProbeTimeout   = 15 * time.Second
	controlTimeout     = 10 * time.Second
	deliveredTimeout   = 10 * time.Second
	probePollInterval  = 500 * time.Millisecond
	defaultNavTimeout  = 30 * time.Second
	captionExtensions  = ".jpg .jpeg .png .gif .mp4 .pdf .doc .docx .xls .xlsx .txt"
	notRegisteredLabel = "not on WhatsApp"
)

// Config configures the WhatsApp Web browser transport.
type Config struct {
	BaseURL     string
	ChromePath  string
	UserDataDir string
	Profile     string
	Headless    bool

	SessionCheckTimeout time.Duration
	LoginTimeout        time.Duration
	ChatLoadTimeout     time.Duration
	UploadTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.SessionCheckTimeout <= 0 {
		c.SessionCheckTimeout = defaultSessionCheckTimeout
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = defaultLoginTimeout
	}
	if c.ChatLoadTimeout <= 0 {
		c.ChatLoadTimeout = defaultChatLoadTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
	return c
}

// chromeFlags are the command line switches passed on top of chromedp's defaults.
func (c Config) chromeFlags() map[string]any {
	flags := map[string]any{
		"headless":              c.Headless,
		"disable-dev-shm-usage": true,
		"disable-infobars":      true,
		"disable-notifications": true,
		"start-maximized":       true,
		"disable-gpu":           true,
		"no-sandbox":            true,
		"log-level":             "3",
	}
	if profile := strings.TrimSpace(c.Profile); profile != "" && strings.TrimSpace(c.UserDataDir) != "" {
		flags["profile-directory"] = profile
	}
	return flags
}

func (c Config) userDataDir() string {
	dir := strings.TrimSpace(c.UserDataDir)
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

func isCaptionable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, allowed := range strings.Fields(captionExtensions) {
		if ext == allowed {
			return true
		}
	}
	return false
}
