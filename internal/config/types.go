package config

// Config is the full on-disk configuration. Every section has a usable
// default so the CLI works without a config file at all; the file mostly
// exists for the serve daemon and for overriding brittle DOM selectors
// without a rebuild.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Browser  BrowserConfig   `json:"browser"`
	Contacts ContactsConfig  `json:"contacts"`
	Sender   SenderConfig    `json:"sender"`
	Audit    AuditConfig     `json:"audit"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Web      WebConfig       `json:"web"`
	Selector SelectorsConfig `json:"selectors"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Bus     LoggingBus  `json:"bus"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingBus struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// BrowserConfig controls the driven Chrome/Chromium session.
//
// All timeouts are Go duration strings (e.g. "10s", "1m").
type BrowserConfig struct {
	// Bin is the browser binary path. Empty lets the launcher find one.
	Bin         string `json:"bin,omitempty"`
	Headless    bool   `json:"headless"`
	UserDataDir string `json:"user_data_dir,omitempty"`
	URL         string `json:"url"`
	UserAgent   string `json:"user_agent"`

	NavTimeout     string `json:"nav_timeout"`
	AuthTimeout    string `json:"auth_timeout"`
	ElementTimeout string `json:"element_timeout"`
	SendSettle     string `json:"send_settle"`

	// ExtraFlags are appended to the launcher verbatim (leading dashes optional).
	ExtraFlags []string `json:"extra_flags,omitempty"`
}

// SelectorsConfig holds the DOM selectors used to operate WhatsApp Web.
// These break whenever the upstream UI changes, which is why they live in
// config rather than code.
type SelectorsConfig struct {
	SearchBox    string `json:"search_box"`
	MessageBox   string `json:"message_box"`
	SendButton   string `json:"send_button"`
	ChatHeader   string `json:"chat_header"`
	InvalidPopup string `json:"invalid_popup"`
	SidePanel    string `json:"side_panel"`
	QRCode       string `json:"qr_code"`
	ContactTitle string `json:"contact_title"`
}

type ContactsConfig struct {
	NameColumn    string `json:"name_column"`
	PhoneColumn   string `json:"phone_column"`
	MessageColumn string `json:"message_column"`
	MinDigits     int    `json:"min_digits"`
	MaxDigits     int    `json:"max_digits"`

	DefaultTemplate string `json:"default_template"`
}

type SenderConfig struct {
	// DefaultLimit caps sends per run when the caller doesn't pass one.
	DefaultLimit int `json:"default_limit"`
	// DefaultDelay is the base inter-message delay (Go duration string).
	DefaultDelay string `json:"default_delay"`
}

type AuditConfig struct {
	Path string `json:"path"`
}

// StorageConfig controls the optional run-history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/wasender.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type WebConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// Default returns the configuration used when no file is given. Selector
// values track the WhatsApp Web DOM as of the last time anyone looked; they
// are expected to rot.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
			File:    LoggingFile{Enabled: true, Path: "./logs/wasender.log"},
			Bus:     LoggingBus{Enabled: true, MinLevel: "INFO", RatePerSec: 10},
		},
		Browser: BrowserConfig{
			Headless:       false,
			URL:            "https://web.whatsapp.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NavTimeout:     "30s",
			AuthTimeout:    "60s",
			ElementTimeout: "10s",
			SendSettle:     "5s",
		},
		Contacts: ContactsConfig{
			NameColumn:      "nombre",
			PhoneColumn:     "telefono",
			MessageColumn:   "mensaje",
			MinDigits:       8,
			MaxDigits:       15,
			DefaultTemplate: "Hola {nombre}, este es un mensaje automático.",
		},
		Sender: SenderConfig{
			DefaultLimit: 50,
			DefaultDelay: "20s",
		},
		Audit: AuditConfig{
			Path: "./logs/messages_sent.csv",
		},
		Web: WebConfig{
			Addr: "127.0.0.1:8321",
		},
		Selector: SelectorsConfig{
			SearchBox:    `div[contenteditable="true"][data-tab="3"]`,
			MessageBox:   `div[contenteditable="true"][data-tab="10"]`,
			SendButton:   `span[data-icon="send"]`,
			ChatHeader:   `header[data-testid="conversation-header"]`,
			InvalidPopup: `div[data-animate-modal-popup="true"]`,
			SidePanel:    `div[data-testid="chatlist-header"]`,
			QRCode:       `canvas[aria-label="Scan me!"]`,
			ContactTitle: `span[title]`,
		},
	}
}

// fillDefaults back-fills zero values on a parsed config so partial files
// stay valid.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Browser.URL == "" {
		cfg.Browser.URL = def.Browser.URL
	}
	if cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = def.Browser.UserAgent
	}
	if cfg.Browser.NavTimeout == "" {
		cfg.Browser.NavTimeout = def.Browser.NavTimeout
	}
	if cfg.Browser.AuthTimeout == "" {
		cfg.Browser.AuthTimeout = def.Browser.AuthTimeout
	}
	if cfg.Browser.ElementTimeout == "" {
		cfg.Browser.ElementTimeout = def.Browser.ElementTimeout
	}
	if cfg.Browser.SendSettle == "" {
		cfg.Browser.SendSettle = def.Browser.SendSettle
	}
	if cfg.Contacts.NameColumn == "" {
		cfg.Contacts.NameColumn = def.Contacts.NameColumn
	}
	if cfg.Contacts.PhoneColumn == "" {
		cfg.Contacts.PhoneColumn = def.Contacts.PhoneColumn
	}
	if cfg.Contacts.MessageColumn == "" {
		cfg.Contacts.MessageColumn = def.Contacts.MessageColumn
	}
	if cfg.Contacts.MinDigits == 0 {
		cfg.Contacts.MinDigits = def.Contacts.MinDigits
	}
	if cfg.Contacts.MaxDigits == 0 {
		cfg.Contacts.MaxDigits = def.Contacts.MaxDigits
	}
	if cfg.Contacts.DefaultTemplate == "" {
		cfg.Contacts.DefaultTemplate = def.Contacts.DefaultTemplate
	}
	if cfg.Sender.DefaultLimit == 0 {
		cfg.Sender.DefaultLimit = def.Sender.DefaultLimit
	}
	if cfg.Sender.DefaultDelay == "" {
		cfg.Sender.DefaultDelay = def.Sender.DefaultDelay
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = def.Audit.Path
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = def.Web.Addr
	}
	fillSelectorDefaults(&cfg.Selector, &def.Selector)
}

func fillSelectorDefaults(s, def *SelectorsConfig) {
	if s.SearchBox == "" {
		s.SearchBox = def.SearchBox
	}
	if s.MessageBox == "" {
		s.MessageBox = def.MessageBox
	}
	if s.SendButton == "" {
		s.SendButton = def.SendButton
	}
	if s.ChatHeader == "" {
		s.ChatHeader = def.ChatHeader
	}
	if s.InvalidPopup == "" {
		s.InvalidPopup = def.InvalidPopup
	}
	if s.SidePanel == "" {
		s.SidePanel = def.SidePanel
	}
	if s.QRCode == "" {
		s.QRCode = def.QRCode
	}
	if s.ContactTitle == "" {
		s.ContactTitle = def.ContactTitle
	}
}
