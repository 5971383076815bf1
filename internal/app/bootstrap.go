package app

import (
	"wasender/internal/config"
	"wasender/internal/session"
	"wasender/internal/storage"
	logx "wasender/pkg/logx"
)

// Mapping helpers between the on-disk config and the per-service configs.
// Duration fields were validated at load time, parse errors here fall back
// to each service's own default.

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Bus: logx.BusConfig{
			Enabled:    cfg.Logging.Bus.Enabled,
			MinLevel:   cfg.Logging.Bus.MinLevel,
			RatePerSec: cfg.Logging.Bus.RatePerSec,
		},
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	nav, _ := config.Duration("browser.nav_timeout", cfg.Browser.NavTimeout)
	auth, _ := config.Duration("browser.auth_timeout", cfg.Browser.AuthTimeout)
	elem, _ := config.Duration("browser.element_timeout", cfg.Browser.ElementTimeout)
	settle, _ := config.Duration("browser.send_settle", cfg.Browser.SendSettle)

	return session.Config{
		Bin:            cfg.Browser.Bin,
		Headless:       cfg.Browser.Headless,
		UserDataDir:    cfg.Browser.UserDataDir,
		URL:            cfg.Browser.URL,
		UserAgent:      cfg.Browser.UserAgent,
		ExtraFlags:     cfg.Browser.ExtraFlags,
		NavTimeout:     nav,
		AuthTimeout:    auth,
		ElementTimeout: elem,
		SendSettle:     settle,
		Selectors: session.Selectors{
			SearchBox:    cfg.Selector.SearchBox,
			MessageBox:   cfg.Selector.MessageBox,
			SendButton:   cfg.Selector.SendButton,
			ChatHeader:   cfg.Selector.ChatHeader,
			InvalidPopup: cfg.Selector.InvalidPopup,
			SidePanel:    cfg.Selector.SidePanel,
			QRCode:       cfg.Selector.QRCode,
			ContactTitle: cfg.Selector.ContactTitle,
		},
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	busy, _ := config.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}
