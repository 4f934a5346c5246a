package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yt-resolver/internal/model"
)

// Output templates for canonical, title-independent artifact names.
const (
	VideoOutputTemplate    = "video-%(format_id)s.%(ext)s"
	SubtitleOutputTemplate = "subtitles.%(ext)s"
)

// Credentials configures the with-cookies auth mode.
type Credentials struct {
	CookiesPath        string
	CookiesFromBrowser string
}

func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.CookiesPath) != "" || strings.TrimSpace(c.CookiesFromBrowser) != ""
}

// AuthModes returns the inner fallback order: cookies first when configured.
func (c Credentials) AuthModes() []model.AuthMode {
	if c.Configured() {
		return []model.AuthMode{model.AuthCookies, model.AuthNone}
	}
	return []model.AuthMode{model.AuthNone}
}

// Settings are invocation flags shared by every leaf.
type Settings struct {
	ProxyURL   string
	LimitRate  string
	CustomArgs []string
}

type ProbeOptions struct {
	URL      string
	Client   model.ClientIdentity
	Auth     model.AuthMode
	Creds    Credentials
	Settings Settings
}

type DownloadOptions struct {
	URL       string
	OutputDir string
	Selector  string
	Container string
	Client    model.ClientIdentity
	Auth      model.AuthMode
	Creds     Credentials
	Settings  Settings
	// MultiAudio keeps every audio stream the selector names.
	MultiAudio bool
}

type SubtitleOptions struct {
	URL       string
	OutputDir string
	Language  string
	Client    model.ClientIdentity
	Auth      model.AuthMode
	Creds     Credentials
	Settings  Settings
}

func ProbeArgs(opts ProbeOptions) ([]string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	args := []string{"-J", "--no-playlist", "--no-warnings"}
	return finishArgs(args, opts.URL, opts.Client, opts.Auth, opts.Creds, opts.Settings)
}

func DownloadArgs(opts DownloadOptions) ([]string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if strings.TrimSpace(opts.Selector) == "" {
		return nil, fmt.Errorf("format selector is required")
	}

	args := []string{
		"--newline",
		"--no-playlist",
		"-P", opts.OutputDir,
		"-o", VideoOutputTemplate,
		"-f", opts.Selector,
	}
	if opts.MultiAudio {
		args = append(args, "--audio-multistreams")
	}
	if c := strings.TrimSpace(opts.Container); c != "" {
		args = append(args, "--merge-output-format", c)
	}
	if opts.Settings.LimitRate != "" {
		args = append(args, "--limit-rate", strings.TrimSpace(opts.Settings.LimitRate))
	}
	return finishArgs(args, opts.URL, opts.Client, opts.Auth, opts.Creds, opts.Settings)
}

func SubtitleArgs(opts SubtitleOptions) ([]string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		return nil, fmt.Errorf("subtitle language is required")
	}

	args := []string{
		"--no-playlist",
		"--skip-download",
		"--newline",
		"-P", opts.OutputDir,
		"-o", SubtitleOutputTemplate,
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--convert-subs", "srt",
	}
	return finishArgs(args, opts.URL, opts.Client, opts.Auth, opts.Creds, opts.Settings)
}

func finishArgs(args []string, url string, client model.ClientIdentity, auth model.AuthMode, creds Credentials, settings Settings) ([]string, error) {
	args = append(args, client.ExtraArguments...)

	if auth == model.AuthCookies {
		authArgs, err := cookieArgs(creds)
		if err != nil {
			return nil, err
		}
		args = append(args, authArgs...)
	}
	if strings.TrimSpace(settings.ProxyURL) != "" {
		args = append(args, "--proxy", strings.TrimSpace(settings.ProxyURL))
	}
	args = append(args, settings.CustomArgs...)
	args = append(args, url)
	return args, nil
}

func cookieArgs(creds Credentials) ([]string, error) {
	if strings.TrimSpace(creds.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(creds.CookiesPath)
		if err != nil {
			return nil, err
		}
		return []string{"--cookies", cookiesPath}, nil
	}
	if strings.TrimSpace(creds.CookiesFromBrowser) != "" {
		return []string{"--cookies-from-browser", strings.TrimSpace(creds.CookiesFromBrowser)}, nil
	}
	return nil, fmt.Errorf("cookies auth mode requested but no cookies are configured")
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}

// FormatRateLimitMBps renders a MB/s limit the way --limit-rate expects.
func FormatRateLimitMBps(v float64) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf("%gM", v)
}
