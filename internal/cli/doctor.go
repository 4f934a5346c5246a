package cli

import (
	"os"
	"strings"

	"yt-resolver/internal/config"
	"yt-resolver/internal/runstore"
	"yt-resolver/internal/ytdlp"
)

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor runs the preflight checks for c without touching any item.
func Doctor(c *config.Config) DoctorResult {
	checks := make([]DoctorCheck, 0, 6)

	dep := ytdlp.DependencyStatus(c.Invocation.Binary)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, c.Invocation.Binary),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	ok, msg := ensureWritableDir(c.TmpDir)
	checks = append(checks, DoctorCheck{Name: "directory:tmp", OK: ok, Message: c.TmpDir + ": " + msg})

	if out := c.OutputDir; out != "" && !strings.HasPrefix(out, "s3://") {
		ok, msg := ensureWritableDir(out)
		checks = append(checks, DoctorCheck{Name: "directory:output", OK: ok, Message: out + ": " + msg})
	}

	checks = append(checks, cookiesCheck(c.Cookies))

	configMsg := "defaults (no config file found)"
	if c.ConfigFile != "" {
		configMsg = c.ConfigFile
	}
	checks = append(checks, DoctorCheck{Name: "config", OK: true, Message: configMsg})

	res := DoctorResult{OK: true, Checks: checks}
	for _, check := range checks {
		if !check.OK {
			res.OK = false
			break
		}
	}
	return res
}

func cookiesCheck(c config.Cookies) DoctorCheck {
	check := DoctorCheck{Name: "cookies", OK: true}
	switch {
	case c.File != "":
		if err := ytdlp.ValidateCookiesFile(c.File); err != nil {
			check.OK = false
			check.Message = err.Error()
		} else {
			check.Message = "cookies file " + c.File + " is valid"
		}
	case c.FromBrowser != "":
		check.Message = "cookies read from browser " + c.FromBrowser
	default:
		check.Message = "not configured; only the no-cookies auth mode will be tried"
	}
	return check
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "yt-resolver-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
