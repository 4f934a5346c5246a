package ytdlp

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ValidateCookiesFile checks that path is a Netscape cookies.txt with at
// least one well-formed cookie line.
func ValidateCookiesFile(path string) error {
	abs, err := resolveCookiesPath(path)
	if err != nil {
		return err
	}
	if abs == "" {
		return fmt.Errorf("cookies path is empty")
	}
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("open cookies file %s: %w", abs, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	cookies := 0
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		// #HttpOnly_ prefixes a real cookie line
		if strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "#HttpOnly_") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return fmt.Errorf("cookies file %s: line %d: expected 7 tab-separated fields, got %d", abs, lineNo, len(fields))
		}
		cookies++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cookies file %s: %w", abs, err)
	}
	if cookies == 0 {
		return fmt.Errorf("cookies file %s contains no cookies", abs)
	}
	return nil
}
