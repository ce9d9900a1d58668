// Package input reads product URL lists: one URL per line, blank lines and
// lines starting with # are ignored.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const DefaultDomain = "ozon.ru"

var ErrNoURLs = errors.New("no product URLs found")

// ReadURLs reads the URL list at path. Lines that do not mention domain are
// skipped; an empty domain keeps every line.
func ReadURLs(path, domain string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	defer f.Close()

	urls, err := Read(f, domain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return urls, nil
}

func Read(r io.Reader, domain string) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if domain != "" && !strings.Contains(line, domain) {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list: %w", err)
	}

	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}
