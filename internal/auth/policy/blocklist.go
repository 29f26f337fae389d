package policy

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultBlocklist is matched as a case-insensitive substring, so only
// entries long enough to be meaningful belong here.
var defaultBlocklist = []string{
	"password", "passw0rd", "p@ssw0rd", "123456", "12345678", "123123",
	"111111", "000000", "qwerty", "qwertyuiop", "asdfgh", "zxcvbn",
	"abc123", "letmein", "welcome", "iloveyou", "monkey", "dragon",
	"football", "baseball", "sunshine", "princess", "trustno1", "superman",
	"starwars", "whatever", "changeme", "secret1", "admin123", "login1",
}

// LoadBlocklist reads one entry per line, skipping blank lines and lines
// starting with '#'.
func LoadBlocklist(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("policy: open blocklist: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("policy: read blocklist: %w", err)
	}
	return out, nil
}
