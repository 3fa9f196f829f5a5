// Package credentials parses an AWS-style shared credentials file
// ("[profile]" sections of "key = value" pairs) into per-profile Profile
// values.
// The line-splitting itself is grounded in
// original_source/src/url_utility.cpp's ParseParams/split helpers,
// translated from hand-rolled string scanning into bufio.Scanner.
package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FairForge/s3rest/internal/s3err"
)

// Profile holds one "[name]" section's key/value pairs.
type Profile struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// File is a parsed credentials file: profile name -> Profile.
type File struct {
	Profiles map[string]Profile
}

// Load reads and parses a credentials file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path) // #nosec G304 -- path supplied by the CLI's own -c/--credentials flag
	if err != nil {
		return nil, s3err.New(s3err.IO, "credentials.Load", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads an ini-like credentials file from r.
func Parse(r io.Reader) (*File, error) {
	profiles := map[string]Profile{}
	current := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := profiles[current]; !ok {
				profiles[current] = Profile{}
			}
			continue
		}
		if current == "" {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		p := profiles[current]
		switch strings.ToLower(key) {
		case "aws_access_key_id":
			p.AccessKeyID = value
		case "aws_secret_access_key":
			p.SecretAccessKey = value
		case "region":
			p.Region = value
		}
		profiles[current] = p
	}
	if err := scanner.Err(); err != nil {
		return nil, s3err.New(s3err.IO, "credentials.Parse", err)
	}
	return &File{Profiles: profiles}, nil
}

// splitKV splits a "key = value" or "key=value" line on the first '='.
func splitKV(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

// ParseParams parses a semicolon-delimited "k1=v1;k2=v2" string into a
// query-parameter map, reusing splitKV's key=value splitting. Blank or
// malformed pairs are skipped rather than rejected. Shared by the
// sign-url CLI's -p/--params flag, grounded in
// original_source/src/url_utility.cpp's ParseParams.
func ParseParams(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := splitKV(pair)
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Profile looks up a named profile, returning an error if it is absent or
// missing either key.
func (f *File) Profile(name string) (Profile, error) {
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, s3err.Newf(s3err.InvalidArgument, "credentials.Profile", "profile %q not found", name)
	}
	if p.AccessKeyID == "" || p.SecretAccessKey == "" {
		return Profile{}, s3err.Newf(s3err.InvalidArgument, "credentials.Profile", "profile %q is missing aws_access_key_id or aws_secret_access_key", name)
	}
	return p, nil
}

// DefaultPath returns the conventional "$HOME/.aws/credentials" location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/.aws/credentials", home)
}
