package ra

import (
	"fmt"
	"regexp"
	"strings"
)

// ZeroDigest is the well-known all-zero checksum the service uses to mark
// unidentifiable content. Entries carrying only this digest are useless for
// catalog generation.
const ZeroDigest = "00000000000000000000000000000000"

var digestPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Profile is the response of the user profile endpoint. Older API versions
// used "Username", current ones use "User"; both are accepted.
type Profile struct {
	User        string `json:"User"`
	Username    string `json:"Username"`
	Motto       string `json:"Motto"`
	MemberSince string `json:"MemberSince"`
}

// Name returns the profile's display name regardless of which wire field
// carried it.
func (p Profile) Name() string {
	if p.User != "" {
		return p.User
	}
	return p.Username
}

// Console is one games platform known to the service
type Console struct {
	ID   int    `json:"ID"`
	Name string `json:"Name"`
}

// GameListEntry is one item of the per-console game list
type GameListEntry struct {
	ID              int    `json:"ID"`
	Title           string `json:"Title"`
	Hash            string `json:"Hash"`
	ConsoleID       int    `json:"ConsoleID"`
	NumAchievements int    `json:"NumAchievements"`
}

// GameHash is one known checksum for a game as returned by the hash lookup
// endpoint
type GameHash struct {
	MD5    string   `json:"MD5"`
	Name   string   `json:"Name"`
	Labels []string `json:"Labels"`
	Status string   `json:"Status"`
}

// gameHashesResponse wraps the hash lookup payload
type gameHashesResponse struct {
	Results []GameHash `json:"Results"`
}

// GameExtended is the extended-info payload for one game
type GameExtended struct {
	ID              int    `json:"ID"`
	Title           string `json:"Title"`
	NumAchievements int    `json:"NumAchievements"`
	Points          int    `json:"Points"`
	PatchURL        string `json:"PatchUrl"`
	PatchDigest     string `json:"PatchDigest"`
}

// TitleRecord is one validated catalog entry. Records are immutable once
// built; a record always carries at least one valid hash.
type TitleRecord struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Hashes   []HashEntry   `json:"hashes"`
	Extended *ExtendedInfo `json:"extended,omitempty"`
}

// HashEntry is one validated content checksum of a title
type HashEntry struct {
	Digest   string   `json:"digest"`
	Filename string   `json:"filename,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// ExtendedInfo carries the optional achievement and patch details of a title
type ExtendedInfo struct {
	AchievementCount int    `json:"achievementCount"`
	Points           int    `json:"points"`
	PatchURL         string `json:"patchUrl,omitempty"`
	PatchDigest      string `json:"patchDigest,omitempty"`
}

// NormalizeDigest lowercases a checksum string and reports whether it is a
// valid 128-bit hex digest.
func NormalizeDigest(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, digestPattern.MatchString(s)
}

// NewHashEntry validates a raw checksum and builds a HashEntry from it.
// The digest must be exactly 32 hex characters after lowercasing.
func NewHashEntry(digest, filename string, labels []string, status string) (HashEntry, error) {
	normalized, ok := NormalizeDigest(digest)
	if !ok {
		return HashEntry{}, fmt.Errorf("invalid digest %q: want 32 hex characters", digest)
	}
	return HashEntry{
		Digest:   normalized,
		Filename: filename,
		Labels:   labels,
		Status:   status,
	}, nil
}
