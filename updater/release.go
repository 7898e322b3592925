package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	ErrNoRelease = errors.New("no usable release")
	ErrNoAsset   = errors.New("release has no such asset")
)

// Release is one entry of the release feed.
type Release struct {
	TagName    string  `json:"tag_name"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// Version returns the release version without the leading v, or "" if the
// tag is not a semantic version.
func (r Release) Version() string {
	return display(r.TagName)
}

// Asset returns the attached file with the name.
func (r Release) Asset(name string) (Asset, error) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("%s: %w: %s", r.TagName, ErrNoAsset, name)
}

// canonical returns v in the form semver expects ("v1.2.3"), or "" when v
// is not a semantic version. A missing v prefix is accepted.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

func display(v string) string {
	return strings.TrimPrefix(canonical(v), "v")
}

// FetchReleases reads the release feed at url.
func FetchReleases(ctx context.Context, client *http.Client, url string) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "pathfinder-updater")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch releases: %s", resp.Status)
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}
	return releases, nil
}

// Latest returns the first release of the feed with a semantic version tag,
// skipping prereleases unless includePrereleases is set. The feed lists
// the newest release first.
func Latest(releases []Release, includePrereleases bool) (Release, error) {
	for _, r := range releases {
		v := canonical(r.TagName)
		if v == "" {
			continue
		}
		if (r.Prerelease || semver.Prerelease(v) != "") && !includePrereleases {
			continue
		}
		return r, nil
	}
	return Release{}, ErrNoRelease
}

// Action is what the updater does about the latest release.
type Action int

const (
	// UpToDate means the running version is the latest or newer.
	UpToDate Action = iota
	// Prompt asks the user whether to update.
	Prompt
	// Install updates without asking; the user accepted this version
	// before.
	Install
)

// String implements the Stringer interface.
func (a Action) String() string {
	switch a {
	case UpToDate:
		return "UpToDate"
	case Prompt:
		return "Prompt"
	case Install:
		return "Install"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Decide compares the running version and the last accepted update with
// the latest release.
func Decide(current, accepted, latest string) Action {
	cur, lat := canonical(current), canonical(latest)
	if lat == "" {
		return UpToDate
	}
	if cur != "" && semver.Compare(cur, lat) >= 0 {
		return UpToDate
	}
	if canonical(accepted) != lat {
		return Prompt
	}
	return Install
}

// MajorChanged reports whether latest is a different major version than
// current, which the updater cannot install on its own.
func MajorChanged(current, latest string) bool {
	cur, lat := canonical(current), canonical(latest)
	return cur != "" && lat != "" && semver.Major(cur) != semver.Major(lat)
}
