// Package updater replaces the running binary with the latest GitHub
// release.
package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/maxvaer/smugprobe/pkg/version"
)

const (
	repoOwner  = "maxvaer"
	binaryName = "smugprobe"

	// DefaultAPIURL is the GitHub endpoint for the latest release.
	DefaultAPIURL = "https://api.github.com/repos/" + repoOwner + "/" + binaryName + "/releases/latest"
)

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Updater checks for and installs new releases.
type Updater struct {
	APIURL  string
	Client  *http.Client
	Log     io.Writer
	Current string
	GOOS    string
	GOARCH  string
	// ExecPath returns the binary to replace. Defaults to os.Executable.
	ExecPath func() (string, error)
}

// New returns an Updater for the running binary.
func New() *Updater {
	return &Updater{
		APIURL:   DefaultAPIURL,
		Client:   &http.Client{Timeout: 120 * time.Second},
		Log:      os.Stderr,
		Current:  version.Version,
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		ExecPath: os.Executable,
	}
}

// Update checks GitHub for the latest release and replaces the current
// binary if it is newer.
func (u *Updater) Update(ctx context.Context) error {
	fmt.Fprintf(u.Log, "[*] Current version: %s\n", u.Current)
	fmt.Fprintf(u.Log, "[*] Checking for updates...\n")

	release, err := u.fetchLatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("checking for updates: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	current := strings.TrimPrefix(u.Current, "v")
	if current != "dev" && latest == current {
		fmt.Fprintf(u.Log, "[+] Already up to date (%s)\n", u.Current)
		return nil
	}

	fmt.Fprintf(u.Log, "[*] New version available: %s -> %s\n", u.Current, release.TagName)

	asset, err := u.findAsset(release.Assets)
	if err != nil {
		return err
	}

	fmt.Fprintf(u.Log, "[*] Downloading %s...\n", asset.Name)
	bin, err := u.downloadAndExtract(ctx, asset)
	if err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}

	if err := u.replaceBinary(bin); err != nil {
		return fmt.Errorf("replacing binary: %w", err)
	}

	fmt.Fprintf(u.Log, "[+] Updated to %s\n", release.TagName)
	return nil
}

func (u *Updater) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return u.Client.Do(req)
}

func (u *Updater) fetchLatestRelease(ctx context.Context) (*githubRelease, error) {
	resp, err := u.get(ctx, u.APIURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no releases found at %s", u.APIURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &release, nil
}

// findAsset matches names like smugprobe_linux_amd64.tar.gz or
// smugprobe-windows-amd64.zip.
func (u *Updater) findAsset(assets []githubAsset) (*githubAsset, error) {
	patterns := []string{
		fmt.Sprintf("%s_%s_%s", binaryName, u.GOOS, u.GOARCH),
		fmt.Sprintf("%s-%s-%s", binaryName, u.GOOS, u.GOARCH),
	}
	for i, asset := range assets {
		name := strings.ToLower(asset.Name)
		for _, pattern := range patterns {
			if strings.Contains(name, pattern) {
				return &assets[i], nil
			}
		}
	}

	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return nil, fmt.Errorf("no release asset found for %s/%s (available: %s)",
		u.GOOS, u.GOARCH, strings.Join(names, ", "))
}

func (u *Updater) downloadAndExtract(ctx context.Context, asset *githubAsset) ([]byte, error) {
	resp, err := u.get(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(asset.Name)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return u.extractZip(data)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTarGz(data)
	default:
		// Raw binary.
		return data, nil
	}
}

func (u *Updater) extractZip(data []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	want := binaryName
	if u.GOOS == "windows" {
		want += ".exe"
	}
	for _, f := range r.File {
		if !strings.EqualFold(filepath.Base(f.Name), want) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("binary %q not found in zip archive", want)
}

func extractTarGz(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if filepath.Base(hdr.Name) == binaryName && hdr.Typeflag == tar.TypeReg {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("binary %q not found in tar.gz archive", binaryName)
}

func (u *Updater) replaceBinary(newBin []byte) error {
	execPath, err := u.ExecPath()
	if err != nil {
		return err
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return err
	}

	oldPath := execPath + ".old"
	_ = os.Remove(oldPath)

	if err := os.Rename(execPath, oldPath); err != nil {
		return fmt.Errorf("renaming current binary: %w", err)
	}
	if err := os.WriteFile(execPath, newBin, 0o755); err != nil {
		_ = os.Rename(oldPath, execPath)
		return fmt.Errorf("writing new binary: %w", err)
	}

	// Windows keeps the running binary locked; the .old file stays until
	// the next update.
	_ = os.Remove(oldPath)
	return nil
}
