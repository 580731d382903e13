package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"
)

const (
	// DefaultReleasesURL lists published Devnet releases.
	DefaultReleasesURL = "https://api.github.com/repos/0xSpaceShard/starknet-devnet/releases"
	// DefaultDownloadURL is the prefix release archives are downloaded from.
	DefaultDownloadURL = "https://github.com/0xSpaceShard/starknet-devnet/releases/download"

	// ExecutableName is the name of the binary inside every release archive.
	ExecutableName = "starknet-devnet"

	defaultLookupTimeout = 30 * time.Second
	indexFileName        = "versions.db"
	archiveFileName      = "archive.tar.gz"
)

// Config holds configuration options for the Handler.
type Config struct {
	StorageDir    string        // Optional, defaults to $TMPDIR/devnet-versions
	ReleasesURL   string        // Optional, defaults to DefaultReleasesURL
	DownloadURL   string        // Optional, defaults to DefaultDownloadURL
	HTTPClient    *http.Client  // Optional, defaults to a client without a global timeout
	LookupTimeout time.Duration // Optional, bounds the release lookup, defaults to 30s
	Logger        *slog.Logger  // Optional, defaults to slog.Default()
	GOOS          string        // Optional, defaults to runtime.GOOS
	GOARCH        string        // Optional, defaults to runtime.GOARCH
}

// Handler resolves Devnet versions to executables, downloading and unpacking
// release archives on first use. Installed versions are indexed in a sqlite
// database in the storage directory.
type Handler struct {
	DB            *sqlx.DB
	storageDir    string
	releasesURL   string
	downloadURL   string
	httpClient    *http.Client
	lookupTimeout time.Duration
	logger        *slog.Logger
	goos          string
	goarch        string

	mu sync.Mutex // Serializes installs
}

// DefaultStorageDir is where versions are installed unless configured otherwise.
func DefaultStorageDir() string {
	return filepath.Join(os.TempDir(), "devnet-versions")
}

// NewHandler creates the storage directory and opens the version index.
func NewHandler(config Config) (*Handler, error) {
	h := &Handler{
		storageDir:    config.StorageDir,
		releasesURL:   config.ReleasesURL,
		downloadURL:   strings.TrimSuffix(config.DownloadURL, "/"),
		httpClient:    config.HTTPClient,
		lookupTimeout: config.LookupTimeout,
		logger:        config.Logger,
		goos:          config.GOOS,
		goarch:        config.GOARCH,
	}
	if h.storageDir == "" {
		h.storageDir = DefaultStorageDir()
	}
	if h.releasesURL == "" {
		h.releasesURL = DefaultReleasesURL
	}
	if h.downloadURL == "" {
		h.downloadURL = DefaultDownloadURL
	}
	if h.httpClient == nil {
		h.httpClient = &http.Client{}
	}
	if h.lookupTimeout <= 0 {
		h.lookupTimeout = defaultLookupTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "VersionHandler")
	if h.goos == "" {
		h.goos = runtime.GOOS
	}
	if h.goarch == "" {
		h.goarch = runtime.GOARCH
	}

	if err := os.MkdirAll(h.storageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", filepath.Join(h.storageDir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open version index: %w", err)
	}
	if err := VersionDBInit(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize version index: %w", err)
	}
	h.DB = db
	return h, nil
}

// Close closes the version index.
func (h *Handler) Close() error {
	return h.DB.Close()
}

// StorageDir returns the directory versions are installed in.
func (h *Handler) StorageDir() string {
	return h.storageDir
}

// ListInstalled returns every indexed version, oldest install first.
func (h *Handler) ListInstalled() ([]InstalledVersion, error) {
	return VersionDBList(h.DB)
}

// GetExecutable returns the path of the Devnet executable for version, installing it
// from the release archive if it is not present locally. version is a release name
// such as "v0.5.1".
func (h *Handler) GetExecutable(ctx context.Context, version string) (string, error) {
	if err := validateVersion(version); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	versionDir := filepath.Join(h.storageDir, version)
	executable := filepath.Join(versionDir, ExecutableName)
	if _, err := os.Stat(executable); err == nil {
		if err := h.ensureIndexed(version, executable); err != nil {
			return "", err
		}
		return executable, nil
	}

	archiveURL, err := h.archiveURL(ctx, version)
	if err != nil {
		return "", err
	}

	h.logger.Info("Downloading Devnet", "version", version, "url", archiveURL)
	archivePath, err := h.download(ctx, archiveURL, versionDir)
	if err != nil {
		return "", err
	}
	if err := ExtractTarGz(archivePath, versionDir); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}
	if err := os.Remove(archivePath); err != nil {
		h.logger.Warn("Failed to remove archive", "path", archivePath, "error", err)
	}

	if _, err := os.Stat(executable); err != nil {
		return "", fmt.Errorf("archive %s does not contain %s: %w", archiveURL, ExecutableName, err)
	}
	if err := os.Chmod(executable, 0755); err != nil {
		return "", fmt.Errorf("failed to make %s executable: %w", executable, err)
	}

	err = VersionDBUpsert(h.DB, InstalledVersion{
		Version:     version,
		Executable:  executable,
		ArchiveURL:  archiveURL,
		InstalledAt: time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to index version %s: %w", version, err)
	}

	h.logger.Info("Installed Devnet", "version", version, "executable", executable)
	return executable, nil
}

// ensureIndexed records an executable that was installed without going through this index.
func (h *Handler) ensureIndexed(version, executable string) error {
	installed, err := VersionDBGet(h.DB, version)
	if err != nil {
		return fmt.Errorf("failed to read version index: %w", err)
	}
	if installed != nil {
		return nil
	}
	return VersionDBUpsert(h.DB, InstalledVersion{
		Version:     version,
		Executable:  executable,
		InstalledAt: time.Now().Unix(),
	})
}

// Uninstall removes an installed version from disk and from the index.
func (h *Handler) Uninstall(version string) error {
	if err := validateVersion(version); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(h.storageDir, version)); err != nil {
		return fmt.Errorf("failed to remove version %s: %w", version, err)
	}
	return VersionDBDelete(h.DB, version)
}

// validateVersion rejects names that would escape the storage directory.
func validateVersion(version string) error {
	if version == "" || version == "." || version == ".." || strings.ContainsAny(version, `/\`) {
		return fmt.Errorf("invalid version %q", version)
	}
	return nil
}

type release struct {
	Name    string `json:"name"`
	TagName string `json:"tag_name"`
}

// archiveURL checks that version is published and returns the archive matching this host.
func (h *Handler) archiveURL(ctx context.Context, version string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.releasesURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to list releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &GithubError{Message: resp.Status, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read releases: %w", err)
	}
	var releases []release
	if err := json.Unmarshal(body, &releases); err != nil {
		return "", &GithubError{Message: fmt.Sprintf("Invalid response: %s", string(body)), StatusCode: resp.StatusCode}
	}

	published := lo.ContainsBy(releases, func(r release) bool {
		return r.Name == version || r.TagName == version
	})
	if !published {
		return "", newVersionNotFoundError(h.releasesURL)
	}

	target, err := TargetTriple(h.goos, h.goarch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s-%s.tar.gz", h.downloadURL, version, ExecutableName, target), nil
}

// TargetTriple maps a Go OS and architecture to the suffix of Devnet release archives.
func TargetTriple(goos, goarch string) (string, error) {
	var arch string
	switch goarch {
	case "arm64":
		arch = "aarch64"
	case "amd64":
		arch = "x86_64"
	default:
		return "", fmt.Errorf("%w: incompatible architecture %s", ErrIncompatiblePlatform, goarch)
	}

	var platform string
	switch goos {
	case "linux":
		platform = "unknown-linux-gnu"
	case "darwin":
		platform = "apple-darwin"
	default:
		return "", fmt.Errorf("%w: %s", ErrIncompatiblePlatform, goos)
	}

	return arch + "-" + platform, nil
}

// download stores the archive at url in dir and returns its path.
func (h *Handler) download(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", &GithubError{Message: fmt.Sprintf("Not found: %s", url), StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return "", &GithubError{Message: resp.Status, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	archivePath := filepath.Join(dir, archiveFileName)
	if err := writeFile(archivePath, resp.Body, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", archivePath, err)
	}
	return archivePath, nil
}
