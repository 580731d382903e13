package versions

import (
	"errors"
	"fmt"
)

// ErrIncompatiblePlatform is returned when no prebuilt Devnet exists for the host OS or architecture.
var ErrIncompatiblePlatform = errors.New("incompatible platform")

// GithubError reports a failed or unexpected answer from the release distribution point.
type GithubError struct {
	Message    string
	StatusCode int
}

// Error implements the error interface
func (e *GithubError) Error() string {
	return e.Message
}

func newVersionNotFoundError(releasesURL string) *GithubError {
	return &GithubError{
		Message: fmt.Sprintf("Version not found. If specifying an exact version, make sure you prepended the 'v' and that the version really exists in %s.", releasesURL),
	}
}

// IsGithubError checks if an error came from the release lookup or download
func IsGithubError(err error) bool {
	var githubErr *GithubError
	return errors.As(err, &githubErr)
}
