package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when attempting to create a duplicate resource
	ErrDuplicate = errors.New("resource already exists")

	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")

	// ErrRateLimit is returned when GitHub API rate limit is exceeded
	ErrRateLimit = errors.New("github api rate limit exceeded")

	// ErrGitHubAPI is returned when GitHub API returns an error
	ErrGitHubAPI = errors.New("github api error")

	// ErrDatabase is returned when a database operation fails
	ErrDatabase = errors.New("database error")
)

// RepositoryError represents an error related to repository operations
type RepositoryError struct {
	Owner string
	Name  string
	Op    string
	Err   error
}

func (e *RepositoryError) Error() string {
	if e.Owner == "" || e.Name == "" {
		return fmt.Sprintf("repository operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("repository operation %s failed for %s/%s: %v", e.Op, e.Owner, e.Name, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError
func NewRepositoryError(owner, name, op string, err error) error {
	return &RepositoryError{
		Owner: owner,
		Name:  name,
		Op:    op,
		Err:   err,
	}
}

// GFIError represents an error related to GFI prediction operations
type GFIError struct {
	Owner  string
	Name   string
	Number int
	Op     string
	Err    error
}

func (e *GFIError) Error() string {
	if e.Number == 0 {
		return fmt.Sprintf("gfi operation %s failed for %s/%s: %v", e.Op, e.Owner, e.Name, e.Err)
	}
	return fmt.Sprintf("gfi operation %s failed for %s/%s#%d: %v", e.Op, e.Owner, e.Name, e.Number, e.Err)
}

func (e *GFIError) Unwrap() error {
	return e.Err
}

// NewGFIError creates a new GFIError
func NewGFIError(owner, name string, number int, op string, err error) error {
	return &GFIError{
		Owner:  owner,
		Name:   name,
		Number: number,
		Op:     op,
		Err:    err,
	}
}

// DatabaseError represents a database operation error
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database operation %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(op string, err error) error {
	return &DatabaseError{
		Op:  op,
		Err: err,
	}
}

// GitHubError represents a GitHub API error
type GitHubError struct {
	Op      string
	Request string
	Err     error
}

func (e *GitHubError) Error() string {
	return fmt.Sprintf("github api operation %s failed for request %s: %v", e.Op, e.Request, e.Err)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// NewGitHubError creates a new GitHubError
func NewGitHubError(op, request string, err error) error {
	return &GitHubError{
		Op:      op,
		Request: request,
		Err:     err,
	}
}
