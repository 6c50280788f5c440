package ps

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
)

const DefaultRemote = "origin"

type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds the credentials used against a remote repository.
type RemoteAuth struct {
	Type     AuthType
	Token    string
	Username string
	Password string
}

// TokenAuth authenticates with a bearer-style access token.
func TokenAuth(token string) *RemoteAuth {
	if token == "" {
		return nil
	}
	return &RemoteAuth{Type: AuthTypeToken, Token: token}
}

func (auth *RemoteAuth) authMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case AuthTypeNone, "":
		return nil, nil
	case AuthTypeToken:
		// hosting services accept any non-empty username alongside a token
		return &http.BasicAuth{Username: "git", Password: auth.Token}, nil
	case AuthTypeBasic:
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

// AddRemote adds a named remote to the repository
func (p *Persistence) AddRemote(name, url string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	_, err := p.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote '%s': %w", name, err)
	}
	return nil
}

// HasRemote reports whether a remote with the given name is configured.
func (p *Persistence) HasRemote(name string) bool {
	if !p.IsInitialized() {
		return false
	}
	_, err := p.repo.Remote(name)
	return err == nil
}

// Push publishes the current branch to the remote.
func (p *Persistence) Push(remoteName string, auth *RemoteAuth) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = DefaultRemote
	}

	headRef, err := p.repo.Head()
	if err != nil {
		// nothing committed, nothing to publish
		return nil
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	branch := headRef.Name()
	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", branch, branch))

	err = p.repo.Push(&git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to '%s': %w", remoteName, err)
	}
	return nil
}

// Pull fast-forwards the current branch from the remote.
func (p *Persistence) Pull(remoteName string, auth *RemoteAuth) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = DefaultRemote
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	err = wt.Pull(&git.PullOptions{
		RemoteName: remoteName,
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to pull from '%s': %w", remoteName, err)
	}
	return nil
}
