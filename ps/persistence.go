package ps

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")
	ErrNotFound       = errors.New("not found")
)

type Persistence struct {
	repo         *git.Repository
	mu           sync.RWMutex
	isMemoryMode bool
}

// CloneOptions seeds a new file persistence from a remote repository.
type CloneOptions struct {
	URL  string
	Auth *RemoteAuth
}

// IsInitialized returns true if the persistence layer has a valid repository
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// IsMemoryMode reports whether the repository lives only in memory.
func (p *Persistence) IsMemoryMode() bool {
	return p.isMemoryMode
}

// RLock acquires a read lock for concurrent read operations
func (p *Persistence) RLock() {
	p.mu.RLock()
}

// RUnlock releases the read lock
func (p *Persistence) RUnlock() {
	p.mu.RUnlock()
}

// Lock acquires a write lock for exclusive write operations
func (p *Persistence) Lock() {
	p.mu.Lock()
}

// Unlock releases the write lock
func (p *Persistence) Unlock() {
	p.mu.Unlock()
}

func NewMemoryPersistence() (*Persistence, error) {
	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(memfs.New()))
	if err != nil {
		return nil, err
	}

	return &Persistence{repo: repo, isMemoryMode: true}, nil
}

// NewFilePersistence opens the repository under baseDir, creating it when
// missing. With clone set and no repository present yet, the directory is
// populated from the remote instead.
func NewFilePersistence(baseDir string, clone *CloneOptions) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	_, statErr := os.Stat(fs.Root())
	exists := statErr == nil

	var repo *git.Repository
	switch {
	case exists:
		repo, err = git.Open(storer, wt)
	case clone != nil:
		authMethod, authErr := clone.Auth.authMethod()
		if authErr != nil {
			return nil, fmt.Errorf("failed to configure auth: %w", authErr)
		}
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL:  clone.URL,
			Auth: authMethod,
		})
		if err != nil {
			err = fmt.Errorf("failed to clone %s: %w", clone.URL, err)
		}
	default:
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	}
	if err != nil {
		return nil, err
	}

	return &Persistence{repo: repo}, nil
}
