package ps

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/storeadapter/core"
)

// TreeChange represents a single change to apply to a tree
type TreeChange struct {
	Path     string // e.g. "db/table/key"
	BlobHash plumbing.Hash
	IsDelete bool
}

// TreeEntry represents a directory entry from the Git tree
type TreeEntry struct {
	Name  string
	IsDir bool
}

// createBlob creates a blob object directly in the object store without filesystem I/O
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}
	return hash, nil
}

// headTree returns the tree of HEAD, or nil when nothing was committed yet.
func (p *Persistence) headTree() (*object.Tree, error) {
	headRef, err := p.repo.Head()
	if err != nil {
		return nil, nil
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get head commit: %w", err)
	}
	return commit.Tree()
}

func (p *Persistence) currentTreeHash() (plumbing.Hash, error) {
	tree, err := p.headTree()
	if err != nil || tree == nil {
		return plumbing.ZeroHash, err
	}
	return tree.Hash, nil
}

func (p *Persistence) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(p.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

func (p *Persistence) storeTree(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	list := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry)
	}

	// git orders directories as if their names carried a trailing slash
	sort.Slice(list, func(i, j int) bool {
		nameI, nameJ := list[i].Name, list[j].Name
		if list[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if list[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	obj := p.repo.Storer.NewEncodedObject()
	if err := (&object.Tree{Entries: list}).Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}

// batchUpdateTree applies all changes to a tree, rebuilding each touched
// subtree once. A subtree left empty is removed from its parent.
func (p *Persistence) batchUpdateTree(rootTreeHash plumbing.Hash, changes []TreeChange) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootTreeHash, nil
	}

	entries, err := p.getTreeEntries(rootTreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	grouped := make(map[string][]TreeChange)
	for _, change := range changes {
		dir, rest, nested := strings.Cut(change.Path, "/")
		if nested {
			grouped[dir] = append(grouped[dir], TreeChange{Path: rest, BlobHash: change.BlobHash, IsDelete: change.IsDelete})
			continue
		}
		if change.IsDelete {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Regular, Hash: change.BlobHash}
		}
	}

	for dir, subChanges := range grouped {
		subTreeHash := plumbing.ZeroHash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}

		newSubTreeHash, err := p.batchUpdateTree(subTreeHash, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		if newSubTreeHash == plumbing.ZeroHash {
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{Name: dir, Mode: filemode.Dir, Hash: newSubTreeHash}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}
	return p.storeTree(entries)
}

// createCommitDirect creates a commit object and moves the current branch to it
func (p *Persistence) createCommitDirect(treeHash plumbing.Hash, identity core.Identity, message string) (Transaction, error) {
	if treeHash == plumbing.ZeroHash {
		var err error
		if treeHash, err = p.storeTree(nil); err != nil {
			return Transaction{}, err
		}
	}

	var parentHashes []plumbing.Hash
	headRef, err := p.repo.Head()
	if err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parentHashes,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	branchName := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branchName = headRef.Name()
	} else if symbolic, err := p.repo.Storer.Reference(plumbing.HEAD); err == nil && symbolic.Type() == plumbing.SymbolicReference {
		branchName = symbolic.Target()
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(branchName, commitHash)); err != nil {
		return Transaction{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Transaction{
		Id:      commitHash.String(),
		Author:  identity.String(),
		Message: message,
		When:    sig.When,
	}, nil
}

// applyChanges writes one commit carrying every change and syncs the worktree.
func (p *Persistence) applyChanges(changes []TreeChange, identity core.Identity, message string) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	currentTree, err := p.currentTreeHash()
	if err != nil {
		return Transaction{}, err
	}

	newTree, err := p.batchUpdateTree(currentTree, changes)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	txn, err := p.createCommitDirect(newTree, identity, message)
	if err != nil {
		return Transaction{}, err
	}

	if err := p.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}
	return txn, nil
}

// syncWorktree updates the worktree filesystem to match HEAD.
// Memory mode reads straight from the object store and skips it.
func (p *Persistence) syncWorktree() error {
	if p.isMemoryMode {
		return nil
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return err
	}

	tree, err := p.headTree()
	if err != nil {
		return err
	}

	// reset refuses to remove the base dir, so an empty tree is cleaned by hand
	if tree == nil || len(tree.Entries) == 0 {
		entries, err := wt.Filesystem.ReadDir("/")
		if err != nil {
			return nil
		}
		for _, entry := range entries {
			if entry.Name() != ".git" {
				wt.Filesystem.Remove(entry.Name())
			}
		}
		return nil
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: headRef.Hash(),
	})
}

// WriteFileDirect writes a single file to the repository
func (p *Persistence) WriteFileDirect(filePath string, data []byte, identity core.Identity, message string) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	blobHash, err := p.createBlob(data)
	if err != nil {
		return Transaction{}, err
	}
	return p.applyChanges([]TreeChange{{Path: filePath, BlobHash: blobHash}}, identity, message)
}

// DeletePathDirect deletes files or whole directories in one commit
func (p *Persistence) DeletePathDirect(paths []string, identity core.Identity, message string) (Transaction, error) {
	changes := make([]TreeChange, 0, len(paths))
	for _, filePath := range paths {
		changes = append(changes, TreeChange{Path: filePath, IsDelete: true})
	}
	return p.applyChanges(changes, identity, message)
}

// ReadFileDirect reads a file from the HEAD tree
func (p *Persistence) ReadFileDirect(filePath string) ([]byte, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	tree, err := p.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", filePath, ErrNotFound)
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, ErrNotFound)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}
	return []byte(content), nil
}

// ListEntriesDirect lists directory entries of the HEAD tree. A missing
// directory lists as empty.
func (p *Persistence) ListEntriesDirect(dirPath string) ([]TreeEntry, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	tree, err := p.headTree()
	if err != nil || tree == nil {
		return nil, err
	}

	if dirPath != "" && dirPath != "." {
		tree, err = tree.Tree(path.Clean(dirPath))
		if err != nil {
			return nil, nil
		}
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, TreeEntry{
			Name:  entry.Name,
			IsDir: entry.Mode == filemode.Dir,
		})
	}
	return entries, nil
}
