package ps

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/nickyhof/storeadapter/core"
)

var ErrPerspectiveExists = errors.New("perspective already exists")

func perspectivePath(name string) string {
	return path.Join(metaDir, "perspectives", name+".json")
}

// CreatePerspective stores a perspective definition. The target database
// must already exist.
func (persistence *Persistence) CreatePerspective(perspective core.Perspective, identity core.Identity) (Transaction, error) {
	if perspective.Name == "" {
		return Transaction{}, fmt.Errorf("perspective name is required")
	}
	if _, err := persistence.GetPerspective(perspective.Name); err == nil {
		return Transaction{}, fmt.Errorf("%s: %w", perspective.Name, ErrPerspectiveExists)
	}
	if _, err := persistence.GetDatabase(perspective.Database); err != nil {
		return Transaction{}, err
	}

	data, err := json.Marshal(perspective)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to marshal perspective: %w", err)
	}
	return persistence.WriteFileDirect(perspectivePath(perspective.Name), data, identity, "Creating perspective "+perspective.Name)
}

func (persistence *Persistence) GetPerspective(name string) (*core.Perspective, error) {
	data, err := persistence.ReadFileDirect(perspectivePath(name))
	if err != nil {
		return nil, fmt.Errorf("perspective %s does not exist: %w", name, err)
	}

	var p core.Perspective
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal perspective: %w", err)
	}
	return &p, nil
}

func (persistence *Persistence) ListPerspectives() []string {
	entries, err := persistence.ListEntriesDirect(path.Join(metaDir, "perspectives"))
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir && strings.HasSuffix(entry.Name, ".json") {
			names = append(names, strings.TrimSuffix(entry.Name, ".json"))
		}
	}
	sort.Strings(names)
	return names
}

func (persistence *Persistence) DropPerspective(name string, identity core.Identity) (Transaction, error) {
	if _, err := persistence.GetPerspective(name); err != nil {
		return Transaction{}, err
	}
	return persistence.DeletePathDirect([]string{perspectivePath(name)}, identity, "Dropping perspective "+name)
}
