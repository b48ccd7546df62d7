package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	indexFile = "checkpoint"
	// ModelFile keeps model hyperparameters next to checkpoints
	ModelFile = "model.yml"
)

// Index lists kept checkpoints, the newest is the last
type Index struct {
	Latest string   `yaml:"latest"`
	All    []string `yaml:"all"`
	Next   int      `yaml:"next"`
}

// Manager writes numbered checkpoints into a dir and keeps only the newest ones
type Manager struct {
	Dir       string
	MaxToKeep int

	index Index
}

//NewManager creates manager, reads the index if it exists
func NewManager(dir string, maxToKeep int) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("No checkpoint dir")
	}
	res := &Manager{Dir: dir, MaxToKeep: maxToKeep, index: Index{Next: 1}}
	bytes, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return nil, errors.Wrap(err, "Can't read checkpoint index")
	}
	if err := yaml.Unmarshal(bytes, &res.index); err != nil {
		return nil, errors.Wrap(err, "Can't decode checkpoint index")
	}
	if res.index.Next < 1 {
		res.index.Next = len(res.index.All) + 1
	}
	return res, nil
}

// Save writes next checkpoint, returns its path
func (m *Manager) Save(c *Checkpoint) (string, error) {
	if err := os.MkdirAll(m.Dir, os.ModePerm); err != nil {
		return "", errors.Wrapf(err, "Can't create %s", m.Dir)
	}
	name := fmt.Sprintf("ckpt-%d.gob", m.index.Next)
	if err := Write(filepath.Join(m.Dir, name), c); err != nil {
		return "", err
	}
	m.index.Next++
	m.index.All = append(m.index.All, name)
	m.index.Latest = name
	if m.MaxToKeep > 0 {
		for len(m.index.All) > m.MaxToKeep {
			old := filepath.Join(m.Dir, m.index.All[0])
			if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
				cmdapp.Log.Warnf("Can't remove %s: %v", old, err)
			}
			m.index.All = m.index.All[1:]
		}
	}
	if err := m.writeIndex(); err != nil {
		return "", err
	}
	return filepath.Join(m.Dir, name), nil
}

func (m *Manager) writeIndex() error {
	bytes, err := yaml.Marshal(&m.index)
	if err != nil {
		return errors.Wrap(err, "Can't encode checkpoint index")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(m.Dir, indexFile), bytes, 0644), "Can't write checkpoint index")
}

// Latest returns path of the newest checkpoint or "" if none
func (m *Manager) Latest() string {
	if m.index.Latest == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.index.Latest)
}

// Checkpoints returns paths of the kept checkpoints
func (m *Manager) Checkpoints() []string {
	res := make([]string, len(m.index.All))
	for i, n := range m.index.All {
		res[i] = filepath.Join(m.Dir, n)
	}
	return res
}

// Restore reads the newest checkpoint
func (m *Manager) Restore() (*Checkpoint, error) {
	l := m.Latest()
	if l == "" {
		return nil, errors.Errorf("No checkpoints in %s", m.Dir)
	}
	return Read(l)
}

// WriteModelConfig saves data as yaml into dir
func WriteModelConfig(dir string, data interface{}) error {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "Can't encode model config")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, ModelFile), bytes, 0644), "Can't write model config")
}

// ReadModelConfig loads yaml data saved by WriteModelConfig
func ReadModelConfig(dir string, data interface{}) error {
	bytes, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return errors.Wrap(err, "Can't read model config")
	}
	return errors.Wrap(yaml.Unmarshal(bytes, data), "Can't decode model config")
}

var epochDir = regexp.MustCompile(`^epoch_(\d+)$`)

// EpochDir returns checkpoint dir of the epoch
func EpochDir(root string, epoch int) string {
	return filepath.Join(root, "epoch_"+strconv.Itoa(epoch))
}

// LatestEpoch finds the epoch_<n> dir with the biggest n holding a checkpoint.
// Returns 0 if there is none.
func LatestEpoch(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "Can't list %s", root)
	}
	var epochs []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := epochDir.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), indexFile)); err == nil {
			epochs = append(epochs, n)
		}
	}
	if len(epochs) == 0 {
		return 0, nil
	}
	sort.Ints(epochs)
	return epochs[len(epochs)-1], nil
}
