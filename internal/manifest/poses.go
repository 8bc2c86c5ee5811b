package manifest

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

// Library maps pose names to authored channel-weight tables. Weights above
// 1.0 let a pose dominate a channel the ambient path also drives.
type Library struct {
	mu    sync.RWMutex
	poses map[string]map[string]float64
}

// DefaultLibrary returns the compiled-in poses. A poses file merges over
// these; same name wins.
func DefaultLibrary() *Library {
	return &Library{poses: map[string]map[string]float64{
		"smile": {
			"content":   2.4,
			"excited":   1.2,
			"browRaise": 0.5,
		},
		"frown": {
			"concerned": 2.2,
			"scared":    0.8,
		},
		"surprise": {
			"browRaise": 2.6,
			"viseme_oh": 1.5,
		},
		"thinking": {
			"concerned": 1.4,
			"browRaise": 1.2,
			"headTilt":  1.8,
		},
		"nod": {
			"headNod": 2.5,
		},
	}}
}

// Resolve returns a copy of the named pose's weight table. The copy keeps
// the library's authored tables immutable no matter what callers do with
// the result.
func (l *Library) Resolve(name string) (map[string]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	weights, ok := l.poses[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPose, name)
	}
	out := make(map[string]float64, len(weights))
	for ch, w := range weights {
		out[ch] = w
	}
	return out, nil
}

// Names returns the pose names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.poses))
	for name := range l.poses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add registers or replaces a pose.
func (l *Library) Add(name string, weights map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.poses[name] = weights
}

// posesFile is the on-disk shape:
//
//	poses:
//	  smile:
//	    content: 2.4
//	    browRaise: 0.6
type posesFile struct {
	Poses map[string]map[string]float64 `yaml:"poses"`
}

// LoadLibrary reads a poses YAML file, validates every referenced channel
// against the vocabulary, and merges the result over the defaults. A nil
// vocab skips validation.
func LoadLibrary(path string, vocab *Vocabulary) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file posesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	lib := DefaultLibrary()
	for name, weights := range file.Poses {
		if len(weights) == 0 {
			return nil, fmt.Errorf("pose %q: no channel weights", name)
		}
		if vocab != nil {
			if err := vocab.ValidateWeights(weights); err != nil {
				return nil, fmt.Errorf("pose %q: %w", name, err)
			}
		}
		lib.Add(name, weights)
	}
	return lib, nil
}
