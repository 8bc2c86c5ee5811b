// Package manifest holds the animation channel vocabulary: every channel
// name the core will accept from producers, its category, and availability
// as reported by the rendering engine after asset load. Producers are
// validated against it at the boundary so unknown names are rejected there
// instead of being silently ignored deep in rendering.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/tjamescouch/personas/internal/viseme"
)

// Channel categories.
const (
	CategoryViseme     = "viseme"
	CategoryExpression = "expression"
	CategoryEye        = "eye"
	CategoryBody       = "body"
	CategoryAmbient    = "ambient"
)

// AmbientChannel carries the pose machine's ambient motion scale to the
// rendering engine.
const AmbientChannel = "ambient"

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrUnknownPose    = errors.New("unknown pose")
)

// Channel describes one animation control point. Availability defaults to
// true; an engine may report false for channels its current avatar asset
// lacks.
type Channel struct {
	Name      string `yaml:"name" json:"name"`
	Category  string `yaml:"category" json:"category"`
	Available *bool  `yaml:"available,omitempty" json:"available,omitempty"`
}

// AvailableValue reports whether the channel is usable on the current asset.
func (c Channel) AvailableValue() bool {
	if c.Available == nil {
		return true
	}
	return *c.Available
}

// Report is a capability manifest from the rendering engine, reported once
// after asset load. The core functions without one; when present it extends
// or overrides the compiled-in vocabulary.
type Report struct {
	Avatar   string    `yaml:"avatar,omitempty" json:"avatar,omitempty"`
	Channels []Channel `yaml:"channels" json:"channels"`
}

// Vocabulary is the validated channel-name set. Merge may be called while
// boundary handlers validate concurrently, so reads take the read lock.
type Vocabulary struct {
	mu       sync.RWMutex
	avatar   string
	channels map[string]Channel
}

// Default returns the compiled-in vocabulary: every channel the mapper can
// produce plus the pose-facing body channels and the ambient scale.
func Default() *Vocabulary {
	v := &Vocabulary{channels: make(map[string]Channel)}
	for _, name := range viseme.MouthChannels() {
		v.channels[name] = Channel{Name: name, Category: CategoryViseme}
	}
	for _, name := range viseme.ExpressionChannels() {
		v.channels[name] = Channel{Name: name, Category: CategoryExpression}
	}
	v.channels[viseme.ChannelBlink] = Channel{Name: viseme.ChannelBlink, Category: CategoryEye}
	for _, name := range []string{"headTilt", "headNod", "leanIn"} {
		v.channels[name] = Channel{Name: name, Category: CategoryBody}
	}
	v.channels[AmbientChannel] = Channel{Name: AmbientChannel, Category: CategoryAmbient}
	return v
}

// Validate reports whether name is in the vocabulary.
func (v *Vocabulary) Validate(name string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, ok := v.channels[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return nil
}

// ValidateWeights checks every channel name in a weight table. The first
// unknown name fails the whole table; partial accepts would leave a pose
// half-applied.
func (v *Vocabulary) ValidateWeights(weights map[string]float64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for name := range weights {
		if _, ok := v.channels[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
		}
	}
	return nil
}

// Category returns a channel's category.
func (v *Vocabulary) Category(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ch, ok := v.channels[name]
	return ch.Category, ok
}

// Merge applies a capability report: new channels extend the vocabulary,
// existing names are overridden (category and availability).
func (v *Vocabulary) Merge(rep Report) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if rep.Avatar != "" {
		v.avatar = rep.Avatar
	}
	for _, ch := range rep.Channels {
		if ch.Name == "" {
			continue
		}
		v.channels[ch.Name] = ch
	}
}

// Avatar returns the identifier from the last merged report, if any.
func (v *Vocabulary) Avatar() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.avatar
}

// Channels returns the vocabulary sorted by name, for diagnostics endpoints.
func (v *Vocabulary) Channels() []Channel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Channel, 0, len(v.channels))
	for _, ch := range v.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known channels.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.channels)
}

// LoadReport reads a capability manifest from a YAML file.
func LoadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return rep, nil
}
