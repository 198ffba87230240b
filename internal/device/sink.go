package device

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bnema/evdevkm/internal/alias"
	"github.com/bnema/evdevkm/internal/logger"
	"github.com/bnema/evdevkm/internal/switcher"
	evdev "github.com/holoplot/go-evdev"
)

// SinkPrefix starts the name of every virtual device evdevkm creates
const SinkPrefix = "evdevkm-"

// uinput names are limited to 80 bytes including the terminator
const maxSinkName = 79

// Sink is a virtual device receiving the events relayed to one target
type Sink struct {
	target switcher.Target
	dev    *uinputDevice
	node   string
	alias  string
}

// SinkName returns the virtual device name for a source, e.g.
// "evdevkm-guest event3 AT Translated Set 2 keyboard"
func SinkName(sourcePath, sourceName string, target switcher.Target) string {
	name := fmt.Sprintf("%s%s %s %s", SinkPrefix, target.Label(), filepath.Base(sourcePath), sourceName)
	if len(name) > maxSinkName {
		name = strings.ToValidUTF8(name[:maxSinkName], "")
	}
	return name
}

// IsSinkName reports whether name belongs to a virtual device created by evdevkm
func IsSinkName(name string) bool {
	return strings.HasPrefix(name, SinkPrefix+switcher.Host.Label()+" ") ||
		strings.HasPrefix(name, SinkPrefix+switcher.Guest.Label()+" ")
}

// newSink clones the source capabilities, axis ranges included, into a
// virtual device. Alias and ownership failures are logged; the sink stays
// usable without them.
func newSink(src *Source, target switcher.Target, opts Options) (*Sink, error) {
	name := SinkName(src.path, src.name, target)
	dev, err := createUinput(name, src.caps)
	if err != nil {
		return nil, fmt.Errorf("%w %s for %s: %v", ErrSinkCreateFailed, target.Label(), src.path, err)
	}

	s := &Sink{target: target, dev: dev}
	log := logger.With("device", src.path, "sink", target.Label())

	node, err := findNode(name)
	if err != nil {
		log.Warn("Virtual device node not found", "error", err)
		return s, nil
	}
	s.node = node
	log.Debug("Created virtual device", "node", node)

	if !opts.NoSymlink {
		publisher := alias.Publisher{Dir: opts.SymlinkDir}
		path, err := publisher.Publish(node, src.path, target.Label())
		if err != nil {
			log.Warn("Failed to publish alias", "error", err)
		} else {
			s.alias = path
			log.Info("Published alias", "alias", path, "node", node)
		}
	}

	if target == switcher.Guest && opts.GuestOwner != alias.NoOwner {
		if err := alias.Chown(node, opts.GuestOwner); err != nil {
			log.Warn("Failed to set guest device owner", "error", err)
		}
	}

	return s, nil
}

// Write relays one event to the virtual device
func (s *Sink) Write(ev *evdev.InputEvent) error {
	if err := s.dev.WriteOne(ev); err != nil {
		return fmt.Errorf("%w to %s: %v", ErrRelayWriteFailed, s.target.Label(), err)
	}
	return nil
}

// Node returns the sink's event device node, empty if it was not found
func (s *Sink) Node() string {
	return s.node
}

// Alias returns the published alias path, empty if none
func (s *Sink) Alias() string {
	return s.alias
}

// Close removes the alias and destroys the virtual device
func (s *Sink) Close() error {
	var cleanup cleanupStack
	cleanup.push(s.dev.Close)
	if s.alias != "" {
		path := s.alias
		cleanup.push(func() error { return alias.Remove(path) })
		s.alias = ""
	}
	return cleanup.unwind()
}
