package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// sysClassInput lists the kernel input handlers
	sysClassInput = "/sys/class/input"
	// devInput holds the event device nodes
	devInput = "/dev/input"

	nodeLookupAttempts = 10
	nodeLookupInterval = 20 * time.Millisecond
)

// findNode returns the /dev/input/eventN node of the device named name.
// A freshly created uinput device may take a moment to show up in sysfs.
func findNode(name string) (string, error) {
	for attempt := 0; ; attempt++ {
		node, err := scanNodes(name)
		if err == nil || attempt+1 >= nodeLookupAttempts {
			return node, err
		}
		time.Sleep(nodeLookupInterval)
	}
}

func scanNodes(name string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(sysClassInput, "event*"))
	if err != nil {
		return "", err
	}

	var found []string
	for _, dir := range matches {
		data, err := os.ReadFile(filepath.Join(dir, "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == name {
			found = append(found, filepath.Base(dir))
		}
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no event node for %q", name)
	}

	// The newest node wins if an old device with the same name lingers
	sort.Slice(found, func(i, j int) bool {
		return eventNumber(found[i]) < eventNumber(found[j])
	})
	return filepath.Join(devInput, found[len(found)-1]), nil
}

func eventNumber(base string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(base, "event"))
	if err != nil {
		return -1
	}
	return n
}
