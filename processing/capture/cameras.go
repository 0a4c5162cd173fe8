package capture

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
)

var dshowVideoDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the video inputs in index order.
func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// ffmpeg always exits non-zero for the dummy input
		_ = cmd.Run()

		return parseDshowDevices(stderr.String()), nil
	}

	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []string{"/dev/video0"}, nil
	}
	sortVideoNodes(matches)
	return matches, nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowVideoDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}

// sortVideoNodes orders /dev/videoN numerically so /dev/video10 follows /dev/video9.
func sortVideoNodes(nodes []string) {
	sort.Slice(nodes, func(i, j int) bool {
		var a, b int
		fmt.Sscanf(filepath.Base(nodes[i]), "video%d", &a)
		fmt.Sscanf(filepath.Base(nodes[j]), "video%d", &b)
		return a < b
	})
}
