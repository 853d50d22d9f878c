package videoreader

import "strings"

// Backend identifies the engine backend that serves a resource.
type Backend uint8

const (
	BackendFFmpeg Backend = iota // files, network streams, capture devices
	BackendPylon                 // Basler cameras
	BackendGalaxy                // Daheng Galaxy cameras
	backendCount
)

// backendMeta contains static metadata about a backend.
type backendMeta struct {
	Name        string
	Seekable    bool     // frame count known, fast skipping is cheap
	Reconfigure bool     // accepts Set while streaming
	Extras      []string // extras keys the backend understands, nil = any, empty = none
}

// Static metadata table - indexed by Backend.
var backendInfo = [backendCount]backendMeta{
	BackendFFmpeg: {"ffmpeg", true, false, nil},
	BackendPylon:  {"pylon", false, true, []string{}},
	BackendGalaxy: {"galaxy", false, true, []string{"exposure", "gain"}},
}

// BackendFor returns the backend the engine selects for path.
// Selection follows the engine: "pylon" and "galaxy://..." address cameras,
// everything else goes to FFmpeg.
func BackendFor(path string) Backend {
	switch {
	case path == "pylon":
		return BackendPylon
	case strings.HasPrefix(path, "galaxy://"):
		return BackendGalaxy
	default:
		return BackendFFmpeg
	}
}

// String returns the backend name.
func (b Backend) String() string {
	if b >= backendCount {
		return "unknown"
	}
	return backendInfo[b].Name
}

// Seekable reports whether the backend reads offline, seekable media.
func (b Backend) Seekable() bool {
	if b >= backendCount {
		return false
	}
	return backendInfo[b].Seekable
}

// CanReconfigure reports whether the backend supports Reader.Set.
func (b Backend) CanReconfigure() bool {
	if b >= backendCount {
		return false
	}
	return backendInfo[b].Reconfigure
}

// UnknownExtras returns the requested keys the backend is not known to
// produce. The engine has the final say; this is only used for warnings.
func (b Backend) UnknownExtras(keys []string) []string {
	if b >= backendCount || backendInfo[b].Extras == nil {
		return nil
	}
	var unknown []string
	for _, k := range keys {
		found := false
		for _, known := range backendInfo[b].Extras {
			if k == known {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, k)
		}
	}
	return unknown
}
