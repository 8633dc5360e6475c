package pyresolve

import (
	"strings"

	"github.com/zhigao/pymortem/corefile"
)

// identifyModules scans modules in directory order, classifying the first
// module whose path contains "libpython" as the library and stopping the
// scan there. A consequence of stopping early is that the executable is
// only found if it was enumerated before the library; this matches observed
// module orderings closely enough that it is left as-is rather than made
// order-independent.
func (r *Resolver) identifyModules() (libMod, exeMod *corefile.Module) {
	modules := r.moduleDir.Modules()

	var libIdx, exeIdx = -1, -1
	for i := range modules {
		path := modules[i].Path
		if strings.Contains(path, "libpython") {
			libIdx = i
			r.libPath = path
			break
		}
		if strings.Contains(path, "/python") || strings.HasPrefix(path, "python") {
			exeIdx = i
			r.exePath = path
		}
	}

	if libIdx >= 0 {
		switch {
		case strings.Contains(r.libPath, "libpython3"):
			r.version = VersionV3
		case strings.Contains(r.libPath, "libpython2"):
			r.version = VersionV2
		}
		libMod = &modules[libIdx]
	}

	if exeIdx >= 0 {
		exeMod = &modules[exeIdx]
		if strings.Contains(r.exePath, "python3") {
			switch r.version {
			case VersionV2:
				warnf("version derived from executable conflicts with one from library")
				r.version = VersionUnknown
			case VersionV3:
			case VersionUnknown:
				r.version = VersionV3
			}
		}
		if strings.Contains(r.exePath, "python2") {
			switch r.version {
			case VersionV2:
			case VersionV3:
				warnf("version derived from executable conflicts with one from library")
				r.version = VersionUnknown
			case VersionUnknown:
				r.version = VersionV2
			}
		}
	}

	return libMod, exeMod
}
