package indexer

import "time"

// Phase identifies one of the eight ordered stages the Coordinator drives
// on a cold workspace load.
type Phase int

const (
	PhaseVersionDetect Phase = iota
	PhaseLibraryDiscovery
	PhaseProjectDefinitions
	PhaseStubDefinitions
	PhaseDependencyDefinitions
	PhaseMixinResolution
	PhaseReferences
	PhaseCompletionTrie
)

func (p Phase) String() string {
	switch p {
	case PhaseVersionDetect:
		return "version_detect"
	case PhaseLibraryDiscovery:
		return "library_discovery"
	case PhaseProjectDefinitions:
		return "project_definitions"
	case PhaseStubDefinitions:
		return "stub_definitions"
	case PhaseDependencyDefinitions:
		return "dependency_definitions"
	case PhaseMixinResolution:
		return "mixin_resolution"
	case PhaseReferences:
		return "references"
	case PhaseCompletionTrie:
		return "completion_trie"
	default:
		return "unknown"
	}
}

// phaseWeight is a guideline, not a contract: the percentage of the overall
// "indexing" progress token each phase contributes. Project definitions
// gets the largest share since it is normally the largest file set and the
// one a user is waiting on.
var phaseWeight = map[Phase]float64{
	PhaseVersionDetect:         2,
	PhaseLibraryDiscovery:      8,
	PhaseProjectDefinitions:    30,
	PhaseStubDefinitions:       15,
	PhaseDependencyDefinitions: 15,
	PhaseMixinResolution:       10,
	PhaseReferences:            15,
	PhaseCompletionTrie:        5,
}

// ProgressEvent is one phase's progress report. Percent is cumulative
// across the whole run (0-100), not just this phase's own share.
type ProgressEvent struct {
	Phase   Phase
	Label   string
	Percent float64
	Counter int
	Total   int
	Err     error
}

// ProgressSink receives ProgressEvents as the Coordinator advances through
// its phases. pkg/lspio implements this to forward events as MCP
// "indexing_progress" notifications.
type ProgressSink interface {
	Progress(ProgressEvent)
}

// NopSink discards every event. Used when no caller wants progress.
type NopSink struct{}

func (NopSink) Progress(ProgressEvent) {}

// Config configures a single Coordinator run.
type Config struct {
	// ProjectRoot is the workspace root to discover project *.rb files
	// under.
	ProjectRoot string

	// StubRoot is the root directory under which versioned stub
	// subdirectories live (e.g. "stubs/3.3/"). See pkg/stubs.ResolveStubDir.
	StubRoot string

	// DependencyRoot holds one subdirectory per external dependency, each
	// containing that dependency's *.rb source tree. See
	// pkg/stubs.DependencyLibraries.
	DependencyRoot string

	// LanguageVersion, if non-empty, overrides the version normally
	// detected from a `.ruby-version` marker in ProjectRoot.
	LanguageVersion string

	// Workers bounds definitions/references-pass parallelism. 0 lets the
	// worker pool auto-detect (poolsize.Optimal()).
	Workers int

	// Exclude lists additional doublestar glob patterns (relative to
	// ProjectRoot, forward-slash separated) to skip during project file
	// discovery, layered on top of DefaultExcludes.
	Exclude []string
}

// DefaultExcludes are directories a Ruby project conventionally never
// wants indexed as project source.
var DefaultExcludes = []string{
	".git/**",
	"tmp/**",
	"log/**",
	"vendor/**",
	"node_modules/**",
	"coverage/**",
}

// FileError pairs a failed file with the error encountered processing it.
type FileError struct {
	FilePath string
	Error    error
}

// Stats reports point-in-time counters for an indexing run, covering both
// the three-tier file discovery/indexing split and overall phase progress.
type Stats struct {
	PhasesCompleted int

	ProjectFilesDiscovered    int
	StubFilesDiscovered       int
	DependencyFilesDiscovered int

	ProjectFilesIndexed    int
	StubFilesIndexed       int
	DependencyFilesIndexed int
	FilesFailed            int

	LanguageVersion string

	TotalTimeMs      int64
	FilesPerSecond   float64
	StartTime        time.Time
	EndTime          time.Time
	Errors           []FileError
}
