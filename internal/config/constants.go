package config

const SourceFileExt = ".js"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".js", ".mjs", ".watc"}

// ConfigFileNames are searched, in order, in every directory from the source
// file's directory up to the filesystem root.
var ConfigFileNames = []string{"watc.yaml", "watc.yml"}

// Generated code names
const (
	DefaultEntryName = "_start"
	ResultLocalName  = ".result"
	ScratchI32Name   = ".tmp_i32"
	ScratchF32Name   = ".tmp_f32"
)

// Limits
const (
	MaxNestingDepth = 256   // parser recursion limit for expressions and blocks
	MaxCallDepth    = 10000 // interpreter call stack limit
	DefaultAddr     = "127.0.0.1:7447"
	DefaultCacheDB  = ".watc-cache.db"
)

// Version is reported by `watc --version`.
const Version = "0.1.0"
